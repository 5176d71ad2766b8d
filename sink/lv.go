// Package sink serializes a shaped output.Element list onto a
// transport. Two framings are provided: LVWriter's length-value pairs
// for a pipe-connected viewer, and JSONWriter's nested map for anything
// that reads JSON.
package sink

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/swotrace/swotrace/output"
)

// LVWriter frames each element as a field-name/value pair of
// little-endian uint32 length-prefixed strings, the wire format a pipe
// listener (e.g. a Wireshark dissector) parses one pair at a time.
// FieldCustom, which has no field name, is written as an empty name
// followed by a "label: value" string.
type LVWriter struct {
	w io.Writer
}

// NewLVWriter wraps w.
func NewLVWriter(w io.Writer) *LVWriter { return &LVWriter{w: w} }

// Write frames elems onto the underlying writer as a flat sequence of
// length-value pairs, skipping elements whose value formats as the
// empty string.
func (s *LVWriter) Write(elems []output.Element) error {
	for _, e := range elems {
		name := e.Field.Name()
		var value string
		switch {
		case e.Field == output.FieldCustom:
			value = fmt.Sprintf("%v: %s", e.Value, e.Custom)
		case e.Field == output.FieldOpenTree:
			value = fmt.Sprintf("%v", e.Value)
		default:
			value = fmt.Sprintf("%v", e.Value)
		}
		if value == "" {
			continue
		}
		if err := s.writeLV(name); err != nil {
			return err
		}
		if err := s.writeLV(value); err != nil {
			return err
		}
	}
	return nil
}

func (s *LVWriter) writeLV(v string) error {
	if err := binary.Write(s.w, binary.LittleEndian, uint32(len(v))); err != nil {
		return err
	}
	_, err := io.WriteString(s.w, v)
	return err
}
