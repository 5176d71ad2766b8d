package sink

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/swotrace/swotrace/output"
)

func TestLVWriterFramesPairs(t *testing.T) {
	var buf bytes.Buffer
	w := NewLVWriter(&buf)
	elems := []output.Element{
		{Field: output.FieldModule, Value: "APP"},
		{Field: output.FieldInfo, Value: "hello"},
	}
	if err := w.Write(elems); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	readLV := func() string {
		n := binary.LittleEndian.Uint32(data[:4])
		data = data[4:]
		s := string(data[:n])
		data = data[n:]
		return s
	}
	if got := readLV(); got != "SWO module" {
		t.Errorf("first field name = %q", got)
	}
	if got := readLV(); got != "APP" {
		t.Errorf("first value = %q", got)
	}
	if got := readLV(); got != "SWO info" {
		t.Errorf("second field name = %q", got)
	}
	if got := readLV(); got != "hello" {
		t.Errorf("second value = %q", got)
	}
}

func TestJSONWriterNestsUnderOpenTree(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter(&buf, "test-stream")
	elems := []output.Element{
		{Field: output.FieldOpenTree, Value: "SWO Logger Frame"},
		{Field: output.FieldModule, Value: "APP"},
		{Field: output.FieldCloseTree},
		{Field: output.FieldMessage, Value: "summary text"},
	}
	if err := w.Write(elems); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, `"Stream ID":"test-stream"`) {
		t.Errorf("missing stream id in %s", out)
	}
	if !strings.Contains(out, `"SWO Logger Frame":{"SWO module":"APP"}`) {
		t.Errorf("missing nested group in %s", out)
	}
	if !strings.Contains(out, `"Message":"summary text"`) {
		t.Errorf("missing message in %s", out)
	}
}
