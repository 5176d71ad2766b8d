package sink

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/swotrace/swotrace/output"
)

// orderedMap is a JSON object that preserves insertion order, the Go
// analogue of the original writer's collections.OrderedDict: Go's
// encoding/json sorts map[string]any keys alphabetically, which would
// scramble a frame's field order on the wire.
type orderedMap struct {
	keys   []string
	values map[string]interface{}
}

func newOrderedMap() *orderedMap {
	return &orderedMap{values: make(map[string]interface{})}
}

func (m *orderedMap) set(key string, value interface{}) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *orderedMap) get(key string) (*orderedMap, bool) {
	v, ok := m.values[key]
	if !ok {
		return nil, false
	}
	child, ok := v.(*orderedMap)
	return child, ok
}

func (m *orderedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range m.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// JSONWriter renders each element list as one nested-map JSON document,
// one document per record, newline-delimited on the wire. OpenTree and
// CloseTree walk a stack of group names the way the original's
// wlogger_get_leaf helper does; FieldMessage always sets "Message" in
// the top-level "General" group, and every other element is set on
// whichever group is current.
type JSONWriter struct {
	w        io.Writer
	streamID string
}

// NewJSONWriter wraps w. streamID is written under "Stream ID" in every
// document's top-level "General" group, identifying the logger session.
func NewJSONWriter(w io.Writer, streamID string) *JSONWriter {
	return &JSONWriter{w: w, streamID: streamID}
}

// Write renders elems as one JSON document followed by a newline.
func (s *JSONWriter) Write(elems []output.Element) error {
	root := newOrderedMap()
	general := newOrderedMap()
	general.set("Stream ID", s.streamID)
	root.set("General", general)

	stack := []*orderedMap{root}
	groupNames := []string{}

	for _, e := range elems {
		switch e.Field {
		case output.FieldOpenTree:
			label := fmt.Sprintf("%v", e.Value)
			groupNames = append(groupNames, label)
			stack = append(stack, leafFor(root, groupNames))

		case output.FieldCloseTree:
			if len(groupNames) > 0 {
				groupNames = groupNames[:len(groupNames)-1]
			}
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}

		case output.FieldMessage:
			general.set("Message", fmt.Sprintf("%v", e.Value))

		case output.FieldCustom:
			stack[len(stack)-1].set(fmt.Sprintf("%v", e.Value), e.Custom)

		default:
			if e.Field.Name() != "" && e.Value != nil {
				stack[len(stack)-1].set(e.Field.Name(), fmt.Sprintf("%v", e.Value))
			}
		}
	}

	data, err := json.Marshal(root)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	_, err = io.WriteString(s.w, "\n")
	return err
}

// leafFor walks root through groupNames, creating any missing
// intermediate groups, and returns the map at the end of the path.
func leafFor(root *orderedMap, groupNames []string) *orderedMap {
	cur := root
	for _, name := range groupNames {
		child, ok := cur.get(name)
		if !ok {
			child = newOrderedMap()
			cur.set(name, child)
		}
		cur = child
	}
	return cur
}
