package tracedb

import (
	"fmt"
	"strconv"
	"strings"
)

// Opcode identifies the shape of an ElfString, as embedded by the
// firmware's SWO logging macros in the .swo_trace section.
type Opcode int

const (
	FormattedText Opcode = iota
	Event
	EventSetStart
	EventSetEnd
	Buffer
	BufferOverflow
	Watchpoint
	SyncTime
	EventCreation
)

//go:generate stringer -type=Opcode

var opcodeNames = map[string]Opcode{
	"SWO_OPCODE_FORMATED_TEXT":         FormattedText,
	"SWO_OPCODE_EVENT":                 Event,
	"SWO_OPCODE_EVENT_SET_START":       EventSetStart,
	"SWO_OPCODE_EVENT_SET_END":         EventSetEnd,
	"SWO_OPCODE_BUFFER":                Buffer,
	"SWO_OPCODE_IDLE_BUFFER_OVERFLOW":  BufferOverflow,
	"SWO_OPCODE_WATCHPOINT":            Watchpoint,
	"SWO_OPCODE_SYNC_TIME":             SyncTime,
	"SWO_EVENT_CREATION":               EventCreation,
}

// ElfString is a single record decoded from the .swo_trace ELF section:
// a colon-triple-delimited string whose first field is an opcode name
// and whose remaining fields depend on that opcode.
//
// For every opcode except EventCreation, Fields holds the 8 raw
// colon-separated fields following the opcode, uninterpreted; the swo
// package, which owns SWO record shapes, is responsible for assigning
// them meaning (and the meaning genuinely differs: FormattedText,
// Buffer, and EventSetEnd lay out
// deferred/is_event_set/file/line/level/module/string/nargs in that
// order, EventSetStart swaps level and module, and WatchpointEnable
// repurposes the first two fields entirely). Keeping that
// interpretation out of this package is what the original Python
// implementation does too: trace_db.py only ever splits off the
// opcode, and swo_framer.py's per-opcode frame classes perform their
// own splits of the remainder.
//
// EventCreation strings are parsed here because their shape never
// varies and tracedb needs File/Line/Event/Module/String to populate
// its event map.
type ElfString struct {
	Opcode Opcode
	Fields []string

	// Valid only when Opcode == EventCreation.
	File   string
	Line   int
	Event  string
	Module string
	String string
}

// ParseElfString parses a single .swo_trace record, including the
// opcode prefix, as read from the ELF's symbol table.
func ParseElfString(value string) (*ElfString, error) {
	parts := strings.SplitN(value, ":::", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("tracedb: malformed elf string (no opcode separator): %q", value)
	}
	opcode, ok := opcodeNames[parts[0]]
	if !ok {
		return nil, fmt.Errorf("tracedb: unknown opcode %q", parts[0])
	}

	es := &ElfString{Opcode: opcode}
	if opcode == EventCreation {
		// _, _, file, line, event, module, string, _
		fields := strings.Split(parts[1], ":::")
		if len(fields) != 8 {
			return nil, fmt.Errorf("tracedb: event creation string has %d fields, want 8: %q", len(fields), value)
		}
		es.File = fields[2]
		line, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("tracedb: bad event creation line %q: %w", fields[3], err)
		}
		es.Line = line
		es.Event = fields[4]
		es.Module = fields[5]
		es.String = fields[6]
		return es, nil
	}

	fields := strings.Split(parts[1], ":::")
	if len(fields) != 8 {
		return nil, fmt.Errorf("tracedb: elf string has %d fields, want 8: %q", len(fields), value)
	}
	es.Fields = fields
	return es, nil
}
