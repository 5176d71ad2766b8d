// Package swo reassembles the application-layer SWO protocol that
// rides on top of ITM software-source and hardware-source packets: log
// records, buffers, events, event sets, watchpoint hits, and PC
// samples, each carried across one or more ITM packets.
package swo

// Port identifies the ITM stimulus port an SWO packet arrived on. Ports
// 0-10 and 16-31 carry no SWO semantics and are ignored by Framer.
type Port int

const (
	PortSyncTime Port = 11
	PortDriver   Port = 12
	PortIdle     Port = 13
	PortHeader   Port = 14
	PortTrace    Port = 15
)

// Opcode identifies the variant of a completed Record.
type Opcode int

const (
	OpFormattedText Opcode = iota
	OpEvent
	OpEventSetStart
	OpEventSetEnd
	OpEventSet
	OpBuffer
	OpBufferOverflow
	OpWatchpoint
	OpReset
	OpHwDataTrace
	OpHwPcSample
)

//go:generate stringer -type=Opcode

type parseState int

const (
	stateEventSetInfo parseState = iota
	stateLength
	stateData
)

// swoSwitSize is the width, in bytes, of one formatted-text or event
// argument on the wire.
const swoSwitSize = 4

// Record is a single completed SWO record. Every concrete record shape
// the protocol produces is flattened into this one tagged type rather
// than a family of interfaces: a record's Opcode says which of the
// variant-specific fields below are meaningful, mirroring how the ITM
// layer underneath it is a closed, small set of wire shapes.
type Record struct {
	Opcode Opcode

	RatTimeSeconds float64
	RatTicks       float64
	RtcTimeSeconds float64

	File   string
	Line   int
	Level  string
	Module string
	String string

	Deferred   bool
	IsEventSet bool
	Output     bool

	// FormattedText, Event: accumulated 32-bit argument values.
	Args []uint32

	// Event, EventSetStart, EventSet: the event name from the trace DB
	// record. For Event records, Module+Event is the key under which
	// String is looked up in the trace DB's event map.
	Event string

	// EventSetStart, EventSetEnd, and event-set member records
	// (FormattedText, Buffer with IsEventSet): the event set's handle,
	// and (member records only) this record's index within the set.
	Handle byte
	Index  int

	// EventSet: the member records, in ascending index order, with the
	// EventSetStart record that seeded the set already consumed.
	Events []*Record

	// Buffer: the accumulated payload bytes.
	BufferData []byte

	// Watchpoint: the DWT comparator index (0-3) and the function name
	// active when the watchpoint was armed.
	Watchpoint int
	Function   string

	// HwDataTrace: the comparator that matched and the watchpoint
	// string registered for it, plus the raw access description.
	HwComparator int
	HwDirection  int
	HwDataType   int
	HwData       []byte
	HwString     string

	// HwPcSample: the sampled program counter.
	PC uint32

	state     parseState
	remaining int
	nargs     int
}

// done reports whether the record has received every byte its header
// declared.
func (r *Record) done() bool { return r.remaining == 0 }
