// Package itm decodes a raw SWO byte stream into ARM CoreSight ITM
// (Instrumentation Trace Macrocell) packets, as described in Appendix D4
// of the ARMv7-M Architecture Reference Manual.
package itm

//go:generate stringer -type=Kind

// Kind identifies the variant of an ITM packet.
type Kind int

const (
	KindSynchronization Kind = iota
	KindOverflow
	KindLocalTimestamp
	KindExtension
	KindSourceSoftware
	KindCounterWrap
	KindException
	KindPCSample
	KindDataTrace
)

// Packet is an ITM packet. Every concrete packet type in this package
// implements it.
//
// Size is the total number of stream bytes the packet consumed,
// including its header byte.
type Packet interface {
	Kind() Kind
	Size() int
}

// Synchronization is 47 or more zero bits followed by a single one bit.
type Synchronization struct {
	size int
}

func (p *Synchronization) Kind() Kind { return KindSynchronization }
func (p *Synchronization) Size() int  { return p.size }

// Overflow is the single-byte 0x70 packet emitted when the ITM's
// internal FIFO could not keep up with the trace rate.
type Overflow struct{}

func (Overflow) Kind() Kind { return KindOverflow }
func (Overflow) Size() int  { return 1 }

// TimestampClass is the 2-bit synchronization classification carried in
// a local timestamp header.
type TimestampClass int

const (
	// TimestampInSync indicates the timestamp is synchronous to the
	// corresponding ITM or DWT data packet.
	TimestampInSync TimestampClass = iota
	// TimestampDelayed indicates the timestamp was delayed relative to
	// the ITM or DWT data packet it applies to.
	TimestampDelayed
	// PacketDelayed indicates the corresponding packet was delayed
	// relative to the timestamp.
	PacketDelayed
	// PacketAndTimestampDelayed indicates both the packet and the
	// timestamp were delayed.
	PacketAndTimestampDelayed
	// TimestampReserved covers header encodings outside the four
	// classifications above.
	TimestampReserved
)

// classifyTimestamp maps the upper nibble of a local timestamp header
// (header >> 4) to a TimestampClass.
func classifyTimestamp(nibble byte) TimestampClass {
	switch nibble {
	case 0xC:
		return TimestampInSync
	case 0xD:
		return TimestampDelayed
	case 0xE:
		return PacketDelayed
	case 0xF:
		return PacketAndTimestampDelayed
	default:
		return TimestampReserved
	}
}

// LocalTimestamp carries an optional cycle-count delta relative to the
// previous timestamp.
type LocalTimestamp struct {
	size        int
	Class       TimestampClass
	HasDelta    bool
	CycleDelta  uint32
}

func (p *LocalTimestamp) Kind() Kind { return KindLocalTimestamp }
func (p *LocalTimestamp) Size() int  { return p.size }

// Extension carries page/context information in a continuation-encoded
// payload; the S-bit (header bit 2) distinguishes the two extension
// sources (SWIT page vs. hardware source page) but this package does
// not interpret it beyond exposing it.
type Extension struct {
	size int
	SBit bool
	Data []byte
}

func (p *Extension) Kind() Kind { return KindExtension }
func (p *Extension) Size() int  { return p.size }

// SourceSoftware is a software-source ("SWIT") packet: up to 4 bytes of
// application payload tagged with a 5-bit stimulus port.
type SourceSoftware struct {
	size int
	Port int
	Data []byte
}

func (p *SourceSoftware) Kind() Kind { return KindSourceSoftware }
func (p *SourceSoftware) Size() int  { return p.size }

// CounterWrapFunction names the DWT counters that can report a wrap in
// a SourceHardwareCounterWrap packet.
type CounterWrapFunction int

const (
	CounterCyc CounterWrapFunction = iota
	CounterFold
	CounterLSU
	CounterSleep
	CounterExc
	CounterCPI
)

// SourceHardwareCounterWrap reports which DWT event counters wrapped.
type SourceHardwareCounterWrap struct {
	size  int
	Value byte
}

func (p *SourceHardwareCounterWrap) Kind() Kind { return KindCounterWrap }
func (p *SourceHardwareCounterWrap) Size() int  { return p.size }

// Wrapped reports whether the named counter's wrap bit is set.
func (p *SourceHardwareCounterWrap) Wrapped(c CounterWrapFunction) bool {
	return p.Value&(1<<uint(c)) != 0
}

// ExceptionFunction is the 2-bit exception transition field of a
// SourceHardwareException packet.
type ExceptionFunction int

const (
	ExceptionReserved ExceptionFunction = iota
	ExceptionEntered
	ExceptionExited
	ExceptionReturned
)

// SourceHardwareException reports entry into, exit from, or return to
// an exception handler.
type SourceHardwareException struct {
	size            int
	ExceptionNumber uint16
	Function        ExceptionFunction
}

func (p *SourceHardwareException) Kind() Kind { return KindException }
func (p *SourceHardwareException) Size() int  { return p.size }

// SourceHardwarePCSample is a periodic program-counter sample. Idle is
// set when the device reported no PC value for this period.
type SourceHardwarePCSample struct {
	size int
	Idle bool
	PC   uint32
}

func (p *SourceHardwarePCSample) Kind() Kind { return KindPCSample }
func (p *SourceHardwarePCSample) Size() int  { return p.size }

// SourceHardwareDataTrace reports a comparator (watchpoint) match:
// either the instruction address (PC) that triggered it or the data
// value read or written.
type SourceHardwareDataTrace struct {
	size                int
	Discriminator       int
	Comparator          int
	Direction           int
	DataTracePacketType int
	Data                []byte
}

func (p *SourceHardwareDataTrace) Kind() Kind { return KindDataTrace }
func (p *SourceHardwareDataTrace) Size() int  { return p.size }
