package swo

import (
	"fmt"
	"log"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/swotrace/swotrace/itm"
	"github.com/swotrace/swotrace/tracedb"
)

// resetToken is the 4-byte payload the driver port carries once at
// boot, distinct from the ITM-layer reset token the itm package
// resyncs on.
var resetToken = []byte{0xBB, 0xBB, 0xBB, 0xBB}

const bufferOverflowToken = 0xCCCCCCCC

// Framer assembles ITM packets into SWO Records. It is stateful: every
// Parse call may mutate its deferred/immediate queues, its event-set
// table, its watchpoint table, and its running RAT/RTC clocks, so (like
// itm.Framer) it must be driven from a single goroutine.
type Framer struct {
	DB *tracedb.DB

	// Clock is the embedded device's core clock rate in Hz, used to
	// convert ITM timestamp cycle deltas into seconds. Defaults to 48MHz.
	Clock float64
	// Baudrate is the SWO bit rate, used to estimate the wall-clock
	// offset of a packet within the current timestamp interval.
	// Defaults to 12Mbps.
	Baudrate float64

	Logger *log.Logger

	deferred  recordDeque
	immediate recordDeque
	eventSets map[byte]map[int]*Record
	watchpoints [4]watchpointInfo

	ratS, ratT, rtcS float64
	rtcSecWhole      uint32
	offset           float64
	expectSeconds    bool

	initialized bool
}

type watchpointInfo struct {
	String   string
	Function string
}

func (f *Framer) init() {
	if f.initialized {
		return
	}
	if f.Clock == 0 {
		f.Clock = 48000000
	}
	if f.Baudrate == 0 {
		f.Baudrate = 12000000
	}
	if f.Logger == nil {
		f.Logger = log.New(os.Stderr, "swo: ", log.LstdFlags)
	}
	f.eventSets = make(map[byte]map[int]*Record)
	f.expectSeconds = true
	f.initialized = true
}

func (f *Framer) warn(format string, args ...interface{}) {
	f.Logger.Printf(format, args...)
}

// Parse consumes one ITM packet and returns the SWO record it
// completes, if any. Most packets carry a fragment of a record still
// assembling, or advance internal clock state, and Parse returns
// (nil, false) for them; this is the Go rendering of the original
// framer returning None while a record is in flight.
func (f *Framer) Parse(pkt itm.Packet) (*Record, bool) {
	f.init()

	switch p := pkt.(type) {
	case *itm.LocalTimestamp:
		f.rtcS += float64(p.CycleDelta) / f.Clock
		secWhole := uint32(f.rtcS)
		frac := uint32((f.rtcS - float64(secWhole)) * 4294967296.0)
		f.ratS, f.ratT = ratFromRTC(secWhole, frac)
		f.offset = 0
		return nil, false

	case *itm.SourceSoftware:
		f.offset += float64(p.Size()) / f.Baudrate
		rec := f.buildSWSourceFrame(p, f.offset)
		if rec == nil || !rec.done() {
			return nil, false
		}
		rec = f.switCompleted(rec, p)
		if rec == nil {
			return nil, false
		}
		return rec, true

	case *itm.SourceHardwareDataTrace:
		f.offset += float64(p.Size()) / f.Baudrate
		rec := f.buildHwDataTrace(p)
		if rec == nil {
			return nil, false
		}
		return rec, true

	case *itm.SourceHardwarePCSample:
		f.offset += float64(p.Size()) / f.Baudrate
		if p.Idle {
			return nil, false
		}
		rec := f.buildHwPcSample(p)
		if rec == nil {
			return nil, false
		}
		return rec, true

	default:
		return nil, false
	}
}

// buildSWSourceFrame routes a software-source packet by stimulus
// port: STIM_HEADER opens a new record from the trace DB, STIM_IDLE
// and STIM_TRACE deliver a continuation byte to whichever record is at
// the front of the deferred queue or the back of the immediate queue,
// STIM_SYNC_TIME advances the two-phase clock sync, and STIM_DRIVER
// carries the reset and buffer-overflow sentinels.
func (f *Framer) buildSWSourceFrame(pkt *itm.SourceSoftware, offset float64) *Record {
	switch Port(pkt.Port) {
	case PortHeader:
		addr := uint64(buildValue(pkt.Data))
		es, ok := f.DB.ElfString(addr)
		if !ok {
			f.warn("corruption: no trace database information at %#x", addr)
			return nil
		}
		rec, err := newRecordFromElfString(es, f.DB, f.ratS+offset, f.rtcS+offset, f.ratT)
		if err != nil {
			f.warn("%v", err)
			return nil
		}
		f.enqueue(rec)
		return rec

	case PortIdle:
		rec := f.deferred.popLeft()
		if rec == nil {
			f.warn("idle continuation with no deferred record in flight")
			return nil
		}
		applyContinuation(rec, pkt)
		f.deferred.pushLeft(rec)
		return rec

	case PortTrace:
		rec := f.immediate.popRight()
		if rec == nil {
			f.warn("trace continuation with no immediate record in flight")
			return nil
		}
		applyContinuation(rec, pkt)
		f.enqueue(rec)
		return rec

	case PortSyncTime:
		v := buildValue(pkt.Data)
		if f.expectSeconds {
			f.rtcSecWhole = v
			f.expectSeconds = false
		} else {
			f.rtcS = float64(f.rtcSecWhole) + float64(v)/4294967296.0
			f.ratS, f.ratT = ratFromRTC(f.rtcSecWhole, v)
			f.expectSeconds = true
		}
		return nil

	case PortDriver:
		if containsToken(pkt.Data, resetToken) {
			return &Record{Opcode: OpReset, RatTimeSeconds: f.ratS + offset, RtcTimeSeconds: f.rtcS + offset, RatTicks: f.ratT, Output: true, String: "Device Reset"}
		}
		if buildValue(pkt.Data) == bufferOverflowToken {
			return &Record{Opcode: OpBufferOverflow, RatTimeSeconds: f.ratS + offset, RtcTimeSeconds: f.rtcS + offset, RatTicks: f.ratT, Output: true}
		}
		return nil

	default:
		return nil
	}
}

// enqueue places rec on the deferred queue if it is both marked
// deferred and has finished its header continuation (parse_state ==
// DATA); otherwise, including while a record's event-set header bytes
// are still arriving, it goes on the immediate queue. This mirrors the
// original framer's rule that event-set member records are always
// serviced on the immediate port until their own header completes.
func (f *Framer) enqueue(rec *Record) {
	if rec.Deferred && rec.state == stateData {
		f.deferred.pushRight(rec)
	} else {
		f.immediate.pushRight(rec)
	}
}

// applyContinuation adds one more ITM software-source packet's payload
// to rec, adjusting for the three-byte-payload quirk: a packet that
// reports a 3-byte remainder but whose header (per sourceSize) actually
// carries a 4-byte slot has its trailing byte discarded.
func applyContinuation(rec *Record, pkt *itm.SourceSoftware) {
	data := pkt.Data
	if rec.remaining == 3 && len(data) == 4 {
		data = data[:3]
	}
	rec.remaining -= len(data)

	switch rec.Opcode {
	case OpFormattedText:
		if rec.state == stateData {
			if rec.nargs == strings.Count(rec.String, "%") {
				rec.Args = append(rec.Args, buildValue(data))
			}
		} else if rec.state == stateEventSetInfo {
			rec.state = stateData
			if len(data) >= 2 {
				rec.Index = int(data[0])
				rec.Handle = data[1]
			}
		}

	case OpEvent:
		rec.Args = append(rec.Args, buildValue(data))

	case OpEventSetStart:
		if len(data) >= 1 {
			rec.Handle = data[0]
		}

	case OpEventSetEnd:
		if len(data) >= 1 {
			rec.Handle = data[0]
		}

	case OpBuffer:
		switch rec.state {
		case stateEventSetInfo:
			rec.state = stateLength
			if len(data) >= 2 {
				rec.Index = int(data[0])
				rec.Handle = data[1]
			}
		case stateLength:
			rec.state = stateData
			rec.remaining = int(buildValue(data))
		case stateData:
			rec.BufferData = append(rec.BufferData, data...)
		}
	}
}

// switCompleted runs the side effects of a fully-assembled
// software-source record: folding it into an in-progress event set,
// registering a watchpoint string, discarding the deferred record an
// overflow made unrecoverable, and removing the record from whichever
// queue it was on.
func (f *Framer) switCompleted(rec *Record, pkt *itm.SourceSoftware) *Record {
	result := rec

	switch {
	case rec.IsEventSet:
		switch rec.Opcode {
		case OpEventSetEnd:
			members := f.eventSets[rec.Handle]
			delete(f.eventSets, rec.Handle)
			result = materializeEventSet(members)
		case OpEventSetStart:
			f.eventSets[rec.Handle] = map[int]*Record{0: rec}
			result = nil
		default:
			if set, ok := f.eventSets[rec.Handle]; ok {
				set[rec.Index+1] = rec
			} else {
				f.warn("record for unknown event set handle %d", rec.Handle)
			}
			result = nil
		}

	case rec.Opcode == OpWatchpoint:
		f.watchpoints[rec.Watchpoint] = watchpointInfo{String: rec.String, Function: rec.Function}

	case rec.Opcode == OpBufferOverflow:
		f.deferred.popRight()
	}

	switch Port(pkt.Port) {
	case PortTrace, PortHeader, PortIdle:
		if rec.Deferred {
			f.deferred.popLeft()
		} else {
			f.immediate.popRight()
		}
	}

	return result
}

// materializeEventSet turns the accumulated {index: record} map for a
// handle into a single OpEventSet record, using the Start record (at
// index 0) for shared metadata and the remaining records, sorted by
// index, as the set's members.
func materializeEventSet(members map[int]*Record) *Record {
	if members == nil {
		return nil
	}
	indices := make([]int, 0, len(members))
	for i := range members {
		indices = append(indices, i)
	}
	sortInts(indices)

	start := members[0]
	if start == nil {
		return nil
	}

	var ordered []*Record
	for _, i := range indices {
		if i == 0 {
			continue
		}
		ordered = append(ordered, members[i])
	}

	return &Record{
		Opcode:         OpEventSet,
		RatTimeSeconds: start.RatTimeSeconds,
		RatTicks:       start.RatTicks,
		RtcTimeSeconds: start.RtcTimeSeconds,
		Output:         true,
		Event:          start.Event,
		Module:         start.Module,
		File:           start.File,
		Line:           start.Line,
		String:         start.String,
		Events:         ordered,
	}
}

func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// buildHwDataTrace constructs a hardware data-trace record directly
// from a single ITM packet; it never spans more than one.
func (f *Framer) buildHwDataTrace(pkt *itm.SourceHardwareDataTrace) *Record {
	wp := f.watchpoints[pkt.Comparator]
	access := accessDescription(pkt.Direction, pkt.DataTracePacketType)
	value := buildValue(pkt.Data)

	hwString := fmt.Sprintf("%s : %s, comparator: %d, value: %#x", wp.String, access, pkt.Comparator, value)

	return &Record{
		Opcode:         OpHwDataTrace,
		RatTimeSeconds: f.ratS + f.offset,
		RtcTimeSeconds: f.rtcS + f.offset,
		RatTicks:       f.ratT,
		Output:         true,
		HwComparator:   pkt.Comparator,
		HwDirection:    pkt.Direction,
		HwDataType:     pkt.DataTracePacketType,
		HwData:         pkt.Data,
		HwString:       hwString,
	}
}

// accessDescription reproduces the ITM layer's access-type naming for
// hardware data-trace packets: the 2-bit access type is assembled as
// direction | (packet_type << 1).
func accessDescription(direction, dataTracePacketType int) string {
	switch direction + dataTracePacketType*2 {
	case 2:
		return "PC value Access"
	case 3:
		return "Address access"
	case 4:
		return "Read Access"
	case 5:
		return "Write Access"
	default:
		return "Unknown access"
	}
}

// buildHwPcSample looks up the sampled PC in the trace DB's function
// map; if the address resolves to nothing meaningful the sample is
// dropped, matching the original framer's "<skip>" sentinel.
func (f *Framer) buildHwPcSample(pkt *itm.SourceHardwarePCSample) *Record {
	info, ok := f.DB.InfoForAddress(uint64(pkt.PC))
	if !ok {
		return nil
	}
	return &Record{
		Opcode:         OpHwPcSample,
		RatTimeSeconds: f.ratS + f.offset,
		RtcTimeSeconds: f.rtcS + f.offset,
		RatTicks:       f.ratT,
		Output:         true,
		PC:             pkt.PC,
		String:         fmt.Sprintf("%s (%s:%d)", info.Name, info.File, info.Line),
	}
}

// ratFromRTC converts a real-time-clock reading in seconds into a
// radio-timer reading, bit-exact with the embedded device's own
// conversion: the RTC is held as 32.32 fixed-point seconds, offset by
// one 32768Hz RTC tick period, and rescaled to 4MHz RAT ticks.
// ratFromRTC converts an RTC sync pair (whole seconds, 2^-32 fraction) to
// the free-running RAT clock's seconds and tick count. The conversion
// itself is integer fixed-point math; the only float64 involved is the
// final result, since callers need RAT time as seconds and the deferred
// Record queue carries fractional seconds throughout.
func ratFromRTC(secWhole, fracRaw uint32) (ratS, ratT float64) {
	const rtcHz = 32768
	const fixedPoint = int64(1) << 32
	const ratHz = 4000000

	scaled := new(big.Int).Mul(big.NewInt(int64(secWhole)), big.NewInt(fixedPoint))
	scaled.Add(scaled, big.NewInt(int64(fracRaw)))
	scaled.Add(scaled, big.NewInt(fixedPoint/rtcHz))

	ticks := new(big.Int).Mul(scaled, big.NewInt(ratHz))
	ticks.Div(ticks, big.NewInt(fixedPoint))

	ratT, _ = new(big.Float).SetInt(ticks).Float64()
	return ratT / ratHz, ratT
}

func buildValue(data []byte) uint32 {
	var v uint32
	for i, b := range data {
		v |= uint32(b) << uint(8*i)
	}
	return v
}

func containsToken(data, token []byte) bool {
	if len(data) < len(token) {
		return false
	}
	for i := 0; i+len(token) <= len(data); i++ {
		if string(data[i:i+len(token)]) == string(token) {
			return true
		}
	}
	return false
}

// newRecordFromElfString builds the initial, possibly-incomplete
// Record for a newly-opened software-source header, dispatching on the
// trace DB opcode the way the original framer's frame_opcode_dict
// does. Field layouts genuinely differ per opcode; see ElfString's doc
// comment in the tracedb package.
func newRecordFromElfString(es *tracedb.ElfString, db *tracedb.DB, ratS, rtcS, ratT float64) (*Record, error) {
	rec := &Record{
		RatTimeSeconds: ratS,
		RtcTimeSeconds: rtcS,
		RatTicks:       ratT,
		Output:         true,
	}

	fields := es.Fields
	if len(fields) != 8 {
		return nil, fmt.Errorf("swo: elf string has %d fields, want 8", len(fields))
	}

	switch es.Opcode {
	case tracedb.FormattedText:
		rec.Opcode = OpFormattedText
		rec.Deferred = parseBool(fields[0])
		rec.IsEventSet = parseBool(fields[1])
		rec.File, rec.Line = fields[2], parseInt(fields[3])
		rec.Level, rec.Module = fields[4], fields[5]
		rec.String = fields[6]
		rec.nargs = parseInt(fields[7])
		rec.remaining = rec.nargs * swoSwitSize
		if rec.nargs > 1 && rec.nargs != strings.Count(rec.String, "%") {
			rec.String += "[ARGUMENT MISMATCH]"
		}
		if rec.IsEventSet {
			rec.state = stateEventSetInfo
			rec.remaining += 2
		} else {
			rec.state = stateData
		}

	case tracedb.Event:
		rec.Opcode = OpEvent
		rec.Deferred = parseBool(fields[0])
		rec.IsEventSet = parseBool(fields[1])
		rec.File, rec.Line = fields[2], parseInt(fields[3])
		rec.Level, rec.Module = fields[4], fields[5]
		rec.Event = fields[6]
		nargs := parseInt(fields[7])
		rec.remaining = (nargs - 1) * swoSwitSize
		rec.state = stateData
		if creation, ok := db.EventString(rec.Module + rec.Event); ok {
			rec.String = creation.String
		} else {
			rec.String = rec.Event
		}

	case tracedb.EventSetStart:
		rec.Opcode = OpEventSetStart
		rec.IsEventSet = parseBool(fields[1])
		// file, line, module, level swapped relative to the other
		// opcodes' layout; preserved verbatim from the original framer.
		rec.File, rec.Line = fields[2], parseInt(fields[3])
		rec.Module, rec.Level = fields[4], fields[5]
		rec.Event = fields[6]
		rec.remaining = 1
		rec.state = stateData

	case tracedb.EventSetEnd:
		rec.Opcode = OpEventSetEnd
		rec.IsEventSet = parseBool(fields[1])
		rec.File, rec.Line = fields[2], parseInt(fields[3])
		rec.Level, rec.Module = fields[4], fields[5]
		rec.remaining = 1
		rec.state = stateData

	case tracedb.Buffer:
		rec.Opcode = OpBuffer
		rec.Deferred = parseBool(fields[0])
		rec.IsEventSet = parseBool(fields[1])
		rec.File, rec.Line = fields[2], parseInt(fields[3])
		rec.Level, rec.Module = fields[4], fields[5]
		rec.String = fields[6]
		if rec.IsEventSet {
			rec.state = stateEventSetInfo
			rec.remaining = 6
		} else {
			rec.state = stateLength
			rec.remaining = 4
		}

	case tracedb.Watchpoint:
		rec.Opcode = OpWatchpoint
		rec.Deferred = false
		// watchpoint, function, file, line, level, module, wp_string, _
		wp := fields[0]
		rec.Watchpoint = parseInt(wp[len(wp)-1:])
		rec.Function = fields[1]
		rec.File, rec.Line = fields[2], parseInt(fields[3])
		rec.Level, rec.Module = fields[4], fields[5]
		rec.String = fields[6]
		rec.state = stateData

	default:
		return nil, fmt.Errorf("swo: corruption: unexpected header opcode %v", es.Opcode)
	}

	return rec, nil
}

func parseBool(s string) bool {
	return !(s == "0" || s == "0U" || s == "FALSE")
}

func parseInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
