package swo

import (
	"testing"

	"github.com/swotrace/swotrace/itm"
	"github.com/swotrace/swotrace/tracedb"
)

func elfStringField(opcode, value string) *tracedb.ElfString {
	es, err := tracedb.ParseElfString(opcode + ":::" + value)
	if err != nil {
		panic(err)
	}
	return es
}

func TestFormattedTextNoArgs(t *testing.T) {
	trace := map[uint64]*tracedb.ElfString{
		0x60000000: elfStringField("SWO_OPCODE_FORMATED_TEXT", "0:::0:::main.c:::10:::INFO:::APP:::hello world:::0"),
	}
	db := tracedb.NewFromTables(trace, nil, nil)
	f := &Framer{DB: db}

	header := &itm.SourceSoftware{Port: int(PortHeader), Data: []byte{0x00, 0x00, 0x00, 0x60}}
	rec, ok := f.Parse(header)
	if !ok {
		t.Fatal("expected a completed record for a zero-argument formatted text call")
	}
	if rec.Opcode != OpFormattedText || rec.String != "hello world" {
		t.Errorf("got %+v", rec)
	}
}

func TestFormattedTextWithArg(t *testing.T) {
	trace := map[uint64]*tracedb.ElfString{
		0x60000000: elfStringField("SWO_OPCODE_FORMATED_TEXT", "0:::0:::main.c:::10:::INFO:::APP:::value is %d:::1"),
	}
	db := tracedb.NewFromTables(trace, nil, nil)
	f := &Framer{DB: db}

	header := &itm.SourceSoftware{Port: int(PortHeader), Data: []byte{0x00, 0x00, 0x00, 0x60}}
	if _, ok := f.Parse(header); ok {
		t.Fatal("expected the record to still be assembling after just the header")
	}

	arg := &itm.SourceSoftware{Port: int(PortTrace), Data: []byte{0x2A, 0x00, 0x00, 0x00}}
	rec, ok := f.Parse(arg)
	if !ok {
		t.Fatal("expected the record to complete after its one argument arrives")
	}
	if len(rec.Args) != 1 || rec.Args[0] != 42 {
		t.Errorf("Args = %v, want [42]", rec.Args)
	}
}

func TestEventLooksUpCreationString(t *testing.T) {
	trace := map[uint64]*tracedb.ElfString{
		0x60000000: elfStringField("SWO_OPCODE_EVENT", "0:::0:::main.c:::20:::INFO:::BLE:::LINK_UP:::1"),
	}
	events := map[string]*tracedb.ElfString{
		"BLELINK_UP": elfStringField("SWO_EVENT_CREATION", "_:::_:::main.c:::19:::LINK_UP:::BLE:::link established:::_"),
	}
	db := tracedb.NewFromTables(trace, events, nil)
	f := &Framer{DB: db}

	header := &itm.SourceSoftware{Port: int(PortHeader), Data: []byte{0x00, 0x00, 0x00, 0x60}}
	rec, ok := f.Parse(header)
	if !ok {
		t.Fatal("expected a zero-argument event to complete immediately")
	}
	if rec.String != "link established" {
		t.Errorf("String = %q, want the creation-time string", rec.String)
	}
}

func TestEventSetAssembly(t *testing.T) {
	trace := map[uint64]*tracedb.ElfString{
		0x60000000: elfStringField("SWO_OPCODE_EVENT_SET_START", "_:::1:::main.c:::1:::APP:::INFO:::SET_EVT:::_"),
		0x60000010: elfStringField("SWO_OPCODE_FORMATED_TEXT", "0:::1:::main.c:::2:::INFO:::APP:::member %d:::1"),
		0x60000020: elfStringField("SWO_OPCODE_EVENT_SET_END", "_:::1:::main.c:::3:::INFO:::APP:::_:::_"),
	}
	db := tracedb.NewFromTables(trace, nil, nil)
	f := &Framer{DB: db}

	// Start: header, then one byte carrying the handle.
	if rec, ok := f.Parse(&itm.SourceSoftware{Port: int(PortHeader), Data: []byte{0x00, 0x00, 0x00, 0x60}}); ok {
		t.Fatalf("start header alone should not complete, got %+v", rec)
	}
	if rec, ok := f.Parse(&itm.SourceSoftware{Port: int(PortTrace), Data: []byte{0x07}}); ok {
		t.Fatalf("start should be absorbed into the event set table, not emitted, got %+v", rec)
	}

	// Member: header, 2-byte event-set-info (index, handle), then the one arg.
	if rec, ok := f.Parse(&itm.SourceSoftware{Port: int(PortHeader), Data: []byte{0x10, 0x00, 0x00, 0x60}}); ok {
		t.Fatalf("member header alone should not complete, got %+v", rec)
	}
	if rec, ok := f.Parse(&itm.SourceSoftware{Port: int(PortTrace), Data: []byte{0x00, 0x07}}); ok {
		t.Fatalf("member event-set-info alone should not complete, got %+v", rec)
	}
	if rec, ok := f.Parse(&itm.SourceSoftware{Port: int(PortTrace), Data: []byte{0x63, 0x00, 0x00, 0x00}}); ok {
		t.Fatalf("member should be absorbed into the event set table, not emitted, got %+v", rec)
	}

	// End: header, then the handle byte completes and materializes the set.
	if rec, ok := f.Parse(&itm.SourceSoftware{Port: int(PortHeader), Data: []byte{0x20, 0x00, 0x00, 0x60}}); ok {
		t.Fatalf("end header alone should not complete, got %+v", rec)
	}
	rec, ok := f.Parse(&itm.SourceSoftware{Port: int(PortTrace), Data: []byte{0x07}})
	if !ok {
		t.Fatal("expected the event set to materialize once its end record completes")
	}
	if rec.Opcode != OpEventSet {
		t.Fatalf("Opcode = %v, want OpEventSet", rec.Opcode)
	}
	if len(rec.Events) != 1 {
		t.Fatalf("Events = %v, want exactly 1 member", rec.Events)
	}
	if rec.Events[0].Args[0] != 0x63 {
		t.Errorf("member arg = %#x, want 0x63", rec.Events[0].Args[0])
	}
}

func TestResetAndBufferOverflow(t *testing.T) {
	db := tracedb.NewFromTables(nil, nil, nil)
	f := &Framer{DB: db}

	reset := &itm.SourceSoftware{Port: int(PortDriver), Data: []byte{0xBB, 0xBB, 0xBB, 0xBB}}
	rec, ok := f.Parse(reset)
	if !ok || rec.Opcode != OpReset {
		t.Fatalf("Parse(reset token) = %+v, %v; want OpReset", rec, ok)
	}

	overflow := &itm.SourceSoftware{Port: int(PortDriver), Data: []byte{0xCC, 0xCC, 0xCC, 0xCC}}
	rec, ok = f.Parse(overflow)
	if !ok || rec.Opcode != OpBufferOverflow {
		t.Fatalf("Parse(overflow token) = %+v, %v; want OpBufferOverflow", rec, ok)
	}
}

func TestWatchpointThenHwDataTrace(t *testing.T) {
	trace := map[uint64]*tracedb.ElfString{
		0x60000000: elfStringField("SWO_OPCODE_WATCHPOINT", "Watchpoint2:::myFunc:::main.c:::5:::INFO:::APP:::counter:::_"),
	}
	db := tracedb.NewFromTables(trace, nil, nil)
	f := &Framer{DB: db}

	rec, ok := f.Parse(&itm.SourceSoftware{Port: int(PortHeader), Data: []byte{0x00, 0x00, 0x00, 0x60}})
	if !ok || rec.Opcode != OpWatchpoint {
		t.Fatalf("Parse(watchpoint header) = %+v, %v; want OpWatchpoint", rec, ok)
	}
	if rec.Watchpoint != 2 || rec.Function != "myFunc" {
		t.Errorf("got watchpoint=%d function=%q", rec.Watchpoint, rec.Function)
	}

	hw := &itm.SourceHardwareDataTrace{Comparator: 2, Direction: 1, DataTracePacketType: 1, Data: []byte{0x2A, 0, 0, 0}}
	hwRec, ok := f.Parse(hw)
	if !ok {
		t.Fatal("expected hardware data trace to produce a record immediately")
	}
	if hwRec.Opcode != OpHwDataTrace || hwRec.HwComparator != 2 {
		t.Errorf("got %+v", hwRec)
	}
}

func TestHwPcSampleSkippedWhenUnresolved(t *testing.T) {
	db := tracedb.NewFromTables(nil, nil, nil)
	f := &Framer{DB: db}

	pc := &itm.SourceHardwarePCSample{PC: 0x1234}
	if rec, ok := f.Parse(pc); ok {
		t.Fatalf("expected an unresolvable PC sample to be dropped, got %+v", rec)
	}
}

func TestRatFromRTCMonotonic(t *testing.T) {
	s1, t1 := ratFromRTC(1, 0)
	s2, t2 := ratFromRTC(2, 0)
	if s2 <= s1 || t2 <= t1 {
		t.Errorf("ratFromRTC should be monotonic in rtc seconds: (%v,%v) then (%v,%v)", s1, t1, s2, t2)
	}
}
