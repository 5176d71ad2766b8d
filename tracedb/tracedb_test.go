package tracedb

import "testing"

func TestParseElfStringFormattedText(t *testing.T) {
	value := "SWO_OPCODE_FORMATED_TEXT:::0:::0:::main.c:::42:::INFO:::APP:::hello %d:::1"
	es, err := ParseElfString(value)
	if err != nil {
		t.Fatal(err)
	}
	if es.Opcode != FormattedText {
		t.Fatalf("Opcode = %v, want FormattedText", es.Opcode)
	}
	want := []string{"0", "0", "main.c", "42", "INFO", "APP", "hello %d", "1"}
	if len(es.Fields) != len(want) {
		t.Fatalf("Fields = %v, want %v", es.Fields, want)
	}
	for i := range want {
		if es.Fields[i] != want[i] {
			t.Errorf("Fields[%d] = %q, want %q", i, es.Fields[i], want[i])
		}
	}
}

func TestParseElfStringEventCreation(t *testing.T) {
	value := "SWO_EVENT_CREATION:::_:::_:::main.c:::17:::LINK_UP:::BLE:::link established:::_"
	es, err := ParseElfString(value)
	if err != nil {
		t.Fatal(err)
	}
	if es.Opcode != EventCreation {
		t.Fatalf("Opcode = %v, want EventCreation", es.Opcode)
	}
	if es.File != "main.c" || es.Line != 17 || es.Event != "LINK_UP" || es.Module != "BLE" || es.String != "link established" {
		t.Errorf("got %+v", es)
	}
}

func TestParseElfStringUnknownOpcode(t *testing.T) {
	if _, err := ParseElfString("SWO_OPCODE_BOGUS:::a:::b:::c:::d:::e:::f:::g"); err == nil {
		t.Fatal("expected error for unknown opcode")
	}
}

func TestParseElfStringMalformed(t *testing.T) {
	if _, err := ParseElfString("no separator here"); err == nil {
		t.Fatal("expected error for missing opcode separator")
	}
}

func TestInfoForAddress(t *testing.T) {
	db := &DB{
		funcTab: []funcRange{
			{lowpc: 0x1000, highpc: 0x1010, info: FuncInfo{Name: "foo", File: "foo.c", Line: 1}},
			{lowpc: 0x2000, highpc: 0x2020, info: FuncInfo{Name: "bar", File: "bar.c", Line: 2}},
		},
	}

	if info, ok := db.InfoForAddress(0x1005); !ok || info.Name != "foo" {
		t.Errorf("InfoForAddress(0x1005) = %+v, %v; want foo, true", info, ok)
	}
	if info, ok := db.InfoForAddress(0x2010); !ok || info.Name != "bar" {
		t.Errorf("InfoForAddress(0x2010) = %+v, %v; want bar, true", info, ok)
	}
	if _, ok := db.InfoForAddress(0x1500); ok {
		t.Error("InfoForAddress(0x1500) unexpectedly found a range")
	}
}

func TestElfStringAndEventString(t *testing.T) {
	db := &DB{
		traceMap: map[uint64]*ElfString{0x60000010: {Opcode: Buffer}},
		eventMap: map[string]*ElfString{"BLELINK_UP": {Opcode: EventCreation, Event: "LINK_UP"}},
	}
	if es, ok := db.ElfString(0x60000010); !ok || es.Opcode != Buffer {
		t.Errorf("ElfString lookup failed: %+v, %v", es, ok)
	}
	if _, ok := db.ElfString(0x60000020); ok {
		t.Error("unexpected hit for unregistered address")
	}
	if es, ok := db.EventString("BLELINK_UP"); !ok || es.Event != "LINK_UP" {
		t.Errorf("EventString lookup failed: %+v, %v", es, ok)
	}
}
