package config

import "testing"

func TestParseRequiresELFAndPort(t *testing.T) {
	if _, err := Parse(nil); err == nil {
		t.Error("expected an error with no flags at all")
	}
	if _, err := Parse([]string{"-elf", "fw.elf"}); err == nil {
		t.Error("expected an error with -port missing")
	}
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]string{"-elf", "fw.elf", "-port", "/dev/ttyACM0"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Baud != 12000000 || c.Sink != "lv" || c.Clock != 48000000 {
		t.Errorf("got %+v", c)
	}
}

func TestParseRejectsUnknownSink(t *testing.T) {
	_, err := Parse([]string{"-elf", "fw.elf", "-port", "/dev/ttyACM0", "-sink", "xml"})
	if err == nil {
		t.Error("expected an error for an unsupported sink")
	}
}
