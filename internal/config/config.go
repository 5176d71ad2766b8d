// Package config parses the swotrace command-line flags, following the
// teacher's cmd/ tools' convention of a flat set of flag.* variables
// parsed once at the top of main.
package config

import (
	"flag"
	"fmt"
)

// Config holds every flag swotrace accepts.
type Config struct {
	ELFPath       string
	Port          string
	Baud          uint
	ChunkSize     int
	ROMSymbolFile string
	ExtraELF      string
	Demangle      bool
	CacheDir      string
	Sink          string
	StreamID      string
	Clock         float64
}

// Parse parses args (normally os.Args[1:]) into a Config, returning an
// error for a missing required flag instead of calling os.Exit, so
// callers can decide how to report it.
func Parse(args []string) (*Config, error) {
	fs := flag.NewFlagSet("swotrace", flag.ContinueOnError)
	c := &Config{}

	fs.StringVar(&c.ELFPath, "elf", "", "target `ELF` image with embedded SWO trace strings")
	fs.StringVar(&c.Port, "port", "", "serial `device` the target's SWO output is wired to")
	fs.UintVar(&c.Baud, "baud", 12000000, "SWO `bit rate`")
	fs.IntVar(&c.ChunkSize, "chunk", 1000, "maximum `bytes` read per serial chunk")
	fs.StringVar(&c.ROMSymbolFile, "rom-symbols", "", "optional flat lowpc/size/name symbol `file`")
	fs.StringVar(&c.ExtraELF, "extra-elf", "", "optional additional `ELF` image to merge function info from")
	fs.BoolVar(&c.Demangle, "demangle", false, "demangle C++ symbol names")
	fs.StringVar(&c.CacheDir, "cache-dir", "", "trace DB cache `directory`; empty disables caching")
	fs.StringVar(&c.Sink, "sink", "lv", "output `sink`: lv or json")
	fs.StringVar(&c.StreamID, "stream-id", "swotrace", "stream `id` tagged onto JSON sink output")
	fs.Float64Var(&c.Clock, "clock", 48000000, "target core `clock` rate in Hz")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if c.ELFPath == "" {
		return nil, fmt.Errorf("config: -elf is required")
	}
	if c.Port == "" {
		return nil, fmt.Errorf("config: -port is required")
	}
	if c.Sink != "lv" && c.Sink != "json" {
		return nil, fmt.Errorf("config: -sink must be \"lv\" or \"json\", got %q", c.Sink)
	}
	return c, nil
}
