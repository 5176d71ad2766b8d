// Command swotrace reads CoreSight ITM/SWO output from a serial port,
// decodes it against a target ELF image's embedded trace strings, and
// writes the decoded records to a Wireshark-style pipe sink or as
// newline-delimited JSON.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/swotrace/swotrace/internal/config"
	"github.com/swotrace/swotrace/itm"
	"github.com/swotrace/swotrace/output"
	"github.com/swotrace/swotrace/serialio"
	"github.com/swotrace/swotrace/sink"
	"github.com/swotrace/swotrace/swo"
	"github.com/swotrace/swotrace/tracedb"
)

func main() {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	var opts []tracedb.Option
	if cfg.ROMSymbolFile != "" {
		opts = append(opts, tracedb.WithROMSymbolFile(cfg.ROMSymbolFile))
	}
	if cfg.ExtraELF != "" {
		opts = append(opts, tracedb.WithAdditionalELF(cfg.ExtraELF))
	}
	if cfg.Demangle {
		opts = append(opts, tracedb.WithDemangle())
	}
	if cfg.CacheDir != "" {
		opts = append(opts, tracedb.WithCacheDir(cfg.CacheDir))
	}

	db, err := tracedb.New(cfg.ELFPath, opts...)
	if err != nil {
		log.Fatal(err)
	}

	var out writer
	switch cfg.Sink {
	case "json":
		out = sink.NewJSONWriter(os.Stdout, cfg.StreamID)
	default:
		out = sink.NewLVWriter(os.Stdout)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	reader, err := serialio.Open(cfg.Port, uint32(cfg.Baud), cfg.ChunkSize)
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	errc := make(chan error, 1)
	chunks := reader.Chunks(ctx, errc)

	itmFramer := &itm.Framer{}
	swoFramer := &swo.Framer{DB: db, Clock: cfg.Clock, Baudrate: float64(cfg.Baud)}

	var pending []byte
	for chunk := range chunks {
		pending = append(pending, chunk...)
		var packets []itm.Packet
		packets, pending = itmFramer.Parse(pending)
		for _, pkt := range packets {
			rec, ok := swoFramer.Parse(pkt)
			if !ok || !rec.Output {
				continue
			}
			if err := out.Write(output.Shape(rec)); err != nil {
				log.Printf("swotrace: sink write failed: %v", err)
			}
		}
	}

	select {
	case err := <-errc:
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	default:
	}
}

// writer is the common interface both sink writers satisfy; kept local
// to main since neither the output nor sink package needs to know about
// the other's concrete types.
type writer interface {
	Write(elems []output.Element) error
}
