// Package serialio reads chunks of bytes off a serial-connected target
// and hands them to a consumer over a channel, decoupling the blocking
// read loop from whatever decodes the bytes.
package serialio

import (
	"context"
	"fmt"

	goserial "github.com/daedaluz/goserial"
)

// DefaultBaud is the SWO bit rate most CoreSight targets are configured
// for out of the box.
const DefaultBaud = 12000000

// DefaultChunkSize bounds how many bytes one Read call requests; the
// device may deliver fewer, never more.
const DefaultChunkSize = 1000

// Reader streams chunks from an open serial port onto a buffered
// channel until its context is canceled or the port errs.
type Reader struct {
	port      *goserial.Port
	chunkSize int
}

// Open opens name (e.g. "/dev/ttyACM0") at baud bits/sec in raw mode
// with a custom (non-termios-table) speed, since CoreSight SWO rates
// like 12Mbps have no POSIX Bxxx constant.
func Open(name string, baud uint32, chunkSize int) (*Reader, error) {
	port, err := goserial.Open(name, goserial.NewOptions())
	if err != nil {
		return nil, fmt.Errorf("serialio: opening %s: %w", name, err)
	}

	attrs, err := port.GetAttr2()
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("serialio: reading termios for %s: %w", name, err)
	}
	attrs.MakeRaw()
	attrs.SetCustomSpeed(baud)
	if err := port.SetAttr2(goserial.TCSANOW, attrs); err != nil {
		port.Close()
		return nil, fmt.Errorf("serialio: configuring %s at %d baud: %w", name, baud, err)
	}

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Reader{port: port, chunkSize: chunkSize}, nil
}

// Close releases the underlying serial port.
func (r *Reader) Close() error { return r.port.Close() }

// Chunks starts the read loop in its own goroutine and returns a
// channel of received byte slices; the channel is closed when ctx is
// canceled or a read fails. This is the idiomatic-Go rendering of the
// original collector's background thread handing buffers to a
// queue.Queue: here the channel itself provides the synchronization and
// backpressure a polling queue.get(block=False) loop had to fake.
func (r *Reader) Chunks(ctx context.Context, errc chan<- error) <-chan []byte {
	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		buf := make([]byte, r.chunkSize)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := r.port.Read(buf)
			if err != nil {
				if errc != nil {
					select {
					case errc <- fmt.Errorf("serialio: read: %w", err):
					default:
					}
				}
				return
			}
			if n == 0 {
				continue
			}
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
