package itm

import (
	"bytes"
	"fmt"
	"log"
	"os"
)

// MaxFrameSize is the size of the largest source packet: one header
// byte plus 4 bytes of payload. Framer.Parse never
// attempts to consume a header from a buffer holding MaxFrameSize bytes
// or fewer, since a packet's payload might still be in flight.
const MaxFrameSize = 5

// resetToken is the software-source packet (header 0x63, payload
// 0xBB 0xBB 0xBB 0xBB) the device emits once at boot. Framer discards
// everything before the first occurrence of this token and refuses to
// parse anything until it has been seen.
var resetToken = []byte{0x63, 0xBB, 0xBB, 0xBB, 0xBB}

// Framer turns a raw ITM byte stream into a sequence of Packets.
//
// A Framer is not safe for concurrent use; callers are expected to
// drive it from a single goroutine, feeding it successive buffers and
// retaining the returned tail for the next call.
type Framer struct {
	// Verbose enables per-packet debug logging.
	Verbose bool
	// Logger receives warnings about malformed packets and, if Verbose
	// is set, per-packet debug messages. Defaults to a logger on
	// os.Stderr if nil.
	Logger *log.Logger

	firstRead    bool
	lastTSDelta  uint32
	initialized  bool
}

func (f *Framer) init() {
	if !f.initialized {
		f.firstRead = true
		f.initialized = true
	}
	if f.Logger == nil {
		f.Logger = log.New(os.Stderr, "itm: ", log.LstdFlags)
	}
}

func (f *Framer) logf(format string, args ...interface{}) {
	f.Logger.Printf(format, args...)
}

func (f *Framer) debugf(format string, args ...interface{}) {
	if f.Verbose {
		f.Logger.Printf(format, args...)
	}
}

// Parse consumes as many complete packets as buf holds and returns them
// along with the unconsumed tail. The caller must prepend the returned
// tail to the next chunk of bytes before calling Parse again; Parse
// never discards bytes that might be the prefix of a packet still in
// flight, except for bytes preceding a reset token, every byte of a
// buffer received before the first reset token has been seen, and bytes
// dropped by the malformed-header recovery rule.
func (f *Framer) Parse(buf []byte) ([]Packet, []byte) {
	f.init()

	if len(buf) == 0 {
		return nil, buf
	}

	// The reset token, or MAX_ITM_FRAME_SIZE guard below, may be split
	// across reads. If the buffer ends in a byte that could be the
	// start of a split reset token, wait for more data.
	if last := buf[len(buf)-1]; last == 0xBB || last == 0xC0 {
		return nil, buf
	}

	if idx := bytes.Index(buf, resetToken); idx >= 0 {
		buf = buf[idx:]
	} else if f.firstRead {
		f.debugf("waiting for a reset frame to begin parsing")
		return nil, nil
	}

	var packets []Packet
	for len(buf) > MaxFrameSize {
		f.firstRead = false

		header := buf[0]
		rest := buf[1:]

		pkt, consumed, err := f.decode(header, rest)
		if err != nil {
			f.logf("malformed ITM header 0x%02x: %v", header, err)
			buf = rest
			continue
		}

		buf = rest[consumed:]
		if ts, ok := pkt.(*LocalTimestamp); ok && ts.HasDelta {
			f.lastTSDelta = ts.CycleDelta
		}
		f.debugf("%s", describe(pkt))
		packets = append(packets, pkt)
	}

	return packets, buf
}

// decode decodes the packet whose header byte is header and whose
// payload (if any) begins at buf[0]. It returns the packet, the number
// of bytes of buf consumed as payload, and an error if buf did not hold
// enough bytes or the header encoding was invalid.
func (f *Framer) decode(header byte, buf []byte) (Packet, int, error) {
	switch {
	case header == 0x00:
		return decodeSynchronization(buf)

	case header&0x03 == 0x00:
		switch {
		case header == 0x70:
			return Overflow{}, 0, nil
		case header&0x0F == 0x00:
			return decodeLocalTimestamp(header, buf)
		case header&0x0B == 0x08:
			return decodeExtension(header, buf)
		default:
			return nil, 0, fmt.Errorf("reserved non-source header")
		}

	default:
		if header&0x04 == 0 {
			return decodeSourceSoftware(header, buf)
		}
		return decodeSourceHardware(header, buf)
	}
}

func decodeSynchronization(buf []byte) (Packet, int, error) {
	idx := bytes.IndexByte(buf, 0x01)
	if idx < 0 {
		return nil, 0, fmt.Errorf("incomplete synchronization packet")
	}
	return &Synchronization{size: idx + 1}, idx + 1, nil
}

func decodeLocalTimestamp(header byte, buf []byte) (Packet, int, error) {
	class := classifyTimestamp(header >> 4)
	if header&0x80 == 0 {
		return &LocalTimestamp{size: 0, Class: class}, 0, nil
	}
	var delta uint32
	for i, b := range buf {
		delta |= uint32(b&0x7F) << uint(7*i)
		if b&0x80 == 0 {
			return &LocalTimestamp{size: i + 1, Class: class, HasDelta: true, CycleDelta: delta}, i + 1, nil
		}
	}
	return nil, 0, fmt.Errorf("incomplete local timestamp packet")
}

func decodeExtension(header byte, buf []byte) (Packet, int, error) {
	sBit := header&0x04 != 0
	var data []byte
	for i, b := range buf {
		if b&0x80 == 0 {
			return &Extension{size: i + 1, SBit: sBit, Data: data}, i + 1, nil
		}
		data = append(data, b)
	}
	return nil, 0, fmt.Errorf("incomplete extension packet")
}

// sourceSize maps the low two bits of a source-packet header to its
// payload size: 0, 1, 2 bytes directly, or 3 -> 4 bytes.
func sourceSize(header byte) int {
	n := int(header & 0x03)
	if n == 3 {
		return 4
	}
	return n
}

func decodeSourceSoftware(header byte, buf []byte) (Packet, int, error) {
	size := sourceSize(header)
	if len(buf) < size {
		return nil, 0, fmt.Errorf("short software-source payload")
	}
	data := append([]byte(nil), buf[:size]...)
	return &SourceSoftware{size: size, Port: int(header >> 3), Data: data}, size, nil
}

func decodeSourceHardware(header byte, buf []byte) (Packet, int, error) {
	discriminator := int(header >> 3)
	size := sourceSize(header)
	if len(buf) < size {
		return nil, 0, fmt.Errorf("short hardware-source payload")
	}

	switch {
	case discriminator == 0:
		if size < 1 {
			return nil, 0, fmt.Errorf("counter-wrap packet has no payload")
		}
		return &SourceHardwareCounterWrap{size: size, Value: buf[0]}, size, nil

	case discriminator == 1:
		if size < 2 {
			return nil, 0, fmt.Errorf("exception packet too short")
		}
		num := uint16(buf[0]) | uint16(buf[1]&0x1)<<8
		fn := ExceptionFunction((buf[1] & 0x30) >> 4)
		return &SourceHardwareException{size: size, ExceptionNumber: num, Function: fn}, size, nil

	case discriminator == 2:
		if size == 0 {
			return &SourceHardwarePCSample{size: 0, Idle: true}, 0, nil
		}
		if size < 4 {
			return nil, 0, fmt.Errorf("PC sample packet too short")
		}
		return &SourceHardwarePCSample{size: size, PC: buildValue(buf[:4])}, size, nil

	case discriminator <= 0x17:
		data := append([]byte(nil), buf[:size]...)
		return &SourceHardwareDataTrace{
			size:                size,
			Discriminator:       discriminator,
			Comparator:          (discriminator >> 1) & 0x3,
			Direction:           discriminator & 0x1,
			DataTracePacketType: discriminator >> 3,
			Data:                data,
		}, size, nil

	default:
		return nil, 0, fmt.Errorf("invalid hardware source discriminator 0x%x", discriminator)
	}
}

// buildValue turns a little-endian byte slice into an unsigned integer.
func buildValue(buf []byte) uint32 {
	var v uint32
	for i, b := range buf {
		v |= uint32(b) << uint(8*i)
	}
	return v
}

func describe(p Packet) string {
	switch v := p.(type) {
	case *Synchronization:
		return fmt.Sprintf("synchronization packet of size %d", v.size)
	case Overflow:
		return "overflow packet"
	case *LocalTimestamp:
		return fmt.Sprintf("local timestamp, class=%d delta=%d", v.Class, v.CycleDelta)
	case *Extension:
		return fmt.Sprintf("extension packet of size %d", v.size)
	case *SourceSoftware:
		return fmt.Sprintf("sw swit port %d: % x", v.Port, v.Data)
	case *SourceHardwareCounterWrap:
		return fmt.Sprintf("counter wrap 0x%02x", v.Value)
	case *SourceHardwareException:
		return fmt.Sprintf("exception %d function %d", v.ExceptionNumber, v.Function)
	case *SourceHardwarePCSample:
		if v.Idle {
			return "idle pc sample"
		}
		return fmt.Sprintf("pc sample 0x%x", v.PC)
	case *SourceHardwareDataTrace:
		return fmt.Sprintf("hw trace comparator %d dir %d type %d", v.Comparator, v.Direction, v.DataTracePacketType)
	default:
		return fmt.Sprintf("%T", p)
	}
}
