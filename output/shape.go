package output

import (
	"fmt"
	"strings"

	"github.com/swotrace/swotrace/swo"
)

// Shape converts one completed swo.Record into a self-contained element
// list: an outer OpenTree/CloseTree pair labeled "SWO Logger Frame"
// wrapping the record's own base fields (timestamps, opcode, module,
// level, file, line) followed by whatever summary the opcode builds.
func Shape(rec *swo.Record) []Element {
	var b Builder
	b.OpenTree("SWO Logger Frame")
	shapeInner(&b, rec)
	b.CloseTree()
	return b.Elements()
}

// shapeInner appends rec's base fields and opcode-specific summary
// without the outer frame bracket, so that EventSet can reuse it per
// member while only the set itself gets the outer bracket.
func shapeInner(b *Builder, rec *swo.Record) {
	b.Scalar(FieldRatSeconds, rec.RatTimeSeconds)
	b.Scalar(FieldRatTicks, rec.RatTicks)
	b.Scalar(FieldRtcSeconds, rec.RtcTimeSeconds)
	b.Scalar(FieldOpcode, rec.Opcode.String())
	b.Scalar(FieldModule, rec.Module)
	b.Scalar(FieldLevel, rec.Level)
	b.Scalar(FieldFile, rec.File)
	if rec.Line != 0 {
		b.Scalar(FieldLine, rec.Line)
	}

	switch rec.Opcode {
	case swo.OpFormattedText:
		info := formattedTextInfo(rec)
		b.Scalar(FieldInfo, info)
		b.Info(info)

	case swo.OpEvent:
		info := eventInfo(rec)
		b.Scalar(FieldInfo, info)
		b.Scalar(FieldEvent, rec.Event)
		b.Info(info)

	case swo.OpBuffer:
		info := bufferInfo(rec)
		b.Scalar(FieldInfo, info)
		b.Info(info)

	case swo.OpEventSet:
		shapeEventSet(b, rec)

	case swo.OpReset:
		b.Scalar(FieldInfo, rec.String)
		b.Info(rec.String)

	case swo.OpBufferOverflow:
		info := "Deferred SWO buffer overflow, data discarded"
		b.Scalar(FieldInfo, info)
		b.Info(info)

	case swo.OpHwDataTrace:
		b.Scalar(FieldInfo, rec.HwString)
		b.Info(rec.HwString)

	case swo.OpHwPcSample:
		b.Scalar(FieldInfo, rec.String)
		b.Info(rec.String)
	}
}

// shapeEventSet flattens each member record's own inner elements into a
// nested tree named after its position in the set, then summarizes the
// set as a whole. This mirrors the original's build_output, which
// relabels each member's opening bracket as "Event N" and drops its
// redundant per-member Message element before splicing it in.
func shapeEventSet(b *Builder, rec *swo.Record) {
	for i, member := range rec.Events {
		var mb Builder
		mb.OpenTree(fmt.Sprintf("Event %d", i))
		shapeInner(&mb, member)
		mb.CloseTree()
		elems := mb.Elements()
		elems = dropLastMessage(elems)
		b.Extend(elems)
	}
	info := "See Tree of Events"
	b.Scalar(FieldInfo, info)
	b.Scalar(FieldEvent, rec.Event)
	b.Info(info)
}

// dropLastMessage removes the last FieldMessage element from elems,
// since the set-level summary supplies its own.
func dropLastMessage(elems []Element) []Element {
	for i := len(elems) - 1; i >= 0; i-- {
		if elems[i].Field == FieldMessage {
			return append(elems[:i], elems[i+1:]...)
		}
	}
	return elems
}

func formattedTextInfo(rec *swo.Record) string {
	prefix := ""
	if rec.IsEventSet {
		prefix = "Event Record, "
	}
	return prefix + formatArgs(rec.String, rec.Args)
}

func eventInfo(rec *swo.Record) string {
	parts := make([]string, len(rec.Args))
	for i, v := range rec.Args {
		parts[i] = fmt.Sprintf("%#010x", v)
	}
	return fmt.Sprintf("%s: %s", rec.String, strings.Join(parts, " "))
}

// bufferInfo formats a Buffer record's accumulated payload against its
// template string, honoring the two special tokens the firmware macros
// emit: %!S for a UTF-8 string payload and %!E for a byte array printed
// in reverse (little-endian) hex.
func bufferInfo(rec *swo.Record) string {
	var out string
	switch {
	case strings.Contains(rec.String, "%!S"):
		out = strings.Replace(rec.String, "%!S", string(rec.BufferData), 1)
	case strings.Contains(rec.String, "%!E"):
		rev := make([]byte, len(rec.BufferData))
		for i, v := range rec.BufferData {
			rev[len(rev)-1-i] = v
		}
		hexen := make([]string, len(rev))
		for i, v := range rev {
			hexen[i] = fmt.Sprintf("%#04x", v)
		}
		out = strings.Replace(rec.String, "%!E", strings.Join(hexen, " "), 1)
	default:
		hexen := make([]string, len(rec.BufferData))
		for i, v := range rec.BufferData {
			hexen[i] = fmt.Sprintf("%#04x", v)
		}
		out = fmt.Sprintf("%s %s", rec.String, strings.Join(hexen, " "))
	}
	if rec.IsEventSet {
		out = "Event Record, " + out
	}
	return out
}

// formatArgs substitutes each accumulated argument for one "%"
// placeholder in the template string, left to right.
func formatArgs(template string, args []uint32) string {
	var b strings.Builder
	i := 0
	for j := 0; j < len(template); j++ {
		if template[j] == '%' && j+1 < len(template) && i < len(args) {
			j++
			switch template[j] {
			case 'd', 'i', 'u':
				fmt.Fprintf(&b, "%d", args[i])
			case 'x':
				fmt.Fprintf(&b, "%x", args[i])
			case 'X':
				fmt.Fprintf(&b, "%X", args[i])
			case 'c':
				fmt.Fprintf(&b, "%c", rune(args[i]))
			default:
				fmt.Fprintf(&b, "%d", args[i])
			}
			i++
			continue
		}
		b.WriteByte(template[j])
	}
	return b.String()
}
