// Package output turns a completed swo.Record into a sink-agnostic list
// of tagged elements: scalar fields, tree brackets for nested groups, a
// one-line summary, and free-form custom pairs. It never writes to a
// wire or a file; that's the sink package's job.
package output

// Field identifies a scalar element's meaning to a downstream sink. The
// numeric ranges are reserved by concern, leaving room for the overlay
// protocols (BLE, RF, driver, TI-RTOS) that share the same trace stream
// but whose decoders live outside this module.
type Field int

// 0-19: SWO core fields, produced by this package.
const (
	FieldRatSeconds Field = iota
	FieldRtcSeconds
	FieldRatTicks
	FieldOpcode
	FieldModule
	FieldLevel
	FieldFile
	FieldLine
	FieldInfo
	FieldEvent
)

// 20-29: BLE overlay, reserved for a decoder not built here.
const (
	FieldBLEOpcode Field = iota + 20
	FieldBLELayer
	FieldBLEEvent
	FieldBLEHandle
	FieldBLEStatus
	FieldBLEInfo
	FieldBLELLTask
)

// 60-69: driver overlay.
const (
	FieldDriverFile Field = iota + 60
	FieldDriverStatus
	FieldDriverPowerConstraint
)

// 70-79: RF overlay.
const (
	FieldRFOpcode Field = 70
)

// 80-89: TI-RTOS overlay.
const (
	FieldTIRTOSEvent Field = iota + 80
	FieldTIRTOSFile
	FieldTIRTOSLine
)

// 230+: structural and free-form elements.
const (
	FieldCustom Field = iota + 230
	FieldProtocol
	FieldMessage
	FieldOpenTree
	FieldCloseTree
)

// fieldNames mirrors the strings the teacher's wireshark dissector
// (ported from the original protofield table) expects for each Field;
// a sink encodes these instead of the Go constant name.
var fieldNames = map[Field]string{
	FieldRatSeconds: "Radio Time Secs",
	FieldRtcSeconds: "Real Time Clock",
	FieldRatTicks:   "Radio Time Ticks",
	FieldOpcode:     "SWO opcode",
	FieldModule:     "SWO module",
	FieldLevel:      "SWO level",
	FieldFile:       "SWO file",
	FieldLine:       "SWO line",
	FieldInfo:       "SWO info",
	FieldEvent:      "SWO event",

	FieldBLEOpcode:  "BLE OpCode",
	FieldBLELayer:   "BLE Layer",
	FieldBLEEvent:   "BLE Event",
	FieldBLEHandle:  "BLE Conn/adv handle",
	FieldBLEStatus:  "BLE Status",
	FieldBLEInfo:    "BLE Info",
	FieldBLELLTask:  "BLE LL Task",
	FieldDriverFile: "Driver",

	FieldDriverStatus:          "Driver status",
	FieldDriverPowerConstraint: "Power constraint",
	FieldRFOpcode:              "RF OpCode",
	FieldTIRTOSEvent:           "Log Event",
	FieldTIRTOSFile:            "File",
	FieldTIRTOSLine:            "Line",

	FieldCustom:    "",
	FieldProtocol:  "Stream ID",
	FieldMessage:   "Message",
	FieldOpenTree:  "ADD_LEVEL",
	FieldCloseTree: "END_ADD_LEVEL",
}

// Name returns the wire string a sink should encode for f.
func (f Field) Name() string { return fieldNames[f] }
