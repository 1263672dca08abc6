package moga

import "fmt"

// Linux input event types (linux/input-event-codes.h)
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvAbs uint16 = 0x03
)

// Key codes used by the controller catalogue.
const (
	BtnSouth     uint16 = 0x130 // A
	BtnEast      uint16 = 0x131 // B
	BtnNorth     uint16 = 0x133 // Y
	BtnWest      uint16 = 0x134 // X
	BtnTL        uint16 = 0x136
	BtnTR        uint16 = 0x137
	BtnTL2       uint16 = 0x138
	BtnTR2       uint16 = 0x139
	BtnSelect    uint16 = 0x13a
	BtnStart     uint16 = 0x13b
	BtnThumbL    uint16 = 0x13d
	BtnThumbR    uint16 = 0x13e
	BtnDPadUp    uint16 = 0x220
	BtnDPadDown  uint16 = 0x221
	BtnDPadLeft  uint16 = 0x222
	BtnDPadRight uint16 = 0x223
)

// Absolute axis codes used by the controller catalogue.
const (
	AbsX     uint16 = 0x00
	AbsY     uint16 = 0x01
	AbsRX    uint16 = 0x03
	AbsRY    uint16 = 0x04
	AbsHat2X uint16 = 0x14 // R2 analog trigger
	AbsHat2Y uint16 = 0x15 // L2 analog trigger
)

const synReportCode uint16 = 0x00

// EventCode identifies one evdev event (type + code).
type EventCode struct {
	Type uint16
	Code uint16
}

func (c EventCode) String() string {
	switch c.Type {
	case EvSyn:
		return fmt.Sprintf("SYN:%#x", c.Code)
	case EvKey:
		return fmt.Sprintf("KEY:%#x", c.Code)
	case EvAbs:
		return fmt.Sprintf("ABS:%#x", c.Code)
	default:
		return fmt.Sprintf("%#x:%#x", c.Type, c.Code)
	}
}

// Event is one (code, value) pair handed to a Sink.
type Event struct {
	Code  EventCode
	Value int32
}

// SynReport terminates a batch of simultaneous component changes.
var SynReport = Event{Code: EventCode{Type: EvSyn, Code: synReportCode}}

// IsSynReport reports whether e is the batch terminator.
func (e Event) IsSynReport() bool { return e == SynReport }

// Batch is the ordered set of events produced by decoding one payload.
type Batch []Event

func key(code uint16) EventCode { return EventCode{Type: EvKey, Code: code} }
func abs(code uint16) EventCode { return EventCode{Type: EvAbs, Code: code} }
