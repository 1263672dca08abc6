package viiper

import (
	"encoding/binary"

	"github.com/Alia5/mogabridge/moga"
)

// Xbox 360 button bits, XInput layout.
const (
	ButtonDPadUp    = 0x0001
	ButtonDPadDown  = 0x0002
	ButtonDPadLeft  = 0x0004
	ButtonDPadRight = 0x0008
	ButtonStart     = 0x0010
	ButtonBack      = 0x0020
	ButtonLThumb    = 0x0040
	ButtonRThumb    = 0x0080
	ButtonLShoulder = 0x0100
	ButtonRShoulder = 0x0200
	ButtonA         = 0x1000
	ButtonB         = 0x2000
	ButtonX         = 0x4000
	ButtonY         = 0x8000
)

// StateSize is the length of one encoded InputState on a device stream.
const StateSize = 14

var buttonBits = map[uint16]uint32{
	moga.BtnSouth:     ButtonA,
	moga.BtnEast:      ButtonB,
	moga.BtnWest:      ButtonX,
	moga.BtnNorth:     ButtonY,
	moga.BtnTL:        ButtonLShoulder,
	moga.BtnTR:        ButtonRShoulder,
	moga.BtnStart:     ButtonStart,
	moga.BtnSelect:    ButtonBack,
	moga.BtnThumbL:    ButtonLThumb,
	moga.BtnThumbR:    ButtonRThumb,
	moga.BtnDPadUp:    ButtonDPadUp,
	moga.BtnDPadDown:  ButtonDPadDown,
	moga.BtnDPadLeft:  ButtonDPadLeft,
	moga.BtnDPadRight: ButtonDPadRight,
}

// InputState is the pad state sent to the server.
// Sticks use XInput orientation: positive Y is up.
type InputState struct {
	Buttons uint32
	LT, RT  uint8
	LX, LY  int16
	RX, RY  int16
}

// MarshalBinary encodes the state as buttons u32 | lt u8 | rt u8 | lx ly rx ry i16, little endian.
func (x *InputState) MarshalBinary() ([]byte, error) {
	b := make([]byte, StateSize)
	binary.LittleEndian.PutUint32(b[0:4], x.Buttons)
	b[4] = x.LT
	b[5] = x.RT
	binary.LittleEndian.PutUint16(b[6:8], uint16(x.LX))
	binary.LittleEndian.PutUint16(b[8:10], uint16(x.LY))
	binary.LittleEndian.PutUint16(b[10:12], uint16(x.RX))
	binary.LittleEndian.PutUint16(b[12:14], uint16(x.RY))
	return b, nil
}

// pad folds events into an InputState. Digital L2/R2 and the analog
// triggers are tracked separately and the larger value wins.
type pad struct {
	state    InputState
	lt, rt   uint8
	ltP, rtP bool
}

func (p *pad) apply(ev moga.Event) {
	switch ev.Code.Type {
	case moga.EvKey:
		if bit, ok := buttonBits[ev.Code.Code]; ok {
			if ev.Value != 0 {
				p.state.Buttons |= bit
			} else {
				p.state.Buttons &^= bit
			}
			return
		}
		switch ev.Code.Code {
		case moga.BtnTL2:
			p.ltP = ev.Value != 0
		case moga.BtnTR2:
			p.rtP = ev.Value != 0
		}
	case moga.EvAbs:
		switch ev.Code.Code {
		case moga.AbsX:
			p.state.LX = stick(ev.Value)
		case moga.AbsY:
			p.state.LY = -stick(ev.Value)
		case moga.AbsRX:
			p.state.RX = stick(ev.Value)
		case moga.AbsRY:
			p.state.RY = -stick(ev.Value)
		case moga.AbsHat2Y:
			p.lt = uint8(max(0, min(ev.Value, 255)))
		case moga.AbsHat2X:
			p.rt = uint8(max(0, min(ev.Value, 255)))
		}
	}
	p.state.LT = trigger(p.lt, p.ltP)
	p.state.RT = trigger(p.rt, p.rtP)
}

// stick scales -127..127 to the int16 range.
func stick(v int32) int16 {
	v = max(-127, min(v, 127))
	return int16(v * 32767 / 127)
}

func trigger(analog uint8, pressed bool) uint8 {
	if pressed {
		return 255
	}
	return analog
}
