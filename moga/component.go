package moga

import "fmt"

// Kind selects how a Component is decoded from a payload.
type Kind uint8

const (
	KindButton Kind = iota
	KindAxis
	KindTrigger
	KindPad
)

func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindAxis:
		return "axis"
	case KindTrigger:
		return "trigger"
	case KindPad:
		return "pad"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// AbsInfo is the calibration range declared to the sink for absolute axes.
type AbsInfo struct {
	Minimum    int32
	Maximum    int32
	Resolution int32
}

// Component is one logical controller input.
// Index is a bit position for buttons and pads and a byte offset
// (relative to the kind's base offset) for axes and triggers.
type Component struct {
	Name   string
	Kind   Kind
	Index  int
	Code   EventCode
	Invert bool
}

type kindRule struct {
	// offset returns the payload byte the component reads.
	offset func(c Component) int
	decode func(c Component, payload []byte) int32
	abs    *AbsInfo
}

var (
	axisInfo    = AbsInfo{Minimum: -127, Maximum: 127, Resolution: 8}
	triggerInfo = AbsInfo{Minimum: 0, Maximum: 255, Resolution: 8}
)

var rules = [...]kindRule{
	KindButton: {
		offset: func(Component) int { return 0 },
		decode: func(c Component, p []byte) int32 { return bit(p[0], c.Index) },
	},
	KindAxis: {
		offset: func(c Component) int { return 2 + c.Index },
		decode: func(c Component, p []byte) int32 {
			v := int32(p[2+c.Index])
			// The controller biases negative values by 255, not 256: 0x80 is -127, 0xff is 0.
			if v >= 128 {
				v -= 255
			}
			if c.Invert {
				return -v
			}
			return v
		},
		abs: &axisInfo,
	},
	KindTrigger: {
		offset: func(c Component) int { return 6 + c.Index },
		decode: func(c Component, p []byte) int32 { return int32(p[6+c.Index]) },
		abs:    &triggerInfo,
	},
	KindPad: {
		offset: func(Component) int { return 1 },
		decode: func(c Component, p []byte) int32 { return bit(p[1], c.Index) },
	},
}

func bit(b byte, n int) int32 {
	if b&(1<<uint(n)) != 0 {
		return 1
	}
	return 0
}

// Offset returns the payload byte this component reads.
func (c Component) Offset() int { return rules[c.Kind].offset(c) }

// AbsInfo returns the calibration range for axes and triggers.
func (c Component) AbsInfo() (AbsInfo, bool) {
	if info := rules[c.Kind].abs; info != nil {
		return *info, true
	}
	return AbsInfo{}, false
}

// Decode reads the component's logical value from payload.
func (c Component) Decode(payload []byte) (int32, error) {
	if off := c.Offset(); off >= len(payload) {
		return 0, fmt.Errorf("%w: %s needs byte %d, payload has %d", ErrShortPayload, c.Name, off, len(payload))
	}
	return rules[c.Kind].decode(c, payload), nil
}

func button(name string, n int, code uint16) Component {
	return Component{Name: name, Kind: KindButton, Index: n, Code: key(code)}
}

func pad(name string, n int, code uint16) Component {
	return Component{Name: name, Kind: KindPad, Index: n, Code: key(code)}
}

func axis(name string, n int, code uint16, invert bool) Component {
	return Component{Name: name, Kind: KindAxis, Index: n, Code: abs(code), Invert: invert}
}

func trigger(name string, n int, code uint16) Component {
	return Component{Name: name, Kind: KindTrigger, Index: n, Code: abs(code)}
}

// baseCatalogue is shared by both generations. Order is the emission order.
var baseCatalogue = []Component{
	button("Y", 0, BtnNorth),
	button("B", 1, BtnEast),
	button("A", 2, BtnSouth),
	button("X", 3, BtnWest),
	button("START", 4, BtnStart),
	button("SELECT", 5, BtnSelect),
	button("L1", 6, BtnTL),
	button("R1", 7, BtnTR),

	axis("X1", 0, AbsX, false),
	axis("Y1", 1, AbsY, true),
	axis("X2", 2, AbsRX, false),
	axis("Y2", 3, AbsRY, true),

	pad("UP", 0, BtnDPadUp),
	pad("DOWN", 1, BtnDPadDown),
	pad("LEFT", 2, BtnDPadLeft),
	pad("RIGHT", 3, BtnDPadRight),
	pad("L2P", 4, BtnTL2),
	pad("R2P", 5, BtnTR2),
	pad("THUMBL", 6, BtnThumbL),
	pad("THUMBR", 7, BtnThumbR),
}

var gen2Triggers = []Component{
	trigger("L2", 0, AbsHat2Y),
	trigger("R2", 1, AbsHat2X),
}
