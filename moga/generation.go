package moga

import "strings"

// Command is an outbound command code.
type Command = byte

// SetPlayerCommand tells the controller which player slot it reports as.
// It is shared by both generations and its reply is not checked.
const SetPlayerCommand Command = 67

// Generation describes one protocol variant: its command/response codes
// and the components it adds to the base catalogue.
type Generation struct {
	ID             int
	Name           string
	Poll           Command
	PollResponse   byte
	Listen         Command
	ListenResponse byte
	Extra          []Component
}

var (
	Gen1 = Generation{
		ID:             1,
		Name:           "gen1",
		Poll:           65,
		PollResponse:   97,
		Listen:         68,
		ListenResponse: 100,
	}
	Gen2 = Generation{
		ID:             2,
		Name:           "gen2",
		Poll:           69,
		PollResponse:   101,
		Listen:         70,
		ListenResponse: 102,
		Extra:          gen2Triggers,
	}
)

func (g Generation) String() string { return g.Name }

// Components returns the live catalogue for this generation.
func (g Generation) Components() []Component {
	out := make([]Component, 0, len(baseCatalogue)+len(g.Extra))
	out = append(out, baseCatalogue...)
	return append(out, g.Extra...)
}

// IsGen1Name reports whether name is advertised by a first generation controller.
func IsGen1Name(name string) bool {
	n := strings.ToUpper(name)
	return strings.HasPrefix(n, "BD&A") || strings.HasPrefix(n, "BDA")
}

// IsGen2Name reports whether name is advertised by a second generation
// controller in its native (non-HID) mode.
func IsGen2Name(name string) bool {
	n := strings.ToUpper(name)
	return strings.HasPrefix(n, "MOGA") && !strings.Contains(n, "HID")
}

// Classify picks the protocol generation for a peer name.
// ok is false when the peer does not speak this protocol.
func Classify(name string) (gen Generation, ok bool) {
	switch {
	case IsGen2Name(name):
		return Gen2, true
	case IsGen1Name(name):
		return Gen1, true
	default:
		return Generation{}, false
	}
}
