package moga

// State maps a component name to the last value emitted for it.
// A missing key means the component has not been observed yet.
type State map[string]int32

// Model decodes payloads into change events for a fixed catalogue.
type Model struct {
	components []Component
	minPayload int
	state      State
}

// NewModel builds a model over components, evaluated in the given order.
func NewModel(components []Component) *Model {
	m := &Model{
		components: append([]Component(nil), components...),
		state:      make(State, len(components)),
	}
	for _, c := range m.components {
		if off := c.Offset() + 1; off > m.minPayload {
			m.minPayload = off
		}
	}
	return m
}

// Components returns the catalogue in emission order.
func (m *Model) Components() []Component {
	return append([]Component(nil), m.components...)
}

// MinPayload is the shortest payload every component can be decoded from.
func (m *Model) MinPayload() int { return m.minPayload }

// State returns a copy of the last observed values.
func (m *Model) State() State {
	out := make(State, len(m.state))
	for k, v := range m.state {
		out[k] = v
	}
	return out
}

// Reset forgets every observed value so the next Decode reports all components.
func (m *Model) Reset() { clear(m.state) }

// Decode returns one event per component whose value differs from the last
// observation, in catalogue order. A short payload is rejected before any
// state is touched.
func (m *Model) Decode(payload []byte) (Batch, error) {
	if len(payload) < m.minPayload {
		// report against the first component that cannot be read
		for _, c := range m.components {
			if _, err := c.Decode(payload); err != nil {
				return nil, err
			}
		}
	}
	var batch Batch
	for _, c := range m.components {
		v, err := c.Decode(payload)
		if err != nil {
			return nil, err
		}
		if last, seen := m.state[c.Name]; seen && last == v {
			continue
		}
		m.state[c.Name] = v
		batch = append(batch, Event{Code: c.Code, Value: v})
	}
	return batch, nil
}
