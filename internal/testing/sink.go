package testing

import (
	"sync"

	"github.com/Alia5/mogabridge/moga"
)

// RecordingSink stores everything a bridge hands it.
type RecordingSink struct {
	mu         sync.Mutex
	registered []moga.Component
	batches    [][]moga.Event
	closed     bool

	// SendErr, when set, is returned from every Send.
	SendErr error
	// Sent receives one value per Send call.
	Sent chan struct{}
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{Sent: make(chan struct{}, 64)}
}

func (r *RecordingSink) Register(components []moga.Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, components...)
	return nil
}

func (r *RecordingSink) Send(events []moga.Event) error {
	r.mu.Lock()
	r.batches = append(r.batches, append([]moga.Event(nil), events...))
	err := r.SendErr
	r.mu.Unlock()
	select {
	case r.Sent <- struct{}{}:
	default:
	}
	return err
}

func (r *RecordingSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *RecordingSink) Registered() []moga.Component {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]moga.Component(nil), r.registered...)
}

func (r *RecordingSink) Batches() [][]moga.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]moga.Event(nil), r.batches...)
}

func (r *RecordingSink) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
