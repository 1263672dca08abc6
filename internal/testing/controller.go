package testing

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Alia5/mogabridge/moga"
	"github.com/stretchr/testify/require"
)

// FakeController emulates a controller on the far end of an in-memory pipe.
type FakeController struct {
	t        *testing.T
	host     net.Conn
	ctrl     net.Conn
	commands chan []byte
	out      chan []byte
	dialed   bool
	mu       sync.Mutex
}

// NewFakeController starts an emulated controller. Commands written by the
// session are captured; frames queued with Send are written in order.
func NewFakeController(t *testing.T) *FakeController {
	host, ctrl := net.Pipe()
	f := &FakeController{
		t:        t,
		host:     host,
		ctrl:     ctrl,
		commands: make(chan []byte, 64),
		out:      make(chan []byte, 64),
	}
	go f.readCommands()
	go f.writeFrames()
	t.Cleanup(func() {
		_ = ctrl.Close()
		_ = host.Close()
	})
	return f
}

func (f *FakeController) readCommands() {
	defer close(f.commands)
	for {
		buf := make([]byte, 5)
		if _, err := io.ReadFull(f.ctrl, buf); err != nil {
			return
		}
		f.commands <- buf
	}
}

func (f *FakeController) writeFrames() {
	for frame := range f.out {
		if _, err := f.ctrl.Write(frame); err != nil {
			return
		}
	}
}

// Dialer hands out the host end of the pipe once.
func (f *FakeController) Dialer() moga.Dialer {
	return moga.DialerFunc(func(ctx context.Context, address string, port uint8) (moga.Conn, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.dialed {
			return nil, errors.New("fake controller already dialed")
		}
		f.dialed = true
		return f.host, nil
	})
}

// Send queues raw frames for delivery to the session.
func (f *FakeController) Send(frames ...[]byte) {
	for _, fr := range frames {
		f.out <- fr
	}
}

// Report queues a well formed response frame.
func (f *FakeController) Report(code byte, player uint8, payload []byte) {
	f.Send(moga.BuildResponse(code, player, payload))
}

// NextCommand waits for the next command frame written by the session.
func (f *FakeController) NextCommand() []byte {
	f.t.Helper()
	select {
	case cmd, ok := <-f.commands:
		require.True(f.t, ok, "controller pipe closed")
		return cmd
	case <-time.After(2 * time.Second):
		require.FailNow(f.t, "timed out waiting for command")
		return nil
	}
}

// Hangup closes the controller end of the pipe.
func (f *FakeController) Hangup() {
	_ = f.ctrl.Close()
}
