package moga

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net"
	"os"
	"sync"
)

// SessionState is the protocol state of a Session.
type SessionState uint8

const (
	StateDisconnected SessionState = iota
	StateConnected
	StatePolling
	StateListening
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StatePolling:
		return "polling"
	case StateListening:
		return "listening"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FrameLogger receives every raw frame. out is true for host->controller.
type FrameLogger interface {
	Log(out bool, data []byte)
}

// Observer is notified about protocol activity, e.g. for metrics.
type Observer interface {
	FrameReceived(code byte)
	FrameDiscarded(code byte)
	Fault(err error)
	BatchDecoded(events int)
}

type nopObserver struct{}

func (nopObserver) FrameReceived(byte)  {}
func (nopObserver) FrameDiscarded(byte) {}
func (nopObserver) Fault(error)         {}
func (nopObserver) BatchDecoded(int)    {}

type nopFrames struct{}

func (nopFrames) Log(bool, []byte) {}

// Options configures a Session.
type Options struct {
	Player   uint8
	Logger   *slog.Logger
	Frames   FrameLogger
	Observer Observer
}

// Session is one bridge between a controller and this process for one player slot.
//
// Requests are strictly half-duplex: mu is held from sending a command until
// its response has been consumed, and it guards the decode model.
type Session struct {
	peer   Peer
	gen    Generation
	player uint8
	logger *slog.Logger
	frames FrameLogger
	obs    Observer

	mu    sync.Mutex
	model *Model

	stateMu   sync.Mutex
	state     SessionState
	conn      Conn
	closeOnce sync.Once
}

// NewSession prepares a disconnected session to peer speaking gen.
func NewSession(peer Peer, gen Generation, o Options) (*Session, error) {
	if o.Player < 1 || o.Player > 4 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPlayer, o.Player)
	}
	s := &Session{
		peer:   peer,
		gen:    gen,
		player: o.Player,
		logger: o.Logger,
		frames: o.Frames,
		obs:    o.Observer,
		model:  NewModel(gen.Components()),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.frames == nil {
		s.frames = nopFrames{}
	}
	if s.obs == nil {
		s.obs = nopObserver{}
	}
	s.logger = s.logger.With("peer", peer.Address, "generation", gen.Name, "player", o.Player)
	return s, nil
}

func (s *Session) Peer() Peer             { return s.peer }
func (s *Session) Generation() Generation { return s.gen }
func (s *Session) Player() uint8          { return s.player }

// Components returns the live component catalogue.
func (s *Session) Components() []Component { return s.model.Components() }

// State returns the current protocol state.
func (s *Session) State() SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) setState(st SessionState) {
	s.stateMu.Lock()
	if s.state != StateClosed {
		s.state = st
	}
	s.stateMu.Unlock()
}

// Connect opens the transport and assigns the player slot.
func (s *Session) Connect(ctx context.Context, d Dialer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st := s.State(); st != StateDisconnected {
		if st == StateClosed {
			return ErrClosed
		}
		return fmt.Errorf("connect: session already %s", st)
	}
	conn, err := d.Dial(ctx, s.peer.Address, s.peer.Port)
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.peer.Address, err)
	}

	s.stateMu.Lock()
	if s.state == StateClosed {
		s.stateMu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	s.conn = conn
	s.state = StateConnected
	s.stateMu.Unlock()

	if err := s.send(SetPlayerCommand); err != nil {
		return err
	}
	s.logger.Info("connected", "name", s.peer.Name)
	return nil
}

// Poll requests one controller report. A reply with a different code
// yields an *UnexpectedResponseError and no events; the session stays usable.
func (s *Session) Poll() (Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	s.setState(StatePolling)
	defer s.setState(StateConnected)

	if err := s.send(s.gen.Poll); err != nil {
		return nil, err
	}
	resp, err := s.recv()
	if err != nil {
		return nil, err
	}
	if resp.Code != s.gen.PollResponse {
		s.obs.FrameDiscarded(resp.Code)
		return nil, &UnexpectedResponseError{Want: s.gen.PollResponse, Got: resp.Code}
	}
	return s.decode(resp.Payload)
}

// Listen switches the controller to push mode. The returned Stream yields
// the change batches of every listen report it sends until the session closes.
func (s *Session) Listen() (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.send(s.gen.Listen); err != nil {
		return nil, err
	}
	s.setState(StateListening)
	return &Stream{s: s}, nil
}

// Close closes the transport. Blocked reads fail and unwind with ErrClosed.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.stateMu.Lock()
		s.state = StateClosed
		conn := s.conn
		s.stateMu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
		s.logger.Debug("session closed")
	})
	return err
}

func (s *Session) ready() error {
	switch s.State() {
	case StateConnected:
		return nil
	case StateListening:
		return ErrBusy
	case StateClosed:
		return ErrClosed
	default:
		return ErrNotConnected
	}
}

func (s *Session) send(code Command) error {
	frame := BuildCommand(code, s.player)
	s.frames.Log(true, frame)
	if _, err := s.conn.Write(frame); err != nil {
		return s.transportError("send", err)
	}
	return nil
}

func (s *Session) recv() (Response, error) {
	frame, err := ReadFrame(s.conn)
	if err != nil {
		return Response{}, s.transportError("recv", err)
	}
	s.frames.Log(false, frame)
	resp, err := ParseResponse(frame, s.player)
	if err != nil {
		s.obs.Fault(err)
		return Response{}, err
	}
	s.obs.FrameReceived(resp.Code)
	return resp, nil
}

func (s *Session) decode(payload []byte) (Batch, error) {
	batch, err := s.model.Decode(payload)
	if err != nil {
		s.obs.Fault(err)
		return nil, err
	}
	if len(batch) > 0 {
		s.obs.BatchDecoded(len(batch))
	}
	return batch, nil
}

// transportError maps a closed stream to ErrClosed and keeps anything else as a fault.
func (s *Session) transportError(op string, err error) error {
	if s.State() == StateClosed || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("%s: %w: %w", op, ErrClosed, err)
	}
	s.obs.Fault(err)
	return fmt.Errorf("%s: %w", op, err)
}

// Stream is the push-mode view of a listening Session.
type Stream struct {
	s *Session
}

// Next blocks until the controller reports a change. Frames with other
// response codes and reports that change nothing are skipped. The error
// wraps ErrClosed at end of stream.
func (st *Stream) Next() (Batch, error) {
	s := st.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		resp, err := s.recv()
		if err != nil {
			return nil, err
		}
		if resp.Code != s.gen.ListenResponse {
			s.obs.FrameDiscarded(resp.Code)
			s.logger.Debug("discarding frame", "code", resp.Code)
			continue
		}
		batch, err := s.decode(resp.Payload)
		if err != nil {
			return nil, err
		}
		if len(batch) > 0 {
			return batch, nil
		}
	}
}

// Batches ranges over Next. It stops silently at end of stream and yields
// any other error once before stopping.
func (st *Stream) Batches() iter.Seq2[Batch, error] {
	return func(yield func(Batch, error) bool) {
		for {
			batch, err := st.Next()
			if err != nil {
				if !errors.Is(err, ErrClosed) {
					yield(nil, err)
				}
				return
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}
