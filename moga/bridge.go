package moga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Sink consumes decoded input, typically a virtual input device.
type Sink interface {
	// Register declares every component once, before the first Send.
	Register(components []Component) error
	// Send delivers one batch; the last event is always SynReport.
	Send(events []Event) error
	Close() error
}

// MultiSink fans every call out to each sink in order.
type MultiSink []Sink

func (m MultiSink) Register(components []Component) error {
	for _, s := range m {
		if err := s.Register(components); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Send(events []Event) error {
	for _, s := range m {
		if err := s.Send(events); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Mode selects how the bridge obtains reports.
type Mode string

const (
	ModeListen Mode = "listen"
	ModePoll   Mode = "poll"
)

// DefaultPollInterval is used in poll mode when no interval is set.
const DefaultPollInterval = 10 * time.Millisecond

// Bridge forwards a connected session's change batches to a sink.
type Bridge struct {
	Session      *Session
	Sink         Sink
	Mode         Mode
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Run registers the session's components with the sink and forwards batches
// until ctx is done or the session fails. Cancelling ctx closes the session.
// At end of stream the returned error wraps ErrClosed.
func (b *Bridge) Run(ctx context.Context) error {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := b.Sink.Register(b.Session.Components()); err != nil {
		return fmt.Errorf("register components: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = b.Session.Close()
		case <-done:
		}
	}()

	var err error
	switch b.Mode {
	case ModePoll:
		err = b.poll(ctx, logger)
	case ModeListen, "":
		err = b.listen()
	default:
		return fmt.Errorf("unknown bridge mode %q", b.Mode)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func (b *Bridge) listen() error {
	stream, err := b.Session.Listen()
	if err != nil {
		return err
	}
	for batch, err := range stream.Batches() {
		if err != nil {
			return err
		}
		if err := b.forward(batch); err != nil {
			return err
		}
	}
	return ErrClosed
}

func (b *Bridge) poll(ctx context.Context, logger *slog.Logger) error {
	interval := b.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		batch, err := b.Session.Poll()
		switch {
		case errors.Is(err, ErrUnexpectedResponse):
			logger.Debug("poll skipped", "error", err)
		case err != nil:
			return err
		case len(batch) > 0:
			if err := b.forward(batch); err != nil {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *Bridge) forward(batch Batch) error {
	events := make([]Event, 0, len(batch)+1)
	events = append(events, batch...)
	events = append(events, SynReport)
	if err := b.Sink.Send(events); err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	return nil
}
