package moga

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolFault matches every *ProtocolFault.
	ErrProtocolFault = errors.New("protocol fault")
	// ErrShortPayload means a component reads past the end of the payload.
	// It indicates a catalogue/generation mismatch and is never recovered from.
	ErrShortPayload = errors.New("payload too short")
	// ErrUnexpectedResponse matches every *UnexpectedResponseError.
	ErrUnexpectedResponse = errors.New("unexpected response code")
	// ErrClosed is returned once the session or its transport is closed.
	ErrClosed = errors.New("session closed")
	// ErrBusy is returned when a request is issued while the session is listening.
	ErrBusy = errors.New("session busy")
	// ErrNotConnected is returned by requests issued before Connect.
	ErrNotConnected = errors.New("session not connected")
	// ErrInvalidPlayer rejects player slots outside 1-4.
	ErrInvalidPlayer = errors.New("player must be between 1 and 4")
)

// FaultReason tells which frame check failed.
type FaultReason uint8

const (
	FaultSync FaultReason = iota + 1
	FaultLength
	FaultChecksum
	FaultPlayer
)

func (r FaultReason) String() string {
	switch r {
	case FaultSync:
		return "sync"
	case FaultLength:
		return "length"
	case FaultChecksum:
		return "checksum"
	case FaultPlayer:
		return "player"
	default:
		return "unknown"
	}
}

// ProtocolFault reports an inbound frame that broke the framing rules.
// The session cannot resynchronise after one.
type ProtocolFault struct {
	Reason FaultReason
	Want   int
	Got    int
	Frame  []byte
}

func (e *ProtocolFault) Error() string {
	return fmt.Sprintf("protocol fault: bad %s (want %#x, got %#x)", e.Reason, e.Want, e.Got)
}

func (e *ProtocolFault) Is(target error) bool { return target == ErrProtocolFault }

// UnexpectedResponseError is a well formed frame carrying a code other than
// the one the request expects.
type UnexpectedResponseError struct {
	Want byte
	Got  byte
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response code %d (want %d)", e.Got, e.Want)
}

func (e *UnexpectedResponseError) Is(target error) bool { return target == ErrUnexpectedResponse }
