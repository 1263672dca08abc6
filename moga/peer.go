package moga

import (
	"context"
	"fmt"
	"io"
)

// Peer is a discovered remote device offering a serial channel.
type Peer struct {
	Name    string
	Address string
	Port    uint8
}

func (p Peer) String() string {
	return fmt.Sprintf("%s (%s ch %d)", p.Name, p.Address, p.Port)
}

// Conn is an ordered, reliable byte stream to the controller.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
}

// Dialer opens a Conn to a peer's address and channel.
type Dialer interface {
	Dial(ctx context.Context, address string, port uint8) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, address string, port uint8) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, address string, port uint8) (Conn, error) {
	return f(ctx, address, port)
}

// FindController returns the first peer whose name classifies as a
// controller of either generation.
func FindController(peers []Peer) (Peer, Generation, bool) {
	for _, p := range peers {
		if gen, ok := Classify(p.Name); ok {
			return p, gen, true
		}
	}
	return Peer{}, Generation{}, false
}
