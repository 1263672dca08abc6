// Package rfcomm dials Bluetooth RFCOMM serial channels.
package rfcomm

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/Alia5/mogabridge/moga"
)

// ErrUnsupported is returned on platforms without AF_BLUETOOTH sockets.
var ErrUnsupported = errors.New("rfcomm: not supported on this platform")

// ParseAddress parses "AA:BB:CC:DD:EE:FF" into the little-endian byte order
// the kernel expects in sockaddr_rc.
func ParseAddress(s string) ([6]byte, error) {
	var out [6]byte
	hw, err := net.ParseMAC(s)
	if err != nil {
		return out, fmt.Errorf("rfcomm: bad address %q: %w", s, err)
	}
	if len(hw) != 6 {
		return out, fmt.Errorf("rfcomm: bad address %q: want 6 bytes, got %d", s, len(hw))
	}
	for i := range out {
		out[i] = hw[5-i]
	}
	return out, nil
}

// Dialer opens RFCOMM connections. A zero ReadTimeout blocks reads forever.
type Dialer struct {
	ReadTimeout time.Duration
}

var _ moga.Dialer = (*Dialer)(nil)

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

type readConn interface {
	moga.Conn
	deadliner
}

// timeoutConn arms a fresh read deadline before every Read.
type timeoutConn struct {
	readConn
	timeout time.Duration
}

func (c *timeoutConn) Read(p []byte) (int, error) {
	if err := c.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	n, err := c.readConn.Read(p)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, fmt.Errorf("rfcomm: no data for %s: %w", c.timeout, err)
	}
	return n, err
}

func withTimeout(c readConn, timeout time.Duration) moga.Conn {
	if timeout <= 0 {
		return c
	}
	return &timeoutConn{readConn: c, timeout: timeout}
}
