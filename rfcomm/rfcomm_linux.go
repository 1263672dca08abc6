//go:build linux

package rfcomm

import (
	"context"
	"fmt"
	"os"

	"github.com/Alia5/mogabridge/moga"
	"golang.org/x/sys/unix"
)

// Dial connects to channel on the device at address.
func (d *Dialer) Dial(ctx context.Context, address string, channel uint8) (moga.Conn, error) {
	bdaddr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("rfcomm: socket: %w", err)
	}

	// connect(2) blocks for the whole baseband page; closing the fd aborts it.
	done := make(chan error, 1)
	go func() {
		done <- unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: bdaddr, Channel: channel})
	}()
	select {
	case err = <-done:
	case <-ctx.Done():
		_ = unix.Close(fd)
		<-done
		return nil, fmt.Errorf("rfcomm: connect %s ch %d: %w", address, channel, ctx.Err())
	}
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("rfcomm: connect %s ch %d: %w", address, channel, err)
	}

	// non-blocking so the runtime poller owns the fd and Close unblocks reads
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("rfcomm: set nonblock: %w", err)
	}
	f := os.NewFile(uintptr(fd), fmt.Sprintf("rfcomm:%s/%d", address, channel))
	return withTimeout(f, d.ReadTimeout), nil
}
