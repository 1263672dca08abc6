//go:build !linux

package rfcomm

import (
	"context"

	"github.com/Alia5/mogabridge/moga"
)

func (d *Dialer) Dial(ctx context.Context, address string, channel uint8) (moga.Conn, error) {
	if _, err := ParseAddress(address); err != nil {
		return nil, err
	}
	return nil, ErrUnsupported
}
