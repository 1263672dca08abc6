//go:build !linux

package uinput

import "github.com/Alia5/mogabridge/moga"

type Device struct{}

type Options struct {
	Path    string
	Name    string
	Vendor  uint16
	Product uint16
}

func New(Options) (*Device, error) { return nil, ErrUnsupported }

func (*Device) Register([]moga.Component) error { return ErrUnsupported }
func (*Device) Send([]moga.Event) error         { return ErrUnsupported }
func (*Device) Close() error                    { return nil }
