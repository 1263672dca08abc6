//go:build linux

package uinput

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/Alia5/mogabridge/moga"
	"golang.org/x/sys/unix"
)

// Device is a uinput virtual gamepad.
type Device struct {
	name    string
	vendor  uint16
	product uint16

	mu      sync.Mutex
	fd      int
	created bool
	closed  bool
}

var _ moga.Sink = (*Device)(nil)

// Options names the virtual device.
type Options struct {
	Path    string
	Name    string
	Vendor  uint16
	Product uint16
}

// New opens the uinput node. The device appears on Register.
func New(o Options) (*Device, error) {
	path := o.Path
	if path == "" {
		path = DefaultPath
	}
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("uinput: open %s: %w", path, err)
	}
	return &Device{name: o.Name, vendor: o.Vendor, product: o.Product, fd: fd}, nil
}

func (d *Device) ioctl(req uintptr, arg uintptr) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, arg); errno != 0 {
		return errno
	}
	return nil
}

// Register declares every component's code and, for axes, its range, then
// creates the device.
func (d *Device) Register(components []moga.Component) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.created {
		return fmt.Errorf("uinput: device already created")
	}
	for _, r := range plan(components) {
		var err error
		if r.abs != nil {
			err = d.ioctl(r.req, uintptr(unsafe.Pointer(r.abs)))
		} else {
			err = unix.IoctlSetInt(d.fd, uint(r.req), r.val)
		}
		if err != nil {
			return fmt.Errorf("uinput: ioctl %#x: %w", r.req, err)
		}
	}
	setup := newSetup(d.name, d.vendor, d.product)
	if err := d.ioctl(uiDevSetup, uintptr(unsafe.Pointer(&setup))); err != nil {
		return fmt.Errorf("uinput: UI_DEV_SETUP: %w", err)
	}
	if err := d.ioctl(uiDevCreate, 0); err != nil {
		return fmt.Errorf("uinput: UI_DEV_CREATE: %w", err)
	}
	d.created = true
	return nil
}

// Send writes the batch in one write so readers see it between SYN_REPORTs.
func (d *Device) Send(events []moga.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.created {
		return fmt.Errorf("uinput: device not created")
	}
	if _, err := unix.Write(d.fd, encodeEvents(events)); err != nil {
		return fmt.Errorf("uinput: write: %w", err)
	}
	return nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.created {
		_ = d.ioctl(uiDevDestroy, 0)
	}
	return unix.Close(d.fd)
}
