// Package uinput exposes the controller as a Linux virtual input device.
package uinput

import (
	"encoding/binary"
	"errors"
	"math/bits"
	"unsafe"

	"github.com/Alia5/mogabridge/moga"
)

// ErrUnsupported is returned where /dev/uinput does not exist.
var ErrUnsupported = errors.New("uinput: not supported on this platform")

// DefaultPath is the uinput control node.
const DefaultPath = "/dev/uinput"

// BusBluetooth is BUS_BLUETOOTH from linux/input.h.
const BusBluetooth = 0x05

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocNone  = 0
	iocWrite = 1
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputSetup mirrors struct uinput_setup.
type uinputSetup struct {
	ID           inputID
	Name         [80]byte
	FFEffectsMax uint32
}

type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// uinputAbsSetup mirrors struct uinput_abs_setup.
type uinputAbsSetup struct {
	Code uint16
	_    uint16
	Info absInfo
}

var (
	uiDevCreate  = ioc(iocNone, 'U', 1, 0)
	uiDevDestroy = ioc(iocNone, 'U', 2, 0)
	uiDevSetup   = ioc(iocWrite, 'U', 3, uint32(unsafe.Sizeof(uinputSetup{})))
	uiAbsSetup   = ioc(iocWrite, 'U', 4, uint32(unsafe.Sizeof(uinputAbsSetup{})))
	uiSetEvBit   = ioc(iocWrite, 'U', 100, 4)
	uiSetKeyBit  = ioc(iocWrite, 'U', 101, 4)
	uiSetAbsBit  = ioc(iocWrite, 'U', 103, 4)
)

// eventSize is sizeof(struct input_event): a native timeval followed by
// type, code and value.
var eventSize = 2*bits.UintSize/8 + 8

// encodeEvents lays events out as consecutive input_event records with a zero
// timestamp; the kernel stamps them on write.
func encodeEvents(events []moga.Event) []byte {
	buf := make([]byte, len(events)*eventSize)
	tv := eventSize - 8
	for i, ev := range events {
		p := buf[i*eventSize:]
		binary.NativeEndian.PutUint16(p[tv:], ev.Code.Type)
		binary.NativeEndian.PutUint16(p[tv+2:], ev.Code.Code)
		binary.NativeEndian.PutUint32(p[tv+4:], uint32(ev.Value))
	}
	return buf
}

func newSetup(name string, vendor, product uint16) uinputSetup {
	s := uinputSetup{ID: inputID{Bustype: BusBluetooth, Vendor: vendor, Product: product, Version: 1}}
	copy(s.Name[:len(s.Name)-1], name)
	return s
}

type request struct {
	req uintptr
	val int
	abs *uinputAbsSetup
}

// plan is the ordered list of ioctls that declares components to the kernel.
func plan(components []moga.Component) []request {
	var out []request
	types := map[uint16]bool{}
	addType := func(t uint16) {
		if !types[t] {
			types[t] = true
			out = append(out, request{req: uiSetEvBit, val: int(t)})
		}
	}
	addType(moga.EvSyn)
	for _, c := range components {
		addType(c.Code.Type)
		switch c.Code.Type {
		case moga.EvKey:
			out = append(out, request{req: uiSetKeyBit, val: int(c.Code.Code)})
		case moga.EvAbs:
			out = append(out, request{req: uiSetAbsBit, val: int(c.Code.Code)})
			if info, ok := c.AbsInfo(); ok {
				out = append(out, request{req: uiAbsSetup, abs: &uinputAbsSetup{
					Code: c.Code.Code,
					Info: absInfo{Minimum: info.Minimum, Maximum: info.Maximum, Resolution: info.Resolution},
				}})
			}
		}
	}
	return out
}
