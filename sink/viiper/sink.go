package viiper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/Alia5/mogabridge/moga"
)

const deviceType = "xbox360"

// Options selects the server and bus. A zero BusID attaches to the first
// existing bus, creating one when the server has none.
type Options struct {
	Addr     string
	Password string
	BusID    uint32
	Logger   *slog.Logger
}

// Sink owns one virtual pad for the lifetime of a bridge.
type Sink struct {
	ctx    context.Context
	client *Client
	busID  uint32
	logger *slog.Logger

	mu     sync.Mutex
	pad    pad
	dev    *Device
	stream net.Conn
}

var _ moga.Sink = (*Sink)(nil)

func New(ctx context.Context, o Options) *Sink {
	if o.Addr == "" {
		o.Addr = DefaultAddr
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	cfg := defaultConfig()
	cfg.Password = o.Password
	return &Sink{
		ctx:    ctx,
		client: NewClient(o.Addr, &cfg),
		busID:  o.BusID,
		logger: o.Logger.With("sink", "viiper", "addr", o.Addr),
	}
}

// Register creates the virtual pad and opens its input stream.
func (s *Sink) Register([]moga.Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return nil
	}

	busID, err := s.resolveBus()
	if err != nil {
		return err
	}
	dev, err := s.client.DeviceAdd(s.ctx, busID, deviceType, nil, nil)
	if err != nil {
		return fmt.Errorf("add device: %w", err)
	}
	stream, err := s.client.OpenStream(s.ctx, dev.BusID, dev.DevID)
	if err != nil {
		s.remove(dev)
		return fmt.Errorf("open stream: %w", err)
	}
	s.dev, s.stream = dev, stream
	s.logger.Info("virtual pad attached", "bus", dev.BusID, "dev", dev.DevID)
	go s.drain(stream)
	return nil
}

func (s *Sink) resolveBus() (uint32, error) {
	list, err := s.client.BusList(s.ctx)
	if err != nil {
		return 0, fmt.Errorf("list buses: %w", err)
	}
	switch {
	case s.busID != 0 && slices.Contains(list.Buses, s.busID):
		return s.busID, nil
	case s.busID == 0 && len(list.Buses) > 0:
		return slices.Min(list.Buses), nil
	}
	created, err := s.client.BusCreate(s.ctx, s.busID)
	if err != nil {
		return 0, fmt.Errorf("create bus: %w", err)
	}
	s.logger.Debug("bus created", "bus", created.BusID)
	return created.BusID, nil
}

// drain consumes rumble reports; the pad has no motors to drive.
func (s *Sink) drain(r io.Reader) {
	buf := make([]byte, 2)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return
		}
		s.logger.Debug("rumble ignored", "left", buf[0], "right", buf[1])
	}
}

// Send folds the batch into the pad state and writes it on each batch terminator.
func (s *Sink) Send(events []moga.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return moga.ErrNotConnected
	}
	for _, ev := range events {
		if !ev.IsSynReport() {
			s.pad.apply(ev)
			continue
		}
		b, _ := s.pad.state.MarshalBinary()
		if _, err := s.stream.Write(b); err != nil {
			return fmt.Errorf("write state: %w", err)
		}
	}
	return nil
}

// Close detaches the stream and removes the pad from the bus.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	return errors.Join(err, s.remove(s.dev))
}

func (s *Sink) remove(dev *Device) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 3*time.Second)
	defer cancel()
	if _, err := s.client.DeviceRemove(ctx, dev.BusID, dev.DevID); err != nil {
		s.logger.Warn("failed to remove virtual pad", "bus", dev.BusID, "dev", dev.DevID, "error", err)
		return fmt.Errorf("remove device: %w", err)
	}
	return nil
}
