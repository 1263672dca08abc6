package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/mogabridge/bluez"
	"github.com/Alia5/mogabridge/moga"
)

type Scan struct {
	Timeout time.Duration `help:"Inquiry duration" default:"10s" env:"MOGA_DISCOVERY_TIMEOUT"`
	Channel uint8         `help:"RFCOMM channel reported for each device" default:"1" env:"MOGA_CHANNEL"`
}

func (s *Scan) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := bluez.Connect(logger, s.Channel)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info("scanning", "timeout", s.Timeout)
	peers, err := client.Discover(ctx, s.Timeout)
	if err != nil {
		return err
	}
	printPeers(os.Stdout, peers)
	return nil
}

func printPeers(w io.Writer, peers []moga.Peer) {
	for _, p := range peers {
		gen := "-"
		if g, ok := moga.Classify(p.Name); ok {
			gen = g.Name
		}
		fmt.Fprintf(w, "%s\t%-24s\t%s\n", p.Address, p.Name, gen)
	}
}

type Monitor struct{}

func (m *Monitor) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := bluez.Connect(logger, 0)
	if err != nil {
		return err
	}
	defer client.Close()

	events := make(chan bluez.Event, 16)
	errCh := make(chan error, 1)
	go func() { errCh <- client.Monitor(ctx, events) }()
	for {
		select {
		case ev := <-events:
			logEvent(logger, ev)
		case err := <-errCh:
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func logEvent(logger *slog.Logger, ev bluez.Event) {
	switch ev.Kind {
	case bluez.ServiceAppeared, bluez.ServiceVanished:
		logger.Info("bluetoothd", "event", ev.Kind.String())
	default:
		logger.Info("device", "event", ev.Kind.String(), "address", ev.Address, "path", string(ev.Path))
	}
}
