package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Alia5/mogabridge/bluez"
	"github.com/Alia5/mogabridge/internal/log"
	"github.com/Alia5/mogabridge/internal/metrics"
	"github.com/Alia5/mogabridge/moga"
	"github.com/Alia5/mogabridge/rfcomm"
	"github.com/Alia5/mogabridge/sink/console"
	"github.com/Alia5/mogabridge/sink/uinput"
	"github.com/Alia5/mogabridge/sink/viiper"
)

type DiscoveryConfig struct {
	Timeout    time.Duration `help:"Inquiry duration per discovery attempt" default:"10s" env:"MOGA_DISCOVERY_TIMEOUT"`
	RetryDelay time.Duration `help:"Pause between discovery attempts" default:"1s" env:"MOGA_DISCOVERY_RETRY_DELAY"`
}

type ViiperConfig struct {
	Addr     string `help:"VIIPER API server address" default:"localhost:3242" env:"MOGA_VIIPER_ADDR"`
	Password string `help:"VIIPER API password" env:"MOGA_VIIPER_PASSWORD"`
	Bus      uint32 `help:"VIIPER bus to attach to (0 picks the first or creates one)" default:"0" env:"MOGA_VIIPER_BUS"`
}

type MetricsConfig struct {
	Addr string `help:"Serve Prometheus metrics on this address (empty disables)" env:"MOGA_METRICS_ADDR"`
}

type Bridge struct {
	Player       int             `arg:"" help:"Player slot (1-4)"`
	Address      string          `help:"Only connect to this controller address" env:"MOGA_ADDRESS"`
	Generation   int             `help:"Controller generation; 0 detects it from the device name" enum:"0,1,2" default:"0" env:"MOGA_GENERATION"`
	Channel      uint8           `help:"RFCOMM channel of the controller" default:"1" env:"MOGA_CHANNEL"`
	Discovery    DiscoveryConfig `embed:"" prefix:"discovery."`
	Mode         string          `help:"Report acquisition mode" enum:"listen,poll" default:"listen" env:"MOGA_MODE"`
	PollInterval time.Duration   `help:"Interval between polls in poll mode" default:"10ms" env:"MOGA_POLL_INTERVAL"`
	ReadTimeout  time.Duration   `help:"Fail when the controller is silent this long (0 waits forever)" default:"0s" env:"MOGA_READ_TIMEOUT"`
	Sink         []string        `help:"Event sinks" enum:"uinput,console,viiper" default:"uinput,console" env:"MOGA_SINK"`
	Viiper       ViiperConfig    `embed:"" prefix:"viiper."`
	Metrics      MetricsConfig   `embed:"" prefix:"metrics."`
}

func (b *Bridge) Validate() error {
	if b.Player < 1 || b.Player > 4 {
		return fmt.Errorf("player must be between 1 and 4, got %d", b.Player)
	}
	if b.Generation != 0 && b.Address == "" {
		return errors.New("--generation requires --address")
	}
	return nil
}

// Run is called by Kong when the bridge command is executed.
func (b *Bridge) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := b.Start(ctx, logger, rawLogger)
	if errors.Is(err, context.Canceled) {
		logger.Info("bridge stopped")
		return nil
	}
	return err
}

func (b *Bridge) Start(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	var obs moga.Observer
	if b.Metrics.Addr != "" {
		m := metrics.New()
		obs = m
		go func() {
			if err := m.Serve(ctx, b.Metrics.Addr, logger); err != nil {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	peer, gen, err := b.resolvePeer(ctx, logger)
	if err != nil {
		return err
	}
	logger.Info("controller found", "name", peer.Name, "address", peer.Address, "generation", gen.Name)

	sess, err := moga.NewSession(peer, gen, moga.Options{
		Player:   uint8(b.Player),
		Logger:   logger,
		Frames:   rawLogger,
		Observer: obs,
	})
	if err != nil {
		return err
	}
	if err := sess.Connect(ctx, &rfcomm.Dialer{ReadTimeout: b.ReadTimeout}); err != nil {
		return err
	}
	defer sess.Close()

	sink, err := b.openSinks(ctx, peer, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logger.Warn("failed to close sinks", "error", err)
		}
	}()

	br := &moga.Bridge{
		Session:      sess,
		Sink:         sink,
		Mode:         moga.Mode(b.Mode),
		PollInterval: b.PollInterval,
		Logger:       logger,
	}
	return br.Run(ctx)
}

func (b *Bridge) resolvePeer(ctx context.Context, logger *slog.Logger) (moga.Peer, moga.Generation, error) {
	if b.Generation != 0 {
		gen := moga.Gen1
		if b.Generation == 2 {
			gen = moga.Gen2
		}
		return moga.Peer{Name: gen.Name, Address: strings.ToUpper(b.Address), Port: b.Channel}, gen, nil
	}
	client, err := bluez.Connect(logger, b.Channel)
	if err != nil {
		return moga.Peer{}, moga.Generation{}, err
	}
	defer client.Close()
	return findController(ctx, client, b.Discovery, b.Address, logger)
}

type discoverer interface {
	Discover(ctx context.Context, timeout time.Duration) ([]moga.Peer, error)
}

// findController repeats discovery until a named controller shows up or ctx is done.
func findController(ctx context.Context, d discoverer, cfg DiscoveryConfig, address string, logger *slog.Logger) (moga.Peer, moga.Generation, error) {
	logger.Info("searching for MOGA controller")
	for {
		peers, err := d.Discover(ctx, cfg.Timeout)
		if err != nil && ctx.Err() == nil {
			logger.Warn("discovery failed", "error", err)
		}
		if address != "" {
			peers = filterAddress(peers, address)
		}
		if peer, gen, ok := moga.FindController(peers); ok {
			return peer, gen, nil
		}
		logger.Info("no controller found, retrying", "candidates", len(peers))

		t := time.NewTimer(cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return moga.Peer{}, moga.Generation{}, ctx.Err()
		case <-t.C:
		}
	}
}

func filterAddress(peers []moga.Peer, address string) []moga.Peer {
	var out []moga.Peer
	for _, p := range peers {
		if strings.EqualFold(p.Address, address) {
			out = append(out, p)
		}
	}
	return out
}

func (b *Bridge) openSinks(ctx context.Context, peer moga.Peer, logger *slog.Logger) (moga.Sink, error) {
	var sinks moga.MultiSink
	for _, name := range b.Sink {
		switch name {
		case "uinput":
			dev, err := uinput.New(uinput.Options{Name: peer.Name})
			if err != nil {
				_ = sinks.Close()
				return nil, err
			}
			sinks = append(sinks, dev)
		case "console":
			sinks = append(sinks, console.New(os.Stdout, false))
		case "viiper":
			sinks = append(sinks, viiper.New(ctx, viiper.Options{
				Addr:     b.Viiper.Addr,
				Password: b.Viiper.Password,
				BusID:    b.Viiper.Bus,
				Logger:   logger,
			}))
		default:
			_ = sinks.Close()
			return nil, fmt.Errorf("unknown sink %q", name)
		}
	}
	return sinks, nil
}
