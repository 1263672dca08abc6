// Package bluez finds controllers and watches their connection state
// through the BlueZ D-Bus API.
package bluez

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Alia5/mogabridge/moga"
	"github.com/godbus/dbus/v5"
)

const (
	BusName = "org.bluez"

	adapterInterface    = "org.bluez.Adapter1"
	deviceInterface     = "org.bluez.Device1"
	propertiesInterface = "org.freedesktop.DBus.Properties"
	getManagedObjects   = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
)

// DefaultChannel is the RFCOMM channel controllers expose their serial service on.
const DefaultChannel uint8 = 1

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// Client talks to bluetoothd over the system bus.
type Client struct {
	conn    *dbus.Conn
	logger  *slog.Logger
	channel uint8
}

// Connect opens the system bus. Discovered peers are reported on channel.
func Connect(logger *slog.Logger, channel uint8) (*Client, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: system bus: %w", err)
	}
	if channel == 0 {
		channel = DefaultChannel
	}
	return &Client{conn: conn, logger: logger, channel: channel}, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) managedObjects(ctx context.Context) (managedObjects, error) {
	var objs managedObjects
	call := c.conn.Object(BusName, "/").CallWithContext(ctx, getManagedObjects, 0)
	if call.Err != nil {
		return nil, fmt.Errorf("bluez: %s: %w", getManagedObjects, call.Err)
	}
	if err := call.Store(&objs); err != nil {
		return nil, fmt.Errorf("bluez: decode managed objects: %w", err)
	}
	return objs, nil
}

// Discover runs inquiry on every adapter for timeout and returns every named
// device bluetoothd knows about afterwards.
func (c *Client) Discover(ctx context.Context, timeout time.Duration) ([]moga.Peer, error) {
	objs, err := c.managedObjects(ctx)
	if err != nil {
		return nil, err
	}
	adapters := adapterPaths(objs)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("bluez: no adapters")
	}

	for _, path := range adapters {
		call := c.conn.Object(BusName, path).CallWithContext(ctx, adapterInterface+".StartDiscovery", 0)
		if call.Err != nil {
			c.logger.Warn("failed to start discovery", "adapter", path, "error", call.Err)
		}
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, path := range adapters {
			_ = c.conn.Object(BusName, path).CallWithContext(stopCtx, adapterInterface+".StopDiscovery", 0).Err
		}
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
	}

	objs, err = c.managedObjects(ctx)
	if err != nil {
		return nil, err
	}
	return peers(objs, c.channel), nil
}

func adapterPaths(objs managedObjects) []dbus.ObjectPath {
	var out []dbus.ObjectPath
	for path, ifaces := range objs {
		if _, ok := ifaces[adapterInterface]; ok {
			out = append(out, path)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func peers(objs managedObjects, channel uint8) []moga.Peer {
	paths := make([]dbus.ObjectPath, 0, len(objs))
	for path, ifaces := range objs {
		if _, ok := ifaces[deviceInterface]; ok {
			paths = append(paths, path)
		}
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	var out []moga.Peer
	for _, path := range paths {
		props := objs[path][deviceInterface]
		name, _ := stringProp(props, "Name")
		if name == "" {
			continue
		}
		addr, ok := stringProp(props, "Address")
		if !ok {
			addr = addressFromPath(path)
		}
		out = append(out, moga.Peer{Name: name, Address: addr, Port: channel})
	}
	return out
}

func stringProp(props map[string]dbus.Variant, key string) (string, bool) {
	v, ok := props[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

// addressFromPath turns /org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF into AA:BB:CC:DD:EE:FF.
func addressFromPath(path dbus.ObjectPath) string {
	p := string(path)
	i := strings.LastIndex(p, "/dev_")
	if i < 0 {
		return ""
	}
	return strings.ReplaceAll(p[i+len("/dev_"):], "_", ":")
}
