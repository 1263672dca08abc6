package bluez

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// EventKind classifies a monitor event.
type EventKind uint8

const (
	ServiceAppeared EventKind = iota + 1
	ServiceVanished
	DeviceConnected
	DeviceDisconnected
)

func (k EventKind) String() string {
	switch k {
	case ServiceAppeared:
		return "org.bluez appeared"
	case ServiceVanished:
		return "org.bluez vanished"
	case DeviceConnected:
		return "device connected"
	case DeviceDisconnected:
		return "device disconnected"
	default:
		return "unknown"
	}
}

// Event is one change observed by Monitor.
type Event struct {
	Kind    EventKind
	Path    dbus.ObjectPath
	Address string
}

const (
	dbusName          = "org.freedesktop.DBus"
	nameOwnerChanged  = dbusName + ".NameOwnerChanged"
	propertiesChanged = propertiesInterface + ".PropertiesChanged"
)

// Monitor reports bluetoothd coming and going and every device Connected
// transition until ctx is done.
func (c *Client) Monitor(ctx context.Context, events chan<- Event) error {
	if err := c.conn.AddMatchSignal(
		dbus.WithMatchSender(dbusName),
		dbus.WithMatchInterface(dbusName),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg(0, BusName),
	); err != nil {
		return fmt.Errorf("bluez: watch name: %w", err)
	}
	if err := c.conn.AddMatchSignal(
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, deviceInterface),
	); err != nil {
		return fmt.Errorf("bluez: watch properties: %w", err)
	}

	signals := make(chan *dbus.Signal, 16)
	c.conn.Signal(signals)
	defer c.conn.RemoveSignal(signals)

	var present bool
	if err := c.conn.BusObject().CallWithContext(ctx, dbusName+".NameHasOwner", 0, BusName).Store(&present); err != nil {
		return fmt.Errorf("bluez: NameHasOwner: %w", err)
	}
	if present {
		if !deliver(ctx, events, Event{Kind: ServiceAppeared}) {
			return ctx.Err()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("bluez: signal channel closed")
			}
			if ev, ok := parseSignal(sig); ok {
				if !deliver(ctx, events, ev) {
					return ctx.Err()
				}
			}
		}
	}
}

func deliver(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func parseSignal(sig *dbus.Signal) (Event, bool) {
	switch sig.Name {
	case nameOwnerChanged:
		if len(sig.Body) != 3 {
			return Event{}, false
		}
		name, _ := sig.Body[0].(string)
		owner, _ := sig.Body[2].(string)
		if name != BusName {
			return Event{}, false
		}
		if owner == "" {
			return Event{Kind: ServiceVanished}, true
		}
		return Event{Kind: ServiceAppeared}, true

	case propertiesChanged:
		if len(sig.Body) != 3 {
			return Event{}, false
		}
		iface, _ := sig.Body[0].(string)
		changed, _ := sig.Body[1].(map[string]dbus.Variant)
		if iface != deviceInterface || changed == nil {
			return Event{}, false
		}
		v, ok := changed["Connected"]
		if !ok {
			return Event{}, false
		}
		connected, ok := v.Value().(bool)
		if !ok {
			return Event{}, false
		}
		ev := Event{Kind: DeviceDisconnected, Path: sig.Path, Address: addressFromPath(sig.Path)}
		if connected {
			ev.Kind = DeviceConnected
		}
		return ev, true
	}
	return Event{}, false
}
