package bluez

import (
	"testing"

	"github.com/Alia5/mogabridge/moga"
	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func device(name, addr string) map[string]map[string]dbus.Variant {
	props := map[string]dbus.Variant{}
	if name != "" {
		props["Name"] = dbus.MakeVariant(name)
	}
	if addr != "" {
		props["Address"] = dbus.MakeVariant(addr)
	}
	return map[string]map[string]dbus.Variant{deviceInterface: props}
}

func TestPeers(t *testing.T) {
	objs := managedObjects{
		"/org/bluez/hci0": {adapterInterface: {}},
		"/org/bluez/hci0/dev_00_11_22_33_44_02": device("Moga Pro", "00:11:22:33:44:02"),
		"/org/bluez/hci0/dev_00_11_22_33_44_01": device("BD&A", ""),
		"/org/bluez/hci0/dev_00_11_22_33_44_03": device("", "00:11:22:33:44:03"),
	}
	assert.Equal(t, []moga.Peer{
		{Name: "BD&A", Address: "00:11:22:33:44:01", Port: 3},
		{Name: "Moga Pro", Address: "00:11:22:33:44:02", Port: 3},
	}, peers(objs, 3))
	assert.Equal(t, []dbus.ObjectPath{"/org/bluez/hci0"}, adapterPaths(objs))
}

func TestAddressFromPath(t *testing.T) {
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", addressFromPath("/org/bluez/hci1/dev_AA_BB_CC_DD_EE_FF"))
	assert.Equal(t, "", addressFromPath("/org/bluez/hci1"))
}

func TestParseSignal(t *testing.T) {
	type testCase struct {
		name     string
		sig      *dbus.Signal
		ok       bool
		expected Event
	}
	devPath := dbus.ObjectPath("/org/bluez/hci0/dev_00_11_22_33_44_55")
	props := func(iface string, changed map[string]dbus.Variant) *dbus.Signal {
		return &dbus.Signal{Name: propertiesChanged, Path: devPath, Body: []interface{}{iface, changed, []string{}}}
	}
	cases := []testCase{
		{
			name:     "connected",
			sig:      props(deviceInterface, map[string]dbus.Variant{"Connected": dbus.MakeVariant(true)}),
			ok:       true,
			expected: Event{Kind: DeviceConnected, Path: devPath, Address: "00:11:22:33:44:55"},
		},
		{
			name:     "disconnected",
			sig:      props(deviceInterface, map[string]dbus.Variant{"Connected": dbus.MakeVariant(false), "RSSI": dbus.MakeVariant(int16(-40))}),
			ok:       true,
			expected: Event{Kind: DeviceDisconnected, Path: devPath, Address: "00:11:22:33:44:55"},
		},
		{name: "other property", sig: props(deviceInterface, map[string]dbus.Variant{"RSSI": dbus.MakeVariant(int16(-40))})},
		{name: "other interface", sig: props(adapterInterface, map[string]dbus.Variant{"Connected": dbus.MakeVariant(true)})},
		{
			name:     "bluez appeared",
			sig:      &dbus.Signal{Name: nameOwnerChanged, Body: []interface{}{BusName, "", ":1.7"}},
			ok:       true,
			expected: Event{Kind: ServiceAppeared},
		},
		{
			name:     "bluez vanished",
			sig:      &dbus.Signal{Name: nameOwnerChanged, Body: []interface{}{BusName, ":1.7", ""}},
			ok:       true,
			expected: Event{Kind: ServiceVanished},
		},
		{name: "other name", sig: &dbus.Signal{Name: nameOwnerChanged, Body: []interface{}{"org.example", "", ":1.9"}}},
		{name: "unrelated signal", sig: &dbus.Signal{Name: "org.example.Ping"}},
	}
	for _, tc := range cases {
		ev, ok := parseSignal(tc.sig)
		assert.Equal(t, tc.ok, ok, tc.name)
		if tc.ok {
			assert.Equal(t, tc.expected, ev, tc.name)
		}
	}
}
