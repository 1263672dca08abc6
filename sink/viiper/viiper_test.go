package viiper

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/Alia5/mogabridge/moga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(code uint16, v int32) moga.Event {
	return moga.Event{Code: moga.EventCode{Type: moga.EvKey, Code: code}, Value: v}
}

func abs(code uint16, v int32) moga.Event {
	return moga.Event{Code: moga.EventCode{Type: moga.EvAbs, Code: code}, Value: v}
}

func TestPadApply(t *testing.T) {
	type testCase struct {
		name   string
		events []moga.Event
		want   InputState
	}
	cases := []testCase{
		{name: "face buttons", events: []moga.Event{key(moga.BtnSouth, 1), key(moga.BtnNorth, 1)}, want: InputState{Buttons: ButtonA | ButtonY}},
		{name: "release", events: []moga.Event{key(moga.BtnStart, 1), key(moga.BtnStart, 0)}, want: InputState{}},
		{name: "dpad and select", events: []moga.Event{key(moga.BtnDPadLeft, 1), key(moga.BtnSelect, 1)}, want: InputState{Buttons: ButtonDPadLeft | ButtonBack}},
		{name: "sticks", events: []moga.Event{abs(moga.AbsX, 127), abs(moga.AbsY, -127), abs(moga.AbsRX, -127), abs(moga.AbsRY, 0)}, want: InputState{LX: 32767, LY: 32767, RX: -32767}},
		{name: "analog triggers", events: []moga.Event{abs(moga.AbsHat2Y, 40), abs(moga.AbsHat2X, 255)}, want: InputState{LT: 40, RT: 255}},
		{name: "digital trigger overrides analog", events: []moga.Event{abs(moga.AbsHat2Y, 40), key(moga.BtnTL2, 1)}, want: InputState{LT: 255}},
		{name: "digital released restores analog", events: []moga.Event{abs(moga.AbsHat2Y, 40), key(moga.BtnTL2, 1), key(moga.BtnTL2, 0)}, want: InputState{LT: 40}},
		{name: "unknown codes ignored", events: []moga.Event{key(0x100, 1), abs(0x10, 5)}, want: InputState{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p pad
			for _, ev := range tc.events {
				p.apply(ev)
			}
			assert.Equal(t, tc.want, p.state)
		})
	}
}

func TestInputStateMarshal(t *testing.T) {
	s := InputState{Buttons: ButtonA | ButtonDPadUp, LT: 1, RT: 2, LX: -1, LY: 256, RX: 3, RY: -32767}
	b, err := s.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, StateSize)
	assert.Equal(t, uint32(0x1001), binary.LittleEndian.Uint32(b))
	assert.Equal(t, []byte{1, 2, 0xff, 0xff, 0x00, 0x01, 3, 0}, b[4:12])
	assert.Equal(t, int16(-32767), int16(binary.LittleEndian.Uint16(b[12:])))
}

func TestClientErrors(t *testing.T) {
	srv := newFakeServer(t, "", 1)
	c := NewClient(srv.Addr(), nil)

	list, err := c.BusList(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, list.Buses)

	_, err = c.DeviceAdd(t.Context(), 1, "keyboard", nil, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Status)
	assert.Equal(t, "400 Bad Request: unknown type", apiErr.Error())

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = c.BusList(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParse(t *testing.T) {
	_, err := parse[BusListResponse]("")
	assert.EqualError(t, err, "empty response")
	_, err = parse[BusListResponse]("not json")
	assert.ErrorContains(t, err, "decode")
}

func readState(t *testing.T, srv *fakeServer) InputState {
	t.Helper()
	select {
	case b := <-srv.states:
		return InputState{
			Buttons: binary.LittleEndian.Uint32(b),
			LT:      b[4],
			RT:      b[5],
			LX:      int16(binary.LittleEndian.Uint16(b[6:])),
			LY:      int16(binary.LittleEndian.Uint16(b[8:])),
			RX:      int16(binary.LittleEndian.Uint16(b[10:])),
			RY:      int16(binary.LittleEndian.Uint16(b[12:])),
		}
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no state received")
		return InputState{}
	}
}

func TestSinkLifecycle(t *testing.T) {
	for _, password := range []string{"", "hunter2"} {
		t.Run("password="+password, func(t *testing.T) {
			srv := newFakeServer(t, password)
			s := New(t.Context(), Options{Addr: srv.Addr(), Password: password})

			assert.ErrorIs(t, s.Send([]moga.Event{moga.SynReport}), moga.ErrNotConnected)
			require.NoError(t, s.Register(moga.Gen2.Components()))

			require.NoError(t, s.Send([]moga.Event{key(moga.BtnEast, 1), abs(moga.AbsHat2X, 128), moga.SynReport}))
			assert.Equal(t, InputState{Buttons: ButtonB, RT: 128}, readState(t, srv))

			require.NoError(t, s.Send([]moga.Event{key(moga.BtnEast, 0), moga.SynReport}))
			assert.Equal(t, InputState{RT: 128}, readState(t, srv))

			require.NoError(t, s.Close())
			require.NoError(t, s.Close())
			assert.Equal(t, []string{
				"bus/list",
				"bus/create",
				`bus/7/add {"type":"xbox360"}`,
				"bus/7/1",
				"bus/7/remove 1",
			}, srv.Requests())
		})
	}
}

func TestSinkUsesExistingBus(t *testing.T) {
	srv := newFakeServer(t, "", 5, 3)
	s := New(t.Context(), Options{Addr: srv.Addr()})
	require.NoError(t, s.Register(nil))
	require.NoError(t, s.Close())
	assert.Equal(t, `bus/3/add {"type":"xbox360"}`, srv.Requests()[1])

	srv = newFakeServer(t, "", 5)
	s = New(t.Context(), Options{Addr: srv.Addr(), BusID: 9})
	require.NoError(t, s.Register(nil))
	require.NoError(t, s.Close())
	assert.Equal(t, "bus/create 9", srv.Requests()[1])
}

func TestWrongPassword(t *testing.T) {
	srv := newFakeServer(t, "right")
	c := NewClient(srv.Addr(), &Config{DialTimeout: time.Second, ReadTimeout: time.Second, Password: "wrong"})
	_, err := c.BusList(t.Context())
	assert.ErrorIs(t, err, ErrUnauthorized)
}
