package moga_test

import (
	"testing"

	"github.com/Alia5/mogabridge/moga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func component(t *testing.T, gen moga.Generation, name string) moga.Component {
	t.Helper()
	for _, c := range gen.Components() {
		if c.Name == name {
			return c
		}
	}
	require.FailNow(t, "no component", name)
	return moga.Component{}
}

func TestComponentDecode(t *testing.T) {
	type testCase struct {
		name      string
		component string
		gen       moga.Generation
		payload   []byte
		expected  int32
	}
	cases := []testCase{
		{name: "X pressed", component: "X", gen: moga.Gen1, payload: []byte{0b00001000, 0, 0, 0, 0, 0}, expected: 1},
		{name: "X released", component: "X", gen: moga.Gen1, payload: []byte{0, 0, 0, 0, 0, 0}, expected: 0},
		{name: "Y is bit 0", component: "Y", gen: moga.Gen1, payload: []byte{0b00000001, 0, 0, 0, 0, 0}, expected: 1},
		{name: "X1 positive", component: "X1", gen: moga.Gen1, payload: []byte{0, 0, 10, 0, 0, 0}, expected: 10},
		{name: "X1 biased negative", component: "X1", gen: moga.Gen1, payload: []byte{0, 0, 130, 0, 0, 0}, expected: -125},
		{name: "X1 raw 128", component: "X1", gen: moga.Gen1, payload: []byte{0, 0, 128, 0, 0, 0}, expected: -127},
		{name: "X1 raw 255", component: "X1", gen: moga.Gen1, payload: []byte{0, 0, 255, 0, 0, 0}, expected: 0},
		{name: "Y1 inverted", component: "Y1", gen: moga.Gen1, payload: []byte{0, 0, 0, 5, 0, 0}, expected: -5},
		{name: "Y2 inverted negative", component: "Y2", gen: moga.Gen1, payload: []byte{0, 0, 0, 0, 0, 200}, expected: 55},
		{name: "DOWN pad bit", component: "DOWN", gen: moga.Gen1, payload: []byte{0, 0b00000010, 0, 0, 0, 0}, expected: 1},
		{name: "THUMBR pad bit", component: "THUMBR", gen: moga.Gen1, payload: []byte{0xff, 0b01111111, 0, 0, 0, 0}, expected: 0},
		{name: "L2 trigger unbiased", component: "L2", gen: moga.Gen2, payload: []byte{0, 0, 0, 0, 0, 0, 200, 0}, expected: 200},
		{name: "R2 trigger", component: "R2", gen: moga.Gen2, payload: []byte{0, 0, 0, 0, 0, 0, 0, 255}, expected: 255},
	}
	for _, tc := range cases {
		v, err := component(t, tc.gen, tc.component).Decode(tc.payload)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.expected, v, tc.name)
	}
}

func TestComponentAbsInfo(t *testing.T) {
	info, ok := component(t, moga.Gen1, "X1").AbsInfo()
	assert.True(t, ok)
	assert.Equal(t, moga.AbsInfo{Minimum: -127, Maximum: 127, Resolution: 8}, info)

	info, ok = component(t, moga.Gen2, "R2").AbsInfo()
	assert.True(t, ok)
	assert.Equal(t, moga.AbsInfo{Minimum: 0, Maximum: 255, Resolution: 8}, info)

	_, ok = component(t, moga.Gen1, "A").AbsInfo()
	assert.False(t, ok)
	_, ok = component(t, moga.Gen1, "UP").AbsInfo()
	assert.False(t, ok)
}

func TestCatalogue(t *testing.T) {
	names := func(cs []moga.Component) []string {
		var out []string
		for _, c := range cs {
			out = append(out, c.Name)
		}
		return out
	}
	base := []string{
		"Y", "B", "A", "X", "START", "SELECT", "L1", "R1",
		"X1", "Y1", "X2", "Y2",
		"UP", "DOWN", "LEFT", "RIGHT", "L2P", "R2P", "THUMBL", "THUMBR",
	}
	assert.Equal(t, base, names(moga.Gen1.Components()))
	assert.Equal(t, append(append([]string(nil), base...), "L2", "R2"), names(moga.Gen2.Components()))

	assert.Equal(t, 6, moga.NewModel(moga.Gen1.Components()).MinPayload())
	assert.Equal(t, 8, moga.NewModel(moga.Gen2.Components()).MinPayload())
}

func TestModelDecodeIdempotent(t *testing.T) {
	m := moga.NewModel(moga.Gen2.Components())
	payload := []byte{0b00000101, 0b00010000, 10, 20, 30, 40, 50, 60}

	first, err := m.Decode(payload)
	require.NoError(t, err)
	assert.Len(t, first, len(moga.Gen2.Components()))

	second, err := m.Decode(payload)
	require.NoError(t, err)
	assert.Empty(t, second)

	m.Reset()
	third, err := m.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestModelDecodeDiff(t *testing.T) {
	m := moga.NewModel(moga.Gen1.Components())
	_, err := m.Decode([]byte{0, 0, 10, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, int32(10), m.State()["X1"])

	batch, err := m.Decode([]byte{0, 0, 130, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, moga.Batch{{Code: moga.EventCode{Type: moga.EvAbs, Code: moga.AbsX}, Value: -125}}, batch)
	assert.Equal(t, int32(-125), m.State()["X1"])
}

func TestModelDecodeOrder(t *testing.T) {
	m := moga.NewModel(moga.Gen1.Components())
	_, err := m.Decode(make([]byte, 6))
	require.NoError(t, err)

	// THUMBL (pad bit 6), X1 and Y (button bit 0) change together
	batch, err := m.Decode([]byte{0b00000001, 0b01000000, 1, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, moga.Batch{
		{Code: moga.EventCode{Type: moga.EvKey, Code: moga.BtnNorth}, Value: 1},
		{Code: moga.EventCode{Type: moga.EvAbs, Code: moga.AbsX}, Value: 1},
		{Code: moga.EventCode{Type: moga.EvKey, Code: moga.BtnThumbL}, Value: 1},
	}, batch)
}

func TestModelDecodeShortPayload(t *testing.T) {
	m := moga.NewModel(moga.Gen2.Components())
	batch, err := m.Decode(make([]byte, 7))
	assert.ErrorIs(t, err, moga.ErrShortPayload)
	assert.Nil(t, batch)
	assert.Empty(t, m.State(), "no cell may change on a rejected payload")

	_, err = component(t, moga.Gen1, "Y2").Decode([]byte{0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, moga.ErrShortPayload)
}
