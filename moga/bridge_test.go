package moga_test

import (
	"context"
	"errors"
	"testing"
	"time"

	mogaTesting "github.com/Alia5/mogabridge/internal/testing"
	"github.com/Alia5/mogabridge/moga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitSent(t *testing.T, sink *mogaTesting.RecordingSink, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-sink.Sent:
		case <-time.After(2 * time.Second):
			require.FailNow(t, "timed out waiting for sink")
		}
	}
}

func TestBridgeListen(t *testing.T) {
	s, ctrl := connectedSession(t, moga.Gen2, 1, nil)
	sink := mogaTesting.NewRecordingSink()
	b := &moga.Bridge{Session: s, Sink: sink}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	assert.Equal(t, moga.BuildCommand(moga.Gen2.Listen, 1), ctrl.NextCommand())
	ctrl.Report(moga.Gen2.ListenResponse, 1, make([]byte, 8))
	ctrl.Report(moga.Gen2.ListenResponse, 1, make([]byte, 8))
	ctrl.Report(moga.Gen2.ListenResponse, 1, []byte{0, 0, 0, 0, 0, 0, 0, 99})
	waitSent(t, sink, 2)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "bridge did not stop")
	}

	assert.Equal(t, moga.Gen2.Components(), sink.Registered())
	batches := sink.Batches()
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], len(moga.Gen2.Components())+1)
	assert.True(t, batches[0][len(batches[0])-1].IsSynReport())
	assert.Equal(t, []moga.Event{
		{Code: moga.EventCode{Type: moga.EvAbs, Code: moga.AbsHat2X}, Value: 99},
		moga.SynReport,
	}, batches[1])
	assert.Equal(t, moga.StateClosed, s.State())
}

func TestBridgeListenEndOfStream(t *testing.T) {
	s, ctrl := connectedSession(t, moga.Gen1, 1, nil)
	sink := mogaTesting.NewRecordingSink()
	b := &moga.Bridge{Session: s, Sink: sink, Mode: moga.ModeListen}

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(context.Background()) }()
	ctrl.NextCommand()
	ctrl.Hangup()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, moga.ErrClosed)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "bridge did not stop")
	}
}

func TestBridgeListenProtocolFault(t *testing.T) {
	s, ctrl := connectedSession(t, moga.Gen1, 1, nil)
	sink := mogaTesting.NewRecordingSink()
	b := &moga.Bridge{Session: s, Sink: sink}

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(context.Background()) }()
	ctrl.NextCommand()
	ctrl.Report(moga.Gen1.ListenResponse, 2, nil)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, moga.ErrProtocolFault)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "bridge did not stop")
	}
	assert.Empty(t, sink.Batches())
}

func TestBridgeSinkError(t *testing.T) {
	s, ctrl := connectedSession(t, moga.Gen1, 1, nil)
	sink := mogaTesting.NewRecordingSink()
	sink.SendErr = errors.New("device gone")
	b := &moga.Bridge{Session: s, Sink: sink}

	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(context.Background()) }()
	ctrl.NextCommand()
	ctrl.Report(moga.Gen1.ListenResponse, 1, nil)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, sink.SendErr)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "bridge did not stop")
	}
}

func TestBridgePoll(t *testing.T) {
	s, ctrl := connectedSession(t, moga.Gen1, 4, nil)
	sink := mogaTesting.NewRecordingSink()
	b := &moga.Bridge{Session: s, Sink: sink, Mode: moga.ModePoll, PollInterval: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- b.Run(ctx) }()

	assert.Equal(t, moga.BuildCommand(moga.Gen1.Poll, 4), ctrl.NextCommand())
	ctrl.Report(moga.Gen1.PollResponse, 4, nil)
	waitSent(t, sink, 1)

	// an unrelated reply skips a cycle without stopping the bridge
	assert.Equal(t, moga.BuildCommand(moga.Gen1.Poll, 4), ctrl.NextCommand())
	ctrl.Report(moga.Gen1.ListenResponse, 4, nil)

	assert.Equal(t, moga.BuildCommand(moga.Gen1.Poll, 4), ctrl.NextCommand())
	ctrl.Report(moga.Gen1.PollResponse, 4, []byte{0, 0b00000001, 0, 0, 0, 0})
	waitSent(t, sink, 1)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "bridge did not stop")
	}

	batches := sink.Batches()
	require.Len(t, batches, 2)
	assert.Equal(t, []moga.Event{
		{Code: moga.EventCode{Type: moga.EvKey, Code: moga.BtnDPadUp}, Value: 1},
		moga.SynReport,
	}, batches[1])
}

func TestMultiSink(t *testing.T) {
	a, b := mogaTesting.NewRecordingSink(), mogaTesting.NewRecordingSink()
	m := moga.MultiSink{a, b}
	require.NoError(t, m.Register(moga.Gen1.Components()))
	require.NoError(t, m.Send([]moga.Event{moga.SynReport}))
	require.NoError(t, m.Close())

	for _, s := range []*mogaTesting.RecordingSink{a, b} {
		assert.Len(t, s.Registered(), 20)
		assert.Equal(t, [][]moga.Event{{moga.SynReport}}, s.Batches())
		assert.True(t, s.Closed())
	}
}
