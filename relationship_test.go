package kthreads

import (
	"strings"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWait_childExitsFirst(t *testing.T) {
	k := newTestKernel(t)
	tid, err := k.Spawn(`c`, 60, func(any) {
		k.SetLoadStatus(LoadSuccess)
		k.Exit(7)
	}, nil)
	require.NoError(t, err)
	// the child outranked the caller and already exited; neither call
	// below blocks
	status, err := k.WaitLoad(tid)
	require.NoError(t, err)
	require.Equal(t, LoadSuccess, status)

	exit, err := k.Wait(tid)
	require.NoError(t, err)
	require.Equal(t, 7, exit)
	assert.Equal(t, uint64(1), k.Metrics().RelationshipsDestroyed)

	// the relationship was consumed
	_, err = k.Wait(tid)
	require.ErrorIs(t, err, ErrNoChild)
	_, err = k.WaitLoad(tid)
	require.ErrorIs(t, err, ErrNoChild)
}

func TestWait_parentBlocksFirst(t *testing.T) {
	k := newTestKernel(t)
	tid, err := k.Spawn(`c`, PriMin, func(any) {
		k.Exit(5)
	}, nil)
	require.NoError(t, err)

	exit, err := k.Wait(tid)
	require.NoError(t, err)
	require.Equal(t, 5, exit)

	// the child was preempted mid-exit when Wait was woken; drop below
	// it and yield so it finishes and releases its reference
	k.SetPriority(PriMin)
	k.Yield()
	assert.Equal(t, uint64(1), k.Metrics().RelationshipsDestroyed)
}

func TestWaitLoad_handshake(t *testing.T) {
	k := newTestKernel(t)
	var loaded bool
	tid, err := k.Spawn(`c`, 20, func(any) {
		loaded = true
		k.SetLoadStatus(LoadSuccess)
		k.Exit(3)
	}, nil)
	require.NoError(t, err)
	require.False(t, loaded)

	status, err := k.WaitLoad(tid)
	require.NoError(t, err)
	require.Equal(t, LoadSuccess, status)
	require.True(t, loaded)

	// WaitLoad does not consume the relationship
	exit, err := k.Wait(tid)
	require.NoError(t, err)
	require.Equal(t, 3, exit)
}

func TestWaitLoad_exitWithoutReport(t *testing.T) {
	k := newTestKernel(t)
	tid, err := k.Spawn(`c`, 20, func(any) {
		k.Exit(9)
	}, nil)
	require.NoError(t, err)

	// a child that exits without reporting counts as a failed load
	status, err := k.WaitLoad(tid)
	require.NoError(t, err)
	require.Equal(t, LoadFailed, status)

	exit, err := k.Wait(tid)
	require.NoError(t, err)
	require.Equal(t, 9, exit)
}

func TestWait_unknownChild(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.Wait(42)
	require.ErrorIs(t, err, ErrNoChild)
	_, err = k.WaitLoad(42)
	require.ErrorIs(t, err, ErrNoChild)
}

func TestWait_notMyChild(t *testing.T) {
	k := newTestKernel(t)
	// a plain Create has no relationship; its TID is not waitable
	tid, err := k.Create(`c`, PriMin, func(any) {}, nil)
	require.NoError(t, err)
	_, err = k.Wait(tid)
	require.ErrorIs(t, err, ErrNoChild)
}

func TestWait_parentExitsFirst(t *testing.T) {
	k := newTestKernel(t)
	var childTID TID
	pid, err := k.Spawn(`parent`, 40, func(any) {
		tid, err := k.Spawn(`orphan`, 40, func(any) {}, nil)
		assert.NoError(t, err)
		childTID = tid
		k.Exit(1)
	}, nil)
	require.NoError(t, err)
	// the parent exited without waiting; the orphan ran to completion,
	// and whichever side released last destroyed their relationship
	require.NotEqual(t, TIDError, childTID)
	exit, err := k.Wait(pid)
	require.NoError(t, err)
	require.Equal(t, 1, exit)
	assert.Equal(t, uint64(2), k.Metrics().RelationshipsDestroyed)
}

func TestSetLoadStatus_withoutRelationship(t *testing.T) {
	k := newTestKernel(t)
	require.NotPanics(t, func() {
		k.SetLoadStatus(LoadSuccess)
	})
}

func TestRelationship_destructionLogFields(t *testing.T) {
	var lines []string
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithTimeField(``)),
		stumpy.L.WithWriter(logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
			lines = append(lines, string(e.Bytes()))
			return nil
		})),
		stumpy.L.WithLevel(logiface.LevelDebug),
	)
	k, err := New(WithLogger(logger.Logger()))
	require.NoError(t, err)
	k.Start()

	tid, err := k.Spawn(`c`, 60, func(any) {
		k.SetLoadStatus(LoadSuccess)
		k.Exit(7)
	}, nil)
	require.NoError(t, err)
	_, err = k.Wait(tid)
	require.NoError(t, err)

	var destroyed string
	for _, l := range lines {
		if strings.Contains(l, `relationship destroyed`) {
			destroyed = l
			break
		}
	}
	require.NotEmpty(t, destroyed, `expected a destruction log line`)
	// the destruction site knows both sides' outcomes
	assert.Contains(t, destroyed, `"status":7`)
	assert.Contains(t, destroyed, `"exited"`)
	assert.Contains(t, destroyed, `"load":"Success"`)
}

func TestLoadStatusString(t *testing.T) {
	for s, want := range map[LoadStatus]string{
		LoadRunning:    `Running`,
		LoadFailed:     `Failed`,
		LoadSuccess:    `Success`,
		LoadStatus(99): `Unknown`,
	} {
		assert.Equal(t, want, s.String())
	}
}
