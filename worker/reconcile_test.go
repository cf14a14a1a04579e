package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeReconciler struct {
	calls    atomic.Int32
	repaired int64
	err      error
}

func (f *fakeReconciler) ReconcileCounts(context.Context) (int64, error) {
	f.calls.Add(1)
	return f.repaired, f.err
}

func TestRunOnceLogsRepairs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	RunOnce(context.Background(), &fakeReconciler{repaired: 2}, zap.New(core))

	entries := logs.FilterMessage("repaired drifted registration counts").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 2, entries[0].ContextMap()["count"])
}

func TestRunOnceQuietWhenConsistent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	RunOnce(context.Background(), &fakeReconciler{}, zap.New(core))
	assert.Zero(t, logs.Len())
}

func TestRunOnceLogsErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	RunOnce(context.Background(), &fakeReconciler{err: errors.New("db gone")}, zap.New(core))
	assert.Equal(t, 1, logs.FilterMessage("failed to reconcile registration counts").Len())
}

func TestReconcileTicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeReconciler{}

	done := make(chan error, 1)
	go func() { done <- Reconcile(ctx, r, 5*time.Millisecond, zap.NewNop()) }()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestReconcileDisabled(t *testing.T) {
	r := &fakeReconciler{}
	require.NoError(t, Reconcile(context.Background(), r, 0, zap.NewNop()))
	assert.Zero(t, r.calls.Load())
}
