package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAuditPool_ReserveRejectsWhenFull(t *testing.T) {
	pool := NewAuditPool(AuditPoolConfig{MaxConcurrent: 1, QueueSize: 1}, zap.NewNop())
	require.NoError(t, pool.Start(context.Background()))
	defer pool.Stop()

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)

	first, ok := pool.Reserve()
	require.True(t, ok)
	first.Run(func(ctx context.Context) {
		started.Done()
		<-release
	})
	started.Wait()

	second, ok := pool.Reserve()
	require.True(t, ok)

	_, ok = pool.Reserve()
	assert.False(t, ok, "worker busy and queue full")
	assert.Equal(t, 2, pool.InFlight())

	second.Cancel()
	third, ok := pool.Reserve()
	require.True(t, ok, "cancelled slot is reusable")
	third.Cancel()

	close(release)
}

func TestAuditPool_RunsQueuedJobs(t *testing.T) {
	pool := NewAuditPool(AuditPoolConfig{MaxConcurrent: 2, QueueSize: 8}, zap.NewNop())
	require.NoError(t, pool.Start(context.Background()))

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 10; i++ {
		r, ok := pool.Reserve()
		require.True(t, ok)
		r.Run(func(ctx context.Context) {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}

	require.NoError(t, pool.Stop())
	assert.Equal(t, 10, ran)
	assert.Equal(t, 0, pool.InFlight())
}

func TestAuditPool_RecoversPanics(t *testing.T) {
	pool := NewAuditPool(AuditPoolConfig{MaxConcurrent: 1}, zap.NewNop())
	require.NoError(t, pool.Start(context.Background()))

	r, ok := pool.Reserve()
	require.True(t, ok)
	r.Run(func(ctx context.Context) { panic("boom") })

	done := make(chan struct{})
	r, ok = pool.Reserve()
	for !ok {
		time.Sleep(time.Millisecond)
		r, ok = pool.Reserve()
	}
	r.Run(func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stopped working after a panic")
	}
	require.NoError(t, pool.Stop())
	assert.Equal(t, int64(1), pool.panicCount.Load())
}

func TestAuditPool_StopCancelsJobs(t *testing.T) {
	pool := NewAuditPool(DefaultAuditPoolConfig(), zap.NewNop())
	require.NoError(t, pool.Start(context.Background()))

	cancelled := make(chan struct{})
	r, ok := pool.Reserve()
	require.True(t, ok)
	r.Run(func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	})

	require.NoError(t, pool.Stop())
	<-cancelled

	_, ok = pool.Reserve()
	assert.False(t, ok, "stopped pool rejects work")
}

type fakeWorker struct {
	name     string
	startErr error
	log      *[]string
}

func (w *fakeWorker) Start(ctx context.Context) error {
	if w.startErr != nil {
		return w.startErr
	}
	*w.log = append(*w.log, "start "+w.name)
	return nil
}

func (w *fakeWorker) Stop() error {
	*w.log = append(*w.log, "stop "+w.name)
	return nil
}

func (w *fakeWorker) Name() string { return w.name }

func TestWorkerManager_Lifecycle(t *testing.T) {
	var log []string
	m := NewWorkerManager(zap.NewNop())
	m.Register(&fakeWorker{name: "a", log: &log})
	m.Register(&fakeWorker{name: "b", log: &log})

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, log)
}

func TestWorkerManager_StartFailureStopsStarted(t *testing.T) {
	var log []string
	m := NewWorkerManager(zap.NewNop())
	m.Register(&fakeWorker{name: "a", log: &log})
	m.Register(&fakeWorker{name: "b", log: &log, startErr: errors.New("port in use")})

	err := m.StartAll(context.Background())
	assert.ErrorContains(t, err, "port in use")
	assert.False(t, m.IsRunning())
	assert.Equal(t, []string{"start a", "stop a"}, log)
}
