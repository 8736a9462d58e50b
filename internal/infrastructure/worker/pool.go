package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
)

// AuditPoolConfig holds configuration for the audit pool
type AuditPoolConfig struct {
	MaxConcurrent int
	QueueSize     int
}

// DefaultAuditPoolConfig returns default configuration
func DefaultAuditPoolConfig() AuditPoolConfig {
	return AuditPoolConfig{
		MaxConcurrent: 4,
		QueueSize:     16,
	}
}

// AuditPool runs audit pipelines on a fixed set of workers with a bounded
// backlog. Reserve never blocks; a full pool rejects instead of queueing
// without bound.
type AuditPool struct {
	config AuditPoolConfig
	logger *zap.Logger

	slots chan struct{}
	jobs  chan func(ctx context.Context)
	done  chan struct{}

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
	workers   sync.WaitGroup
	pending   sync.WaitGroup

	processedCount atomic.Int64
	panicCount     atomic.Int64
}

// NewAuditPool creates a new audit pool
func NewAuditPool(config AuditPoolConfig, logger *zap.Logger) *AuditPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}
	capacity := config.MaxConcurrent + config.QueueSize

	return &AuditPool{
		config: config,
		logger: logger,
		slots:  make(chan struct{}, capacity),
		jobs:   make(chan func(ctx context.Context), capacity),
		done:   make(chan struct{}),
	}
}

// Start launches the workers
func (p *AuditPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("audit pool already running")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.isRunning = true

	for i := 0; i < p.config.MaxConcurrent; i++ {
		p.workers.Add(1)
		go p.work(i)
	}

	p.logger.Info("AuditPool started",
		zap.Int("max_concurrent", p.config.MaxConcurrent),
		zap.Int("queue_size", p.config.QueueSize))

	return nil
}

// Stop rejects new work, cancels running jobs and waits for every reserved
// job to finish
func (p *AuditPool) Stop() error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	p.mu.Unlock()

	p.cancel()
	p.pending.Wait()
	close(p.done)
	p.workers.Wait()

	p.logger.Info("AuditPool stopped",
		zap.Int64("processed_count", p.processedCount.Load()),
		zap.Int64("panic_count", p.panicCount.Load()))

	return nil
}

// Name returns the worker name for identification
func (p *AuditPool) Name() string {
	return "AuditPool"
}

// Reserve claims a slot if one is free
func (p *AuditPool) Reserve() (port.Reservation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return nil, false
	}

	select {
	case p.slots <- struct{}{}:
		p.pending.Add(1)
		return &reservation{pool: p}, true
	default:
		return nil, false
	}
}

// InFlight returns the number of reserved slots, running or queued
func (p *AuditPool) InFlight() int {
	return len(p.slots)
}

func (p *AuditPool) work(id int) {
	defer p.workers.Done()

	for {
		select {
		case job := <-p.jobs:
			p.execute(id, job)
		case <-p.done:
			return
		}
	}
}

func (p *AuditPool) execute(id int, job func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.panicCount.Add(1)
			p.logger.Error("Audit job panicked",
				zap.Int("worker_id", id),
				zap.Any("panic", r))
		}
		p.processedCount.Add(1)
		p.release()
	}()

	job(p.ctx)
}

func (p *AuditPool) release() {
	<-p.slots
	p.pending.Done()
}

type reservation struct {
	pool *AuditPool
	used atomic.Bool
}

// Run queues the job. The jobs channel has room for every slot, so this
// never blocks.
func (r *reservation) Run(job func(ctx context.Context)) {
	if !r.used.CompareAndSwap(false, true) {
		return
	}
	r.pool.jobs <- job
}

func (r *reservation) Cancel() {
	if !r.used.CompareAndSwap(false, true) {
		return
	}
	r.pool.release()
}

var _ port.JobPool = (*AuditPool)(nil)
