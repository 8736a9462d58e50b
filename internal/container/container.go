package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/application/dispatcher"
	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/application/service"
	"github.com/G1r1shCodes/BimaBot/internal/application/workflow"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB       *sql.DB
	pgPool      *pgxpool.Pool
	txManager   port.TransactionManager
	sessionRepo port.SessionRepository

	// Infrastructure - Storage and collaborators
	fileStorage   port.FileStorage
	collaborators *CollaboratorBundle

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   workflow.SessionWorkflow
	services   *ServiceBundle

	// Workers
	workers   *worker.WorkerManager
	auditPool *worker.AuditPool

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// ServiceBundle groups all application services.
// Notification is nil when no notifier is configured.
type ServiceBundle struct {
	Coordinator  service.AuditCoordinator
	Reports      service.ReportService
	Notification service.NotificationService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database, migrations and session repository
// 2. Upload storage
// 3. External collaborators (PDF, OpenAI, reports, Lark)
// 4. Event dispatcher and workflow engine
// 5. Audit worker pool
// 6. Application services
// 7. Recovery of audits left processing by a previous run
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database
	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("driver", c.config.Database.Driver))

	// Step 2: Initialize storage
	storage, err := ProvideStorage(&c.config.Storage, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.fileStorage = storage
	c.logger.Info("Storage initialized")

	// Step 3: Initialize external collaborators
	collaborators, err := ProvideCollaborators(c.config, c.fileStorage, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize collaborators: %w", err)
	}
	c.collaborators = collaborators
	c.logger.Info("External collaborators initialized",
		zap.Bool("ocr", c.config.Extraction.OCREnabled),
		zap.Bool("lark", collaborators.Notifier != nil))

	// Step 4: Initialize dispatcher and workflow engine
	if err := c.initDispatcherAndWorkflow(); err != nil {
		return fmt.Errorf("failed to initialize dispatcher and workflow: %w", err)
	}
	c.logger.Info("Dispatcher and workflow engine initialized")

	// Step 5: Initialize and start workers
	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	// Step 6: Initialize application services
	services, err := ProvideServices(&ServiceDeps{
		Config:        c.config,
		DB:            &DatabaseBundle{SqlDB: c.sqlDB, PgPool: c.pgPool, TxManager: c.txManager, SessionRepo: c.sessionRepo},
		Storage:       c.fileStorage,
		Collaborators: c.collaborators,
		Workflow:      c.workflow,
		Pool:          c.auditPool,
		Dispatcher:    c.dispatcher,
		Logger:        c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized")

	// Step 7: Fail audits interrupted by a previous shutdown
	recovered, err := services.Coordinator.RecoverInterrupted(c.ctx)
	if err != nil {
		return fmt.Errorf("failed to recover interrupted audits: %w", err)
	}
	if recovered > 0 {
		c.logger.Warn("Interrupted audits marked failed", zap.Int("count", recovered))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
// Running audits are cancelled and record their failure before the store closes.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Step 1: Stop workers while the store is still open
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	if c.cancel != nil {
		c.cancel()
	}

	// Step 2: Close dispatcher
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 3: Close database
	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}
	if c.pgPool != nil {
		c.pgPool.Close()
		c.logger.Info("PostgreSQL pool closed")
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	switch {
	case c.sqlDB != nil:
		status.set("database", c.sqlDB.PingContext(ctx))
	case c.pgPool != nil:
		status.set("database", c.pgPool.Ping(ctx))
	case c.sessionRepo != nil:
		status.Components["database"] = ComponentHealth{Healthy: true, Message: "in-memory"}
	default:
		status.notInitialized("database")
	}

	// Check workers
	if c.workers != nil && c.auditPool != nil {
		status.Components["workers"] = ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("audits in flight: %d", c.auditPool.InFlight()),
		}
		if !c.workers.IsRunning() {
			status.Overall = false
		}
	} else {
		status.notInitialized("workers")
	}

	// Check dispatcher
	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.notInitialized("dispatcher")
	}

	if c.services != nil {
		status.Components["services"] = ComponentHealth{Healthy: true}
	} else {
		status.notInitialized("services")
	}

	return status
}

func (s *HealthStatus) set(name string, err error) {
	if err != nil {
		s.Components[name] = ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)}
		s.Overall = false
		return
	}
	s.Components[name] = ComponentHealth{Healthy: true}
}

func (s *HealthStatus) notInitialized(name string) {
	s.Components[name] = ComponentHealth{Healthy: false, Message: "not initialized"}
	s.Overall = false
}

// initDatabase opens the store and runs migrations using providers.
func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.sqlDB = bundle.SqlDB
	c.pgPool = bundle.PgPool
	c.txManager = bundle.TxManager
	c.sessionRepo = bundle.SessionRepo
	return nil
}

// initDispatcherAndWorkflow initializes the event dispatcher and workflow engine using providers.
func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideWorkflowEngine(&DatabaseBundle{
		TxManager:   c.txManager,
		SessionRepo: c.sessionRepo,
	}, c.dispatcher)
	if err != nil {
		return err
	}
	c.workflow = engine

	return nil
}

// initWorkers initializes and starts the audit pool.
func (c *Container) initWorkers() error {
	workers, pool, err := ProvideWorkers(&c.config.Pool, c.logger)
	if err != nil {
		return err
	}
	c.workers = workers
	c.auditPool = pool

	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}

	return nil
}

// Getters for accessing container components

// SessionRepository returns the session store.
func (c *Container) SessionRepository() port.SessionRepository {
	return c.sessionRepo
}

// FileStorage returns the upload storage.
func (c *Container) FileStorage() port.FileStorage {
	return c.fileStorage
}

// Collaborators returns the external collaborators.
func (c *Container) Collaborators() *CollaboratorBundle {
	return c.collaborators
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Workflow returns the session workflow engine.
func (c *Container) Workflow() workflow.SessionWorkflow {
	return c.workflow
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Debug(msg, convertToZapFields(keysAndValues...)...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, ok := keysAndValues[i+1].(error); ok {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
