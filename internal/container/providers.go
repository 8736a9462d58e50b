package container

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/application/dispatcher"
	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/application/service"
	"github.com/G1r1shCodes/BimaBot/internal/application/workflow"
	"github.com/G1r1shCodes/BimaBot/internal/domain/rules"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/extraction/pdf"
	infraLark "github.com/G1r1shCodes/BimaBot/internal/infrastructure/external/lark"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/external/openai"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/persistence/memory"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/persistence/postgres"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/persistence/repository"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/persistence/sqlite"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/report"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/storage"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/worker"
	"github.com/G1r1shCodes/BimaBot/migrations"
	"github.com/G1r1shCodes/BimaBot/pkg/database"
)

// DatabaseBundle holds database-related components.
// At most one of SqlDB and PgPool is set; the memory driver sets neither.
type DatabaseBundle struct {
	SqlDB       *sql.DB
	PgPool      *pgxpool.Pool
	TxManager   port.TransactionManager
	SessionRepo port.SessionRepository
}

// CollaboratorBundle holds the external collaborators of the audit pipeline.
// Notifier is nil when Lark notifications are disabled.
type CollaboratorBundle struct {
	Extractor  port.DocumentExtractor
	Structurer port.FieldStructurer
	Exporter   port.ReportExporter
	Renderer   port.LetterRenderer
	Notifier   port.SessionNotifier
}

// ProvideDatabase opens the configured store, applies pending migrations and
// returns the session repository with its transaction manager.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	switch cfg.Driver {
	case "memory":
		logger.Warn("Using in-memory session store, sessions are lost on restart")
		repo := memory.NewSessionRepository()
		return &DatabaseBundle{TxManager: repo, SessionRepo: repo}, nil
	case "postgres":
		return providePostgres(ctx, cfg, logger)
	default:
		return provideSQLite(ctx, cfg, logger)
	}
}

func provideSQLite(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	sqlDB, err := database.OpenSQLite(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(sqlDB, database.DialectSQLite, logger)
	if _, err := migrator.Run(ctx, migrations.SQLite()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:       sqlDB,
		TxManager:   sqlite.NewDB(sqlDB, logger),
		SessionRepo: repository.NewSessionRepository(sqlDB, logger),
	}, nil
}

func providePostgres(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	pool, err := database.OpenPostgres(ctx, database.PostgresConfig{
		DSN:      cfg.DSN,
		MaxConns: int32(cfg.MaxOpenConns),
	}, logger)
	if err != nil {
		return nil, err
	}

	sqlDB := database.SQLFromPool(pool)
	migrator := database.NewMigrator(sqlDB, database.DialectPostgres, logger)
	_, err = migrator.Run(ctx, migrations.Postgres())
	_ = sqlDB.Close()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		PgPool:      pool,
		TxManager:   postgres.NewTxManager(pool, logger),
		SessionRepo: postgres.NewSessionRepository(pool, logger),
	}, nil
}

// ProvideStorage creates the upload store, creating its root if needed.
func ProvideStorage(cfg *StorageConfig, logger *zap.Logger) (port.FileStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return storage.NewLocalFileStorage(cfg.UploadDir, logger), nil
}

// ProvideCollaborators creates the extractor, structurer, report renderers
// and, when enabled, the Lark notifier.
func ProvideCollaborators(cfg *Config, fileStorage port.FileStorage, logger *zap.Logger) (*CollaboratorBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if fileStorage == nil {
		return nil, fmt.Errorf("file storage is required")
	}

	// Load prompts from YAML file
	prompts, err := openai.LoadPrompts(cfg.OpenAI.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	structurer := openai.NewStructurer(openai.Config{
		APIKey:        cfg.OpenAI.APIKey,
		BaseURL:       cfg.OpenAI.BaseURL,
		Model:         cfg.OpenAI.Model,
		VisionModel:   cfg.OpenAI.VisionModel,
		MaxInputChars: cfg.OpenAI.MaxInputChars,
	}, prompts, logger)

	var opts []pdf.Option
	if cfg.Extraction.OCREnabled {
		opts = append(opts, pdf.WithOCR(structurer))
	}
	extractor := pdf.NewExtractor(fileStorage, pdf.Config{
		MaxPages:    cfg.Extraction.MaxPages,
		OCRMaxPages: cfg.Extraction.OCRMaxPages,
	}, logger, opts...)

	bundle := &CollaboratorBundle{
		Extractor:  extractor,
		Structurer: structurer,
		Exporter:   report.NewWorkbookExporter(logger),
		Renderer:   report.NewLetterRenderer(cfg.Report.FontPaths, logger),
	}

	if cfg.Lark.Enabled {
		bundle.Notifier = infraLark.NewNotifier(infraLark.Config{
			AppID:         cfg.Lark.AppID,
			AppSecret:     cfg.Lark.AppSecret,
			ReceiveIDType: cfg.Lark.ReceiveIDType,
			ReceiveID:     cfg.Lark.ReceiveID,
		}, logger)
	}

	return bundle, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// Create dispatcher logger adapter
	dispatcherLogger := &dispatcherLoggerAdapter{logger: logger}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(dispatcherLogger),
	), nil
}

// ProvideWorkflowEngine creates the session workflow engine.
func ProvideWorkflowEngine(db *DatabaseBundle, disp dispatcher.Dispatcher) (workflow.SessionWorkflow, error) {
	if db == nil || db.SessionRepo == nil || db.TxManager == nil {
		return nil, fmt.Errorf("database bundle is required")
	}
	if disp == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	return workflow.NewEngine(
		db.SessionRepo,
		db.TxManager,
		workflow.WithDispatcher(disp),
	), nil
}

// ProvideWorkers creates the audit pool and registers it with a worker
// manager. Workers are registered but not started.
func ProvideWorkers(cfg *PoolConfig, logger *zap.Logger) (*worker.WorkerManager, *worker.AuditPool, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("pool config is required")
	}
	if logger == nil {
		return nil, nil, fmt.Errorf("logger is required")
	}

	pool := worker.NewAuditPool(worker.AuditPoolConfig{
		MaxConcurrent: cfg.MaxConcurrent,
		QueueSize:     cfg.QueueSize,
	}, logger)

	manager := worker.NewWorkerManager(logger)
	manager.Register(pool)

	return manager, pool, nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Config        *Config
	DB            *DatabaseBundle
	Storage       port.FileStorage
	Collaborators *CollaboratorBundle
	Workflow      workflow.SessionWorkflow
	Pool          port.JobPool
	Dispatcher    dispatcher.Dispatcher
	Logger        *zap.Logger
}

// ProvideServices creates all application services and subscribes the
// notification service when a notifier is configured.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.DB == nil || deps.Collaborators == nil {
		return nil, fmt.Errorf("database and collaborators are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	// Create logger adapter for services
	serviceLogger := &zapLoggerAdapter{logger: deps.Logger}

	retry := deps.Config.Retry
	coordinator := service.NewAuditCoordinator(service.CoordinatorDeps{
		SessionRepo: deps.DB.SessionRepo,
		Workflow:    deps.Workflow,
		Pool:        deps.Pool,
		Storage:     deps.Storage,
		Extractor:   deps.Collaborators.Extractor,
		Structurer:  deps.Collaborators.Structurer,
		Rules:       rules.New(rules.WithTotalTolerance(deps.Config.TotalTolerance)),
		Dispatcher:  deps.Dispatcher,
	}, service.CoordinatorConfig{
		MaxUploadBytes: deps.Config.Storage.MaxUploadBytes,
		Retry: service.RetryPolicy{
			MaxAttempts:    retry.MaxAttempts,
			InitialBackoff: retry.InitialBackoff,
			MaxBackoff:     retry.MaxBackoff,
			AttemptTimeout: retry.AttemptTimeout,
		},
	}, serviceLogger)

	bundle := &ServiceBundle{
		Coordinator: coordinator,
		Reports: service.NewReportService(
			coordinator,
			deps.Collaborators.Exporter,
			deps.Collaborators.Renderer,
			serviceLogger,
		),
	}

	if deps.Collaborators.Notifier != nil {
		bundle.Notification = service.NewNotificationService(
			deps.DB.SessionRepo,
			deps.Collaborators.Notifier,
			serviceLogger,
		)
		bundle.Notification.Register(deps.Dispatcher)
	}

	return bundle, nil
}
