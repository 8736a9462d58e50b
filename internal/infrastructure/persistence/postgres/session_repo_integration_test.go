//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/internal/application/port"
	"github.com/G1r1shCodes/BimaBot/internal/domain/entity"
	"github.com/G1r1shCodes/BimaBot/internal/infrastructure/persistence/postgres"
	"github.com/G1r1shCodes/BimaBot/migrations"
	"github.com/G1r1shCodes/BimaBot/pkg/database"
)

const (
	testPort     = 15433
	testDB       = "bimabot"
	testUser     = "postgres"
	testPassword = "postgres"
)

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	dsn := fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30*time.Second),
	)
	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := run(m, dsn)

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}
	os.Exit(code)
}

func run(m *testing.M, dsn string) int {
	ctx := context.Background()
	var err error
	pool, err = database.OpenPostgres(ctx, database.PostgresConfig{DSN: dsn}, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		return 1
	}
	defer pool.Close()

	sqlDB := database.SQLFromPool(pool)
	defer sqlDB.Close()
	if _, err := database.NewMigrator(sqlDB, database.DialectPostgres, zap.NewNop()).Run(ctx, migrations.Postgres()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		return 1
	}

	return m.Run()
}

func truncate(t *testing.T) {
	t.Helper()
	_, err := pool.Exec(context.Background(), "TRUNCATE audit_sessions")
	require.NoError(t, err)
}

func TestSessionRepository_Postgres(t *testing.T) {
	truncate(t)
	ctx := context.Background()
	repo := postgres.NewSessionRepository(pool, zap.NewNop())
	tx := postgres.NewTxManager(pool, zap.NewNop())
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, repo.Create(ctx, &entity.AuditSession{
		ID:        "AUD-0000PG01",
		Status:    entity.StatusCreated,
		Progress:  entity.Progress{Total: 4},
		CreatedAt: now,
		UpdatedAt: now,
	}))

	missing, err := repo.GetByID(ctx, "AUD-MISSING0")
	require.NoError(t, err)
	assert.Nil(t, missing)

	ref := &entity.DocumentRef{Path: "AUD-0000PG01/policy.pdf", Filename: "policy.pdf", Size: 7}
	require.NoError(t, repo.AttachDocument(ctx, "AUD-0000PG01", entity.DocumentPolicy, ref))
	require.NoError(t, repo.UpdateStatus(ctx, "AUD-0000PG01", entity.StatusCreated, entity.StatusProcessing))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "AUD-0000PG01", entity.StatusCreated, entity.StatusProcessing), entity.ErrStatusConflict)

	boom := errors.New("boom")
	err = tx.WithTransaction(ctx, func(txCtx context.Context) error {
		require.NoError(t, repo.UpdateStatus(txCtx, "AUD-0000PG01", entity.StatusProcessing, entity.StatusCompleted))
		require.NoError(t, repo.SaveResult(txCtx, "AUD-0000PG01", &port.AuditResult{
			Bill:        &entity.Bill{LineItems: []entity.LineItem{{ID: "LI-001", Amount: 10}}},
			Policy:      &entity.PolicyTerms{PolicyID: "POL-1"},
			Summary:     entity.FinancialSummary{TotalBilled: 10, FullyCoveredAmount: 10},
			CompletedAt: now,
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := repo.GetByID(ctx, "AUD-0000PG01")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusProcessing, got.Status)
	assert.Nil(t, got.Bill)
	assert.Equal(t, "policy.pdf", got.PolicyDocument.Filename)

	require.NoError(t, tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := repo.UpdateStatus(txCtx, "AUD-0000PG01", entity.StatusProcessing, entity.StatusFailed); err != nil {
			return err
		}
		return repo.SaveFailure(txCtx, "AUD-0000PG01", entity.Failure{Kind: entity.FailureNoData, Reason: "bill document: no data found in document"})
	}))

	got, err = repo.GetByID(ctx, "AUD-0000PG01")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, got.Status)
	assert.Equal(t, entity.FailureNoData, got.Failure.Kind)
	assert.Empty(t, got.Flags)

	list, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
