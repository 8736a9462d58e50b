package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/G1r1shCodes/BimaBot/migrations"
	"github.com/G1r1shCodes/BimaBot/pkg/database"
	"github.com/G1r1shCodes/BimaBot/pkg/utils"
)

var migrateOpts struct {
	driver string
	path   string
	dsn    string
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply session database migrations",
	RunE:  runMigrate,
}

func init() {
	f := migrateCmd.Flags()
	f.StringVar(&migrateOpts.driver, "driver", "sqlite", "Database driver: sqlite or postgres")
	f.StringVar(&migrateOpts.path, "path", "data/bimabot.db", "SQLite database file")
	f.StringVar(&migrateOpts.dsn, "dsn", os.Getenv("DATABASE_DSN"), "Postgres connection string (or set DATABASE_DSN)")

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log, err := utils.NewCLILogger(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var applied int
	switch migrateOpts.driver {
	case "sqlite":
		applied, err = migrateSQLite(ctx, migrateOpts.path, log)
	case "postgres":
		if migrateOpts.dsn == "" {
			return fmt.Errorf("--dsn or DATABASE_DSN is required for postgres")
		}
		applied, err = migratePostgres(ctx, migrateOpts.dsn, log)
	default:
		return fmt.Errorf("unsupported driver %q", migrateOpts.driver)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
	return nil
}

func migrateSQLite(ctx context.Context, path string, log *zap.Logger) (int, error) {
	db, err := database.OpenSQLite(database.Config{Path: path, MaxOpenConns: 1, MaxIdleConns: 1}, log)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return database.NewMigrator(db, database.DialectSQLite, log).Run(ctx, migrations.SQLite())
}

func migratePostgres(ctx context.Context, dsn string, log *zap.Logger) (int, error) {
	pool, err := database.OpenPostgres(ctx, database.PostgresConfig{DSN: dsn, MaxConns: 2}, log)
	if err != nil {
		return 0, err
	}
	defer pool.Close()

	db := database.SQLFromPool(pool)
	defer db.Close()

	return database.NewMigrator(db, database.DialectPostgres, log).Run(ctx, migrations.Postgres())
}
