package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// pgx registers itself as the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/scheduled-mail-api/internal/config"
)

// Open creates a connection pool for cfg. The pool connects lazily: a failed
// ping is logged and the handle is still returned, so the service can start
// while the database is down and report it through readiness checks.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		logger.Warn("database not reachable at startup, continuing",
			slog.String("error", err.Error()))
		return db, nil
	}

	logger.Info("database connection established")
	return db, nil
}
