package loader

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/geopop/ingest/pkg/config"
	"github.com/geopop/ingest/pkg/geoperrors"
	"github.com/geopop/ingest/pkg/retry"
)

// Connect establishes the single database connection a loader run uses.
// Each attempt is bounded by cfg.ConnectTimeout; transient failures are
// retried at a fixed interval until cfg.ConnectAttempts is exhausted, after
// which the terminal error propagates.
func Connect(ctx context.Context, cfg *config.Config, log *zap.Logger) (*pgx.Conn, error) {
	policy := retry.Policy{MaxAttempts: cfg.ConnectAttempts, Backoff: cfg.ConnectBackoff}

	return retry.Do(ctx, policy, log, "database connect", func(ctx context.Context) (*pgx.Conn, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()

		conn, err := pgx.Connect(attemptCtx, cfg.ConnString())
		if err != nil {
			return nil, geoperrors.Wrap(err, geoperrors.ErrorTypeConnection, "database not ready")
		}
		return conn, nil
	})
}

// pgxCopyExecutor carries a COPY text payload over the bulk-copy protocol
// inside an explicit transaction.
type pgxCopyExecutor struct {
	conn *pgx.Conn
}

func (e *pgxCopyExecutor) CopyFrom(ctx context.Context, copySQL string, payload io.Reader) (int64, error) {
	tx, err := e.conn.Begin(ctx)
	if err != nil {
		return 0, geoperrors.Wrap(err, geoperrors.ErrorTypeConnection, "failed to begin transaction")
	}

	tag, err := e.conn.PgConn().CopyFrom(ctx, payload, copySQL)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, geoperrors.Wrap(err, geoperrors.ErrorTypeQuery, "copy failed")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, geoperrors.Wrap(err, geoperrors.ErrorTypeQuery, "commit failed")
	}
	return tag.RowsAffected(), nil
}

// truncate empties a target table so reruns start from a clean slate.
func truncate(ctx context.Context, conn *pgx.Conn, stmt string) error {
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return geoperrors.Wrap(err, geoperrors.ErrorTypeQuery, "truncate failed").
			WithDetail("statement", stmt)
	}
	return nil
}

// vacuumAnalyze refreshes planner statistics after a bulk load. VACUUM
// cannot run inside a transaction, so each statement executes on its own.
func vacuumAnalyze(ctx context.Context, conn *pgx.Conn, log *zap.Logger, tables ...string) error {
	for _, table := range tables {
		log.Info("running VACUUM ANALYZE", zap.String("table", table))
		if _, err := conn.Exec(ctx, "VACUUM ANALYZE "+table); err != nil {
			return geoperrors.Wrap(err, geoperrors.ErrorTypeQuery, "vacuum analyze failed").
				WithDetail("table", table)
		}
	}
	return nil
}
