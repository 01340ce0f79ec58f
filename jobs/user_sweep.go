package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DeletedRetention is how long soft-deleted accounts are kept before the
// sweep removes them for good.
const DeletedRetention = 30 * 24 * time.Hour

// SweepDeletedUsers purges directory records that have carried the deleted
// status past the retention window. Credentials are removed at soft-delete
// time, so only directory rows remain to clean up.
func SweepDeletedUsers(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if pool == nil {
		return nil
	}
	cutoff := time.Now().Add(-DeletedRetention)
	tag, err := pool.Exec(ctx,
		`DELETE FROM users WHERE status = 'deleted' AND updated_at < $1`, cutoff)
	if err != nil {
		if logger != nil {
			logger.Error("sweep deleted users", slog.Any("error", err))
		}
		return err
	}
	if logger != nil {
		logger.Info("swept deleted users",
			slog.Int64("removed", tag.RowsAffected()),
			slog.String("job", "users_sweep"))
	}
	return nil
}
