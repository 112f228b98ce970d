package sqlite

import (
	"context"
	"fmt"

	"github.com/lovelanguages/server/internal/repository"
)

var _ repository.UsageRepository = (*DB)(nil)

func (db *DB) IncrementUsage(ctx context.Context, userID, usageType, day string, amount int) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO usage_tracking (user_id, usage_type, usage_date, count)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, usage_type, usage_date)
		 DO UPDATE SET count = count + excluded.count`,
		userID, usageType, day, amount,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing usage: %w", err)
	}
	return nil
}

// SumUsageRange totals counters where fromDate <= usage_date < toDate.
// YYYY-MM-DD strings compare correctly as text.
func (db *DB) SumUsageRange(ctx context.Context, userID, usageType, fromDate, toDate string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count), 0)
		 FROM usage_tracking
		 WHERE user_id = ? AND usage_type = ? AND usage_date >= ? AND usage_date < ?`,
		userID, usageType, fromDate, toDate,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: summing usage: %w", err)
	}
	return n, nil
}
