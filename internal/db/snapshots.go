package db

import (
	"context"
	"fmt"
	"time"

	"github.com/j-veylop/cockpit-tui/internal/models"
)

// InsertQuotaSnapshots records snapshots in one transaction.
func (db *DB) InsertQuotaSnapshots(ctx context.Context, snapshots []models.QuotaSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quota_snapshots (platform, account_id, metric_key, percentage, timestamp)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, s := range snapshots {
		ts := s.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, string(s.Platform), s.AccountID, s.MetricKey, s.Percentage, ts.Unix()); err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
	}

	return tx.Commit()
}

// GetQuotaHistory returns snapshots of one account metric since a point in
// time, oldest first.
func (db *DB) GetQuotaHistory(ctx context.Context, platform models.Platform, accountID, metricKey string, since time.Time) ([]models.QuotaSnapshot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, percentage, timestamp FROM quota_snapshots
		WHERE platform = ? AND account_id = ? AND metric_key = ? AND timestamp >= ?
		ORDER BY timestamp ASC, id ASC`,
		string(platform), accountID, metricKey, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query quota history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.QuotaSnapshot
	for rows.Next() {
		s := models.QuotaSnapshot{Platform: platform, AccountID: accountID, MetricKey: metricKey}
		var ts int64
		if err := rows.Scan(&s.ID, &s.Percentage, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan quota snapshot: %w", err)
		}
		s.Timestamp = time.Unix(ts, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteAccountSnapshots drops the history of removed accounts.
func (db *DB) DeleteAccountSnapshots(ctx context.Context, platform models.Platform, accountIDs ...string) error {
	for _, id := range accountIDs {
		if _, err := db.ExecContext(ctx,
			"DELETE FROM quota_snapshots WHERE platform = ? AND account_id = ?", string(platform), id); err != nil {
			return fmt.Errorf("failed to delete snapshots of %s: %w", id, err)
		}
	}
	return nil
}

// CleanupOldSnapshots removes snapshots older than the cutoff and returns the count.
func (db *DB) CleanupOldSnapshots(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM quota_snapshots WHERE timestamp < ?", olderThan.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup snapshots: %w", err)
	}
	return res.RowsAffected()
}
