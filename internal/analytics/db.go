package analytics

import (
	"context"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// DB runs the aggregate queries behind event statistics
type DB struct {
	bun *bun.DB
}

func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

func (db *DB) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := db.bun.NewSelect().Model(&event).Where("id = ?", eventID).Limit(1).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (db *DB) CountRegistrations(ctx context.Context, eventID string) (int, error) {
	return db.bun.NewSelect().Model((*models.Registration)(nil)).Where("event_id = ?", eventID).Count(ctx)
}

func (db *DB) CountAttendance(ctx context.Context, eventID string) (int, error) {
	return db.bun.NewSelect().Model((*models.Attendance)(nil)).Where("event_id = ?", eventID).Count(ctx)
}

func (db *DB) CountCertificates(ctx context.Context, eventID string) (int, error) {
	return db.bun.NewSelect().Model((*models.Certificate)(nil)).Where("event_id = ?", eventID).Count(ctx)
}

// CountUncertifiedAttendees counts attendance rows without a matching certificate.
func (db *DB) CountUncertifiedAttendees(ctx context.Context, eventID string) (int, error) {
	var count int
	err := db.bun.NewRaw(`
		SELECT COUNT(*)
		FROM attendance a
		WHERE a.event_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM certificates c
			WHERE c.event_id = a.event_id AND c.participant_email = a.participant_email
		  )`, eventID).
		Scan(ctx, &count)
	return count, err
}

func (db *DB) CountMissingArtifacts(ctx context.Context, eventID string) (int, error) {
	return db.bun.NewSelect().
		Model((*models.Certificate)(nil)).
		Where("event_id = ?", eventID).
		Where("(pdf_ipfs_hash IS NULL OR pdf_ipfs_hash = '')").
		Count(ctx)
}

// utcDay buckets attended_at by UTC day. Postgres would otherwise use the session time zone;
// sqlite stores UTC already.
func (db *DB) utcDay() string {
	if db.bun.Dialect().Name() == dialect.PG {
		return "DATE(attended_at AT TIME ZONE 'UTC')"
	}
	return "DATE(attended_at)"
}

// GetDailyAttendance groups check-ins of an event by UTC day.
func (db *DB) GetDailyAttendance(ctx context.Context, eventID string) ([]models.DailyAttendance, error) {
	daily := []models.DailyAttendance{}
	err := db.bun.NewRaw(`
		SELECT
			CAST(? AS TEXT) AS day,
			COUNT(*) AS count
		FROM
			attendance
		WHERE
			event_id = ?
		GROUP BY
			?
		ORDER BY
			day ASC`, bun.Safe(db.utcDay()), eventID, bun.Safe(db.utcDay())).
		Scan(ctx, &daily)
	return daily, err
}

// ExistingEventIDs returns which of ids belong to an event.
func (db *DB) ExistingEventIDs(ctx context.Context, ids []string) ([]string, error) {
	var found []string
	err := db.bun.NewSelect().
		Model((*models.Event)(nil)).
		Column("id").
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx, &found)
	return found, err
}
