package db

import (
	"context"
	"fmt"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type DB struct {
	Bun *bun.DB
}

// RecordScan consumes a QR token in one transaction. The attendance insert is a no-op on
// an existing (event, participant) pair and used only ever moves from false to true, so a
// retried or concurrent scan converges on one attendance row.
func (d *DB) RecordScan(ctx context.Context, qrToken string, now time.Time) (*models.ScanResult, error) {
	var result *models.ScanResult

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var reg models.Registration
		q := tx.NewSelect().Model(&reg).Where("qr_token = ?", qrToken).Limit(1)
		if d.Bun.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if database.IsNoRows(err) {
				return apperr.NotFound("no registration matches this QR token")
			}
			return fmt.Errorf("lookup registration: %w", err)
		}

		result = &models.ScanResult{
			EventID:          reg.EventID,
			ParticipantEmail: reg.ParticipantEmail,
			ParticipantName:  reg.ParticipantName,
		}

		if reg.Expired(now) {
			return apperr.Expired("QR token expired at %s", reg.TokenExpiry.UTC().Format(time.RFC3339))
		}
		if reg.Used {
			result.Status = models.ScanAlreadyCheckedIn
			if reg.UsedAt != nil {
				result.AttendedAt = *reg.UsedAt
			}
			return nil
		}

		// v7 ids sort by creation time, so rows sharing attended_at keep scan order
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("attendance id: %w", err)
		}
		att := &models.Attendance{
			ID:               id.String(),
			EventID:          reg.EventID,
			ParticipantEmail: reg.ParticipantEmail,
			AttendedAt:       now,
		}
		if _, err := tx.NewInsert().
			Model(att).
			On("CONFLICT (event_id, participant_email) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("insert attendance: %w", err)
		}

		res, err := tx.NewUpdate().
			Model((*models.Registration)(nil)).
			Set("used = ?", true).
			Set("used_at = ?", now).
			Where("id = ?", reg.ID).
			Where("used = ?", false).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("mark registration used: %w", err)
		}

		if n, _ := res.RowsAffected(); n == 0 {
			result.Status = models.ScanAlreadyCheckedIn
		} else {
			result.Status = models.ScanCheckedIn
		}
		result.AttendedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListAttendance returns the attendance of an event in the order it was recorded.
func (d *DB) ListAttendance(ctx context.Context, eventID string) ([]models.Attendance, error) {
	var rows []models.Attendance
	err := d.Bun.NewSelect().
		Model(&rows).
		Where("event_id = ?", eventID).
		Order("attended_at ASC", "id ASC").
		Scan(ctx)
	return rows, err
}

func (d *DB) EventExists(ctx context.Context, eventID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("id = ?", eventID).
		Exists(ctx)
}
