package db

import (
	"context"
	"fmt"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("event %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (d *DB) ListEvents(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := d.Bun.NewSelect().
		Model(&events).
		Order("date ASC").
		Scan(ctx)
	return events, err
}

// CountRegistrations counts registration rows, the authoritative registered count.
func (d *DB) CountRegistrations(ctx context.Context, eventID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Registration)(nil)).
		Where("event_id = ?", eventID).
		Count(ctx)
}

// Register inserts the registration in one transaction with the capacity check,
// the registered_count cache bump and the participant profile refresh.
func (d *DB) Register(ctx context.Context, reg *models.Registration) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var event models.Event
		q := tx.NewSelect().Model(&event).Where("id = ?", reg.EventID).Limit(1)
		if d.Bun.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if database.IsNoRows(err) {
				return apperr.NotFound("event %s not found", reg.EventID)
			}
			return err
		}

		registered, err := tx.NewSelect().
			Model((*models.Registration)(nil)).
			Where("event_id = ?", reg.EventID).
			Count(ctx)
		if err != nil {
			return err
		}
		if event.Full(registered) {
			return apperr.Conflict("event %s is full", reg.EventID)
		}

		if _, err := tx.NewInsert().Model(reg).Exec(ctx); err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict("%s is already registered for event %s", reg.ParticipantEmail, reg.EventID)
			}
			return fmt.Errorf("insert registration: %w", err)
		}

		if _, err := tx.NewUpdate().
			Model((*models.Event)(nil)).
			Set("registered_count = registered_count + 1").
			Set("updated_at = ?", time.Now()).
			Where("id = ?", reg.EventID).
			Exec(ctx); err != nil {
			return fmt.Errorf("bump registered_count: %w", err)
		}

		return upsertParticipant(ctx, tx, &models.Participant{
			Email:         reg.ParticipantEmail,
			Name:          reg.ParticipantName,
			WalletAddress: reg.WalletAddress,
		})
	})
}

func (d *DB) ListRegistrations(ctx context.Context, eventID string) ([]models.Registration, error) {
	var regs []models.Registration
	err := d.Bun.NewSelect().
		Model(&regs).
		Where("event_id = ?", eventID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	return regs, err
}

func (d *DB) GetParticipant(ctx context.Context, email string) (*models.Participant, error) {
	var p models.Participant
	err := d.Bun.NewSelect().Model(&p).Where("email = ?", email).Limit(1).Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("participant %s not found", email)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) UpsertParticipant(ctx context.Context, p *models.Participant) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return upsertParticipant(ctx, tx, p)
	})
}

func (d *DB) DeleteParticipant(ctx context.Context, email string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Participant)(nil)).
		Where("email = ?", email).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("participant %s not found", email)
	}
	return nil
}

// upsertParticipant is one statement, so registrations for the same new email on different
// events cannot both miss the profile and collide on insert. A blank wallet keeps the stored one.
// p is refreshed with the stored row.
func upsertParticipant(ctx context.Context, tx bun.Tx, p *models.Participant) error {
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	if _, err := tx.NewInsert().
		Model(p).
		On("CONFLICT (email) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("wallet_address = COALESCE(NULLIF(EXCLUDED.wallet_address, ''), ?TableAlias.wallet_address)").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx); err != nil {
		return fmt.Errorf("upsert participant: %w", err)
	}
	return nil
}
