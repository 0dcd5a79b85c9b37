package db

import (
	"context"
	"fmt"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().Model(&event).Where("id = ?", id).Limit(1).Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("event %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListAttendance returns the attendees of an event in the order they were recorded,
// which is the order a mint run processes them in.
func (d *DB) ListAttendance(ctx context.Context, eventID string) ([]models.Attendance, error) {
	var rows []models.Attendance
	err := d.Bun.NewSelect().
		Model(&rows).
		Where("event_id = ?", eventID).
		Order("attended_at ASC", "id ASC").
		Scan(ctx)
	return rows, err
}

func (d *DB) CertificateExists(ctx context.Context, eventID, email string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Certificate)(nil)).
		Where("event_id = ?", eventID).
		Where("participant_email = ?", email).
		Exists(ctx)
}

func (d *DB) GetParticipant(ctx context.Context, email string) (*models.Participant, error) {
	var p models.Participant
	err := d.Bun.NewSelect().Model(&p).Where("email = ?", models.NormalizeEmail(email)).Limit(1).Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("participant %s not found", email)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertCertificate reports a second certificate for the same (event, participant) as a Conflict.
func (d *DB) InsertCertificate(ctx context.Context, cert *models.Certificate) error {
	if _, err := d.Bun.NewInsert().Model(cert).Exec(ctx); err != nil {
		if database.IsUniqueViolation(err) {
			return apperr.Wrap(apperr.KindConflict,
				fmt.Sprintf("certificate for %s at event %s already exists", cert.ParticipantEmail, cert.EventID), err)
		}
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

// GetByCertID loads a certificate with its event.
func (d *DB) GetByCertID(ctx context.Context, certID string) (*models.Certificate, error) {
	var cert models.Certificate
	err := d.Bun.NewSelect().
		Model(&cert).
		Relation("Event").
		Where("certificate.cert_id = ?", certID).
		Limit(1).
		Scan(ctx)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("certificate %s not found", certID)
	}
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// AttachPDF records the artifact hash once. It reports false when a hash was already set.
func (d *DB) AttachPDF(ctx context.Context, certID, hash string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Certificate)(nil)).
		Set("pdf_ipfs_hash = ?", hash).
		Where("cert_id = ?", certID).
		Where("(pdf_ipfs_hash IS NULL OR pdf_ipfs_hash = '')").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("attach pdf: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListCertificates returns every certificate with its event, newest first.
func (d *DB) ListCertificates(ctx context.Context) ([]models.Certificate, error) {
	var certs []models.Certificate
	err := d.Bun.NewSelect().
		Model(&certs).
		Relation("Event").
		Order("certificate.created_at DESC", "certificate.id DESC").
		Scan(ctx)
	return certs, err
}

// ListMissingArtifacts returns certificate ids that still have no pinned PDF, oldest first.
func (d *DB) ListMissingArtifacts(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	err := d.Bun.NewSelect().
		Model((*models.Certificate)(nil)).
		Column("cert_id").
		Where("pdf_ipfs_hash IS NULL OR pdf_ipfs_hash = ''").
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx, &ids)
	return ids, err
}
