package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/db"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database/dbtest"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func setupTestDB(t *testing.T) (*bun.DB, *db.DB, *models.Event) {
	bunDB := dbtest.Open(t)
	event := &models.Event{
		ID:              uuid.New().String(),
		Title:           "Blockchain Bootcamp",
		Date:            time.Now(),
		MaxParticipants: 2,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	_, err := bunDB.NewInsert().Model(event).Exec(context.Background())
	require.NoError(t, err)
	return bunDB, &db.DB{Bun: bunDB}, event
}

func newCertificate(eventID, email, certID string, createdAt time.Time) *models.Certificate {
	return &models.Certificate{
		ID:               uuid.New().String(),
		EventID:          eventID,
		ParticipantEmail: email,
		CertID:           certID,
		WalletAddress:    models.ZeroWalletAddress,
		MetadataIPFSHash: "mem-meta-" + certID,
		TxHash:           "0xabc" + certID,
		Mode:             "simulation",
		IssuedAt:         createdAt,
		CreatedAt:        createdAt,
	}
}

func TestInsertCertificateUniquePerParticipant(t *testing.T) {
	ctx := context.Background()
	_, store, event := setupTestDB(t)

	require.NoError(t, store.InsertCertificate(ctx, newCertificate(event.ID, "ada@example.com", "1", time.Now())))

	err := store.InsertCertificate(ctx, newCertificate(event.ID, "ada@example.com", "2", time.Now()))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	exists, err := store.CertificateExists(ctx, event.ID, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.CertificateExists(ctx, event.ID, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetByCertIDLoadsEvent(t *testing.T) {
	ctx := context.Background()
	_, store, event := setupTestDB(t)
	require.NoError(t, store.InsertCertificate(ctx, newCertificate(event.ID, "ada@example.com", "7", time.Now())))

	cert, err := store.GetByCertID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", cert.ParticipantEmail)
	require.NotNil(t, cert.Event)
	assert.Equal(t, "Blockchain Bootcamp", cert.Event.Title)

	_, err = store.GetByCertID(ctx, "404")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAttachPDFOnlyOnce(t *testing.T) {
	ctx := context.Background()
	_, store, event := setupTestDB(t)
	require.NoError(t, store.InsertCertificate(ctx, newCertificate(event.ID, "ada@example.com", "9", time.Now())))

	missing, err := store.ListMissingArtifacts(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"9"}, missing)

	attached, err := store.AttachPDF(ctx, "9", "mem-pdf-1")
	require.NoError(t, err)
	assert.True(t, attached)

	attached, err = store.AttachPDF(ctx, "9", "mem-pdf-2")
	require.NoError(t, err)
	assert.False(t, attached)

	cert, err := store.GetByCertID(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, "mem-pdf-1", cert.PDFIPFSHash)

	missing, err = store.ListMissingArtifacts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestListCertificatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	_, store, event := setupTestDB(t)
	base := time.Now().Add(-time.Hour)
	require.NoError(t, store.InsertCertificate(ctx, newCertificate(event.ID, "a@example.com", "1", base)))
	require.NoError(t, store.InsertCertificate(ctx, newCertificate(event.ID, "b@example.com", "2", base.Add(time.Minute))))

	certs, err := store.ListCertificates(ctx)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, "2", certs[0].CertID)
	assert.Equal(t, "1", certs[1].CertID)
	require.NotNil(t, certs[0].Event)
	assert.Equal(t, event.ID, certs[0].Event.ID)
}

func TestGetParticipantAndEvent(t *testing.T) {
	ctx := context.Background()
	bunDB, store, event := setupTestDB(t)

	_, err := bunDB.NewInsert().Model(&models.Participant{
		Email:     "ada@example.com",
		Name:      "Ada",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}).Exec(ctx)
	require.NoError(t, err)

	p, err := store.GetParticipant(ctx, " ADA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)

	_, err = store.GetParticipant(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := store.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, event.Title, got.Title)

	_, err = store.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListAttendanceInRecordedOrder(t *testing.T) {
	ctx := context.Background()
	bunDB, store, event := setupTestDB(t)
	base := time.Now()
	for i, email := range []string{"first@example.com", "second@example.com"} {
		_, err := bunDB.NewInsert().Model(&models.Attendance{
			ID:               uuid.New().String(),
			EventID:          event.ID,
			ParticipantEmail: email,
			AttendedAt:       base.Add(time.Duration(i) * time.Second),
		}).Exec(ctx)
		require.NoError(t, err)
	}

	rows, err := store.ListAttendance(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "first@example.com", rows[0].ParticipantEmail)
	assert.Equal(t, "second@example.com", rows[1].ParticipantEmail)
}
