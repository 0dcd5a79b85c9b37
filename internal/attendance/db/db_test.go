package db_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/attendance/db"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database/dbtest"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type fixture struct {
	bun     *bun.DB
	store   *db.DB
	eventID string
}

func setupTestDB(t *testing.T) *fixture {
	bunDB := dbtest.Open(t)
	event := &models.Event{
		ID:              uuid.New().String(),
		Title:           "Hack Night",
		Date:            time.Now(),
		MaxParticipants: 10,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	_, err := bunDB.NewInsert().Model(event).Exec(context.Background())
	require.NoError(t, err)
	return &fixture{bun: bunDB, store: &db.DB{Bun: bunDB}, eventID: event.ID}
}

func (f *fixture) register(t *testing.T, email, token string, expiry time.Time) {
	reg := &models.Registration{
		ID:               uuid.New().String(),
		EventID:          f.eventID,
		ParticipantEmail: email,
		ParticipantName:  "Name " + email,
		QRToken:          token,
		TokenExpiry:      expiry,
		CreatedAt:        time.Now(),
	}
	_, err := f.bun.NewInsert().Model(reg).Exec(context.Background())
	require.NoError(t, err)
}

func (f *fixture) registration(t *testing.T, token string) models.Registration {
	var reg models.Registration
	require.NoError(t, f.bun.NewSelect().Model(&reg).Where("qr_token = ?", token).Scan(context.Background()))
	return reg
}

func (f *fixture) attendanceCount(t *testing.T) int {
	n, err := f.bun.NewSelect().Model((*models.Attendance)(nil)).Where("event_id = ?", f.eventID).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestRecordScanTwiceIsIdempotent(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	f.register(t, "a@x.io", "tok-a", time.Now().Add(time.Hour))

	first, err := f.store.RecordScan(ctx, "tok-a", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.ScanCheckedIn, first.Status)

	second, err := f.store.RecordScan(ctx, "tok-a", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.ScanAlreadyCheckedIn, second.Status)

	assert.Equal(t, 1, f.attendanceCount(t))
	assert.True(t, f.registration(t, "tok-a").Used)
}

func TestRecordScanExpiredLeavesStateUntouched(t *testing.T) {
	f := setupTestDB(t)
	f.register(t, "a@x.io", "tok-a", time.Now().Add(-time.Second))

	_, err := f.store.RecordScan(context.Background(), "tok-a", time.Now())
	assert.ErrorIs(t, err, apperr.ErrExpired)

	assert.Equal(t, 0, f.attendanceCount(t))
	assert.False(t, f.registration(t, "tok-a").Used)
}

func TestRecordScanUnknownToken(t *testing.T) {
	f := setupTestDB(t)

	_, err := f.store.RecordScan(context.Background(), "forged", time.Now())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRecordScanRepairsHalfWrittenState(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	f.register(t, "a@x.io", "tok-a", time.Now().Add(time.Hour))

	// attendance exists but used was never flipped
	_, err := f.bun.NewInsert().Model(&models.Attendance{
		ID: uuid.New().String(), EventID: f.eventID, ParticipantEmail: "a@x.io", AttendedAt: time.Now(),
	}).Exec(ctx)
	require.NoError(t, err)

	res, err := f.store.RecordScan(ctx, "tok-a", time.Now())
	require.NoError(t, err)
	assert.Equal(t, models.ScanCheckedIn, res.Status)
	assert.Equal(t, 1, f.attendanceCount(t))
	assert.True(t, f.registration(t, "tok-a").Used)
}

func TestRecordScanConcurrent(t *testing.T) {
	f := setupTestDB(t)
	f.register(t, "a@x.io", "tok-a", time.Now().Add(time.Hour))

	var wg sync.WaitGroup
	statuses := make(chan models.ScanStatus, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.store.RecordScan(context.Background(), "tok-a", time.Now())
			if assert.NoError(t, err) {
				statuses <- res.Status
			}
		}()
	}
	wg.Wait()
	close(statuses)

	checkedIn := 0
	for s := range statuses {
		if s == models.ScanCheckedIn {
			checkedIn++
		}
	}
	assert.Equal(t, 1, checkedIn)
	assert.Equal(t, 1, f.attendanceCount(t))
}

func TestListAttendanceOrder(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	base := time.Now()
	f.register(t, "b@x.io", "tok-b", base.Add(time.Hour))
	f.register(t, "a@x.io", "tok-a", base.Add(time.Hour))

	_, err := f.store.RecordScan(ctx, "tok-b", base)
	require.NoError(t, err)
	_, err = f.store.RecordScan(ctx, "tok-a", base.Add(time.Minute))
	require.NoError(t, err)

	rows, err := f.store.ListAttendance(ctx, f.eventID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b@x.io", rows[0].ParticipantEmail)
	assert.Equal(t, "a@x.io", rows[1].ParticipantEmail)

	exists, err := f.store.EventExists(ctx, f.eventID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestListAttendanceKeepsScanOrderOnEqualTimestamps(t *testing.T) {
	f := setupTestDB(t)
	ctx := context.Background()
	at := time.Now()

	emails := []string{"b@x.io", "a@x.io", "ghost@x.io", "c@x.io"}
	for i, email := range emails {
		token := "tok-tie-" + string(rune('0'+i))
		f.register(t, email, token, at.Add(time.Hour))
		_, err := f.store.RecordScan(ctx, token, at)
		require.NoError(t, err)
	}

	rows, err := f.store.ListAttendance(ctx, f.eventID)
	require.NoError(t, err)
	require.Len(t, rows, len(emails))
	for i, email := range emails {
		assert.Equal(t, email, rows[i].ParticipantEmail)
	}
}
