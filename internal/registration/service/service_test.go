package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/qrtoken"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLedgerStore is a mock implementation of the LedgerStore interface
type MockLedgerStore struct {
	mock.Mock
}

func (m *MockLedgerStore) CreateEvent(ctx context.Context, event *models.Event) error {
	return m.Called(event).Error(0)
}

func (m *MockLedgerStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockLedgerStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	args := m.Called()
	return args.Get(0).([]models.Event), args.Error(1)
}

func (m *MockLedgerStore) CountRegistrations(ctx context.Context, eventID string) (int, error) {
	args := m.Called(eventID)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerStore) Register(ctx context.Context, reg *models.Registration) error {
	return m.Called(reg).Error(0)
}

func (m *MockLedgerStore) ListRegistrations(ctx context.Context, eventID string) ([]models.Registration, error) {
	args := m.Called(eventID)
	return args.Get(0).([]models.Registration), args.Error(1)
}

func (m *MockLedgerStore) UpsertParticipant(ctx context.Context, p *models.Participant) error {
	return m.Called(p).Error(0)
}

func (m *MockLedgerStore) DeleteParticipant(ctx context.Context, email string) error {
	return m.Called(email).Error(0)
}

func newService(t *testing.T, store *MockLedgerStore) (*service.Service, *qrtoken.Signer) {
	signer, err := qrtoken.NewSigner("unit-test-secret")
	require.NoError(t, err)
	return service.NewService(store, signer, 24*time.Hour, 128, logger.Discard()), signer
}

func TestRegisterIssuesSignedToken(t *testing.T) {
	store := new(MockLedgerStore)
	svc, signer := newService(t, store)

	issued := time.Now()
	svc.WithClock(func() time.Time { return issued })

	store.On("Register", mock.MatchedBy(func(r *models.Registration) bool {
		return r.EventID == "evt-1" && r.ParticipantEmail == "ada@example.com" && len(r.QRCode) > 0
	})).Return(nil)

	reg, err := svc.Register(context.Background(), "evt-1", service.RegisterRequest{
		Name:  " Ada ",
		Email: "Ada@Example.com ",
	})
	require.NoError(t, err)

	assert.Equal(t, "Ada", reg.ParticipantName)
	assert.WithinDuration(t, issued.Add(24*time.Hour), reg.TokenExpiry, time.Second)
	assert.False(t, reg.Used)

	claims, err := signer.Verify(reg.QRToken)
	require.NoError(t, err)
	assert.Equal(t, qrtoken.Nonce("evt-1", "ada@example.com", issued), claims.Subject)
	store.AssertExpectations(t)
}

func TestRegisterValidation(t *testing.T) {
	store := new(MockLedgerStore)
	svc, _ := newService(t, store)

	_, err := svc.Register(context.Background(), "evt-1", service.RegisterRequest{Name: "Ada", Email: "not-an-email"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Register(context.Background(), "evt-1", service.RegisterRequest{Name: "", Email: "ada@example.com"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Register(context.Background(), "evt-1", service.RegisterRequest{Name: "Ada", Email: "ada@example.com", WalletAddress: "wallet"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	store.AssertNotCalled(t, "Register", mock.Anything)
}

func TestRegisterPropagatesConflict(t *testing.T) {
	store := new(MockLedgerStore)
	svc, _ := newService(t, store)

	store.On("Register", mock.Anything).Return(apperr.Conflict("already registered"))

	_, err := svc.Register(context.Background(), "evt-1", service.RegisterRequest{Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestGetEventRecomputesCount(t *testing.T) {
	store := new(MockLedgerStore)
	svc, _ := newService(t, store)

	store.On("GetEvent", "evt-1").Return(&models.Event{ID: "evt-1", RegisteredCount: 7}, nil)
	store.On("CountRegistrations", "evt-1").Return(2, nil)

	event, err := svc.GetEvent(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, event.RegisteredCount)
}

func TestCreateEventValidation(t *testing.T) {
	store := new(MockLedgerStore)
	svc, _ := newService(t, store)

	_, err := svc.CreateEvent(context.Background(), service.CreateEventRequest{Title: "Meetup", Date: time.Now()})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	store.On("CreateEvent", mock.AnythingOfType("*models.Event")).Return(nil)
	event, err := svc.CreateEvent(context.Background(), service.CreateEventRequest{Title: "Meetup", Date: time.Now(), MaxParticipants: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, 2, event.MaxParticipants)
}

func TestListRegistrationsMapsAttended(t *testing.T) {
	store := new(MockLedgerStore)
	svc, _ := newService(t, store)

	store.On("GetEvent", "evt-1").Return(&models.Event{ID: "evt-1"}, nil)
	store.On("ListRegistrations", "evt-1").Return([]models.Registration{
		{ParticipantEmail: "a@x.io", ParticipantName: "A", Used: true},
		{ParticipantEmail: "b@x.io", ParticipantName: "B"},
	}, nil)

	participants, err := svc.ListRegistrations(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.True(t, participants[0].Attended)
	assert.False(t, participants[1].Attended)
}

func TestListRegistrationsUnknownEvent(t *testing.T) {
	store := new(MockLedgerStore)
	svc, _ := newService(t, store)

	store.On("GetEvent", "missing").Return(nil, apperr.NotFound("event missing not found"))

	_, err := svc.ListRegistrations(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpsertParticipantNormalizesEmail(t *testing.T) {
	store := new(MockLedgerStore)
	svc, _ := newService(t, store)

	store.On("UpsertParticipant", mock.MatchedBy(func(p *models.Participant) bool {
		return p.Email == "ada@example.com"
	})).Return(nil)

	p, err := svc.UpsertParticipant(context.Background(), service.ParticipantRequest{Email: "ADA@example.com", Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.Email)

	store.On("DeleteParticipant", "ada@example.com").Return(errors.New("db down"))
	assert.Error(t, svc.DeleteParticipant(context.Background(), " Ada@Example.com"))
}
