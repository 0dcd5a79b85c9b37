package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/qrtoken"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type LedgerStore interface {
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	CountRegistrations(ctx context.Context, eventID string) (int, error)
	Register(ctx context.Context, reg *models.Registration) error
	ListRegistrations(ctx context.Context, eventID string) ([]models.Registration, error)
	UpsertParticipant(ctx context.Context, p *models.Participant) error
	DeleteParticipant(ctx context.Context, email string) error
}

type CreateEventRequest struct {
	Title           string    `json:"title" validate:"required"`
	Description     string    `json:"description"`
	Date            time.Time `json:"date" validate:"required"`
	Venue           string    `json:"venue"`
	Category        string    `json:"category"`
	MaxParticipants int       `json:"maxParticipants" validate:"gte=1"`
}

type RegisterRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	WalletAddress string `json:"walletAddress" validate:"omitempty,eth_addr"`
}

type ParticipantRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Name          string `json:"name" validate:"required"`
	WalletAddress string `json:"walletAddress" validate:"omitempty,eth_addr"`
}

type Service struct {
	DB       LedgerStore
	Tokens   *qrtoken.Signer
	TokenTTL time.Duration
	QRSize   int
	Logger   *logger.Logger

	validate *validator.Validate
	now      func() time.Time
}

func NewService(db LedgerStore, tokens *qrtoken.Signer, tokenTTL time.Duration, qrSize int, log *logger.Logger) *Service {
	if qrSize <= 0 {
		qrSize = 256
	}
	return &Service{
		DB:       db,
		Tokens:   tokens,
		TokenTTL: tokenTTL,
		QRSize:   qrSize,
		Logger:   log,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithClock replaces the clock used for issuance timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) check(req interface{}) error {
	if err := s.validate.Struct(req); err != nil {
		return apperr.Wrap(apperr.KindValidation, "invalid request", err)
	}
	return nil
}

func (s *Service) CreateEvent(ctx context.Context, req CreateEventRequest) (*models.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.check(req); err != nil {
		return nil, err
	}

	now := s.now()
	event := &models.Event{
		ID:              uuid.New().String(),
		Title:           req.Title,
		Description:     req.Description,
		Date:            req.Date,
		Venue:           req.Venue,
		Category:        req.Category,
		MaxParticipants: req.MaxParticipants,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.Logger.Info("EVENT", fmt.Sprintf("Created event %s (%s), capacity %d", event.ID, event.Title, event.MaxParticipants))
	return event, nil
}

// GetEvent returns the event with registeredCount recomputed from the registration rows.
func (s *Service) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.DB.CountRegistrations(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count registrations: %w", err)
	}
	event.RegisteredCount = count
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.DB.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	for i := range events {
		count, err := s.DB.CountRegistrations(ctx, events[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count registrations: %w", err)
		}
		events[i].RegisteredCount = count
	}
	return events, nil
}

// Register records a participant for an event and issues its signed QR token.
func (s *Service) Register(ctx context.Context, eventID string, req RegisterRequest) (*models.Registration, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = models.NormalizeEmail(req.Email)
	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	if err := s.check(req); err != nil {
		return nil, err
	}

	issuedAt := s.now()
	expiry := issuedAt.Add(s.TokenTTL)

	token, err := s.Tokens.Issue(eventID, req.Email, issuedAt, expiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign QR token: %w", err)
	}
	qrPNG, err := qrtoken.EncodePNG(token, s.QRSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render QR code: %w", err)
	}

	reg := &models.Registration{
		ID:               uuid.New().String(),
		EventID:          eventID,
		ParticipantEmail: req.Email,
		ParticipantName:  req.Name,
		WalletAddress:    req.WalletAddress,
		QRToken:          token,
		QRCode:           qrPNG,
		TokenExpiry:      expiry,
		CreatedAt:        issuedAt,
	}
	if err := s.DB.Register(ctx, reg); err != nil {
		s.Logger.Warn("REGISTRATION", fmt.Sprintf("Registration of %s for event %s refused: %v", req.Email, eventID, err))
		return nil, err
	}

	s.Logger.Info("REGISTRATION", fmt.Sprintf("Registered %s for event %s, token valid until %s", req.Email, eventID, expiry.Format(time.RFC3339)))
	return reg, nil
}

func (s *Service) ListRegistrations(ctx context.Context, eventID string) ([]models.RegisteredParticipant, error) {
	if _, err := s.DB.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	regs, err := s.DB.ListRegistrations(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	participants := make([]models.RegisteredParticipant, 0, len(regs))
	for _, r := range regs {
		participants = append(participants, models.RegisteredParticipant{
			Name:          r.ParticipantName,
			Email:         r.ParticipantEmail,
			WalletAddress: r.WalletAddress,
			Attended:      r.Used,
			RegisteredAt:  r.CreatedAt,
		})
	}
	return participants, nil
}

func (s *Service) CountRegistrations(ctx context.Context, eventID string) (int, error) {
	return s.DB.CountRegistrations(ctx, eventID)
}

func (s *Service) UpsertParticipant(ctx context.Context, req ParticipantRequest) (*models.Participant, error) {
	req.Email = models.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	if err := s.check(req); err != nil {
		return nil, err
	}

	p := &models.Participant{Email: req.Email, Name: req.Name, WalletAddress: req.WalletAddress}
	if err := s.DB.UpsertParticipant(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save participant: %w", err)
	}
	return p, nil
}

func (s *Service) DeleteParticipant(ctx context.Context, email string) error {
	return s.DB.DeleteParticipant(ctx, models.NormalizeEmail(email))
}
