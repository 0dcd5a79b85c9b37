package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/kafka"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/metrics"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/qrtoken"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/sse"
)

type AttendanceStore interface {
	RecordScan(ctx context.Context, qrToken string, now time.Time) (*models.ScanResult, error)
	ListAttendance(ctx context.Context, eventID string) ([]models.Attendance, error)
	EventExists(ctx context.Context, eventID string) (bool, error)
}

type Service struct {
	DB        AttendanceStore
	Tokens    *qrtoken.Signer
	Publisher kafka.Publisher
	Topic     string
	Feed      *sse.AttendanceFeed
	Metrics   *metrics.Metrics
	Logger    *logger.Logger

	now func() time.Time
}

func NewService(db AttendanceStore, tokens *qrtoken.Signer, publisher kafka.Publisher, topic string, feed *sse.AttendanceFeed, m *metrics.Metrics, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	return &Service{
		DB:        db,
		Tokens:    tokens,
		Publisher: publisher,
		Topic:     topic,
		Feed:      feed,
		Metrics:   m,
		Logger:    log,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for expiry checks and attendance timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Scan checks a participant in. The token signature and expiry are checked before the
// ledger is touched, so a forged or expired token never writes anything.
func (s *Service) Scan(ctx context.Context, qrToken string) (*models.ScanResult, error) {
	qrToken = strings.TrimSpace(qrToken)
	if qrToken == "" {
		s.Metrics.IncScan("invalid")
		return nil, apperr.Validation("qrToken is required")
	}

	if _, err := s.Tokens.Verify(qrToken); err != nil {
		s.Metrics.IncScan(string(apperr.KindOf(err)))
		s.Logger.LogSecurity("QR_REJECTED", err.Error())
		return nil, err
	}

	result, err := s.DB.RecordScan(ctx, qrToken, s.now())
	if err != nil {
		if kind := apperr.KindOf(err); kind != "" {
			s.Metrics.IncScan(string(kind))
		} else {
			s.Metrics.IncScan("error")
		}
		return nil, err
	}
	s.Metrics.IncScan(string(result.Status))

	if result.Status == models.ScanAlreadyCheckedIn {
		s.Logger.Info("ATTENDANCE", fmt.Sprintf("%s already checked in to %s", result.ParticipantEmail, result.EventID))
		return result, nil
	}

	s.Logger.Info("ATTENDANCE", fmt.Sprintf("Checked in %s to %s", result.ParticipantEmail, result.EventID))
	if s.Feed != nil {
		s.Feed.Emit(*result)
	}

	// the attendance row is committed; a lost event only delays downstream consumers
	if err := s.Publisher.Publish(ctx, s.Topic, result.EventID, models.AttendanceRecordedEvent{
		EventID:          result.EventID,
		ParticipantEmail: result.ParticipantEmail,
		ParticipantName:  result.ParticipantName,
		AttendedAt:       result.AttendedAt,
	}); err != nil {
		s.Logger.Warn("ATTENDANCE", fmt.Sprintf("Failed to publish attendance of %s: %v", result.ParticipantEmail, err))
	}
	return result, nil
}

func (s *Service) ListAttendance(ctx context.Context, eventID string) ([]models.Attendance, error) {
	exists, err := s.DB.EventExists(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up event: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("event %s not found", eventID)
	}
	return s.DB.ListAttendance(ctx, eventID)
}

// Subscribe opens a live feed of first check-ins for an event.
func (s *Service) Subscribe(ctx context.Context, eventID string) (<-chan models.ScanResult, error) {
	if s.Feed == nil {
		return nil, apperr.Unconfigured("live attendance feed is disabled")
	}
	exists, err := s.DB.EventExists(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up event: %w", err)
	}
	if !exists {
		return nil, apperr.NotFound("event %s not found", eventID)
	}
	return s.Feed.Subscribe(ctx, eventID), nil
}
