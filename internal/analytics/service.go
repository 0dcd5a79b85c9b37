package analytics

import (
	"context"
	"fmt"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
)

// Service handles event statistics
type Service struct {
	db     *DB
	logger *logger.Logger
}

func NewService(db *DB, log *logger.Logger) *Service {
	return &Service{db: db, logger: log}
}

// GetEventStats summarizes registrations, attendance and certification of one event.
// Registration counts come from the rows, never from the cached counter.
func (s *Service) GetEventStats(ctx context.Context, eventID string) (*models.EventStats, error) {
	event, err := s.db.GetEvent(ctx, eventID)
	if database.IsNoRows(err) {
		return nil, apperr.NotFound("event %s not found", eventID)
	}
	if err != nil {
		return nil, err
	}

	stats := &models.EventStats{
		EventID:         event.ID,
		Title:           event.Title,
		MaxParticipants: event.MaxParticipants,
	}

	counts := []struct {
		name  string
		dst   *int
		count func(context.Context, string) (int, error)
	}{
		{"registrations", &stats.Registrations, s.db.CountRegistrations},
		{"attendance", &stats.Attended, s.db.CountAttendance},
		{"certificates", &stats.Certificates, s.db.CountCertificates},
		{"uncertified attendees", &stats.PendingCertificates, s.db.CountUncertifiedAttendees},
		{"missing artifacts", &stats.PendingArtifacts, s.db.CountMissingArtifacts},
	}
	for _, c := range counts {
		n, err := c.count(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", c.name, err)
		}
		*c.dst = n
	}

	stats.DailyAttendance, err = s.db.GetDailyAttendance(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("daily attendance: %w", err)
	}
	return stats, nil
}
