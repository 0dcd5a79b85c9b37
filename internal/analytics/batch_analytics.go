package analytics

import (
	"context"
	"fmt"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
)

const maxBatchEvents = 50

// BatchEventStats aggregates the statistics of several events
type BatchEventStats struct {
	EventIDs            []string            `json:"eventIds"`
	Registrations       int                 `json:"registrations"`
	Attended            int                 `json:"attended"`
	Certificates        int                 `json:"certificates"`
	PendingCertificates int                 `json:"pendingCertificates"`
	Events              []models.EventStats `json:"events"`
	// Missing lists requested ids that match no event.
	Missing []string `json:"missing,omitempty"`
}

func (s *Service) GetBatchEventStats(ctx context.Context, eventIDs []string) (*BatchEventStats, error) {
	if len(eventIDs) == 0 {
		return &BatchEventStats{EventIDs: []string{}, Events: []models.EventStats{}}, nil
	}
	if len(eventIDs) > maxBatchEvents {
		return nil, apperr.Validation("at most %d events per batch", maxBatchEvents)
	}

	found, err := s.db.ExistingEventIDs(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(found))
	for _, id := range found {
		known[id] = true
	}

	batch := &BatchEventStats{EventIDs: eventIDs, Events: []models.EventStats{}}
	seen := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if !known[id] {
			batch.Missing = append(batch.Missing, id)
			continue
		}

		stats, err := s.GetEventStats(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", id, err)
		}
		batch.Registrations += stats.Registrations
		batch.Attended += stats.Attended
		batch.Certificates += stats.Certificates
		batch.PendingCertificates += stats.PendingCertificates
		batch.Events = append(batch.Events, *stats)
	}

	s.logger.Debug("ANALYTICS", fmt.Sprintf("Batch stats for %d events, %d missing", len(batch.Events), len(batch.Missing)))
	return batch, nil
}
