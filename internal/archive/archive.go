// Package archive keeps the report of every mint run for later inspection.
package archive

import (
	"context"
	"sort"
	"sync"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
)

type Archive interface {
	SaveRun(ctx context.Context, report *models.MintReport) error
	// ListRuns returns the runs of an event, newest first.
	ListRuns(ctx context.Context, eventID string) ([]models.MintReport, error)
	Close(ctx context.Context) error
}

// Memory keeps runs for the lifetime of the process.
type Memory struct {
	mu   sync.RWMutex
	runs map[string][]models.MintReport
}

func NewMemory() *Memory {
	return &Memory{runs: make(map[string][]models.MintReport)}
}

func (m *Memory) SaveRun(_ context.Context, report *models.MintReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[report.EventID] = append(m.runs[report.EventID], *report)
	return nil
}

func (m *Memory) ListRuns(_ context.Context, eventID string) ([]models.MintReport, error) {
	m.mu.RLock()
	runs := append([]models.MintReport(nil), m.runs[eventID]...)
	m.mu.RUnlock()

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

func (m *Memory) Close(context.Context) error { return nil }
