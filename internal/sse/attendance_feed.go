package sse

import (
	"context"
	"sync"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
)

// AttendanceFeed fans scan results out to the live check-in dashboards of an event.
type AttendanceFeed struct {
	clients map[string][]chan models.ScanResult
	mu      sync.RWMutex
}

func NewAttendanceFeed() *AttendanceFeed {
	return &AttendanceFeed{
		clients: make(map[string][]chan models.ScanResult),
	}
}

// Subscribe registers a client for one event; the channel is closed once ctx is done.
func (f *AttendanceFeed) Subscribe(ctx context.Context, eventID string) <-chan models.ScanResult {
	ch := make(chan models.ScanResult, 10)

	f.mu.Lock()
	f.clients[eventID] = append(f.clients[eventID], ch)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.remove(eventID, ch)
	}()

	return ch
}

// Emit never blocks: a client whose buffer is full misses the update.
func (f *AttendanceFeed) Emit(result models.ScanResult) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.clients[result.EventID] {
		select {
		case ch <- result:
		default:
		}
	}
}

func (f *AttendanceFeed) remove(eventID string, ch chan models.ScanResult) {
	f.mu.Lock()
	defer f.mu.Unlock()

	clients := f.clients[eventID]
	for i, c := range clients {
		if c == ch {
			f.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(f.clients[eventID]) == 0 {
		delete(f.clients, eventID)
	}
}

// ClientCount returns the number of open subscriptions for an event.
func (f *AttendanceFeed) ClientCount(eventID string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients[eventID])
}
