package main

import (
	"context"
	"fmt"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"

	"github.com/uptrace/bun"
)

const demoEventID = "demo-blockchain-workshop"

// seedDemo inserts a demo event and two participant profiles. Rows that already exist are
// left untouched, so seeding twice is harmless.
func seedDemo(ctx context.Context, db *bun.DB) (string, error) {
	now := time.Now().UTC()

	event := &models.Event{
		ID:              demoEventID,
		Title:           "Blockchain Workshop",
		Description:     "Hands-on introduction to smart contracts.",
		Date:            now.AddDate(0, 0, 14),
		Venue:           "Main Hall",
		Category:        "workshop",
		MaxParticipants: 50,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if _, err := db.NewInsert().Model(event).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return "", fmt.Errorf("seed event: %w", err)
	}

	participants := []models.Participant{
		{Email: "alice@example.com", Name: "Alice Wonderland", CreatedAt: now, UpdatedAt: now},
		{Email: "bob@example.com", Name: "Bob Builder", WalletAddress: "0x00000000000000000000000000000000000000b0", CreatedAt: now, UpdatedAt: now},
	}
	if _, err := db.NewInsert().Model(&participants).On("CONFLICT (email) DO NOTHING").Exec(ctx); err != nil {
		return "", fmt.Errorf("seed participants: %w", err)
	}
	return event.ID, nil
}
