package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID              string    `bun:"id,pk" json:"id"`
	Title           string    `bun:"title,notnull" json:"title"`
	Description     string    `bun:"description" json:"description"`
	Date            time.Time `bun:"date,notnull" json:"date"`
	Venue           string    `bun:"venue" json:"venue"`
	Category        string    `bun:"category" json:"category"`
	MaxParticipants int       `bun:"max_participants,notnull" json:"maxParticipants"`
	// RegisteredCount is a cache of the registration rows; reads recompute it.
	RegisteredCount int       `bun:"registered_count,notnull,default:0" json:"registeredCount"`
	CreatedAt       time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt       time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// Full reports whether the event has reached its capacity.
func (e Event) Full(registered int) bool {
	return e.MaxParticipants > 0 && registered >= e.MaxParticipants
}
