package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Registration struct {
	bun.BaseModel `bun:"table:registrations"`

	ID               string    `bun:"id,pk" json:"id"`
	EventID          string    `bun:"event_id,notnull,unique:registrations_event_email" json:"eventId"`
	ParticipantEmail string    `bun:"participant_email,notnull,unique:registrations_event_email" json:"participantEmail"`
	ParticipantName  string    `bun:"participant_name,notnull" json:"participantName"`
	WalletAddress    string    `bun:"wallet_address" json:"walletAddress"`
	QRToken          string    `bun:"qr_token,notnull,unique" json:"qrToken"`
	QRCode           []byte    `bun:"qr_code" json:"-"`
	TokenExpiry      time.Time `bun:"token_expiry,notnull" json:"tokenExpiry"`
	// Used flips to true once, at scan time, and is never reset.
	Used      bool       `bun:"used,notnull,default:false" json:"used"`
	UsedAt    *time.Time `bun:"used_at,nullzero" json:"usedAt,omitempty"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// Expired reports whether the QR token can no longer be scanned at now.
func (r Registration) Expired(now time.Time) bool {
	return now.After(r.TokenExpiry)
}

// RegisteredParticipant is the admin view of a registration.
type RegisteredParticipant struct {
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	WalletAddress string    `json:"walletAddress"`
	Attended      bool      `json:"attended"`
	RegisteredAt  time.Time `json:"registeredAt"`
}
