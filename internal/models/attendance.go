package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Attendance is written once per (event, participant) by a scan and never updated.
type Attendance struct {
	bun.BaseModel `bun:"table:attendance"`

	ID               string    `bun:"id,pk" json:"id"`
	EventID          string    `bun:"event_id,notnull,unique:attendance_event_email" json:"eventId"`
	ParticipantEmail string    `bun:"participant_email,notnull,unique:attendance_event_email" json:"participantEmail"`
	AttendedAt       time.Time `bun:"attended_at,notnull" json:"attendedAt"`
}

type ScanStatus string

const (
	ScanCheckedIn        ScanStatus = "checked_in"
	ScanAlreadyCheckedIn ScanStatus = "already_checked_in"
)

type ScanResult struct {
	Status           ScanStatus `json:"status"`
	EventID          string     `json:"eventId"`
	ParticipantEmail string     `json:"participantEmail"`
	ParticipantName  string     `json:"participantName"`
	AttendedAt       time.Time  `json:"attendedAt"`
}
