package models

import "time"

// AttendanceRecordedEvent is published after a first successful scan.
type AttendanceRecordedEvent struct {
	EventID          string    `json:"event_id"`
	ParticipantEmail string    `json:"participant_email"`
	ParticipantName  string    `json:"participant_name"`
	AttendedAt       time.Time `json:"attended_at"`
}

// CertificateIssuedEvent is published for every successful mint result.
type CertificateIssuedEvent struct {
	EventID          string    `json:"event_id"`
	ParticipantEmail string    `json:"participant_email"`
	CertID           string    `json:"cert_id"`
	TxHash           string    `json:"tx_hash"`
	MetadataHash     string    `json:"metadata_ipfs_hash"`
	Mode             string    `json:"mode"`
	IssuedAt         time.Time `json:"issued_at"`
}

// ArtifactJob asks a worker to render and pin the PDF of one certificate.
type ArtifactJob struct {
	CertID     string    `json:"cert_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
