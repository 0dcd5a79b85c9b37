package models

type EventStats struct {
	EventID         string `json:"eventId"`
	Title           string `json:"title"`
	MaxParticipants int    `json:"maxParticipants"`
	Registrations   int    `json:"registrations"`
	Attended        int    `json:"attended"`
	Certificates    int    `json:"certificates"`
	// PendingCertificates counts attendees who hold no certificate yet.
	PendingCertificates int               `json:"pendingCertificates"`
	PendingArtifacts    int               `json:"pendingArtifacts"`
	DailyAttendance     []DailyAttendance `json:"dailyAttendance"`
}

type DailyAttendance struct {
	Day   string `json:"day" bun:"day"`
	Count int    `json:"count" bun:"count"`
}
