package models

import "time"

type MintOutcome string

const (
	OutcomeAlreadyIssued       MintOutcome = "already_issued"
	OutcomeParticipantNotFound MintOutcome = "participant_not_found"
	OutcomeSuccess             MintOutcome = "success"
	OutcomeFailed              MintOutcome = "failed"
)

type AttendeeResult struct {
	ParticipantEmail string      `json:"participantEmail" bson:"participantEmail"`
	Status           MintOutcome `json:"status" bson:"status"`
	CertID           string      `json:"certId,omitempty" bson:"certId,omitempty"`
	TxHash           string      `json:"txHash,omitempty" bson:"txHash,omitempty"`
	MetadataHash     string      `json:"ipfsHash,omitempty" bson:"ipfsHash,omitempty"`
	ExplorerURL      string      `json:"explorerUrl,omitempty" bson:"explorerUrl,omitempty"`
	Mode             string      `json:"mode,omitempty" bson:"mode,omitempty"`
	Reason           string      `json:"reason,omitempty" bson:"reason,omitempty"`
}

// MintReport lists one result per attendance record, in attendance order.
type MintReport struct {
	RunID      string           `json:"runId" bson:"runId"`
	EventID    string           `json:"eventId" bson:"eventId"`
	EventTitle string           `json:"eventTitle" bson:"eventTitle"`
	StartedAt  time.Time        `json:"startedAt" bson:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt" bson:"finishedAt"`
	Results    []AttendeeResult `json:"results" bson:"results"`
}

// Count returns how many results carry the given outcome.
func (r MintReport) Count(outcome MintOutcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == outcome {
			n++
		}
	}
	return n
}

// Summary groups result counts by outcome.
func (r MintReport) Summary() map[MintOutcome]int {
	summary := make(map[MintOutcome]int)
	for _, res := range r.Results {
		summary[res.Status]++
	}
	return summary
}
