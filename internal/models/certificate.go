package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Certificate struct {
	bun.BaseModel `bun:"table:certificates"`

	ID               string    `bun:"id,pk" json:"id"`
	EventID          string    `bun:"event_id,notnull,unique:certificates_event_email" json:"eventId"`
	ParticipantEmail string    `bun:"participant_email,notnull,unique:certificates_event_email" json:"participantEmail"`
	CertID           string    `bun:"cert_id,notnull,unique" json:"certId"`
	WalletAddress    string    `bun:"wallet_address" json:"walletAddress"`
	MetadataIPFSHash string    `bun:"metadata_ipfs_hash" json:"metadataIpfsHash"`
	PDFIPFSHash      string    `bun:"pdf_ipfs_hash,nullzero" json:"pdfIpfsHash,omitempty"`
	TxHash           string    `bun:"tx_hash" json:"txHash"`
	BlockNumber      uint64    `bun:"block_number" json:"blockNumber"`
	Mode             string    `bun:"mode" json:"mode"`
	IssuedAt         time.Time `bun:"issued_at,notnull" json:"issuedAt"`
	CreatedAt        time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`

	Event *Event `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
}

// CertificateMetadata is the JSON document pinned before issuance.
type CertificateMetadata struct {
	ParticipantEmail string `json:"participantEmail"`
	ParticipantName  string `json:"participantName"`
	EventTitle       string `json:"eventTitle"`
	IssuedAt         string `json:"issuedAt"`
}
