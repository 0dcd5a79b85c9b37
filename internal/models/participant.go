package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// ZeroWalletAddress is used for issuance when a participant has no wallet on file.
const ZeroWalletAddress = "0x0000000000000000000000000000000000000000"

type Participant struct {
	bun.BaseModel `bun:"table:participants"`

	Email         string    `bun:"email,pk" json:"email"`
	Name          string    `bun:"name,notnull" json:"name"`
	WalletAddress string    `bun:"wallet_address" json:"walletAddress"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// IssuanceWallet returns the trimmed wallet address or the zero address sentinel.
func (p Participant) IssuanceWallet() string {
	if w := strings.TrimSpace(p.WalletAddress); w != "" {
		return w
	}
	return ZeroWalletAddress
}

// NormalizeEmail is applied to every email before it is stored or compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
