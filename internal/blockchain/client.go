// Package blockchain is the gateway to the certificate registry contract. A live client
// signs real transactions; a simulation client stands in when no chain is configured.
package blockchain

import (
	"context"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
)

const (
	ModeLive       = "live"
	ModeSimulation = "simulation"
)

// TxResult is the single normalized shape of an issuance, whatever produced it.
type TxResult struct {
	CertID      string `json:"certId"`
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
	Mode        string `json:"mode"`
}

type IssueRequest struct {
	StudentName string
	EventRef    string
	ContentHash string
	Recipient   string
}

// OnChainCertificate is the record returned by the contract's verifyCertificate view.
type OnChainCertificate struct {
	CertID      string    `json:"certId"`
	StudentName string    `json:"studentName"`
	EventID     string    `json:"eventId"`
	IPFSHash    string    `json:"ipfsHash"`
	IssuedTo    string    `json:"issuedTo"`
	IssuedAt    time.Time `json:"issuedAt"`
	Network     string    `json:"network"`
	Mode        string    `json:"mode"`
}

type NetworkInfo struct {
	Name            string `json:"name"`
	ChainID         int64  `json:"chainId"`
	WalletAddress   string `json:"walletAddress,omitempty"`
	Balance         string `json:"balance,omitempty"`
	BlockNumber     uint64 `json:"blockNumber"`
	ContractAddress string `json:"contractAddress,omitempty"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
	Mode            string `json:"mode"`
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
}

type Client interface {
	Mode() string
	// SignerAddress identifies the key that signs issuance transactions.
	SignerAddress() string
	IssueCertificate(ctx context.Context, req IssueRequest) (*TxResult, error)
	VerifyCertificate(ctx context.Context, certID string) (*OnChainCertificate, error)
	// NetworkInfo never fails; connection problems are reported in Status and Error.
	NetworkInfo(ctx context.Context) NetworkInfo
	Close()
}

// New picks the implementation once, from configuration: live when the RPC endpoint,
// signing key and contract address are all present, simulation otherwise.
func New(ctx context.Context, cfg config.ChainConfig, log *logger.Logger) (Client, error) {
	if !cfg.Configured() {
		log.Warn("CHAIN", "Chain credentials missing, running in simulation mode")
		return NewSimulation(log), nil
	}
	return DialLive(ctx, cfg, log)
}
