package blockchain

import (
	"context"
	"sync"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/utils"
)

// SimulationSigner is the lock key used for the simulated signer.
const SimulationSigner = "simulation"

// SimulationClient issues SIM- prefixed ids and random tx hashes. It only verifies
// ids it issued itself during the life of the process.
type SimulationClient struct {
	mu     sync.RWMutex
	issued map[string]OnChainCertificate
	log    *logger.Logger
	now    func() time.Time
}

func NewSimulation(log *logger.Logger) *SimulationClient {
	return &SimulationClient{
		issued: make(map[string]OnChainCertificate),
		log:    log,
		now:    time.Now,
	}
}

func (s *SimulationClient) Mode() string          { return ModeSimulation }
func (s *SimulationClient) SignerAddress() string { return SimulationSigner }
func (s *SimulationClient) Close()                {}

func (s *SimulationClient) IssueCertificate(ctx context.Context, req IssueRequest) (*TxResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &TxResult{
		CertID: utils.GenerateSimulatedCertID(),
		TxHash: utils.GenerateTxHash(),
		Mode:   ModeSimulation,
	}

	s.mu.Lock()
	s.issued[res.CertID] = OnChainCertificate{
		CertID:      res.CertID,
		StudentName: req.StudentName,
		EventID:     req.EventRef,
		IPFSHash:    req.ContentHash,
		IssuedTo:    req.Recipient,
		IssuedAt:    s.now().UTC(),
		Network:     ModeSimulation,
		Mode:        ModeSimulation,
	}
	s.mu.Unlock()

	s.log.LogChain("SIMULATED_ISSUE", res.CertID, "tx "+res.TxHash)
	return res, nil
}

func (s *SimulationClient) VerifyCertificate(ctx context.Context, certID string) (*OnChainCertificate, error) {
	s.mu.RLock()
	rec, ok := s.issued[certID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("certificate %s not found in simulated ledger", certID)
	}
	return &rec, nil
}

func (s *SimulationClient) NetworkInfo(ctx context.Context) NetworkInfo {
	return NetworkInfo{
		Name:   "Simulation",
		Mode:   ModeSimulation,
		Status: "simulated",
	}
}
