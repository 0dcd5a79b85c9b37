package blockchain

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/retry"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryAddr = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

type fakeBackend struct {
	mu sync.Mutex

	nonce        uint64
	estimate     uint64
	estimateErrs []error
	estimateHits int
	emitEvent    bool
	sent         []*types.Transaction

	callOut []byte
	callErr error

	balance    *big.Int
	balanceErr error
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimateHits++
	if len(f.estimateErrs) > 0 {
		err := f.estimateErrs[0]
		f.estimateErrs = f.estimateErrs[1:]
		return 0, err
	}
	return f.estimate, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(30_000_000_000), nil
}

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(41), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() != hash {
			continue
		}
		receipt := &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      hash,
			BlockNumber: big.NewInt(42),
		}
		if f.emitEvent {
			data, err := contractABI.Events["CertificateIssued"].Inputs.Pack(
				big.NewInt(7), "ada@example.com", "Go Workshop", "QmMeta", common.HexToAddress("0x00000000000000000000000000000000000000aa"))
			if err != nil {
				return nil, err
			}
			receipt.Logs = []*types.Log{{
				Address: common.HexToAddress(registryAddr),
				Topics:  []common.Hash{contractABI.Events["CertificateIssued"].ID},
				Data:    data,
			}}
		}
		return receipt, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return f.callOut, f.callErr
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, f.balanceErr
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) { return 42, nil }
func (f *fakeBackend) Close()                                      {}

func testChainConfig(t *testing.T) config.ChainConfig {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return config.ChainConfig{
		RPCURL:          "http://unused",
		PrivateKey:      "0x" + hex.EncodeToString(crypto.FromECDSA(key)),
		ContractAddress: registryAddr,
		NetworkName:     "Polygon Amoy",
		ChainID:         80002,
		ExplorerURL:     "https://amoy.polygonscan.com",
		GasMultiplier:   2,
		ReceiptTimeout:  5 * time.Second,
		MaxRetries:      3,
	}
}

func newLive(t *testing.T, backend *fakeBackend) *LiveClient {
	c, err := NewLive(backend, testChainConfig(t), logger.Discard())
	require.NoError(t, err)
	return c.WithRetryPolicy(retry.Policy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})
}

var issueReq = IssueRequest{StudentName: "ada@example.com", EventRef: "Go Workshop", ContentHash: "QmMeta", Recipient: "0x00000000000000000000000000000000000000aa"}

func TestIssueCertificateDoublesGasAndParsesEvent(t *testing.T) {
	backend := &fakeBackend{nonce: 5, estimate: 100_000, emitEvent: true}
	c := newLive(t, backend)

	res, err := c.IssueCertificate(context.Background(), issueReq)
	require.NoError(t, err)

	require.Len(t, backend.sent, 1)
	tx := backend.sent[0]
	assert.Equal(t, uint64(200_000), tx.Gas())
	assert.Equal(t, uint64(5), tx.Nonce())
	assert.Equal(t, int64(80002), tx.ChainId().Int64())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(80002)), tx)
	require.NoError(t, err)
	assert.Equal(t, c.SignerAddress(), sender.Hex())

	assert.Equal(t, "7", res.CertID)
	assert.Equal(t, tx.Hash().Hex(), res.TxHash)
	assert.Equal(t, uint64(42), res.BlockNumber)
	assert.Equal(t, "https://amoy.polygonscan.com/tx/"+tx.Hash().Hex(), res.ExplorerURL)
	assert.Equal(t, ModeLive, res.Mode)
}

func TestIssueCertificateWithoutEventFails(t *testing.T) {
	c := newLive(t, &fakeBackend{estimate: 21_000})

	_, err := c.IssueCertificate(context.Background(), issueReq)
	assert.ErrorIs(t, err, apperr.ErrUpstreamFailure)
	assert.Contains(t, err.Error(), "CertificateIssued event not found")
}

func TestIssueCertificateRetriesTransientEstimateErrors(t *testing.T) {
	backend := &fakeBackend{estimate: 50_000, emitEvent: true, estimateErrs: []error{errors.New("i/o timeout"), errors.New("502 bad gateway")}}
	c := newLive(t, backend)

	_, err := c.IssueCertificate(context.Background(), issueReq)
	require.NoError(t, err)
	assert.Equal(t, 3, backend.estimateHits)
}

func TestIssueCertificateDoesNotRetryRevert(t *testing.T) {
	backend := &fakeBackend{estimateErrs: []error{errors.New("execution reverted: not owner")}}
	c := newLive(t, backend)

	_, err := c.IssueCertificate(context.Background(), issueReq)
	assert.ErrorIs(t, err, apperr.ErrUpstreamFailure)
	assert.Equal(t, 1, backend.estimateHits)
	assert.Empty(t, backend.sent)
}

func TestVerifyCertificateDecodesRecord(t *testing.T) {
	out, err := contractABI.Methods["verifyCertificate"].Outputs.Pack(certificateRecord{
		CertId:      big.NewInt(7),
		StudentName: "ada@example.com",
		EventId:     "Go Workshop",
		Ipfshash:    "QmMeta",
		IssuedTo:    common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		IssuedAt:    big.NewInt(1_700_000_000),
	})
	require.NoError(t, err)
	c := newLive(t, &fakeBackend{callOut: out})

	rec, err := c.VerifyCertificate(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "7", rec.CertID)
	assert.Equal(t, "Go Workshop", rec.EventID)
	assert.Equal(t, "QmMeta", rec.IPFSHash)
	assert.Equal(t, time.Unix(1_700_000_000, 0).UTC(), rec.IssuedAt)
	assert.Equal(t, "Polygon Amoy", rec.Network)
}

func TestVerifyCertificateNotFound(t *testing.T) {
	reverting := newLive(t, &fakeBackend{callErr: errors.New("execution reverted: Certificate does not exist")})
	_, err := reverting.VerifyCertificate(context.Background(), "99")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = reverting.VerifyCertificate(context.Background(), "SIM-1-000001")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	empty := newLive(t, &fakeBackend{})
	_, err = empty.VerifyCertificate(context.Background(), "3")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVerifyCertificateTransportFailureIsUpstream(t *testing.T) {
	c := newLive(t, &fakeBackend{callErr: errors.New("connection refused")})
	_, err := c.VerifyCertificate(context.Background(), "3")
	assert.ErrorIs(t, err, apperr.ErrUpstreamFailure)
}

func TestNetworkInfo(t *testing.T) {
	c := newLive(t, &fakeBackend{balance: big.NewInt(1_500_000_000_000_000_000)})
	info := c.NetworkInfo(context.Background())
	assert.Equal(t, "1.5", info.Balance)
	assert.Equal(t, uint64(42), info.BlockNumber)
	assert.Equal(t, "connected", info.Status)
	assert.Equal(t, ModeLive, info.Mode)
	assert.True(t, strings.EqualFold(registryAddr, info.ContractAddress))

	down := newLive(t, &fakeBackend{balanceErr: errors.New("dial tcp: connection refused")})
	info = down.NetworkInfo(context.Background())
	assert.Equal(t, "connection failed", info.Status)
	assert.Equal(t, ModeLive, info.Mode)
	assert.Contains(t, info.Error, "connection refused")
}

func TestNewLiveRejectsBadKey(t *testing.T) {
	cfg := testChainConfig(t)
	cfg.PrivateKey = "zz"
	_, err := NewLive(&fakeBackend{}, cfg, logger.Discard())
	assert.ErrorIs(t, err, apperr.ErrUnconfigured)
}

func TestFormatEther(t *testing.T) {
	assert.Equal(t, "0.0", formatEther(big.NewInt(0)))
	assert.Equal(t, "2.0", formatEther(big.NewInt(2_000_000_000_000_000_000)))
	assert.Equal(t, "0.000000000000000001", formatEther(big.NewInt(1)))
}
