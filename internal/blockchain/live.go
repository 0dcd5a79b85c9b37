package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/retry"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of *ethclient.Client the live client needs.
type Backend interface {
	bind.DeployBackend
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

type LiveClient struct {
	backend  Backend
	key      *ecdsa.PrivateKey
	from     common.Address
	registry common.Address
	chainID  *big.Int
	cfg      config.ChainConfig
	policy   retry.Policy
	log      *logger.Logger

	// one transaction in flight per client keeps nonces strictly sequential
	sendMu sync.Mutex
}

func DialLive(ctx context.Context, cfg config.ChainConfig, log *logger.Logger) (*LiveClient, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, apperr.Upstream("dial chain RPC", err)
	}
	client, err := NewLive(rpc, cfg, log)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	log.Info("CHAIN", fmt.Sprintf("Connected to %s, contract %s, signer %s", cfg.NetworkName, cfg.ContractAddress, client.SignerAddress()))
	return client, nil
}

func NewLive(backend Backend, cfg config.ChainConfig, log *logger.Logger) (*LiveClient, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnconfigured, "invalid PRIVATE_KEY", err)
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, apperr.Unconfigured("invalid CONTRACT_ADDRESS %q", cfg.ContractAddress)
	}
	if cfg.GasMultiplier < 1 {
		cfg.GasMultiplier = 1
	}
	return &LiveClient{
		backend:  backend,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		registry: common.HexToAddress(cfg.ContractAddress),
		chainID:  big.NewInt(cfg.ChainID),
		cfg:      cfg,
		policy:   retry.Default(cfg.MaxRetries),
		log:      log,
	}, nil
}

// WithRetryPolicy replaces the backoff used around RPC calls.
func (c *LiveClient) WithRetryPolicy(p retry.Policy) *LiveClient {
	c.policy = p
	return c
}

func (c *LiveClient) Mode() string          { return ModeLive }
func (c *LiveClient) SignerAddress() string { return c.from.Hex() }
func (c *LiveClient) Close()                { c.backend.Close() }

func (c *LiveClient) explorerTx(hash string) string {
	return strings.TrimRight(c.cfg.ExplorerURL, "/") + "/tx/" + hash
}

// call retries transient RPC failures. Contract reverts are permanent.
func (c *LiveClient) call(ctx context.Context, op string, fn func() error) error {
	return c.policy.Do(ctx, func() error {
		err := fn()
		if err != nil && isRevert(err) {
			return retry.Permanent(err)
		}
		return err
	}, func(err error, wait time.Duration) {
		c.log.LogChain("RETRY", op, fmt.Sprintf("%v, next attempt in %s", err, wait))
	})
}

// IssueCertificate estimates gas, submits the issuance with the configured safety multiplier,
// waits for the receipt and reads the certificate id from the CertificateIssued log.
func (c *LiveClient) IssueCertificate(ctx context.Context, req IssueRequest) (*TxResult, error) {
	data, err := packIssue(req)
	if err != nil {
		return nil, fmt.Errorf("pack issueCertificate: %w", err)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	msg := ethereum.CallMsg{From: c.from, To: &c.registry, Data: data}

	var (
		nonce    uint64
		estimate uint64
		tipCap   *big.Int
		head     *types.Header
	)
	if err := c.call(ctx, "nonce", func() (err error) {
		nonce, err = c.backend.PendingNonceAt(ctx, c.from)
		return err
	}); err != nil {
		return nil, apperr.Upstream("read signer nonce", err)
	}
	if err := c.call(ctx, "estimate_gas", func() (err error) {
		estimate, err = c.backend.EstimateGas(ctx, msg)
		return err
	}); err != nil {
		return nil, apperr.Upstream("estimate gas", err)
	}
	if err := c.call(ctx, "fees", func() (err error) {
		if tipCap, err = c.backend.SuggestGasTipCap(ctx); err != nil {
			return err
		}
		head, err = c.backend.HeaderByNumber(ctx, nil)
		return err
	}); err != nil {
		return nil, apperr.Upstream("suggest fees", err)
	}

	feeCap := new(big.Int).Set(tipCap)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}
	gasLimit := estimate * uint64(c.cfg.GasMultiplier)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &c.registry,
		Data:      data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	c.log.LogChain("SUBMIT", signed.Hash().Hex(), fmt.Sprintf("nonce=%d gas=%d (estimate %d)", nonce, gasLimit, estimate))
	// resending the same signed transaction is harmless; the node reports it as known
	if err := c.call(ctx, "send", func() error {
		err := c.backend.SendTransaction(ctx, signed)
		if err != nil && strings.Contains(strings.ToLower(err.Error()), "already known") {
			return nil
		}
		return err
	}); err != nil {
		return nil, apperr.Upstream("submit issuance", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.ReceiptTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.backend, signed)
	if err != nil {
		return nil, apperr.Upstream("wait for issuance receipt", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, apperr.Upstream("issuance reverted", fmt.Errorf("tx %s failed in block %s", signed.Hash().Hex(), receipt.BlockNumber))
	}

	certID, ok := certIDFromReceipt(receipt, c.registry)
	if !ok {
		return nil, apperr.Upstream("issuance confirmed", errors.New("CertificateIssued event not found in receipt"))
	}

	txHash := receipt.TxHash.Hex()
	c.log.LogChain("CONFIRMED", txHash, fmt.Sprintf("certificate %s in block %d", certID, receipt.BlockNumber.Uint64()))
	return &TxResult{
		CertID:      certID.String(),
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		ExplorerURL: c.explorerTx(txHash),
		Mode:        ModeLive,
	}, nil
}

func (c *LiveClient) VerifyCertificate(ctx context.Context, certID string) (*OnChainCertificate, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(certID), 10)
	if !ok || id.Sign() <= 0 {
		return nil, apperr.NotFound("certificate %s is not a chain-assigned id", certID)
	}
	data, err := packVerify(id)
	if err != nil {
		return nil, fmt.Errorf("pack verifyCertificate: %w", err)
	}

	var out []byte
	err = c.call(ctx, "verify", func() (err error) {
		out, err = c.backend.CallContract(ctx, ethereum.CallMsg{To: &c.registry, Data: data}, nil)
		return err
	})
	if err != nil {
		if isRevert(err) {
			return nil, apperr.NotFound("certificate %s not found on chain", certID)
		}
		return nil, apperr.Upstream("call verifyCertificate", err)
	}
	if len(out) == 0 {
		return nil, apperr.NotFound("certificate %s not found on chain", certID)
	}

	rec, err := unpackVerify(out)
	if err != nil {
		return nil, apperr.Upstream("decode verifyCertificate", err)
	}
	if rec.CertId == nil || rec.CertId.Sign() == 0 {
		return nil, apperr.NotFound("certificate %s not found on chain", certID)
	}

	return &OnChainCertificate{
		CertID:      rec.CertId.String(),
		StudentName: rec.StudentName,
		EventID:     rec.EventId,
		IPFSHash:    rec.Ipfshash,
		IssuedTo:    rec.IssuedTo.Hex(),
		IssuedAt:    time.Unix(rec.IssuedAt.Int64(), 0).UTC(),
		Network:     c.cfg.NetworkName,
		Mode:        ModeLive,
	}, nil
}

func (c *LiveClient) NetworkInfo(ctx context.Context) NetworkInfo {
	info := NetworkInfo{
		Name:            c.cfg.NetworkName,
		ChainID:         c.cfg.ChainID,
		WalletAddress:   c.from.Hex(),
		ContractAddress: c.registry.Hex(),
		ExplorerURL:     c.cfg.ExplorerURL,
		Mode:            ModeLive,
		Status:          "connected",
	}

	balance, err := c.backend.BalanceAt(ctx, c.from, nil)
	if err == nil {
		info.Balance = formatEther(balance)
		info.BlockNumber, err = c.backend.BlockNumber(ctx)
	}
	if err != nil {
		info.Status = "connection failed"
		info.Error = err.Error()
		c.log.LogChain("NETWORK_INFO_FAILED", c.cfg.NetworkName, err.Error())
	}
	return info
}

func isRevert(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}

// formatEther renders a wei amount in ether without trailing zeros.
func formatEther(wei *big.Int) string {
	f := new(big.Float).SetPrec(256).SetInt(wei)
	f.Quo(f, new(big.Float).SetPrec(256).SetInt(big.NewInt(1e18)))
	s := strings.TrimRight(f.Text('f', 18), "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}
