package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/metrics"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/retry"
)

type Pinata struct {
	jwt        string
	apiURL     string
	gatewayURL string
	client     *http.Client
	policy     retry.Policy
	metrics    *metrics.Metrics
	log        *logger.Logger
}

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

type pinataMetadata struct {
	Name string `json:"name"`
}

type pinJSONRequest struct {
	PinataContent  any            `json:"pinataContent"`
	PinataMetadata pinataMetadata `json:"pinataMetadata"`
}

// statusError carries a non-2xx answer from the pinning API.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("pinning API returned %d: %s", e.status, e.body)
}

func NewPinata(cfg config.StorageConfig, m *metrics.Metrics, log *logger.Logger) *Pinata {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Pinata{
		jwt:        cfg.PinataJWT,
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		gatewayURL: strings.TrimRight(cfg.GatewayURL, "/"),
		client:     &http.Client{Timeout: timeout},
		policy:     retry.Default(cfg.MaxRetries),
		metrics:    m,
		log:        log,
	}
}

// WithRetryPolicy replaces the backoff used around uploads.
func (p *Pinata) WithRetryPolicy(policy retry.Policy) *Pinata {
	p.policy = policy
	return p
}

func (p *Pinata) GatewayURL(hash string) string {
	return p.gatewayURL + "/ipfs/" + hash
}

func (p *Pinata) UploadMetadata(ctx context.Context, metadata any, name string) (string, error) {
	body, err := json.Marshal(pinJSONRequest{PinataContent: metadata, PinataMetadata: pinataMetadata{Name: name}})
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "encode metadata", err)
	}
	return p.pin(ctx, "metadata", name, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/pinning/pinJSONToIPFS", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func (p *Pinata) UploadArtifact(ctx context.Context, data []byte, filename string) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	meta, _ := json.Marshal(pinataMetadata{Name: filename})
	if err := form.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}
	payload := buf.Bytes()

	return p.pin(ctx, "artifact", filename, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/pinning/pinFileToIPFS", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", form.FormDataContentType())
		return req, nil
	})
}

// pin sends the request built by newReq, retrying network errors, 429 and 5xx answers.
func (p *Pinata) pin(ctx context.Context, kind, name string, newReq func() (*http.Request, error)) (string, error) {
	if p.jwt == "" {
		return "", apperr.Unconfigured("PINATA_JWT is not set")
	}

	start := time.Now()
	defer func() { p.metrics.ObserveStorage(kind, time.Since(start)) }()

	var hash string
	err := p.policy.Do(ctx, func() error {
		req, err := newReq()
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+p.jwt)

		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			serr := &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return serr
			}
			return retry.Permanent(serr)
		}

		var out pinResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return retry.Permanent(fmt.Errorf("decode pin response: %w", err))
		}
		if out.IpfsHash == "" {
			return retry.Permanent(errors.New("pin response has no IpfsHash"))
		}
		hash = out.IpfsHash
		return nil
	}, func(err error, wait time.Duration) {
		p.log.LogStorage("RETRY", name, fmt.Sprintf("%v, next attempt in %s", err, wait))
	})
	if err != nil {
		p.log.LogStorage("UPLOAD_FAILED", name, err.Error())
		return "", apperr.Upstream("upload "+kind+" "+name, err)
	}

	p.log.LogStorage("PINNED", name, hash)
	return hash, nil
}
