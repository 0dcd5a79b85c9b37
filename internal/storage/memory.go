package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
)

// Memory is a content-addressed store kept in process memory. Equal content yields an equal hash.
type Memory struct {
	mu         sync.RWMutex
	objects    map[string][]byte
	names      map[string]string
	gatewayURL string
}

func NewMemory(gatewayURL string) *Memory {
	if gatewayURL == "" {
		gatewayURL = "memory://"
	}
	return &Memory{
		objects:    make(map[string][]byte),
		names:      make(map[string]string),
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
	}
}

func (m *Memory) UploadMetadata(ctx context.Context, metadata any, name string) (string, error) {
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "encode metadata", err)
	}
	return m.put(data, name), nil
}

func (m *Memory) UploadArtifact(ctx context.Context, data []byte, filename string) (string, error) {
	return m.put(data, filename), nil
}

func (m *Memory) GatewayURL(hash string) string {
	return m.gatewayURL + "/ipfs/" + hash
}

// Get returns the bytes stored under hash.
func (m *Memory) Get(hash string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[hash]
	return data, ok
}

// Name returns the name the content was last uploaded under.
func (m *Memory) Name(hash string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.names[hash]
}

func (m *Memory) put(data []byte, name string) string {
	sum := sha256.Sum256(data)
	hash := "mem-" + hex.EncodeToString(sum[:])

	m.mu.Lock()
	m.objects[hash] = append([]byte(nil), data...)
	m.names[hash] = name
	m.mu.Unlock()
	return hash
}
