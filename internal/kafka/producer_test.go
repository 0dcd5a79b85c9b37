package kafka

import (
	"context"
	"testing"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:1"}, logger.Discard())
	defer p.Close()

	err := p.Publish(context.Background(), "attendance.recorded", "k", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal attendance.recorded payload")
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), "t", "k", map[string]string{"a": "b"}))
	assert.NoError(t, p.Close())
}

func TestEnsureTopicsRequiresBrokers(t *testing.T) {
	err := EnsureTopicsExist(context.Background(), nil, []string{"t"}, logger.Discard())
	assert.Error(t, err)
}
