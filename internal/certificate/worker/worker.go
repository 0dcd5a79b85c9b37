// Package worker renders and pins certificate PDFs outside the mint request.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/kafka"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/metrics"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/retry"

	kafkago "github.com/segmentio/kafka-go"
)

var ErrQueueFull = errors.New("artifact queue is full")

type Processor interface {
	ProcessArtifact(ctx context.Context, certID string) error
}

// Runner executes one job with its own retry budget. Exhausted jobs are logged and counted;
// they never surface to whoever enqueued them.
type Runner struct {
	Processor Processor
	Policy    retry.Policy
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// NewRunner allows maxAttempts tries per job.
func NewRunner(p Processor, maxAttempts int, m *metrics.Metrics, log *logger.Logger) *Runner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Runner{
		Processor: p,
		Policy:    retry.Default(maxAttempts - 1),
		Metrics:   m,
		Logger:    log,
	}
}

func (r *Runner) Run(ctx context.Context, job models.ArtifactJob) error {
	attempt := job.Attempt
	err := r.Policy.Do(ctx, func() error {
		attempt++
		err := r.Processor.ProcessArtifact(ctx, job.CertID)
		if errors.Is(err, apperr.ErrNotFound) {
			return retry.Permanent(err)
		}
		return err
	}, func(err error, wait time.Duration) {
		r.Logger.Warn("ARTIFACT", fmt.Sprintf("PDF for %s failed on attempt %d, retrying in %s: %v", job.CertID, attempt, wait, err))
	})

	if err != nil {
		r.Metrics.IncArtifactJob("failed")
		r.Logger.Error("ARTIFACT", fmt.Sprintf("Giving up on PDF for %s after %d attempts: %v", job.CertID, attempt, err))
		return err
	}
	r.Metrics.IncArtifactJob("success")
	r.Logger.Info("ARTIFACT", fmt.Sprintf("PDF for %s pinned", job.CertID))
	return nil
}

// HandleMessage adapts Run to a kafka consumer. Undecodable messages are dropped.
func (r *Runner) HandleMessage(ctx context.Context, msg kafkago.Message) error {
	var job models.ArtifactJob
	if err := json.Unmarshal(msg.Value, &job); err != nil || job.CertID == "" {
		r.Metrics.IncArtifactJob("invalid")
		r.Logger.Warn("ARTIFACT", fmt.Sprintf("Dropping malformed job at offset %d", msg.Offset))
		return nil
	}
	return r.Run(ctx, job)
}

// LocalQueue is a bounded in-process queue drained by a fixed number of workers.
type LocalQueue struct {
	runner  *Runner
	jobs    chan models.ArtifactJob
	workers int
	wg      sync.WaitGroup
}

func NewLocalQueue(runner *Runner, workers, buffer int) *LocalQueue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	return &LocalQueue{
		runner:  runner,
		jobs:    make(chan models.ArtifactJob, buffer),
		workers: workers,
	}
}

// Start launches the workers; they stop when ctx is cancelled.
func (q *LocalQueue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			q.runner.Logger.Debug("ARTIFACT", fmt.Sprintf("Worker %d started", id))
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q.jobs:
					q.runner.Metrics.SetArtifactBacklog(len(q.jobs))
					_ = q.runner.Run(ctx, job)
				}
			}
		}(i + 1)
	}
}

// Enqueue never blocks; a full buffer is reported as ErrQueueFull.
func (q *LocalQueue) Enqueue(_ context.Context, job models.ArtifactJob) error {
	select {
	case q.jobs <- job:
		q.runner.Metrics.SetArtifactBacklog(len(q.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until every worker has stopped.
func (q *LocalQueue) Wait() {
	q.wg.Wait()
}

// KafkaQueue hands jobs to the artifact-worker process through a topic.
type KafkaQueue struct {
	Publisher kafka.Publisher
	Topic     string
}

func NewKafkaQueue(p kafka.Publisher, topic string) *KafkaQueue {
	return &KafkaQueue{Publisher: p, Topic: topic}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, job models.ArtifactJob) error {
	return q.Publisher.Publish(ctx, q.Topic, job.CertID, job)
}
