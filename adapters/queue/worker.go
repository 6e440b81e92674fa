package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/sevotec/voting-service/core"
	"github.com/sevotec/voting-service/ports"
)

// JobProcessor runs one attempt of a submission job
type JobProcessor interface {
	Process(ctx context.Context, job core.SubmissionJob) error
}

// WorkerConfig controls retries of the worker
type WorkerConfig struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// InitialInterval is the delay before the first retry
	InitialInterval time.Duration
	// MaxInterval caps the delay between retries
	MaxInterval time.Duration
	// Multiplier grows the delay between consecutive retries
	Multiplier float64
	// Topic is consumed for jobs
	Topic string
	// PoisonTopic receives jobs that failed every attempt
	PoisonTopic string
}

// DefaultWorkerConfig gives three attempts with delays of 1s and 2s
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxRetries:      2,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2,
		Topic:           JobsTopic,
		PoisonTopic:     FailedJobsTopic,
	}
}

// Worker consumes submission jobs and drives them to completion
type Worker struct {
	router    *message.Router
	jobs      ports.JobLedger
	processor JobProcessor
	log       *slog.Logger
}

// NewWorker wires a watermill router that consumes cfg.Topic from subscriber.
// Jobs failing every attempt are forwarded to cfg.PoisonTopic via poisonPub.
func NewWorker(
	cfg WorkerConfig,
	subscriber message.Subscriber,
	poisonPub message.Publisher,
	jobs ports.JobLedger,
	processor JobProcessor,
	log *slog.Logger,
) (*Worker, error) {
	log = log.With("component", "worker")

	router, err := message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	poison, err := middleware.PoisonQueue(poisonPub, cfg.PoisonTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to create poison queue: %w", err)
	}

	w := &Worker{
		router:    router,
		jobs:      jobs,
		processor: processor,
		log:       log,
	}

	retry := middleware.Retry{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.InitialInterval,
		MaxInterval:     cfg.MaxInterval,
		Multiplier:      cfg.Multiplier,
		OnRetryHook: func(retryNum int, delay time.Duration) {
			log.Warn("retrying job", "retry", retryNum, "delay", delay)
		},
	}

	router.AddMiddleware(
		poison,
		w.recordOutcome,
		retry.Middleware,
		middleware.Recoverer,
	)

	router.AddNoPublisherHandler("submit_votes", cfg.Topic, subscriber, w.handle)

	return w, nil
}

// Run blocks until ctx is cancelled or the router is closed
func (w *Worker) Run(ctx context.Context) error {
	return w.router.Run(ctx)
}

// Running is closed once the worker consumes messages
func (w *Worker) Running() chan struct{} {
	return w.router.Running()
}

// Close stops the worker
func (w *Worker) Close() error {
	return w.router.Close()
}

func (w *Worker) handle(msg *message.Message) error {
	var job core.SubmissionJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		return fmt.Errorf("failed to decode job %s: %w", msg.UUID, err)
	}

	// Delivery is at-least-once; a job published twice runs once
	status, err := w.jobs.JobStatus(msg.Context(), msg.UUID)
	if err != nil {
		w.log.Warn("failed to read job status", "job_id", msg.UUID, "error", err)
	}
	if status == core.JobCompleted {
		w.log.Info("skipping completed job", "job_id", msg.UUID)
		return nil
	}

	return w.processor.Process(msg.Context(), job)
}

// recordOutcome sits outside the retries, so it sees one result per job
func (w *Worker) recordOutcome(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		produced, err := h(msg)

		status := core.JobCompleted
		if err != nil {
			status = core.JobFailed
			w.log.Error("job failed after all attempts", "job_id", msg.UUID, "error", err)
		}
		if serr := w.jobs.SetJobStatus(msg.Context(), msg.UUID, status); serr != nil {
			w.log.Error("failed to record job status", "job_id", msg.UUID, "status", status, "error", serr)
		}

		return produced, err
	}
}
