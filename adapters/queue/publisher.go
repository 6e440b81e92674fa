package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sevotec/voting-service/core"
	"github.com/sevotec/voting-service/ports"
)

const (
	// JobsTopic carries submission jobs
	JobsTopic = "voting.jobs"
	// FailedJobsTopic receives jobs whose retries are exhausted
	FailedJobsTopic = "voting.jobs.failed"
	// ConsumerGroup is the redis stream consumer group shared by workers
	ConsumerGroup = "voting-workers"
	// ClaimTTL is how long a job id stays claimed
	ClaimTTL = core.JobRecordTTL
)

// Publisher implements ports.JobQueue on top of a watermill publisher
type Publisher struct {
	publisher message.Publisher
	jobs      ports.JobLedger
	topic     string
	log       *slog.Logger
}

// NewPublisher creates a new job publisher
func NewPublisher(publisher message.Publisher, jobs ports.JobLedger, log *slog.Logger) *Publisher {
	return &Publisher{
		publisher: publisher,
		jobs:      jobs,
		topic:     JobsTopic,
		log:       log.With("component", "job_publisher"),
	}
}

// Enqueue publishes job once per job id. A job id that was already
// published is silently accepted; a claim left pending by an earlier failed
// attempt is published again.
func (p *Publisher) Enqueue(ctx context.Context, job core.SubmissionJob) error {
	id := job.ID()

	claimed, err := p.jobs.ClaimJob(ctx, id, ClaimTTL)
	if err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}
	if !claimed {
		status, err := p.jobs.JobStatus(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read job status: %w", err)
		}
		if status != core.JobPending && status != "" {
			p.log.Info("job already enqueued", "job_id", id, "status", status)
			return nil
		}
		p.log.Warn("republishing job left unpublished", "job_id", id)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		p.release(ctx, id, claimed)
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		p.release(ctx, id, claimed)
		return fmt.Errorf("failed to publish job: %w", err)
	}

	// A job stuck in pending is only published again, which the worker tolerates
	if err := p.jobs.MarkJobQueued(ctx, id); err != nil {
		p.log.Error("failed to mark job queued", "job_id", id, "error", err)
	}

	p.log.Info("job enqueued", "job_id", id)
	return nil
}

func (p *Publisher) release(ctx context.Context, id string, claimed bool) {
	if !claimed {
		return
	}
	if err := p.jobs.ReleaseJob(ctx, id); err != nil {
		p.log.Error("failed to release job claim", "job_id", id, "error", err)
	}
}
