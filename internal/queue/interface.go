package queue

import (
	"context"
	"time"
)

// MessageInterface is a delivered job awaiting acknowledgement
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue carries profile analysis jobs from the API to the worker
type JobQueue interface {
	Enqueue(ctx context.Context, job *Job) error

	// Consume delivers jobs until ctx is cancelled. Expired and undecodable
	// jobs are settled by the queue and never reach the channel.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	Close() error
	HealthCheck(ctx context.Context) error
}

// DLQPurger removes dead-lettered messages older than retention and reports how many it dropped
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
