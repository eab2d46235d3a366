package profile

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benvon/assistant-chat/internal/models"
	"github.com/benvon/assistant-chat/internal/queue"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultWorkers is the in-process analysis concurrency
	DefaultWorkers = 4
	// DefaultTaskTimeout bounds one analysis
	DefaultTaskTimeout = 60 * time.Second
	// DefaultBacklog is how many analyses may wait before new ones are dropped
	DefaultBacklog = 256
)

// ErrSchedulerClosed is reported when a task arrives after Close
var ErrSchedulerClosed = errors.New("scheduler closed")

// Task is one detached profile analysis
type Task struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
	Turns          []ai.Turn
}

// Scheduler submits analyses without blocking the caller on their outcome
type Scheduler interface {
	Schedule(ctx context.Context, task Task)
}

// LocalScheduler runs analyses on a bounded pool of goroutines in this process
type LocalScheduler struct {
	analyzer Analyzer
	timeout  time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	tasks  chan scheduled
	wg     sync.WaitGroup
}

type scheduled struct {
	ctx  context.Context
	task Task
}

// NewLocalScheduler starts workers goroutines that run analyses until Close
func NewLocalScheduler(analyzer Analyzer, workers int, timeout time.Duration, logger *zap.Logger) *LocalScheduler {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &LocalScheduler{
		analyzer: analyzer,
		timeout:  timeout,
		logger:   logger,
		tasks:    make(chan scheduled, DefaultBacklog),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Schedule queues the task. It never blocks; a full backlog drops the task.
func (s *LocalScheduler) Schedule(ctx context.Context, task Task) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.logger.Warn("profile_analysis_dropped",
			zap.String("user_hash", ai.HashUserID(task.UserID.String())),
			zap.Error(ErrSchedulerClosed),
		)
		return
	}

	// Keep request-scoped values for logging but not the request's cancellation
	item := scheduled{ctx: context.WithoutCancel(ctx), task: task}
	select {
	case s.tasks <- item:
	default:
		s.logger.Warn("profile_analysis_dropped",
			zap.String("user_hash", ai.HashUserID(task.UserID.String())),
			zap.String("reason", "backlog full"),
		)
	}
}

func (s *LocalScheduler) worker() {
	defer s.wg.Done()
	for item := range s.tasks {
		s.run(item)
	}
}

func (s *LocalScheduler) run(item scheduled) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("profile_analysis_panic", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(item.ctx, s.timeout)
	defer cancel()
	s.analyzer.AnalyzeAndMerge(ctx, item.task.UserID, item.task.Turns)
}

// Close stops accepting tasks and waits for queued ones to finish
func (s *LocalScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.tasks)
	s.mu.Unlock()

	s.wg.Wait()
}

// QueueScheduler publishes analyses to the job queue for cmd/worker to run
type QueueScheduler struct {
	queue   queue.JobQueue
	timeout time.Duration
	logger  *zap.Logger
}

// NewQueueScheduler creates a scheduler backed by q
func NewQueueScheduler(q queue.JobQueue, logger *zap.Logger) *QueueScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueScheduler{queue: q, timeout: 5 * time.Second, logger: logger}
}

// Schedule enqueues a profile_analysis job. Enqueue failures are logged and dropped.
func (s *QueueScheduler) Schedule(ctx context.Context, task Task) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	job := TaskToJob(task)
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Warn("profile_analysis_enqueue_failed",
			zap.String("user_hash", ai.HashUserID(task.UserID.String())),
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		return
	}
	s.logger.Debug("profile_analysis_enqueued", zap.String("job_id", job.ID.String()))
}

// TaskToJob converts a task into its queued form
func TaskToJob(task Task) *queue.Job {
	var convID *uuid.UUID
	if task.ConversationID != uuid.Nil {
		id := task.ConversationID
		convID = &id
	}
	job := queue.NewJob(queue.JobTypeProfileAnalysis, task.UserID, convID)
	job.Messages = make([]queue.JobMessage, 0, len(task.Turns))
	for _, t := range task.Turns {
		job.Messages = append(job.Messages, queue.JobMessage{Role: string(t.Role), Content: t.Content})
	}
	return job
}

// JobTurns converts a queued job's messages back into turns, skipping unknown roles
func JobTurns(job *queue.Job) []ai.Turn {
	turns := make([]ai.Turn, 0, len(job.Messages))
	for _, m := range job.Messages {
		role := models.Role(m.Role)
		if !role.Valid() {
			continue
		}
		turns = append(turns, ai.Turn{Role: role, Content: m.Content})
	}
	return turns
}

var (
	_ Scheduler = (*LocalScheduler)(nil)
	_ Scheduler = (*QueueScheduler)(nil)
)
