package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	logpkg "github.com/benvon/assistant-chat/internal/logger"
	"github.com/benvon/assistant-chat/internal/queue"
	"github.com/benvon/assistant-chat/internal/services/ai"
	"github.com/benvon/assistant-chat/internal/services/profile"
	"go.uber.org/zap"
)

// DefaultJobTimeout bounds a single profile analysis
const DefaultJobTimeout = 60 * time.Second

// ProfileAnalyzer processes profile analysis jobs taken from the queue
type ProfileAnalyzer struct {
	analyzer profile.Analyzer
	timeout  time.Duration
	logger   *zap.Logger
}

// NewProfileAnalyzer creates a new profile analysis worker
func NewProfileAnalyzer(analyzer profile.Analyzer, timeout time.Duration, logger *zap.Logger) *ProfileAnalyzer {
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileAnalyzer{analyzer: analyzer, timeout: timeout, logger: logger}
}

// ProcessJob runs one job. Analysis failures are logged by the analyzer and the
// message is still acked: enrichment is best effort and never retried.
// Malformed and unknown jobs are dead-lettered.
func (p *ProfileAnalyzer) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()
	if job == nil {
		if err := msg.Nack(false); err != nil {
			p.logger.Warn("failed_to_nack_job", zap.Error(err))
		}
		return errors.New("message carries no job")
	}

	if job.Type != queue.JobTypeProfileAnalysis {
		if err := msg.Nack(false); err != nil {
			p.logger.Warn("failed_to_nack_job", zap.String("job_id", job.ID.String()), zap.Error(err))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if job.IsExpired() {
		p.logger.Info("profile_job_expired",
			zap.String("job_id", job.ID.String()),
			zap.Time("created_at", job.CreatedAt),
		)
		return ackJob(msg)
	}

	turns := profile.JobTurns(job)
	if len(turns) > 0 {
		jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
		p.analyzer.AnalyzeAndMerge(ai.WithRequestID(jobCtx, job.ID.String()), job.UserID, turns)
		cancel()
	}

	p.logger.Debug("profile_job_processed",
		zap.String("job_id", job.ID.String()),
		zap.Int("turns", len(turns)),
	)
	return ackJob(msg)
}

// Run processes messages until ctx is cancelled or the delivery channel closes
func (p *ProfileAnalyzer) Run(ctx context.Context, msgs <-chan *queue.Message, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Error("queue_error", zap.Error(err))
		case msg, ok := <-msgs:
			if !ok {
				p.logger.Info("message_channel_closed")
				return
			}
			if err := p.ProcessJob(ctx, msg); err != nil {
				p.logger.Error("failed_to_process_job", zap.String("error", logpkg.SanitizeError(err)))
			}
		}
	}
}

func ackJob(msg queue.MessageInterface) error {
	if err := msg.Ack(); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}
