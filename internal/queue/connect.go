package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDialAttempts covers a broker that is still starting alongside the app
	DefaultDialAttempts = 10

	initialDialDelay = 2 * time.Second
	maxDialDelay     = 30 * time.Second
)

// DialWithRetry connects to RabbitMQ with exponential backoff
func DialWithRetry(ctx context.Context, amqpURL string, attempts int, logger *zap.Logger) (*RabbitMQQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		q, err := NewRabbitMQQueue(amqpURL, logger)
		if err == nil {
			logger.Info("connected_to_rabbitmq", zap.Int("attempt", attempt+1))
			return q, nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}

		delay := backoffDelay(attempt)
		logger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", attempts),
			zap.Error(err),
			zap.Duration("retry_delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, fmt.Errorf("rabbitmq unreachable after %d attempts: %w", attempts, lastErr)
}

func backoffDelay(attempt int) time.Duration {
	delay := initialDialDelay * time.Duration(1<<uint(attempt))
	if delay > maxDialDelay || delay <= 0 {
		return maxDialDelay
	}
	return delay
}
