package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"swiftfit/internal/logger"
	"swiftfit/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const (
	queueKey  = "emails"
	failedKey = "emails:failed"

	maxTries    = 3
	pollTimeout = 2 * time.Second
)

type EmailJob struct {
	Type    string    `json:"type"`
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

// Service queues outgoing email in Redis and delivers it from a background
// worker. Without Redis it delivers synchronously.
type Service struct {
	redis      *redis.Client
	sender     Sender
	retryDelay time.Duration
}

func New(rdb *redis.Client, sender Sender) *Service {
	return &Service{redis: rdb, sender: sender, retryDelay: 5 * time.Second}
}

func (s *Service) enqueue(ctx context.Context, kind, to, name, subject, body string) error {
	job := EmailJob{
		Type:    kind,
		To:      to,
		Name:    name,
		Subject: subject,
		Body:    body,
		Created: time.Now(),
	}

	if s.redis == nil {
		err := s.sender.Send(ctx, job.message())
		metrics.RecordEmail(kind, result(err, "sent"))
		if err != nil {
			return fmt.Errorf("send %s email to %s: %w", kind, to, err)
		}
		return nil
	}

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := s.redis.LPush(ctx, queueKey, string(data)).Err(); err != nil {
		metrics.RecordEmail(kind, "queue_error")
		logger.Error("failed to queue email", "type", kind, logger.FieldError, err)
		return err
	}

	metrics.RecordEmail(kind, "queued")
	logger.Debug("email queued", "type", kind, "subject", subject)
	return nil
}

func (j EmailJob) message() Message {
	return Message{To: j.To, Name: j.Name, Subject: j.Subject, Body: j.Body}
}

func result(err error, ok string) string {
	if err != nil {
		return "failed"
	}
	return ok
}

// Start runs the delivery worker until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	if s.redis == nil {
		return
	}
	logger.Info("email worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("email worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	res, err := s.redis.BRPop(ctx, pollTimeout, queueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			logger.Warn("email queue unavailable", logger.FieldError, err)
			s.wait(ctx, time.Second)
		}
		return
	}

	var job EmailJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		logger.Error("dropping malformed email job", logger.FieldError, err)
		return
	}

	job.Tries++
	err = s.sender.Send(ctx, job.message())
	if err == nil {
		metrics.RecordEmail(job.Type, "sent")
		logger.Info("email sent", "type", job.Type, "tries", job.Tries)
		return
	}

	logger.Warn("email delivery failed", "type", job.Type, "tries", job.Tries, logger.FieldError, err)
	if job.Tries >= maxTries {
		metrics.RecordEmail(job.Type, "failed")
		s.saveFailed(job, err)
		return
	}

	metrics.RecordEmail(job.Type, "retry")
	s.wait(ctx, s.retryDelay)
	data, _ := json.Marshal(job)
	if err := s.redis.LPush(context.Background(), queueKey, string(data)).Err(); err != nil {
		logger.Error("failed to requeue email", "type", job.Type, logger.FieldError, err)
	}
}

func (s *Service) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (s *Service) saveFailed(job EmailJob, cause error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": cause.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	if err := s.redis.LPush(context.Background(), failedKey, string(data)).Err(); err != nil {
		logger.Error("failed to park email", logger.FieldError, err)
		return
	}
	logger.Error("email moved to failed queue", "type", job.Type, "tries", job.Tries)
}

// QueueLength reports the pending jobs and updates the queue gauge.
func (s *Service) QueueLength(ctx context.Context) int64 {
	if s.redis == nil {
		return 0
	}
	n, _ := s.redis.LLen(ctx, queueKey).Result()
	metrics.EmailQueueLength.Set(float64(n))
	return n
}

func (s *Service) Close() error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Close()
}
