package scheduler

import (
	"context"
	"fmt"
	"time"

	"swiftfit/internal/credit"
	"swiftfit/internal/logger"
	"swiftfit/internal/metrics"
	"swiftfit/internal/reminder"

	"github.com/robfig/cron/v3"
)

const (
	JobExpireCredits = "expire_credits"
	JobRenewals      = "process_renewals"
	JobReminders     = "send_reminders"

	jobTimeout = 5 * time.Minute
)

type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs the periodic maintenance jobs in-process, as an alternative
// to an external cron hitting the /cron/* endpoints.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func New(jobs ...Job) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:    ctx,
		cancel: cancel,
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule %s %q: %w", job.Name, job.Spec, err)
		}
		logger.Info("job scheduled", "job", job.Name, "spec", job.Spec)
	}
	return s, nil
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	metrics.RecordJobRun(job.Name, err)
	if err != nil {
		logger.Error("scheduled job failed", "job", job.Name, logger.FieldError, err)
		return
	}
	logger.Info("scheduled job finished", "job", job.Name, "duration", time.Since(start).String())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

type Expirer interface {
	ExpireCredits(ctx context.Context) (*credit.ExpireResult, error)
}

type Renewer interface {
	ProcessRenewals(ctx context.Context) (*credit.RenewalSummary, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context) (*reminder.DispatchResult, error)
}

func ExpireCreditsJob(spec string, svc Expirer) Job {
	return Job{Name: JobExpireCredits, Spec: spec, Run: func(ctx context.Context) error {
		res, err := svc.ExpireCredits(ctx)
		if err != nil {
			return err
		}
		logger.Info("credits expired", "checked", res.Checked, "expired", res.Expired, "failed", res.Failed)
		return nil
	}}
}

func RenewalsJob(spec string, svc Renewer) Job {
	return Job{Name: JobRenewals, Spec: spec, Run: func(ctx context.Context) error {
		res, err := svc.ProcessRenewals(ctx)
		if err != nil {
			return err
		}
		logger.Info("renewals processed", "processed", res.Processed, "renewed", res.Renewed, "failed", res.Failed)
		return nil
	}}
}

func RemindersJob(spec string, svc Dispatcher) Job {
	return Job{Name: JobReminders, Spec: spec, Run: func(ctx context.Context) error {
		res, err := svc.Dispatch(ctx)
		if err != nil {
			return err
		}
		if res.Failed > 0 {
			logger.Warn("some reminders were not delivered", "due", res.Due, "failed", res.Failed)
		}
		return nil
	}}
}
