package reminder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"swiftfit/internal/api"
	"swiftfit/internal/logger"
)

var (
	ErrReminderNotFound      = api.NotFound("REMINDER_NOT_FOUND", "reminder not found")
	ErrInvalidDate           = api.Validation("INVALID_DATE", "lastClassDate must be YYYY-MM-DD")
	ErrRecipientRequired     = api.Validation("RECIPIENT_REQUIRED", "studentProfileId or email is required")
	ErrInvalidStudentProfile = api.Validation("INVALID_STUDENT_PROFILE", "student profile does not exist")
	errNoRecipient           = errors.New("reminder has no recipient email")
)

type Notifier interface {
	SendClassReminder(ctx context.Context, to, name string, lastClass time.Time) error
}

type Service interface {
	Due(ctx context.Context) ([]DueReminder, error)
	Schedule(ctx context.Context, req ScheduleRequest) (*Reminder, error)
	MarkSent(ctx context.Context, id int) error
	Dispatch(ctx context.Context) (*DispatchResult, error)
}

type service struct {
	repo     Repository
	notifier Notifier
	now      func() time.Time
}

func NewService(repo Repository, notifier Notifier) Service {
	return &service{repo: repo, notifier: notifier, now: time.Now}
}

func (s *service) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *service) Due(ctx context.Context) ([]DueReminder, error) {
	return s.repo.Due(ctx, s.today())
}

// Schedule books a reminder FollowUpDays after the last class date.
func (s *service) Schedule(ctx context.Context, req ScheduleRequest) (*Reminder, error) {
	last, err := time.Parse(DateLayout, strings.TrimSpace(req.LastClassDate))
	if err != nil {
		return nil, ErrInvalidDate
	}

	rem := &Reminder{
		StudentProfileID:     req.StudentProfileID,
		LastClassDate:        NewDate(last),
		ReminderScheduledFor: NewDate(last.AddDate(0, 0, FollowUpDays)),
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		rem.Email = &email
	}
	if rem.StudentProfileID == nil && rem.Email == nil {
		return nil, ErrRecipientRequired
	}

	if err := s.repo.Create(ctx, rem); err != nil {
		return nil, fmt.Errorf("schedule reminder: %w", err)
	}
	logger.Info("class reminder scheduled", "reminder_id", rem.ID,
		"scheduled_for", rem.ReminderScheduledFor.Format(DateLayout))
	return rem, nil
}

func (s *service) MarkSent(ctx context.Context, id int) error {
	return s.repo.MarkSent(ctx, id, s.now())
}

// Dispatch emails every due reminder and marks the delivered ones sent.
// A failed reminder stays due and is retried on the next run.
func (s *service) Dispatch(ctx context.Context) (*DispatchResult, error) {
	due, err := s.repo.Due(ctx, s.today())
	if err != nil {
		return nil, err
	}

	result := &DispatchResult{Due: len(due), Failures: []DispatchFailure{}}
	fail := func(id int, err error) {
		result.Failed++
		result.Failures = append(result.Failures, DispatchFailure{ReminderID: id, Error: err.Error()})
		logger.Warn("class reminder not sent", "reminder_id", id, logger.FieldError, err)
	}

	for _, r := range due {
		if r.RecipientEmail == "" {
			fail(r.ID, errNoRecipient)
			continue
		}
		if s.notifier != nil {
			if err := s.notifier.SendClassReminder(ctx, r.RecipientEmail, r.RecipientName, r.LastClassDate.Time); err != nil {
				fail(r.ID, err)
				continue
			}
		}
		if err := s.repo.MarkSent(ctx, r.ID, s.now()); err != nil {
			fail(r.ID, err)
			continue
		}
		result.Sent++
	}

	logger.Info("class reminders dispatched", "due", result.Due, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}
