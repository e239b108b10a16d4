package waitlist

import (
	"context"
	"fmt"
	"time"

	"swiftfit/internal/api"
	"swiftfit/internal/auth"
	"swiftfit/internal/class"
	"swiftfit/internal/logger"
	"swiftfit/internal/metrics"
)

var (
	ErrEntryNotFound     = api.NotFound("WAITLIST_ENTRY_NOT_FOUND", "waitlist entry not found")
	ErrAlreadyWaitlisted = api.Conflict("ALREADY_WAITLISTED", "student is already on the waitlist for this class")
	ErrClassHasSpots     = api.Validation("CLASS_HAS_SPOTS", "class still has free spots, book it directly")
)

// Notifier sends waitlist emails; errors are logged and ignored.
type Notifier interface {
	SendWaitlistPromoted(ctx context.Context, to, name, classTitle string, start time.Time) error
	SendSpotAvailable(ctx context.Context, to, name, classTitle string, start time.Time) error
}

type Config struct {
	// AutoPromote decides what happens when a booking cancellation frees a
	// seat: book the next student, or only tell them.
	AutoPromote bool
}

type Service interface {
	Join(ctx context.Context, profileID, classID int) (*Entry, error)
	Leave(ctx context.Context, caller auth.Identity, entryID int) error
	ListForClass(ctx context.Context, classID int) ([]EntryWithDetails, error)
	ListForProfile(ctx context.Context, profileID int) ([]EntryWithDetails, error)
	Promote(ctx context.Context, classID int, autoPromote bool) (*PromoteResult, error)
	OnSpotReleased(ctx context.Context, classID int) error
}

type service struct {
	repo     Repository
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

func NewService(repo Repository, notifier Notifier, cfg Config) Service {
	return &service{repo: repo, notifier: notifier, cfg: cfg, now: time.Now}
}

func (s *service) Join(ctx context.Context, profileID, classID int) (*Entry, error) {
	e, err := s.repo.Join(ctx, classID, profileID, s.now())
	if err != nil {
		return nil, err
	}
	logger.Info("joined waitlist",
		logger.FieldClassID, classID, logger.FieldProfileID, profileID, "position", e.Position)
	return e, nil
}

func (s *service) Leave(ctx context.Context, caller auth.Identity, entryID int) error {
	e, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if !caller.CanAccessProfile(e.StudentProfileID) {
		return api.ErrForbidden
	}
	if err := s.repo.Leave(ctx, entryID); err != nil {
		return fmt.Errorf("leave waitlist %d: %w", entryID, err)
	}
	logger.Info("left waitlist", logger.FieldClassID, e.ClassID, logger.FieldProfileID, e.StudentProfileID)
	return nil
}

func (s *service) ListForClass(ctx context.Context, classID int) ([]EntryWithDetails, error) {
	if _, err := s.repo.GetClass(ctx, classID); err != nil {
		return nil, err
	}
	return s.repo.ListByClass(ctx, classID)
}

func (s *service) ListForProfile(ctx context.Context, profileID int) ([]EntryWithDetails, error) {
	return s.repo.ListByProfile(ctx, profileID)
}

// Promote runs one promotion pass and emails the affected students once the
// changes are committed.
func (s *service) Promote(ctx context.Context, classID int, autoPromote bool) (*PromoteResult, error) {
	result, err := s.repo.Promote(ctx, classID, autoPromote, s.now())
	if err != nil {
		return nil, err
	}

	metrics.RecordWaitlistPromotions(ModeAutoBook, result.Promoted)
	metrics.RecordWaitlistPromotions(ModeNotify, result.Notified)
	if len(result.Promotions) > 0 {
		logger.Info("waitlist promoted",
			logger.FieldClassID, classID, "mode", result.Mode,
			"promoted", result.Promoted, "notified", result.Notified, "remaining", result.Remaining)
	}

	s.notify(ctx, classID, result.Promotions)
	return result, nil
}

// OnSpotReleased implements booking.Promoter.
func (s *service) OnSpotReleased(ctx context.Context, classID int) error {
	_, err := s.Promote(ctx, classID, s.cfg.AutoPromote)
	return err
}

func (s *service) notify(ctx context.Context, classID int, promotions []Promotion) {
	if s.notifier == nil || len(promotions) == 0 {
		return
	}

	var c *class.Class
	for _, p := range promotions {
		if p.Action == ActionSkipped {
			continue
		}
		if c == nil {
			var err error
			if c, err = s.repo.GetClass(ctx, classID); err != nil {
				logger.Warn("class lookup for waitlist email failed", logger.FieldClassID, classID, logger.FieldError, err)
				return
			}
		}

		contact, err := s.repo.Contact(ctx, p.StudentProfileID)
		if err != nil || contact.Email == "" {
			logger.Warn("no contact for waitlist email", logger.FieldProfileID, p.StudentProfileID, logger.FieldError, err)
			continue
		}

		send := s.notifier.SendSpotAvailable
		if p.Action == ActionBooked {
			send = s.notifier.SendWaitlistPromoted
		}
		if err := send(ctx, contact.Email, contact.Name, c.Title, c.StartTime); err != nil {
			logger.Warn("waitlist email failed", logger.FieldProfileID, p.StudentProfileID, logger.FieldError, err)
		}
	}
}
