package email

import (
	"context"
	"fmt"
	"time"
)

const (
	TypeBookingConfirmed = "booking_confirmed"
	TypeBookingCancelled = "booking_cancelled"
	TypeWaitlistPromoted = "waitlist_promoted"
	TypeSpotAvailable    = "spot_available"
	TypeVerification     = "verification"
	TypeClassReminder    = "class_reminder"
	TypeAdminAlert       = "admin_alert"

	classTimeLayout = "Mon, Jan 2 2006 at 15:04 MST"
	signature       = "\n\n- SwiftFit Studio"
)

// SendBookingConfirmation tells the student how long before start they can
// still cancel with a refund; cancelWindow is the studio's late-cancel window.
func (s *Service) SendBookingConfirmation(ctx context.Context, to, name, classTitle string, start time.Time, cancelWindow time.Duration) error {
	body := fmt.Sprintf("Hi %s,\n\nYou're booked for %s on %s.\n\nNeed to cancel? Do it at least %s before class to get your credit back.",
		name, classTitle, start.Format(classTimeLayout), windowText(cancelWindow))
	return s.enqueue(ctx, TypeBookingConfirmed, to, name, "Booking confirmed: "+classTitle, body+signature)
}

func (s *Service) SendBookingCancellation(ctx context.Context, to, name, classTitle string, start time.Time, creditsRefunded int) error {
	refund := "No credits were refunded."
	if creditsRefunded > 0 {
		refund = fmt.Sprintf("%d credit(s) went back to your account.", creditsRefunded)
	}
	body := fmt.Sprintf("Hi %s,\n\nYour booking for %s on %s has been cancelled. %s",
		name, classTitle, start.Format(classTimeLayout), refund)
	return s.enqueue(ctx, TypeBookingCancelled, to, name, "Booking cancelled: "+classTitle, body+signature)
}

func (s *Service) SendWaitlistPromoted(ctx context.Context, to, name, classTitle string, start time.Time) error {
	body := fmt.Sprintf("Hi %s,\n\nGood news: a spot opened up and you're now booked for %s on %s.",
		name, classTitle, start.Format(classTimeLayout))
	return s.enqueue(ctx, TypeWaitlistPromoted, to, name, "You're off the waitlist: "+classTitle, body+signature)
}

func (s *Service) SendSpotAvailable(ctx context.Context, to, name, classTitle string, start time.Time) error {
	body := fmt.Sprintf("Hi %s,\n\nA spot just opened up in %s on %s. Book now before someone else does.",
		name, classTitle, start.Format(classTimeLayout))
	return s.enqueue(ctx, TypeSpotAvailable, to, name, "A spot opened up: "+classTitle, body+signature)
}

func (s *Service) SendVerificationEmail(ctx context.Context, to, name, link string) error {
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening this link within 24 hours:\n\n%s", name, link)
	return s.enqueue(ctx, TypeVerification, to, name, "Verify your email", body+signature)
}

func (s *Service) SendClassReminder(ctx context.Context, to, name string, lastClass time.Time) error {
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf("Hi %s,\n\nWe haven't seen you since %s. Your spot on the mat is waiting, book a class this week!",
		name, lastClass.Format("January 2"))
	return s.enqueue(ctx, TypeClassReminder, to, name, "We miss you at SwiftFit", body+signature)
}

func (s *Service) SendAdminAlert(ctx context.Context, to, subject, body string) error {
	return s.enqueue(ctx, TypeAdminAlert, to, "", "[SwiftFit] "+subject, body)
}

func windowText(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "1 hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d minutes", int(d.Round(time.Minute)/time.Minute))
	}
}
