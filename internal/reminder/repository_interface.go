package reminder

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, r *Reminder) error
	Due(ctx context.Context, today time.Time) ([]DueReminder, error)
	MarkSent(ctx context.Context, id int, now time.Time) error
}
