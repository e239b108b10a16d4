package class

import (
	"context"
	"time"
)

type Repository interface {
	CreateType(ctx context.Context, ct *ClassType) error
	ListTypes(ctx context.Context) ([]ClassType, error)
	TypeExists(ctx context.Context, id int) (bool, error)

	Create(ctx context.Context, c *Class) error
	GetByID(ctx context.Context, id int) (*Class, error)
	ListWithAvailability(ctx context.Context, from, to time.Time) ([]ClassWithAvailability, error)
	SetStatus(ctx context.Context, id int, status string) error
}
