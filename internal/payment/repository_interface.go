package payment

import "context"

type Repository interface {
	ListByProfile(ctx context.Context, profileID int) ([]Payment, error)
	List(ctx context.Context, limit, offset int) ([]Payment, error)

	ListMethods(ctx context.Context, profileID int) ([]PaymentMethod, error)
	GetMethod(ctx context.Context, id int) (*PaymentMethod, error)
	CreateMethod(ctx context.Context, pm *PaymentMethod) error
	DeleteMethod(ctx context.Context, id int) error
}
