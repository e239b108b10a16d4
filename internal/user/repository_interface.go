package user

import "context"

type Repository interface {
	// Create inserts the user and, for students, their profile.
	Create(ctx context.Context, u *User, phone string) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	MarkEmailVerified(ctx context.Context, email string) error
}
