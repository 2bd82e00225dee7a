package users

import "context"

// Repository port for user accounts. Create returns ErrEmailTaken on a
// duplicate email; lookups return ErrNotFound.
type Repository interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	Update(ctx context.Context, u *User) error
}
