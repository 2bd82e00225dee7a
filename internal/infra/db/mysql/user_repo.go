package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	domain "github.com/bryanwahyu/rxguard/internal/domain/users"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository { return &UserRepository{db: db} }

const userColumns = `id, name, email, password_hash, phone, date_of_birth, address, city, state, zip_code, country, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	const q = `INSERT INTO users (` + userColumns + `) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err := r.db.ExecContext(ctx, q,
		u.ID, u.Name, strings.ToLower(u.Email), u.PasswordHash, u.Phone, u.DateOfBirth,
		u.Address, u.City, u.State, u.ZipCode, u.Country, u.CreatedAt, u.UpdatedAt)
	if isDuplicate(err) {
		return domain.ErrEmailTaken
	}
	return err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`, strings.ToLower(email))
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id)
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	const q = `
UPDATE users
SET name = ?, phone = ?, date_of_birth = ?, address = ?, city = ?, state = ?, zip_code = ?, country = ?, updated_at = ?
WHERE id = ?;`
	res, err := r.db.ExecContext(ctx, q,
		u.Name, u.Phone, u.DateOfBirth, u.Address, u.City, u.State, u.ZipCode, u.Country, u.UpdatedAt, u.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, q string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.DateOfBirth,
		&u.Address, &u.City, &u.State, &u.ZipCode, &u.Country, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
