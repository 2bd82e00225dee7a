package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/rxguard/internal/application"
	"github.com/bryanwahyu/rxguard/internal/domain/users"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrMissingFields      = errors.New("name, email and password are required")
)

// Service handles account registration and login.
type Service struct {
	Users  users.Repository
	Tokens *TokenIssuer
	Clock  application.Clock
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

// Command untuk register user baru
type RegisterCommand struct {
	Name        string
	Email       string
	Password    string
	Phone       string
	DateOfBirth string
	Address     string
	City        string
	State       string
	ZipCode     string
	Country     string
}

// Session is returned after a successful register or login.
type Session struct {
	User  *users.User `json:"user"`
	Token string      `json:"token"`
}

// REGISTER
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if strings.TrimSpace(cmd.Name) == "" || email == "" || cmd.Password == "" {
		return Session{}, ErrMissingFields
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), cost)
	if err != nil {
		return Session{}, err
	}

	now := s.Clock.Now()
	u := &users.User{
		Name:         strings.TrimSpace(cmd.Name),
		Email:        email,
		PasswordHash: string(hash),
		Phone:        cmd.Phone,
		DateOfBirth:  cmd.DateOfBirth,
		Address:      cmd.Address,
		City:         cmd.City,
		State:        cmd.State,
		ZipCode:      cmd.ZipCode,
		Country:      cmd.Country,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		return Session{}, err
	}

	token, err := s.Tokens.Generate(u.ID, u.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token}, nil
}

// LOGIN
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.Users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	token, err := s.Tokens.Generate(u.ID, u.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token}, nil
}

// VerifyToken returns the user id of a valid session token.
func (s *Service) VerifyToken(token string) (string, error) {
	userID, _, err := s.Tokens.Validate(token)
	return userID, err
}
