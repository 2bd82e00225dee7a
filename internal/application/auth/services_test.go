package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/rxguard/internal/application"
	"github.com/bryanwahyu/rxguard/internal/domain/users"
	"github.com/bryanwahyu/rxguard/internal/infra/db/memory"
)

func newService(t *testing.T) (*Service, *memory.UserRepository) {
	t.Helper()
	tokens, err := NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	repo := memory.NewUserRepository()
	return &Service{Users: repo, Tokens: tokens, Clock: application.SystemClock{}, Cost: bcrypt.MinCost}, repo
}

func TestPasswordIsHashedBeforeSaving(t *testing.T) {
	svc, repo := newService(t)
	password := "Password@123"

	sess, err := svc.Register(context.Background(), RegisterCommand{Name: "Test User", Email: "test@example.com", Password: password})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored, err := repo.FindByID(context.Background(), sess.User.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.PasswordHash == password || stored.PasswordHash == "" {
		t.Fatalf("password was stored in plain text")
	}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterCommand{Email: "a@b.c", Password: "x"}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("err = %v", err)
	}
	if _, err := svc.Register(ctx, RegisterCommand{Name: "A", Email: "a@b.c", Password: "pw"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(ctx, RegisterCommand{Name: "B", Email: "A@B.C", Password: "pw"}); !errors.Is(err, users.ErrEmailTaken) {
		t.Fatalf("duplicate err = %v", err)
	}
}

func TestLoginAndVerify(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterCommand{Name: "Ana", Email: "ana@example.com", Password: "secret1", City: "Porto"})
	if err != nil {
		t.Fatal(err)
	}

	sess, err := svc.Login(ctx, "Ana@Example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	userID, err := svc.VerifyToken(sess.Token)
	if err != nil || userID != reg.User.ID {
		t.Fatalf("VerifyToken = %q, %v", userID, err)
	}

	if _, err := svc.Login(ctx, "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user err = %v", err)
	}
	if _, err := svc.VerifyToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage token err = %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	issuer, _ := NewTokenIssuer("k", time.Minute)
	start := time.Now()
	issuer.now = func() time.Time { return start }
	tok, err := issuer.Generate("u1", "u1@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if id, _, err := issuer.Validate(tok); err != nil || id != "u1" {
		t.Fatalf("Validate = %q, %v", id, err)
	}
	issuer.now = func() time.Time { return start.Add(2 * time.Minute) }
	if _, _, err := issuer.Validate(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token err = %v", err)
	}

	other, _ := NewTokenIssuer("different", time.Minute)
	other.now = func() time.Time { return start }
	if _, _, err := other.Validate(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong key err = %v", err)
	}
}

func TestNewTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("", time.Hour); err == nil {
		t.Fatal("expected error")
	}
}
