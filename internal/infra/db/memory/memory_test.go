package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bryanwahyu/rxguard/internal/domain/analysis"
	"github.com/bryanwahyu/rxguard/internal/domain/failures"
	"github.com/bryanwahyu/rxguard/internal/domain/prescriptions"
	"github.com/bryanwahyu/rxguard/internal/domain/users"
)

func TestPrescriptionRepositoryOrderingAndScope(t *testing.T) {
	ctx := context.Background()
	repo := NewPrescriptionRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base.Add(10 * time.Hour) }

	for i := 0; i < 5; i++ {
		p := &prescriptions.Prescription{
			ID:        prescriptions.ID(fmt.Sprintf("rx-%d", i)),
			UserID:    "u1",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Counts:    analysis.RiskCounts{Medications: 2, HarmfulCombinations: 1},
		}
		if err := repo.Save(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	_ = repo.Save(ctx, &prescriptions.Prescription{ID: "other", UserID: "u2", CreatedAt: base})

	latest, _ := repo.Latest(ctx, "u1", 2)
	if len(latest) != 2 || latest[0].ID != "rx-4" || latest[1].ID != "rx-3" {
		t.Fatalf("latest = %v, %v", latest[0].ID, latest[1].ID)
	}

	page2, _ := repo.Paginate(ctx, "u1", 2, 2)
	if len(page2) != 2 || page2[0].ID != "rx-2" {
		t.Fatalf("page 2 = %+v", page2)
	}
	if empty, _ := repo.Paginate(ctx, "u1", 9, 2); len(empty) != 0 {
		t.Fatalf("page out of range returned %d items", len(empty))
	}
	if n, _ := repo.Count(ctx, "u1"); n != 5 {
		t.Fatalf("count = %d", n)
	}

	if _, err := repo.Get(ctx, "u2", "rx-1"); !errors.Is(err, prescriptions.ErrNotFound) {
		t.Fatalf("cross-user get err = %v", err)
	}

	sum, _ := repo.Summary(ctx, "u1", 1)
	if sum.Total != 5 || sum.Medications != 10 || sum.HarmfulCombinations != 5 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestFailureRepositoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewFailureRepository()
	for i := 0; i < 3; i++ {
		_ = repo.Save(ctx, &failures.Failure{UserID: "u1", Message: fmt.Sprint(i)})
	}
	_ = repo.Save(ctx, &failures.Failure{UserID: "u2", Message: "x"})

	list, _ := repo.ListByUser(ctx, "u1", 2)
	if len(list) != 2 || list[0].Message != "2" || list[0].ID != 3 {
		t.Fatalf("list = %+v", list)
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository()
	u := &users.User{Name: "Ana", Email: "Ana@example.com"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatal(err)
	}
	if u.ID == "" {
		t.Fatal("id not assigned")
	}
	if err := repo.Create(ctx, &users.User{Email: "ana@example.com"}); !errors.Is(err, users.ErrEmailTaken) {
		t.Fatalf("duplicate err = %v", err)
	}
	got, err := repo.FindByEmail(ctx, "ANA@example.com")
	if err != nil || got.ID != u.ID {
		t.Fatalf("FindByEmail = %+v, %v", got, err)
	}
	got.City = "Lisbon"
	if err := repo.Update(ctx, got); err != nil {
		t.Fatal(err)
	}
	again, _ := repo.FindByID(ctx, u.ID)
	if again.City != "Lisbon" {
		t.Fatalf("update not persisted: %+v", again)
	}
	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, users.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}
