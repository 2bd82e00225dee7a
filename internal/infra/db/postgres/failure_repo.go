package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/bryanwahyu/rxguard/internal/domain/failures"
)

type FailureRepository struct{ db *sql.DB }

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *domain.Failure) error {
	const q = `
INSERT INTO prescription_failures (user_id, phase, kind, message, details_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id;`
	details := f.DetailsJSON
	if strings.TrimSpace(details) == "" {
		details = "{}"
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return r.db.QueryRowContext(ctx, q,
		stringOrDash(f.UserID), stringOrDash(string(f.Phase)), stringOrDash(f.Kind), stringOrDash(f.Message), details, created,
	).Scan(&f.ID)
}

func (r *FailureRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Failure, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, user_id, phase, kind, message, details_json, created_at
FROM prescription_failures
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*domain.Failure, 0)
	for rows.Next() {
		var f domain.Failure
		if err := rows.Scan(&f.ID, &f.UserID, &f.Phase, &f.Kind, &f.Message, &f.DetailsJSON, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
