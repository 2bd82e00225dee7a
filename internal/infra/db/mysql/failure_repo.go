package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	domain "github.com/bryanwahyu/rxguard/internal/domain/failures"
)

type FailureRepository struct {
	db *sql.DB
}

func NewFailureRepository(db *sql.DB) *FailureRepository { return &FailureRepository{db: db} }

func (r *FailureRepository) Save(ctx context.Context, f *domain.Failure) error {
	const q = `
INSERT INTO prescription_failures
  (user_id, phase, kind, message, details_json, created_at)
VALUES (?,?,?,?,?,?)
`
	msg := f.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := f.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.ExecContext(ctx, q,
		stringOrDash(f.UserID), stringOrDash(string(f.Phase)), stringOrDash(f.Kind), msg, jsonOrEmpty(f.DetailsJSON), created)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		f.ID = id
	}
	return nil
}

func (r *FailureRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Failure, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, user_id, phase, kind, message, details_json, created_at
FROM prescription_failures
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
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
