package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/rxguard/internal/domain/prescriptions"
)

type PrescriptionRepository struct {
	db *sql.DB
}

func NewPrescriptionRepository(db *sql.DB) *PrescriptionRepository {
	return &PrescriptionRepository{db: db}
}

const prescriptionColumns = `id, user_id, raw_text, image_ref, source, extracted_text, analysis_json,
       medications, harmful_combinations, overdose_warnings, serious_side_effects, food_interactions,
       model, duration_ms, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrescription(row rowScanner) (*domain.Prescription, error) {
	var p domain.Prescription
	var blob []byte
	if err := row.Scan(
		&p.ID, &p.UserID, &p.RawText, &p.ImageRef, &p.Source, &p.ExtractedText, &blob,
		&p.Counts.Medications, &p.Counts.HarmfulCombinations, &p.Counts.OverdoseWarnings,
		&p.Counts.SeriousSideEffects, &p.Counts.FoodInteractions,
		&p.Model, &p.DurationMS, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(blob, &p.Analysis); err != nil {
		return nil, fmt.Errorf("decode analysis for %s: %w", p.ID, err)
	}
	return &p, nil
}

func scanPrescriptions(rows *sql.Rows) ([]*domain.Prescription, error) {
	defer rows.Close()
	out := make([]*domain.Prescription, 0)
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Save insert/update Prescription record; the analysis is stored verbatim as JSON.
func (r *PrescriptionRepository) Save(ctx context.Context, p *domain.Prescription) error {
	const q = `
INSERT INTO prescriptions
(id, user_id, raw_text, image_ref, source, extracted_text, analysis_json,
 medications, harmful_combinations, overdose_warnings, serious_side_effects, food_interactions,
 model, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 analysis_json=VALUES(analysis_json),
 medications=VALUES(medications), harmful_combinations=VALUES(harmful_combinations),
 overdose_warnings=VALUES(overdose_warnings), serious_side_effects=VALUES(serious_side_effects),
 food_interactions=VALUES(food_interactions),
 model=VALUES(model), duration_ms=VALUES(duration_ms);
`
	blob, err := json.Marshal(p.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = r.db.ExecContext(ctx, q,
		p.ID, stringOrDash(p.UserID), p.RawText, p.ImageRef, stringOrDash(string(p.Source)), p.ExtractedText, blob,
		p.Counts.Medications, p.Counts.HarmfulCombinations, p.Counts.OverdoseWarnings,
		p.Counts.SeriousSideEffects, p.Counts.FoodInteractions,
		p.Model, p.DurationMS, created,
	)
	return err
}

// Get by ID + user
func (r *PrescriptionRepository) Get(ctx context.Context, userID string, id domain.ID) (*domain.Prescription, error) {
	q := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE user_id=? AND id=? LIMIT 1;`
	p, err := scanPrescription(r.db.QueryRowContext(ctx, q, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return p, err
}

// Latest prescriptions per user
func (r *PrescriptionRepository) Latest(ctx context.Context, userID string, limit int) ([]*domain.Prescription, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	return scanPrescriptions(rows)
}

// Paginate with offset + limit (classic pagination)
func (r *PrescriptionRepository) Paginate(ctx context.Context, userID string, page, pageSize int) ([]*domain.Prescription, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	q := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE user_id=? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?;`
	rows, err := r.db.QueryContext(ctx, q, userID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("querying prescriptions: %w", err)
	}
	return scanPrescriptions(rows)
}

// Count returns the total number of prescriptions of the user
func (r *PrescriptionRepository) Count(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prescriptions WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// Summary sums risk counts since N days
func (r *PrescriptionRepository) Summary(ctx context.Context, userID string, sinceDays int) (domain.Summary, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)
	const q = `
SELECT COUNT(*),
       COALESCE(SUM(medications),0),
       COALESCE(SUM(harmful_combinations),0),
       COALESCE(SUM(overdose_warnings),0),
       COALESCE(SUM(serious_side_effects),0),
       COALESCE(SUM(food_interactions),0)
FROM prescriptions
WHERE user_id=? AND created_at >= ?;
`
	var s domain.Summary
	err := r.db.QueryRowContext(ctx, q, userID, cut).Scan(
		&s.Total, &s.Medications, &s.HarmfulCombinations, &s.OverdoseWarnings, &s.SeriousSideEffects, &s.FoodInteractions,
	)
	return s, err
}
