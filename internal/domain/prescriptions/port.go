package prescriptions

import (
	"context"
	"io"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, p *Prescription) error
	Get(ctx context.Context, userID string, id ID) (*Prescription, error)
	Latest(ctx context.Context, userID string, limit int) ([]*Prescription, error)
	Paginate(ctx context.Context, userID string, page, pageSize int) ([]*Prescription, error)
	Count(ctx context.Context, userID string) (int64, error)
	Summary(ctx context.Context, userID string, sinceDays int) (Summary, error)
}

// ImageStore port (interface untuk penyimpanan gambar resep)
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}
