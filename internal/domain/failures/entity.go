package failures

import "time"

// Phase enum
type Phase string

const (
	PhaseAnalyze Phase = "analyze"
	PhaseExtract Phase = "extract"
)

// Failure represents a persisted pipeline failure entry, kept for diagnostics
type Failure struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Phase       Phase     `json:"phase"`
	Kind        string    `json:"kind,omitempty"`
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
