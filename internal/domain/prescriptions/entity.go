package prescriptions

import (
	"errors"
	"time"

	"github.com/bryanwahyu/rxguard/internal/domain/analysis"
)

// ID tipe untuk Prescription
type ID string

// Source enum
type Source string

const (
	SourceText  Source = "text"
	SourceImage Source = "image"
)

// ErrNotFound is returned when a prescription does not exist for the user.
var ErrNotFound = errors.New("prescription not found")

// Aggregate Root: Prescription
type Prescription struct {
	ID            ID                      `json:"id"`
	UserID        string                  `json:"user_id"`
	RawText       string                  `json:"raw_text"`
	ImageRef      string                  `json:"image_ref,omitempty"`
	Source        Source                  `json:"source"`
	ExtractedText string                  `json:"extracted_text,omitempty"`
	Analysis      analysis.ParsedAnalysis `json:"analysis"`
	Counts        analysis.RiskCounts     `json:"counts"`
	Model         string                  `json:"model,omitempty"`
	DurationMS    int64                   `json:"duration_ms"`
	CreatedAt     time.Time               `json:"created_at"`
}

// Summary aggregates a user's prescriptions over a time window
type Summary struct {
	Total               int `json:"total_prescriptions"`
	Medications         int `json:"medications"`
	HarmfulCombinations int `json:"harmful_combinations"`
	OverdoseWarnings    int `json:"overdose_warnings"`
	SeriousSideEffects  int `json:"serious_side_effects"`
	FoodInteractions    int `json:"food_interactions"`
}
