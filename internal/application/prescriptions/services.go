package prescriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/rxguard/internal/application"
	"github.com/bryanwahyu/rxguard/internal/domain/ai"
	"github.com/bryanwahyu/rxguard/internal/domain/analysis"
	"github.com/bryanwahyu/rxguard/internal/domain/failures"
	domain "github.com/bryanwahyu/rxguard/internal/domain/prescriptions"
)

// DefaultSuggestion is used when no vision-specific suggestion is configured.
const DefaultSuggestion = "Automatic text extraction is not available. Please enter the prescription text manually."

// Service implements the prescription use-cases. It holds no mutable state
// and is safe for concurrent use.
type Service struct {
	Repo       domain.Repository
	FailureLog failures.Repository // optional
	Analyzer   ai.Analyzer
	Extractor  ai.TextExtractor  // vision chain, or a manual-entry stub when vision is disabled
	Images     domain.ImageStore // optional
	Clock      application.Clock
	Model      string
	// Suggestion is returned to users when image extraction fails
	Suggestion string
}

// AnalysisError marks a failure of the model call itself, as opposed to
// input validation. The underlying error stays reachable via errors.Is/As.
type AnalysisError struct {
	Err error
}

func (e *AnalysisError) Error() string {
	return "failed to analyze prescription: " + e.Err.Error()
}

func (e *AnalysisError) Unwrap() error { return e.Err }

//
// ==== USE CASES ====
//

// Command untuk analyze prescription text
type AnalyzeCommand struct {
	UserID        string
	RawText       string
	ImageRef      string
	Source        domain.Source
	ExtractedText string
}

type AnalyzeResult struct {
	ID            string                  `json:"id"`
	RawText       string                  `json:"raw_text"`
	ImageRef      string                  `json:"image_ref,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	Analysis      analysis.ParsedAnalysis `json:"analysis"`
	ExtractedText string                  `json:"extracted_text,omitempty"`
}

// AnalyzePrescription validates the text, runs the analyzer and persists the record.
func (s *Service) AnalyzePrescription(ctx context.Context, cmd AnalyzeCommand) (AnalyzeResult, error) {
	return s.analyze(ctx, cmd, nil)
}

// analyze runs the analyzer and saves the record. imageRef, when set, is
// only called once the analysis succeeded so failed runs leave no object behind.
func (s *Service) analyze(ctx context.Context, cmd AnalyzeCommand, imageRef func(context.Context) string) (AnalyzeResult, error) {
	if strings.TrimSpace(cmd.RawText) == "" {
		return AnalyzeResult{}, ai.ErrInputRequired
	}
	if cmd.Source == "" {
		cmd.Source = domain.SourceText
	}

	start := s.Clock.Now()
	parsed, err := s.Analyzer.Analyze(ctx, cmd.RawText)
	if err != nil {
		s.recordFailure(ctx, cmd.UserID, failures.PhaseAnalyze, err, map[string]any{
			"source":      cmd.Source,
			"text_length": len(cmd.RawText),
		})
		return AnalyzeResult{}, &AnalysisError{Err: err}
	}
	if imageRef != nil {
		cmd.ImageRef = imageRef(ctx)
	}
	now := s.Clock.Now()

	p := &domain.Prescription{
		ID:            domain.ID(uuid.New().String()),
		UserID:        cmd.UserID,
		RawText:       cmd.RawText,
		ImageRef:      cmd.ImageRef,
		Source:        cmd.Source,
		ExtractedText: cmd.ExtractedText,
		Analysis:      parsed,
		Counts:        parsed.Counts(),
		Model:         s.Model,
		DurationMS:    now.Sub(start).Milliseconds(),
		CreatedAt:     now,
	}
	if err := s.Repo.Save(ctx, p); err != nil {
		return AnalyzeResult{}, fmt.Errorf("save prescription: %w", err)
	}

	return AnalyzeResult{
		ID:            string(p.ID),
		RawText:       p.RawText,
		ImageRef:      p.ImageRef,
		CreatedAt:     p.CreatedAt,
		Analysis:      p.Analysis,
		ExtractedText: p.ExtractedText,
	}, nil
}

// Command untuk analyze prescription image
type AnalyzeImageCommand struct {
	UserID      string
	Image       []byte
	Filename    string
	ContentType string
}

// AnalyzeImage extracts text from the image and analyzes it. The image is
// stored only after the analysis succeeds, when a store is configured.
func (s *Service) AnalyzeImage(ctx context.Context, cmd AnalyzeImageCommand) (AnalyzeResult, error) {
	if len(cmd.Image) == 0 {
		return AnalyzeResult{}, &ai.Error{Kind: ai.KindInputRequired, Message: "prescription image is required"}
	}
	if s.Extractor == nil {
		return AnalyzeResult{}, &ai.ExtractionError{
			Cause:      &ai.Error{Kind: ai.KindManualEntry, Message: s.suggestion()},
			Suggestion: s.suggestion(),
		}
	}

	text, err := s.Extractor.ExtractText(ctx, cmd.Image)
	if err != nil {
		s.recordFailure(ctx, cmd.UserID, failures.PhaseExtract, err, map[string]any{
			"filename":     cmd.Filename,
			"content_type": cmd.ContentType,
			"size":         len(cmd.Image),
		})
		return AnalyzeResult{}, &ai.ExtractionError{Cause: err, Suggestion: s.suggestion()}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return AnalyzeResult{}, ai.ErrNoTextExtracted
	}

	return s.analyze(ctx, AnalyzeCommand{
		UserID:        cmd.UserID,
		RawText:       text,
		Source:        domain.SourceImage,
		ExtractedText: text,
	}, func(ctx context.Context) string { return s.storeImage(ctx, cmd) })
}

// storeImage uploads the image and returns its reference. Storage is
// auxiliary: failures are logged and the analysis proceeds without a ref.
func (s *Service) storeImage(ctx context.Context, cmd AnalyzeImageCommand) string {
	if s.Images == nil {
		return ""
	}
	key := fmt.Sprintf("%s/%s%s", cmd.UserID, uuid.New().String(), strings.ToLower(filepath.Ext(cmd.Filename)))
	ref, err := s.Images.Put(ctx, key, bytes.NewReader(cmd.Image), int64(len(cmd.Image)), cmd.ContentType)
	if err != nil {
		log.Printf("prescriptions: image upload failed user=%s key=%s err=%v", cmd.UserID, key, err)
		return ""
	}
	return ref
}

// History ambil N prescription terakhir
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*domain.Prescription, error) {
	list, err := s.Repo.Latest(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.Prescription{}
	}
	return list, nil
}

// Page returns one page of the user's prescriptions, newest first.
func (s *Service) Page(ctx context.Context, userID string, page, pageSize int) (domain.PaginatedResult, error) {
	if page < 1 {
		page = 1
	}
	list, err := s.Repo.Paginate(ctx, userID, page, pageSize)
	if err != nil {
		return domain.PaginatedResult{}, err
	}
	total, err := s.Repo.Count(ctx, userID)
	if err != nil {
		return domain.PaginatedResult{}, err
	}
	return domain.NewPaginatedResult(list, page, pageSize, total), nil
}

// Get ambil 1 prescription by id
func (s *Service) Get(ctx context.Context, userID string, id domain.ID) (*domain.Prescription, error) {
	p, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// Summary rekap risk counts N hari terakhir
func (s *Service) Summary(ctx context.Context, userID string, sinceDays int) (map[string]any, error) {
	sum, err := s.Repo.Summary(ctx, userID, sinceDays)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"days":                 sinceDays,
		"total_prescriptions":  sum.Total,
		"medications":          sum.Medications,
		"harmful_combinations": sum.HarmfulCombinations,
		"overdose_warnings":    sum.OverdoseWarnings,
		"serious_side_effects": sum.SeriousSideEffects,
		"food_interactions":    sum.FoodInteractions,
	}, nil
}

// Failures lists the user's recent pipeline failures.
func (s *Service) Failures(ctx context.Context, userID string, limit int) ([]*failures.Failure, error) {
	if s.FailureLog == nil {
		return []*failures.Failure{}, nil
	}
	list, err := s.FailureLog.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*failures.Failure{}
	}
	return list, nil
}

func (s *Service) suggestion() string {
	if s.Suggestion != "" {
		return s.Suggestion
	}
	return DefaultSuggestion
}

// recordFailure is best effort; the caller's error is what matters.
func (s *Service) recordFailure(ctx context.Context, userID string, phase failures.Phase, cause error, details map[string]any) {
	log.Printf("prescriptions: %s failed user=%s kind=%s err=%v", phase, userID, ai.KindOf(cause), cause)
	if s.FailureLog == nil {
		return
	}
	if hint := ai.HintOf(cause); hint != "" {
		details["hint"] = hint
	}
	var e *ai.Error
	if errors.As(cause, &e) && e.Model != "" {
		details["model"] = e.Model
	}
	raw, _ := json.Marshal(details)
	f := &failures.Failure{
		UserID:      userID,
		Phase:       phase,
		Kind:        string(ai.KindOf(cause)),
		Message:     cause.Error(),
		DetailsJSON: string(raw),
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.FailureLog.Save(context.WithoutCancel(ctx), f); err != nil {
		log.Printf("prescriptions: record failure error=%v", err)
	}
}
