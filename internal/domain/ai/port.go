package ai

import (
	"context"

	"github.com/bryanwahyu/rxguard/internal/domain/analysis"
)

// Analyzer turns prescription text into a normalized analysis
type Analyzer interface {
	Analyze(ctx context.Context, text string) (analysis.ParsedAnalysis, error)
	HealthCheck(ctx context.Context) bool
	VerifyModelAvailable(ctx context.Context) bool
}

// TextExtractor reads prescription text out of an image
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}
