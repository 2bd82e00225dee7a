// Package vision reads prescription text out of images by trying an
// ordered list of extraction strategies.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/bryanwahyu/rxguard/internal/domain/ai"
)

// Strategy is one way of asking a model for the text in an image.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, imageBase64 string) (string, error)
}

// Chain tries strategies in order. The next strategy runs only when the
// previous one returned an error; an empty successful answer ends the chain.
type Chain struct {
	strategies  []Strategy
	visionModel string
}

var _ ai.TextExtractor = (*Chain)(nil)

// NewChain builds a chain. visionModel is used in the remediation hint of
// the terminal error.
func NewChain(visionModel string, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, visionModel: visionModel}
}

// ExtractText runs the chain over raw image bytes. When every strategy
// fails the first strategy's error is returned.
func (c *Chain) ExtractText(ctx context.Context, image []byte) (string, error) {
	if len(image) == 0 {
		return "", &ai.Error{Kind: ai.KindInputRequired, Message: "image is required"}
	}
	if len(c.strategies) == 0 {
		return "", ManualEntry{VisionModel: c.visionModel}.failure()
	}
	encoded := base64.StdEncoding.EncodeToString(image)

	var first error
	for i, s := range c.strategies {
		text, err := s.Extract(ctx, encoded)
		if err == nil {
			return strings.TrimSpace(text), nil
		}
		if first == nil {
			first = err
		}
		if i < len(c.strategies)-1 {
			log.Printf("vision: strategy=%s failed, falling back to %s err=%v", s.Name(), c.strategies[i+1].Name(), err)
		} else {
			log.Printf("vision: strategy=%s failed, chain exhausted err=%v", s.Name(), err)
		}
	}
	return "", withVisionHint(first, c.visionModel)
}

// ExtractTextFromFile reads an image from disk and runs the chain.
func (c *Chain) ExtractTextFromFile(ctx context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image %s: %w", path, err)
	}
	return c.ExtractText(ctx, b)
}

// withVisionHint makes sure the surfaced error tells the user which vision
// model to install.
func withVisionHint(err error, model string) error {
	var e *ai.Error
	if !errors.As(err, &e) || e.Hint != "" || model == "" {
		return err
	}
	cp := *e
	cp.Hint = fmt.Sprintf("make sure the vision model is installed: ollama pull %s", model)
	return &cp
}

// ManualEntry always fails, telling the caller to type the prescription in.
type ManualEntry struct {
	VisionModel string
}

var _ ai.TextExtractor = ManualEntry{}

func (m ManualEntry) ExtractText(context.Context, []byte) (string, error) {
	return "", m.failure()
}

// Suggestion is the user-facing manual-entry message.
func (m ManualEntry) Suggestion() string {
	return Suggestion(m.VisionModel)
}

func (m ManualEntry) failure() error {
	return &ai.Error{
		Kind:    ai.KindManualEntry,
		Model:   m.VisionModel,
		Message: m.Suggestion(),
		Hint:    "ollama pull " + m.VisionModel,
	}
}

// Suggestion returns the manual-entry message naming visionModel.
func Suggestion(visionModel string) string {
	return fmt.Sprintf("Automatic text extraction is not available. Please use manual entry or install a vision model: ollama pull %s", visionModel)
}
