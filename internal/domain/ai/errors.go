package ai

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the model-serving pipeline
type Kind string

const (
	KindInputRequired     Kind = "input_required"
	KindServiceNotRunning Kind = "service_not_running"
	KindTimeout           Kind = "timeout"
	KindModelNotInstalled Kind = "model_not_installed"
	KindUpstreamServer    Kind = "upstream_server_error"
	KindAPI               Kind = "api_error"
	KindEmptyResponse     Kind = "empty_response"
	KindQuotaExceeded     Kind = "quota_exceeded"
	KindManualEntry       Kind = "manual_entry_required"
	KindNoTextExtracted   Kind = "no_text_extracted"
)

// Error is a classified pipeline failure. Two errors match with errors.Is
// when they share the same Kind.
type Error struct {
	Kind    Kind
	Model   string // model identifier involved, if any
	Message string
	Hint    string // remediation text for the operator/user
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrInputRequired     = &Error{Kind: KindInputRequired, Message: "prescription text is required"}
	ErrServiceNotRunning = &Error{Kind: KindServiceNotRunning}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrModelNotInstalled = &Error{Kind: KindModelNotInstalled}
	ErrUpstreamServer    = &Error{Kind: KindUpstreamServer}
	ErrAPI               = &Error{Kind: KindAPI}
	ErrEmptyResponse     = &Error{Kind: KindEmptyResponse}
	// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded   = &Error{Kind: KindQuotaExceeded, Message: "ai quota exceeded"}
	ErrManualEntry     = &Error{Kind: KindManualEntry}
	ErrNoTextExtracted = &Error{Kind: KindNoTextExtracted, Message: "could not extract text from image, please try manual entry"}
)

// KindOf returns the Kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HintOf returns the remediation hint of the first *Error in err's chain.
func HintOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Hint
	}
	return ""
}

// ExtractionError is returned when no extractor could read the image.
// Cause is the first classified error of the fallback chain.
type ExtractionError struct {
	Cause      error
	Suggestion string
}

func (e *ExtractionError) Error() string {
	if e.Cause == nil {
		return "failed to extract text from image"
	}
	return e.Cause.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Cause }
