// Package failure maps transport and HTTP failures of model-serving calls
// onto the ai.Error taxonomy.
package failure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/bryanwahyu/rxguard/internal/domain/ai"
)

// Target describes the call being classified so messages can name it.
type Target struct {
	Service     string        // e.g. "Ollama"
	Host        string        // host:port the service is expected on
	Model       string        // model id used for the call
	Timeout     time.Duration // per-call bound
	PullCommand string        // install command prefix, empty if not applicable
}

// Transport classifies an error returned by http.Client.Do or while reading
// the response body.
func Transport(err error, t Target) error {
	switch {
	case err == nil:
		return nil
	case isTimeout(err):
		return &ai.Error{
			Kind:    ai.KindTimeout,
			Model:   t.Model,
			Message: fmt.Sprintf("%s request timed out after %s. The model %s may be too slow or the input too long", t.Service, t.Timeout, t.Model),
			Hint:    "retry later or use a smaller model",
			Err:     err,
		}
	case isUnreachable(err):
		return &ai.Error{
			Kind:    ai.KindServiceNotRunning,
			Model:   t.Model,
			Message: fmt.Sprintf("%s service is not running. Please start %s on %s", t.Service, t.Service, t.Host),
			Hint:    fmt.Sprintf("start %s and make sure it listens on %s", t.Service, t.Host),
			Err:     err,
		}
	default:
		return &ai.Error{
			Kind:    ai.KindAPI,
			Model:   t.Model,
			Message: fmt.Sprintf("%s API error: %v", t.Service, err),
			Err:     err,
		}
	}
}

// Status classifies a non-2xx HTTP response. body may be nil.
func Status(code int, body []byte, t Target) error {
	return StatusMessage(code, upstreamMessage(body), t)
}

// StatusMessage classifies a non-2xx status whose upstream error text has
// already been decoded.
func StatusMessage(code int, upstream string, t Target) error {
	switch code {
	case http.StatusNotFound:
		e := &ai.Error{
			Kind:    ai.KindModelNotInstalled,
			Model:   t.Model,
			Message: fmt.Sprintf("Model %s not found.", t.Model),
		}
		if t.PullCommand != "" {
			e.Hint = fmt.Sprintf("%s %s", t.PullCommand, t.Model)
			e.Message = fmt.Sprintf("Model %s not found. Please install it using: %s", t.Model, e.Hint)
		}
		return e
	case http.StatusTooManyRequests:
		return &ai.Error{Kind: ai.KindQuotaExceeded, Model: t.Model, Message: fmt.Sprintf("%s rate limit or quota exceeded", t.Service)}
	case http.StatusInternalServerError:
		msg := fmt.Sprintf("%s server error", t.Service)
		if upstream != "" {
			msg = fmt.Sprintf("%s server error: %s", t.Service, upstream)
		}
		return &ai.Error{Kind: ai.KindUpstreamServer, Model: t.Model, Message: msg}
	default:
		msg := fmt.Sprintf("%s API error: status %d", t.Service, code)
		if upstream != "" {
			msg = fmt.Sprintf("%s: %s", msg, upstream)
		}
		return &ai.Error{Kind: ai.KindAPI, Model: t.Model, Message: msg}
	}
}

// upstreamMessage reads {"error": "..."} bodies; anything else is returned trimmed.
func upstreamMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Error any `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
		switch v := payload.Error.(type) {
		case string:
			return v
		case map[string]any:
			if m, ok := v["message"].(string); ok {
				return m
			}
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxUpstreamMessage {
		n := maxUpstreamMessage
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	return s
}

const maxUpstreamMessage = 200

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
