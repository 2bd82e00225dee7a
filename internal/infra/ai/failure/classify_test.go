package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bryanwahyu/rxguard/internal/domain/ai"
)

var target = Target{Service: "Ollama", Host: "localhost:11434", Model: "qwen2.5:1.5b", Timeout: time.Minute, PullCommand: "ollama pull"}

func TestTransport(t *testing.T) {
	refused := &url.Error{Op: "Post", URL: "http://localhost:11434/api/generate", Err: &net.OpError{
		Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
	}}
	cases := []struct {
		name string
		err  error
		want ai.Kind
	}{
		{"refused", refused, ai.KindServiceNotRunning},
		{"dns", &net.DNSError{Err: "no such host", Name: "ollama"}, ai.KindServiceNotRunning},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), ai.KindTimeout},
		{"canceled", context.Canceled, ai.KindTimeout},
		{"other", errors.New("tls: bad certificate"), ai.KindAPI},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Transport(tc.err, target)
			if got := ai.KindOf(err); got != tc.want {
				t.Fatalf("kind = %q, want %q (err=%v)", got, tc.want, err)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("cause not preserved in %v", err)
			}
		})
	}
	if Transport(nil, target) != nil {
		t.Fatal("nil error should stay nil")
	}
}

func TestTransportServiceNotRunningMessage(t *testing.T) {
	err := Transport(syscall.ECONNREFUSED, target)
	if !strings.Contains(err.Error(), "Ollama service is not running") || !strings.Contains(err.Error(), "localhost:11434") {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestStatus(t *testing.T) {
	err := Status(http.StatusNotFound, []byte(`{"error":"model 'qwen2.5:1.5b' not found"}`), target)
	if !errors.Is(err, ai.ErrModelNotInstalled) {
		t.Fatalf("404 kind = %q", ai.KindOf(err))
	}
	if !strings.Contains(err.Error(), "qwen2.5:1.5b") || ai.HintOf(err) != "ollama pull qwen2.5:1.5b" {
		t.Fatalf("404 should name model and pull command: %v / %q", err, ai.HintOf(err))
	}

	err = Status(http.StatusInternalServerError, []byte(`{"error":"out of memory"}`), target)
	if !errors.Is(err, ai.ErrUpstreamServer) || !strings.Contains(err.Error(), "out of memory") {
		t.Fatalf("500 = %v", err)
	}

	if err := Status(http.StatusTooManyRequests, nil, target); !errors.Is(err, ai.ErrQuotaExceeded) {
		t.Fatalf("429 kind = %q", ai.KindOf(err))
	}
	if err := Status(http.StatusBadRequest, []byte("bad"), target); !errors.Is(err, ai.ErrAPI) {
		t.Fatalf("400 kind = %q", ai.KindOf(err))
	}
}

func TestStatusWithoutPullCommand(t *testing.T) {
	tg := target
	tg.PullCommand = ""
	if hint := ai.HintOf(Status(http.StatusNotFound, nil, tg)); hint != "" {
		t.Fatalf("unexpected hint %q", hint)
	}
}

func TestUpstreamMessageCutsOnRuneBoundary(t *testing.T) {
	// byte 200 falls inside the first 3-byte rune
	body := strings.Repeat("x", 199) + strings.Repeat("€", 20)
	got := upstreamMessage([]byte(body))
	if !utf8.ValidString(got) {
		t.Fatalf("message is not valid UTF-8: %q", got)
	}
	if got != strings.Repeat("x", 199) {
		t.Fatalf("len = %d, want 199", len(got))
	}

	if got := upstreamMessage([]byte(`{"error":"model kaput"}`)); got != "model kaput" {
		t.Fatalf("json error = %q", got)
	}
}
