package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryanwahyu/rxguard/internal/domain/ai"
	"github.com/bryanwahyu/rxguard/internal/domain/analysis"
)

const okAnalysis = `{"medication_schedule":[{"medicine":"Aspirin","dosage":"100mg","timing":"twice daily","instructions":""}],` +
	`"harmful_combinations":[],"overdose_warnings":[],"side_effects":{"common":[],"serious":[]},` +
	`"food_interactions":[],"lifestyle_advice":[],"general_tips":["Take with food"]}`

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	opts := DefaultOptions()
	opts.BaseURL = srv.URL
	return NewClient(srv.Client(), opts), &calls
}

func TestAnalyzeSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != DefaultModel || req.Stream {
			t.Errorf("model=%q stream=%v", req.Model, req.Stream)
		}
		if req.Options == nil || req.Options.Temperature != 0.1 || req.Options.TopP != 0.9 || req.Options.NumPredict != 2048 {
			t.Errorf("options = %+v", req.Options)
		}
		if !strings.Contains(req.Prompt, "Aspirin 100mg twice daily") {
			t.Errorf("prompt does not carry prescription text")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "response": "```json\n" + okAnalysis + "\n```", "done": true})
	})

	got, err := c.Analyze(context.Background(), "Take Aspirin 100mg twice daily")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.MedicationSchedule) != 1 || len(got.GeneralTips) != 1 {
		t.Fatalf("unexpected analysis %+v", got)
	}
}

func TestAnalyzeMalformedOutputFallsBack(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"I am not sure what this is.","done":true}`))
	})
	got, err := c.Analyze(context.Background(), "Aspirin")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.GeneralTips) != 1 || got.GeneralTips[0] != analysis.FallbackTip {
		t.Fatalf("general_tips = %v", got.GeneralTips)
	}
}

func TestAnalyzeEmptyInputMakesNoCall(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := c.Analyze(context.Background(), in)
		if !errors.Is(err, ai.ErrInputRequired) {
			t.Fatalf("Analyze(%q) err = %v", in, err)
		}
	}
	if n := calls.Load(); n != 0 {
		t.Fatalf("%d network calls for empty input", n)
	}
}

func TestAnalyzeEmptyResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"","done":true}`))
	})
	_, err := c.Analyze(context.Background(), "Aspirin")
	if !errors.Is(err, ai.ErrEmptyResponse) {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyzeWhitespaceResponseFallsBack(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":" \n\t ","done":true}`))
	})
	got, err := c.Analyze(context.Background(), "Aspirin")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(got.GeneralTips) != 1 || got.GeneralTips[0] != analysis.FallbackTip {
		t.Fatalf("general_tips = %v", got.GeneralTips)
	}
}

func TestAnalyzeModelNotInstalled(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"qwen2.5:1.5b\" not found, try pulling it first"}`))
	})
	_, err := c.Analyze(context.Background(), "Aspirin")
	if !errors.Is(err, ai.ErrModelNotInstalled) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), DefaultModel) || !strings.Contains(err.Error(), "ollama pull "+DefaultModel) {
		t.Fatalf("error should name the model and install command: %v", err)
	}
}

func TestAnalyzeServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"llama runner process has terminated"}`))
	})
	_, err := c.Analyze(context.Background(), "Aspirin")
	if !errors.Is(err, ai.ErrUpstreamServer) || !strings.Contains(err.Error(), "llama runner process has terminated") {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	release := make(chan struct{})
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	c.opts.Timeout = 50 * time.Millisecond

	_, err := c.Analyze(context.Background(), "Aspirin")
	if !errors.Is(err, ai.ErrTimeout) {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyzeServiceNotRunning(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	opts := DefaultOptions()
	opts.BaseURL = "http://" + addr
	c := NewClient(NewHTTPClient(), opts)

	_, err = c.Analyze(context.Background(), "Aspirin")
	if !errors.Is(err, ai.ErrServiceNotRunning) {
		t.Fatalf("err = %v (kind %q)", err, ai.KindOf(err))
	}
	if !strings.Contains(err.Error(), addr) {
		t.Fatalf("message should name the host: %v", err)
	}
}

func tagsHandler(names ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		models := make([]map[string]string, 0, len(names))
		for _, n := range names {
			models = append(models, map[string]string{"name": n, "model": n})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": models})
	}
}

func TestHealthAndModelAvailability(t *testing.T) {
	c, _ := newTestClient(t, tagsHandler("qwen2.5:1.5b", "llava"))
	ctx := context.Background()
	if !c.HealthCheck(ctx) {
		t.Fatal("HealthCheck = false")
	}
	if !c.VerifyModelAvailable(ctx) {
		t.Fatal("text model should be available")
	}
	if !c.VerifyVisionModelAvailable(ctx) {
		t.Fatal("llava should match llava:latest")
	}

	other, _ := newTestClient(t, tagsHandler("mistral:7b"))
	if other.VerifyModelAvailable(ctx) {
		t.Fatal("model should not be available")
	}
}

func TestHealthCheckDown(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if c.HealthCheck(context.Background()) || c.VerifyModelAvailable(context.Background()) {
		t.Fatal("expected false on server error")
	}
}

func TestSameModel(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"llava", "llava:latest", true},
		{"llava:latest", "llava:latest", true},
		{"qwen2.5:1.5b", "qwen2.5:1.5b", true},
		{"qwen2.5", "qwen2.5:1.5b", false},
		{"llava:13b", "llava:latest", false},
	}
	for _, tc := range cases {
		if got := SameModel(tc.a, tc.b); got != tc.want {
			t.Errorf("SameModel(%q, %q) = %v", tc.a, tc.b, got)
		}
	}
}
