package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bryanwahyu/rxguard/internal/domain/ai"
)

type fakeStrategy struct {
	name  string
	text  string
	err   error
	calls int
	got   string
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Extract(_ context.Context, b64 string) (string, error) {
	f.calls++
	f.got = b64
	return f.text, f.err
}

var image = []byte{0x89, 'P', 'N', 'G'}

func TestChainFirstStrategySucceeds(t *testing.T) {
	chat := &fakeStrategy{name: "chat", text: "  Aspirin 100mg \n"}
	gen := &fakeStrategy{name: "generate", text: "unused"}
	got, err := NewChain("llava:latest", chat, gen).ExtractText(context.Background(), image)
	if err != nil || got != "Aspirin 100mg" {
		t.Fatalf("ExtractText = %q, %v", got, err)
	}
	if gen.calls != 0 {
		t.Fatal("second strategy should not run after success")
	}
	if chat.got != base64.StdEncoding.EncodeToString(image) {
		t.Fatalf("image not base64 encoded: %q", chat.got)
	}
}

func TestChainFallsBackOnError(t *testing.T) {
	chat := &fakeStrategy{name: "chat", err: &ai.Error{Kind: ai.KindAPI, Message: "bad request"}}
	gen := &fakeStrategy{name: "generate", text: "Ibuprofen 400mg"}
	got, err := NewChain("llava:latest", chat, gen).ExtractText(context.Background(), image)
	if err != nil || got != "Ibuprofen 400mg" {
		t.Fatalf("ExtractText = %q, %v", got, err)
	}
	if chat.calls != 1 || gen.calls != 1 {
		t.Fatalf("calls chat=%d gen=%d", chat.calls, gen.calls)
	}
	if gen.got != chat.got || gen.got != base64.StdEncoding.EncodeToString(image) {
		t.Fatalf("second attempt got a different payload: chat=%q gen=%q", chat.got, gen.got)
	}
}

func TestChainEmptySuccessIsTerminal(t *testing.T) {
	chat := &fakeStrategy{name: "chat", text: "   "}
	gen := &fakeStrategy{name: "generate", text: "should not be used"}
	got, err := NewChain("llava:latest", chat, gen).ExtractText(context.Background(), image)
	if err != nil || got != "" {
		t.Fatalf("ExtractText = %q, %v", got, err)
	}
	if gen.calls != 0 {
		t.Fatal("empty success must not trigger fallback")
	}
}

func TestChainSurfacesFirstError(t *testing.T) {
	first := &ai.Error{Kind: ai.KindTimeout, Model: "llava:latest", Message: "timed out"}
	chat := &fakeStrategy{name: "chat", err: first}
	gen := &fakeStrategy{name: "generate", err: &ai.Error{Kind: ai.KindAPI, Message: "other"}}

	_, err := NewChain("llava:latest", chat, gen).ExtractText(context.Background(), image)
	if !errors.Is(err, ai.ErrTimeout) {
		t.Fatalf("err kind = %q", ai.KindOf(err))
	}
	if !strings.Contains(ai.HintOf(err), "ollama pull llava:latest") {
		t.Fatalf("hint = %q", ai.HintOf(err))
	}
	if first.Hint != "" {
		t.Fatal("strategy error must not be mutated")
	}
}

func TestChainKeepsExistingHint(t *testing.T) {
	chat := &fakeStrategy{name: "chat", err: &ai.Error{Kind: ai.KindModelNotInstalled, Hint: "ollama pull llava:13b"}}
	_, err := NewChain("llava:latest", chat).ExtractText(context.Background(), image)
	if ai.HintOf(err) != "ollama pull llava:13b" {
		t.Fatalf("hint = %q", ai.HintOf(err))
	}
}

func TestChainWithoutStrategiesAsksForManualEntry(t *testing.T) {
	_, err := NewChain("llava:latest").ExtractText(context.Background(), image)
	if !errors.Is(err, ai.ErrManualEntry) {
		t.Fatalf("err = %v", err)
	}
}

func TestChainRejectsEmptyImage(t *testing.T) {
	chat := &fakeStrategy{name: "chat"}
	_, err := NewChain("llava:latest", chat).ExtractText(context.Background(), nil)
	if !errors.Is(err, ai.ErrInputRequired) || chat.calls != 0 {
		t.Fatalf("err = %v calls=%d", err, chat.calls)
	}
}

func TestExtractTextFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rx.png")
	if err := os.WriteFile(path, image, 0o600); err != nil {
		t.Fatal(err)
	}
	chat := &fakeStrategy{name: "chat", text: "Metformin 500mg"}
	got, err := NewChain("llava:latest", chat).ExtractTextFromFile(context.Background(), path)
	if err != nil || got != "Metformin 500mg" {
		t.Fatalf("ExtractTextFromFile = %q, %v", got, err)
	}
	if _, err := NewChain("llava:latest", chat).ExtractTextFromFile(context.Background(), path+".missing"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestManualEntry(t *testing.T) {
	m := ManualEntry{VisionModel: "llava:latest"}
	text, err := m.ExtractText(context.Background(), image)
	if text != "" || !errors.Is(err, ai.ErrManualEntry) {
		t.Fatalf("ExtractText = %q, %v", text, err)
	}
	want := "Automatic text extraction is not available. Please use manual entry or install a vision model: ollama pull llava:latest"
	if diff := cmp.Diff(want, err.Error()); diff != "" {
		t.Fatalf("message (-want +got):\n%s", diff)
	}
}
