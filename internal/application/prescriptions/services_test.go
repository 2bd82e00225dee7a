package prescriptions

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bryanwahyu/rxguard/internal/domain/ai"
	"github.com/bryanwahyu/rxguard/internal/domain/analysis"
	domain "github.com/bryanwahyu/rxguard/internal/domain/prescriptions"
	"github.com/bryanwahyu/rxguard/internal/infra/db/memory"
)

type fakeAnalyzer struct {
	result analysis.ParsedAnalysis
	err    error
	calls  int
	got    string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, text string) (analysis.ParsedAnalysis, error) {
	f.calls++
	f.got = text
	return f.result, f.err
}

func (f *fakeAnalyzer) HealthCheck(context.Context) bool          { return true }
func (f *fakeAnalyzer) VerifyModelAvailable(context.Context) bool { return true }

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) ExtractText(context.Context, []byte) (string, error) { return f.text, f.err }

type fakeImages struct {
	keys []string
	err  error
}

func (f *fakeImages) Put(_ context.Context, key string, r io.Reader, size int64, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(r)
	if int64(len(b)) != size {
		return "", errors.New("size mismatch")
	}
	f.keys = append(f.keys, key)
	return "minio://rx/" + key, nil
}

type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(250 * time.Millisecond)
	return c.t
}

func sampleAnalysis() analysis.ParsedAnalysis {
	a := analysis.Empty()
	a.MedicationSchedule = []any{map[string]any{"medicine": "Aspirin", "dosage": "100mg"}}
	a.SideEffects.Serious = []any{map[string]any{"medicine": "Aspirin"}}
	a.GeneralTips = []any{"Take with food"}
	return a
}

func newService(an *fakeAnalyzer) (*Service, *memory.PrescriptionRepository, *memory.FailureRepository) {
	repo := memory.NewPrescriptionRepository()
	fails := memory.NewFailureRepository()
	return &Service{
		Repo:       repo,
		FailureLog: fails,
		Analyzer:   an,
		Clock:      &stepClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		Model:      "qwen2.5:1.5b",
	}, repo, fails
}

func TestAnalyzePrescriptionPersists(t *testing.T) {
	an := &fakeAnalyzer{result: sampleAnalysis()}
	svc, repo, _ := newService(an)
	ctx := context.Background()

	res, err := svc.AnalyzePrescription(ctx, AnalyzeCommand{UserID: "u1", RawText: "Aspirin 100mg twice daily", ImageRef: "img/1.png"})
	if err != nil {
		t.Fatalf("AnalyzePrescription: %v", err)
	}
	if an.got != "Aspirin 100mg twice daily" {
		t.Fatalf("analyzer got %q", an.got)
	}
	if diff := cmp.Diff(sampleAnalysis(), res.Analysis); diff != "" {
		t.Fatalf("analysis not returned verbatim (-want +got):\n%s", diff)
	}

	stored, err := repo.Get(ctx, "u1", domain.ID(res.ID))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(res.Analysis, stored.Analysis); diff != "" {
		t.Fatalf("stored analysis differs:\n%s", diff)
	}
	if stored.Source != domain.SourceText || stored.ImageRef != "img/1.png" || stored.Model != "qwen2.5:1.5b" {
		t.Fatalf("stored = %+v", stored)
	}
	if stored.Counts.Medications != 1 || stored.Counts.SeriousSideEffects != 1 {
		t.Fatalf("counts = %+v", stored.Counts)
	}
	if stored.DurationMS != 250 {
		t.Fatalf("duration = %d", stored.DurationMS)
	}
}

func TestAnalyzePrescriptionEmptyTextNeverCallsAnalyzer(t *testing.T) {
	an := &fakeAnalyzer{}
	svc, _, _ := newService(an)
	for _, text := range []string{"", "  ", "\n"} {
		_, err := svc.AnalyzePrescription(context.Background(), AnalyzeCommand{UserID: "u1", RawText: text})
		if !errors.Is(err, ai.ErrInputRequired) {
			t.Fatalf("err = %v", err)
		}
		var ae *AnalysisError
		if errors.As(err, &ae) {
			t.Fatal("validation error must not be an AnalysisError")
		}
	}
	if an.calls != 0 {
		t.Fatalf("analyzer called %d times", an.calls)
	}
}

func TestAnalyzePrescriptionWrapsAnalyzerError(t *testing.T) {
	cause := &ai.Error{Kind: ai.KindServiceNotRunning, Message: "Ollama service is not running. Please start Ollama on localhost:11434"}
	an := &fakeAnalyzer{err: cause}
	svc, repo, fails := newService(an)
	ctx := context.Background()

	_, err := svc.AnalyzePrescription(ctx, AnalyzeCommand{UserID: "u1", RawText: "Aspirin"})
	var ae *AnalysisError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %T %v", err, err)
	}
	if !strings.HasPrefix(err.Error(), "failed to analyze prescription: ") || !strings.Contains(err.Error(), cause.Message) {
		t.Fatalf("message = %q", err.Error())
	}
	if !errors.Is(err, ai.ErrServiceNotRunning) {
		t.Fatal("underlying kind lost")
	}
	if n, _ := repo.Count(ctx, "u1"); n != 0 {
		t.Fatal("nothing should be persisted on failure")
	}
	logged, _ := fails.ListByUser(ctx, "u1", 10)
	if len(logged) != 1 || logged[0].Kind != string(ai.KindServiceNotRunning) || logged[0].Phase != "analyze" {
		t.Fatalf("failure log = %+v", logged)
	}
}

func TestAnalyzeImage(t *testing.T) {
	an := &fakeAnalyzer{result: sampleAnalysis()}
	svc, repo, _ := newService(an)
	images := &fakeImages{}
	svc.Images = images
	svc.Extractor = fakeExtractor{text: "  Amoxicillin 500mg three times daily \n"}
	ctx := context.Background()

	res, err := svc.AnalyzeImage(ctx, AnalyzeImageCommand{UserID: "u1", Image: []byte("png"), Filename: "Rx.PNG", ContentType: "image/png"})
	if err != nil {
		t.Fatalf("AnalyzeImage: %v", err)
	}
	if an.got != "Amoxicillin 500mg three times daily" || res.ExtractedText != an.got {
		t.Fatalf("analyzer got %q, extracted %q", an.got, res.ExtractedText)
	}
	if len(images.keys) != 1 || !strings.HasPrefix(images.keys[0], "u1/") || !strings.HasSuffix(images.keys[0], ".png") {
		t.Fatalf("keys = %v", images.keys)
	}
	if res.ImageRef != "minio://rx/"+images.keys[0] {
		t.Fatalf("image ref = %q", res.ImageRef)
	}
	stored, _ := repo.Get(ctx, "u1", domain.ID(res.ID))
	if stored.Source != domain.SourceImage {
		t.Fatalf("source = %q", stored.Source)
	}
}

func TestAnalyzeImageUploadFailureIsNotFatal(t *testing.T) {
	an := &fakeAnalyzer{result: sampleAnalysis()}
	svc, _, _ := newService(an)
	svc.Images = &fakeImages{err: errors.New("minio down")}
	svc.Extractor = fakeExtractor{text: "Aspirin"}

	res, err := svc.AnalyzeImage(context.Background(), AnalyzeImageCommand{UserID: "u1", Image: []byte("png")})
	if err != nil || res.ImageRef != "" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestAnalyzeImageAnalysisFailureStoresNothing(t *testing.T) {
	an := &fakeAnalyzer{err: &ai.Error{Kind: ai.KindTimeout, Model: "qwen2.5:1.5b", Message: "timed out"}}
	svc, repo, _ := newService(an)
	images := &fakeImages{}
	svc.Images = images
	svc.Extractor = fakeExtractor{text: "Aspirin 100mg"}
	ctx := context.Background()

	_, err := svc.AnalyzeImage(ctx, AnalyzeImageCommand{UserID: "u1", Image: []byte("png"), Filename: "rx.png"})
	if !errors.Is(err, ai.ErrTimeout) {
		t.Fatalf("err = %v", err)
	}
	if len(images.keys) != 0 {
		t.Fatalf("image uploaded for a failed analysis: %v", images.keys)
	}
	if n, _ := repo.Count(ctx, "u1"); n != 0 {
		t.Fatalf("%d records saved", n)
	}
}

func TestAnalyzeImageExtractionFailure(t *testing.T) {
	an := &fakeAnalyzer{}
	svc, _, fails := newService(an)
	svc.Suggestion = "use manual entry"
	svc.Extractor = fakeExtractor{err: &ai.Error{Kind: ai.KindModelNotInstalled, Model: "llava:latest", Hint: "ollama pull llava:latest"}}

	_, err := svc.AnalyzeImage(context.Background(), AnalyzeImageCommand{UserID: "u1", Image: []byte("png")})
	var ee *ai.ExtractionError
	if !errors.As(err, &ee) || ee.Suggestion != "use manual entry" {
		t.Fatalf("err = %v", err)
	}
	if !errors.Is(err, ai.ErrModelNotInstalled) {
		t.Fatal("cause kind lost")
	}
	if an.calls != 0 {
		t.Fatal("analyzer must not run")
	}
	logged, _ := fails.ListByUser(context.Background(), "u1", 10)
	if len(logged) != 1 || logged[0].Phase != "extract" || !strings.Contains(logged[0].DetailsJSON, "llava:latest") {
		t.Fatalf("failure log = %+v", logged)
	}
}

func TestAnalyzeImageNoText(t *testing.T) {
	an := &fakeAnalyzer{}
	svc, _, _ := newService(an)
	svc.Extractor = fakeExtractor{text: "   "}
	_, err := svc.AnalyzeImage(context.Background(), AnalyzeImageCommand{UserID: "u1", Image: []byte("png")})
	if !errors.Is(err, ai.ErrNoTextExtracted) || an.calls != 0 {
		t.Fatalf("err = %v calls=%d", err, an.calls)
	}
}

func TestAnalyzeImageWithoutExtractor(t *testing.T) {
	svc, _, _ := newService(&fakeAnalyzer{})
	_, err := svc.AnalyzeImage(context.Background(), AnalyzeImageCommand{UserID: "u1", Image: []byte("png")})
	var ee *ai.ExtractionError
	if !errors.As(err, &ee) || ee.Suggestion != DefaultSuggestion || !errors.Is(err, ai.ErrManualEntry) {
		t.Fatalf("err = %v", err)
	}
}

func TestQueries(t *testing.T) {
	an := &fakeAnalyzer{result: sampleAnalysis()}
	svc, _, _ := newService(an)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		res, err := svc.AnalyzePrescription(ctx, AnalyzeCommand{UserID: "u1", RawText: "Aspirin"})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, res.ID)
	}

	hist, err := svc.History(ctx, "u1", 2)
	if err != nil || len(hist) != 2 || string(hist[0].ID) != ids[2] {
		t.Fatalf("history = %v, %v", hist, err)
	}
	if empty, _ := svc.History(ctx, "nobody", 5); empty == nil || len(empty) != 0 {
		t.Fatalf("empty history = %#v", empty)
	}

	page, err := svc.Page(ctx, "u1", 1, 2)
	if err != nil || page.Total != 3 || page.TotalPages != 2 || len(page.Data) != 2 {
		t.Fatalf("page = %+v, %v", page, err)
	}

	if _, err := svc.Get(ctx, "u2", domain.ID(ids[0])); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cross-user Get err = %v", err)
	}
	got, err := svc.Get(ctx, "u1", domain.ID(ids[0]))
	if err != nil || string(got.ID) != ids[0] {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	sum, err := svc.Summary(ctx, "u1", 30000)
	if err != nil || sum["total_prescriptions"] != 3 || sum["medications"] != 3 {
		t.Fatalf("summary = %v, %v", sum, err)
	}
}
