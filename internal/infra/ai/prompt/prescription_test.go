package prompt

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBuildPromptEmbedsTextVerbatim(t *testing.T) {
	text := "Aspirin 100mg twice daily"
	got := BuildPrompt(text)
	if !strings.Contains(got, "Prescription:\n"+text+"\n") {
		t.Fatalf("prompt does not embed prescription text verbatim:\n%s", got)
	}
}

func TestBuildPromptContainsEveryKey(t *testing.T) {
	got := BuildPrompt("Metformin 500mg")
	keys := []string{
		`"medication_schedule"`, `"harmful_combinations"`, `"overdose_warnings"`,
		`"side_effects"`, `"common"`, `"serious"`, `"food_interactions"`,
		`"lifestyle_advice"`, `"general_tips"`, `"medicine"`, `"dosage"`, `"timing"`,
		`"instructions"`, `"medicines"`, `"risk"`, `"recommendation"`, `"warning"`,
		`"max_daily_dose"`, `"effects"`, `"action_required"`, `"food_item"`,
		`"interaction"`, `"advice"`, `"restrictions"`,
	}
	for _, k := range keys {
		if !strings.Contains(got, k) {
			t.Errorf("prompt missing key %s", k)
		}
	}
	if !strings.Contains(got, "ONLY") || !strings.Contains(got, "no code fences") {
		t.Errorf("prompt lacks JSON-only instruction")
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	in := "Ibuprofen 400mg every 6 hours\nOmeprazole 20mg"
	if BuildPrompt(in) != BuildPrompt(in) {
		t.Fatal("prompt is not deterministic")
	}
}

func TestSchemaIsValidJSON(t *testing.T) {
	var v map[string]any
	if err := json.Unmarshal([]byte(schema), &v); err != nil {
		t.Fatalf("schema example is not valid JSON: %v", err)
	}
	if len(v) != 7 {
		t.Fatalf("schema has %d top-level keys, want 7", len(v))
	}
}
