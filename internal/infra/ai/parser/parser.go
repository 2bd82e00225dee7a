// Package parser turns raw model replies into a normalized ParsedAnalysis.
// It never fails: unusable output degrades to analysis.Fallback.
package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"regexp"
	"strings"

	"github.com/bryanwahyu/rxguard/internal/domain/analysis"
)

var (
	errNoObject      = errors.New("no JSON object found in response")
	errTrailingInput = errors.New("unexpected data after JSON object")
)

// fences matches ```json / ``` markers together with the newline after them.
var fences = regexp.MustCompile("```(?:json)?\\n?")

// listField declares one list container in the analysis schema.
type listField struct {
	path []string
	set  func(a *analysis.ParsedAnalysis, v []any)
}

// schema lists every array the analysis must carry. Adding a field to
// ParsedAnalysis means adding a row here.
var schema = []listField{
	{[]string{"medication_schedule"}, func(a *analysis.ParsedAnalysis, v []any) { a.MedicationSchedule = v }},
	{[]string{"harmful_combinations"}, func(a *analysis.ParsedAnalysis, v []any) { a.HarmfulCombinations = v }},
	{[]string{"overdose_warnings"}, func(a *analysis.ParsedAnalysis, v []any) { a.OverdoseWarnings = v }},
	{[]string{"side_effects", "common"}, func(a *analysis.ParsedAnalysis, v []any) { a.SideEffects.Common = v }},
	{[]string{"side_effects", "serious"}, func(a *analysis.ParsedAnalysis, v []any) { a.SideEffects.Serious = v }},
	{[]string{"food_interactions"}, func(a *analysis.ParsedAnalysis, v []any) { a.FoodInteractions = v }},
	{[]string{"lifestyle_advice"}, func(a *analysis.ParsedAnalysis, v []any) { a.LifestyleAdvice = v }},
	{[]string{"general_tips"}, func(a *analysis.ParsedAnalysis, v []any) { a.GeneralTips = v }},
}

// Parse extracts the analysis object from raw model output.
func Parse(raw string) analysis.ParsedAnalysis {
	obj, err := decode(raw)
	if err != nil {
		log.Printf("parser: unusable model response err=%v len=%d", err, len(raw))
		return analysis.Fallback()
	}
	return normalize(obj)
}

// StripFences removes markdown code fences and surrounding whitespace.
func StripFences(s string) string {
	return strings.TrimSpace(fences.ReplaceAllString(s, ""))
}

// ExtractJSON returns the substring from the first '{' to the last '}'.
// Two separate objects in one reply produce an invalid span; callers treat
// that as unparseable.
func ExtractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || start >= end {
		return "", errNoObject
	}
	return s[start : end+1], nil
}

func decode(raw string) (map[string]any, error) {
	span, err := ExtractJSON(StripFences(raw))
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(span)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingInput
	}
	return obj, nil
}

func normalize(obj map[string]any) analysis.ParsedAnalysis {
	out := analysis.Empty()
	for _, f := range schema {
		if list, ok := lookup(obj, f.path).([]any); ok && list != nil {
			f.set(&out, list)
		}
	}
	return out
}

// lookup walks nested objects; anything that is not an object along the
// way yields nil.
func lookup(obj map[string]any, path []string) any {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}
