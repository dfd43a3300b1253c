package analyzer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/avolkov/careerai-bot/internal/models"
)

// The model is asked for bare JSON but is not contractually bound to
// produce it: replies arrive wrapped in markdown fences, surrounded by
// prose, or cut off near the output-token limit. extractJSONObject runs
// a fixed sequence of recovery strategies and returns the first one
// that yields a well-formed object.

var fenceRe = regexp.MustCompile("(?im)^```(?:json)?[ \t]*|[ \t]*```$")

// jsonStrategy produces a candidate substring to try parsing, or ""
// when it does not apply.
type jsonStrategy struct {
	name string
	fn   func(string) string
}

var strategies = []jsonStrategy{
	{"raw", func(s string) string { return s }},
	{"strip_fence", stripCodeFence},
	{"first_object", func(s string) string { return firstObjectSpan(stripCodeFence(s)) }},
	{"repair", func(s string) string { return repairTruncated(firstObjectSpan(stripCodeFence(s))) }},
}

func extractJSONObject(text string) (map[string]any, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty response", ErrParseFailure)
	}

	var lastErr error
	for _, st := range strategies {
		candidate := st.fn(raw)
		if candidate == "" {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
			lastErr = err
			continue
		}
		return obj, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrParseFailure, lastErr)
}

func stripCodeFence(s string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(s, ""))
}

// firstObjectSpan returns the substring from the first "{" to the last
// "}", or through the end of the text when no closing brace exists (the
// truncated case the repair step handles).
func firstObjectSpan(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// repairTruncated appends the closing braces and brackets a cut-off
// object is missing, then drops a trailing comma before the close.
func repairTruncated(s string) string {
	if s == "" {
		return ""
	}
	fixed := strings.TrimRight(strings.TrimSpace(s), ",")

	// An unterminated string literal defeats any amount of brace
	// balancing; close it first.
	if strings.Count(fixed, `"`)%2 == 1 {
		fixed += `"`
	}

	openBraces := strings.Count(fixed, "{") - strings.Count(fixed, "}")
	openBrackets := strings.Count(fixed, "[") - strings.Count(fixed, "]")
	if openBrackets > 0 {
		fixed += strings.Repeat("]", openBrackets)
	}
	if openBraces > 0 {
		fixed += strings.Repeat("}", openBraces)
	}
	return fixed
}

// Normalization is field by field: a missing or wrong-typed value
// falls back to its zero form without aborting the rest.

const (
	maxStrengths    = 5
	maxImprovements = 3
)

func parseAnalysis(raw string) (*models.AnalysisResult, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	result := &models.AnalysisResult{
		Score:           clampScore(intFromAny(obj["ats_score"])),
		Summary:         strings.TrimSpace(stringFromAny(obj["summary"])),
		Strengths:       stringListFromAny(obj["strengths"], maxStrengths),
		Improvements:    improvementsFromAny(obj["improvements"]),
		MissingKeywords: stringListFromAny(obj["missing_keywords"], 0),
	}
	return result, nil
}

func parseTailor(raw string) (*models.TailorResult, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, err
	}
	result := &models.TailorResult{
		FitScore:         clampScore(intFromAny(obj["fit_score"])),
		MissingKeywords:  stringListFromAny(obj["missing_keywords"], 0),
		QuickFixes:       stringListFromAny(obj["quick_fixes"], 0),
		RewrittenBullets: bulletsFromAny(obj["rewritten_bullets"]),
	}
	return result, nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func intFromAny(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return 0
}

func stringFromAny(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func stringListFromAny(v any, limit int) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s := strings.TrimSpace(stringFromAny(item))
		if s == "" {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func improvementsFromAny(v any) []models.Improvement {
	items, ok := v.([]any)
	if !ok {
		return []models.Improvement{}
	}
	out := make([]models.Improvement, 0, maxImprovements)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			// The model sometimes emits plain strings here.
			if s := strings.TrimSpace(stringFromAny(item)); s != "" {
				out = append(out, models.Improvement{Title: s})
			}
		} else {
			out = append(out, models.Improvement{
				Title: strings.TrimSpace(stringFromAny(m["title"])),
				Why:   strings.TrimSpace(stringFromAny(m["why"])),
				How:   strings.TrimSpace(stringFromAny(m["how"])),
			})
		}
		if len(out) == maxImprovements {
			break
		}
	}
	return out
}

func bulletsFromAny(v any) []models.BulletRewrite {
	items, ok := v.([]any)
	if !ok {
		return []models.BulletRewrite{}
	}
	out := make([]models.BulletRewrite, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, models.BulletRewrite{
			Before: strings.TrimSpace(stringFromAny(m["before"])),
			After:  strings.TrimSpace(stringFromAny(m["after"])),
		})
	}
	return out
}
