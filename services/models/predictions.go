// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Strict coercers for model predictions. Each accepts raw JSON and
// returns a zero value on any shape mismatch; none of them ever panics
// or returns an error. Errors are reserved for transport failures.
package models

import (
	"encoding/json"
	"strings"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

// CoerceRelaxedCandidates parses a relaxed-constraints prediction.
//
// # Description
//
// Accepts either a JSON array of strings or an object with a
// "candidates" array. Candidates are whitespace-normalized (runs of
// whitespace collapsed to one space, ends trimmed), empties dropped, and
// deduplicated preserving first-seen order. Anything malformed, a
// non-string element included, degrades to skipping that element;
// a wholly unusable payload yields an empty slice.
func CoerceRelaxedCandidates(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapped struct {
			Candidates []any `json:"candidates"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil
		}
		items = wrapped.Candidates
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]bool)
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = normalizeWhitespace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// coerceStyleCodeList parses a prediction that should be a list of style
// codes, tolerating the same two shapes as CoerceRelaxedCandidates plus
// a "style_codes" key.
func coerceStyleCodeList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapped struct {
			StyleCodes []any `json:"style_codes"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil
		}
		items = wrapped.StyleCodes
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]bool)
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// coerceIntentSplit parses the intent-splitter prediction. Missing or
// non-string fields coerce to "".
func coerceIntentSplit(raw json.RawMessage) IntentSplit {
	var split IntentSplit
	if len(raw) == 0 {
		return split
	}
	// Unmarshal into loose shape first so a wrong-typed field does not
	// poison the other one.
	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return split
	}
	if s, ok := loose["structured_constraints"].(string); ok {
		split.StructuredConstraints = normalizeWhitespace(s)
	}
	if s, ok := loose["semantic_keywords"].(string); ok {
		split.SemanticKeywords = normalizeWhitespace(s)
	}
	return split
}

// coerceFusionDecision parses the fusion prediction. Returns nil when the
// style-code list is absent, empty, or not a usable list, which triggers
// the caller's deterministic fallback.
func coerceFusionDecision(raw json.RawMessage) *datatypes.FusionDecision {
	if len(raw) == 0 {
		return nil
	}
	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil
	}

	codes := coerceStringSlice(loose["style_codes"])
	if len(codes) == 0 {
		return nil
	}
	return &datatypes.FusionDecision{
		StyleCodes: codes,
		Reasons:    coerceStringSlice(loose["reasons"]),
		Caveats:    coerceStringSlice(loose["caveats"]),
	}
}

func coerceStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
