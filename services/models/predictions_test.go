// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceRelaxedCandidates(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"plain array", `["기모 바지", "겨울 바지"]`, []string{"기모 바지", "겨울 바지"}},
		{"wrapped", `{"candidates": ["기모 바지"]}`, []string{"기모 바지"}},
		{"whitespace normalized", `["기모   바지  "]`, []string{"기모 바지"}},
		{"dedup keeps first", `["a", "b", "a"]`, []string{"a", "b"}},
		{"mixed types skip non-strings", `["a", 3, null, "b"]`, []string{"a", "b"}},
		{"empty strings dropped", `["", "  ", "a"]`, []string{"a"}},
		{"not a list", `"just a string"`, nil},
		{"object without candidates", `{"other": 1}`, nil},
		{"garbage", `{{{`, nil},
		{"empty payload", ``, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceRelaxedCandidates(json.RawMessage(tt.raw))
			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCoerceIntentSplit(t *testing.T) {
	split := coerceIntentSplit(json.RawMessage(
		`{"structured_constraints": "기모  바지", "semantic_keywords": "따뜻한"}`))
	assert.Equal(t, "기모 바지", split.StructuredConstraints)
	assert.Equal(t, "따뜻한", split.SemanticKeywords)

	partial := coerceIntentSplit(json.RawMessage(
		`{"structured_constraints": 42, "semantic_keywords": "따뜻한"}`))
	assert.Empty(t, partial.StructuredConstraints, "wrong-typed field coerces to empty")
	assert.Equal(t, "따뜻한", partial.SemanticKeywords)

	assert.Equal(t, IntentSplit{}, coerceIntentSplit(json.RawMessage(`[1,2]`)))
	assert.Equal(t, IntentSplit{}, coerceIntentSplit(nil))
}

func TestCoerceFusionDecision(t *testing.T) {
	decision := coerceFusionDecision(json.RawMessage(
		`{"style_codes": ["A", "B"], "reasons": ["따뜻함"], "caveats": []}`))
	require.NotNil(t, decision)
	assert.Equal(t, []string{"A", "B"}, decision.StyleCodes)
	assert.Equal(t, []string{"따뜻함"}, decision.Reasons)

	assert.Nil(t, coerceFusionDecision(json.RawMessage(`{"style_codes": []}`)))
	assert.Nil(t, coerceFusionDecision(json.RawMessage(`{"style_codes": "A"}`)))
	assert.Nil(t, coerceFusionDecision(json.RawMessage(`"text"`)))
	assert.Nil(t, coerceFusionDecision(nil))
}

func TestCoerceStyleCodeList(t *testing.T) {
	assert.Equal(t, []string{"A", "B"},
		coerceStyleCodeList(json.RawMessage(`["A", "B"]`)))
	assert.Equal(t, []string{"A"},
		coerceStyleCodeList(json.RawMessage(`{"style_codes": ["A"]}`)))
	assert.Empty(t, coerceStyleCodeList(json.RawMessage(`123`)))
}
