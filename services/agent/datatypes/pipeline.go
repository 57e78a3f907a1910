// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Pipeline state and product types shared by every pipeline stage and the
// streaming handler.
package datatypes

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// =============================================================================
// Product
// =============================================================================

// Product is one structured-search row. Rows come back from the analyst
// backend with whatever columns the generated SQL selected, so the shape
// is a map rather than a struct.
type Product map[string]any

// styleCodeKeys lists the accepted key spellings for the product
// identifier, in lookup order. Upstream sources disagree on casing; the
// first key present wins and is treated as canonical.
var styleCodeKeys = [...]string{"style_code", "STYLE_CODE", "StyleCode", "styleCode"}

// ProductCode returns the style code of p, checking each accepted key
// spelling in order. Returns "" when none is present or the value is not
// a non-empty string.
func ProductCode(p Product) string {
	for _, k := range styleCodeKeys {
		if v, ok := p[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// stringField returns p[key] as a string, tolerating absent keys and
// non-string values.
func stringField(p Product, key string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		if v != nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

// ProductIndex builds a style-code to product index from rows. The first
// occurrence of a code wins; rows without a code are skipped.
func ProductIndex(rows []Product) map[string]Product {
	idx := make(map[string]Product, len(rows))
	for _, p := range rows {
		code := ProductCode(p)
		if code == "" {
			continue
		}
		if _, exists := idx[code]; !exists {
			idx[code] = p
		}
	}
	return idx
}

// PickProducts maps codes back to full product records using an index
// built from rows. Codes with no matching product are dropped from the
// returned product list; callers keep them in their code lists.
func PickProducts(codes []string, rows []Product) []Product {
	idx := ProductIndex(rows)
	out := make([]Product, 0, len(codes))
	for _, c := range codes {
		if p, ok := idx[c]; ok {
			out = append(out, p)
		}
	}
	return out
}

// FallbackProducts returns the first k rows in their original order.
func FallbackProducts(rows []Product, k int) []Product {
	if len(rows) <= k {
		return rows
	}
	return rows[:k]
}

// ProductCodes returns the codes of rows in order, skipping codeless rows.
func ProductCodes(rows []Product) []string {
	codes := make([]string, 0, len(rows))
	for _, p := range rows {
		if c := ProductCode(p); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// =============================================================================
// Grouped Products
// =============================================================================

// OtherCategory is the bucket for products with neither a category nor a
// subcategory.
const OtherCategory = "기타"

// GroupedProducts is a category-keyed product grouping that preserves the
// order in which categories were first seen. The zero value is unusable;
// use NewGroupedProducts.
type GroupedProducts struct {
	order  []string
	groups map[string][]Product
}

// NewGroupedProducts groups rows by category, falling back to subcategory
// and then to the fixed "기타" bucket when category is absent. Bucket
// order follows first appearance in rows.
func NewGroupedProducts(rows []Product) *GroupedProducts {
	g := &GroupedProducts{groups: make(map[string][]Product)}
	for _, p := range rows {
		key := stringField(p, "category")
		if key == "" {
			key = stringField(p, "subcategory")
		}
		if key == "" {
			key = OtherCategory
		}
		if _, seen := g.groups[key]; !seen {
			g.order = append(g.order, key)
		}
		g.groups[key] = append(g.groups[key], p)
	}
	return g
}

// Categories returns the bucket names in first-seen order.
func (g *GroupedProducts) Categories() []string {
	return g.order
}

// Get returns the products in a bucket.
func (g *GroupedProducts) Get(category string) []Product {
	return g.groups[category]
}

// MarshalJSON serializes the grouping as an ordered JSON object.
func (g *GroupedProducts) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, cat := range g.order {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(cat)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(g.groups[cat])
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	return append(buf, '}'), nil
}

// UnmarshalJSON restores a grouping. Bucket order follows the JSON
// object's key order.
func (g *GroupedProducts) UnmarshalJSON(data []byte) error {
	g.order = nil
	g.groups = make(map[string][]Product)

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("grouped products: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("grouped products: non-string key %v", keyTok)
		}
		var rows []Product
		if err := dec.Decode(&rows); err != nil {
			return err
		}
		g.order = append(g.order, key)
		g.groups[key] = rows
	}
	_, err = dec.Token() // closing brace
	return err
}

// =============================================================================
// Pipeline State
// =============================================================================

// APIResponse is the compose stage's output and the payload of the final
// stream event.
type APIResponse struct {
	RecommendedProducts        []Product        `json:"recommended_products"`
	GroupedRecommendedProducts *GroupedProducts `json:"grouped_recommended_products"`
	RecommendedStyleCodes      []string         `json:"recommended_style_codes"`
	ComposerPrompt             string           `json:"composer_prompt,omitempty"`
}

// FusionDecision is the fusion stage's accepted recommendation set.
type FusionDecision struct {
	StyleCodes []string `json:"style_codes"`
	Reasons    []string `json:"reasons,omitempty"`
	Caveats    []string `json:"caveats,omitempty"`
}

// PipelineState is the single mutable record threaded through the
// pipeline for one turn.
//
// # Description
//
// Every field except UserQuery starts empty and is written exactly once,
// by exactly one stage. Later stages read earlier fields but never mutate
// them: state only grows within a turn. The handler snapshots update-key
// sets after each stage merge to drive state events.
//
// # Fields
//
// Written by intent_split: Messages, StructuredConstraints,
// SemanticKeywords. Written by structured_search: StructuredRows,
// StructuredColumns, StructuredStyleCodes, StructuredSQL,
// ConstraintsAttempts, UsedConstraints, FallbackUsed. Written by
// semantic_search: ReviewRows, ReviewStyleCodes, ReviewSummary. Written
// by fusion: Decision, FusedProducts. Written by compose: Response.
type PipelineState struct {
	UserQuery string        `json:"user_query"`
	Messages  []ChatMessage `json:"messages,omitempty"`

	StructuredConstraints string `json:"structured_constraints,omitempty"`
	SemanticKeywords      string `json:"semantic_keywords,omitempty"`

	StructuredRows       []Product `json:"structured_rows,omitempty"`
	StructuredColumns    []string  `json:"structured_columns,omitempty"`
	StructuredStyleCodes []string  `json:"structured_style_codes,omitempty"`
	StructuredSQL        string    `json:"structured_sql,omitempty"`
	ConstraintsAttempts  []string  `json:"constraints_attempts,omitempty"`
	UsedConstraints      string    `json:"used_constraints,omitempty"`
	FallbackUsed         bool      `json:"fallback_used,omitempty"`

	ReviewRows       []Product `json:"review_rows,omitempty"`
	ReviewStyleCodes []string  `json:"review_style_codes,omitempty"`
	ReviewSummary    string    `json:"review_summary,omitempty"`

	Decision      *FusionDecision `json:"decision,omitempty"`
	FusedProducts []Product       `json:"fused_products,omitempty"`

	Response *APIResponse `json:"response,omitempty"`
}
