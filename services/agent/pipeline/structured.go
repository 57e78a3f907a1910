// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Constraint search engine: executes the structured filter against the
// analyst backend and, on empty results, walks an ordered sequence of
// relaxation strategies until rows come back or strategies run out.
package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
	"github.com/styleseek-ai/styleseek/services/agent/observability"
	"github.com/styleseek-ai/styleseek/services/search"
)

// Brand-hint patterns. The first form is "<token> 브랜드", the second
// "브랜드(가|는)? <token>". A particle-only capture is rejected, and a
// rejected first-form match does not fall through to the second form.
var (
	brandBeforeRe = regexp.MustCompile(`([가-힣A-Za-z0-9_]+)\s*브랜드`)
	brandAfterRe  = regexp.MustCompile(`브랜드(?:가|는)?\s*([가-힣A-Za-z0-9_]+)`)
)

var brandParticles = map[string]bool{"의": true, "가": true, "는": true}

// ExtractBrandHint pulls a brand token out of free text.
func ExtractBrandHint(text string) string {
	if m := brandBeforeRe.FindStringSubmatch(text); m != nil {
		if v := m[1]; v != "" && !brandParticles[v] {
			return v
		}
		return ""
	}
	if m := brandAfterRe.FindStringSubmatch(text); m != nil {
		if v := m[1]; v != "" && !brandParticles[v] {
			return v
		}
	}
	return ""
}

// relaxWithRules strips each configured rule substring from base,
// collapsing the leftover whitespace. Candidates equal to base or empty
// after the strip are dropped.
func relaxWithRules(base string, rules []string) []string {
	var out []string
	for _, rule := range rules {
		if !strings.Contains(base, rule) {
			continue
		}
		cand := strings.Join(strings.Fields(strings.ReplaceAll(base, rule, " ")), " ")
		if cand != "" && cand != base {
			out = append(out, cand)
		}
	}
	return out
}

// runStructuredSearch resolves the structured constraint against the
// analyst backend.
//
// # Description
//
// Ordered attempts, stopping at the first non-empty row set:
//
//  1. The strict constraint verbatim (skipped when empty).
//  2. Model-generated relaxed candidates, in the model's order.
//  3. Rule-based substring strips (configured relaxation rules).
//  4. "<brand> 브랜드 제품" when a brand hint exists.
//  5. The raw user query verbatim.
//
// Every distinct string tried lands in the attempts ledger; duplicates
// are skipped, not re-attempted. used_constraints is the first success,
// else the last attempt, else the original. fallback_used is true iff a
// later attempt than the first produced the accepted result. Transport
// errors from the backend or the relaxer model propagate unretried.
func (p *Pipeline) runStructuredSearch(ctx context.Context, state *datatypes.PipelineState) ([]string, error) {
	base := strings.TrimSpace(state.StructuredConstraints)
	userQuery := strings.TrimSpace(state.UserQuery)

	var (
		attempts []string
		result   *search.StructuredResult
		success  string
	)

	tried := func(cand string) bool {
		for _, a := range attempts {
			if a == cand {
				return true
			}
		}
		return false
	}

	// attempt executes cand and records it in the ledger. Returns true
	// when rows came back.
	attempt := func(cand string) (bool, error) {
		attempts = append(attempts, cand)
		r, err := p.structured.Query(ctx, cand)
		if err != nil {
			return false, err
		}
		result = r
		if len(r.Rows) > 0 {
			success = cand
			return true, nil
		}
		return false, nil
	}

	if base != "" {
		if ok, err := attempt(base); err != nil {
			return nil, err
		} else if ok {
			return p.finishStructured(state, result, attempts, success, base), nil
		}
	}

	brandHint := ExtractBrandHint(base)
	if brandHint == "" {
		brandHint = ExtractBrandHint(userQuery)
	}

	candidates, err := p.models.GenerateRelaxedCandidates(ctx, base, brandHint)
	if err != nil {
		return nil, err
	}
	for _, cand := range candidates {
		if cand == "" || tried(cand) {
			continue
		}
		if ok, err := attempt(cand); err != nil {
			return nil, err
		} else if ok {
			return p.finishStructured(state, result, attempts, success, base), nil
		}
	}

	for _, cand := range relaxWithRules(base, p.cfg.RelaxRules) {
		if tried(cand) {
			continue
		}
		if ok, err := attempt(cand); err != nil {
			return nil, err
		} else if ok {
			return p.finishStructured(state, result, attempts, success, base), nil
		}
	}

	if brandHint != "" {
		if cand := brandHint + " 브랜드 제품"; !tried(cand) {
			if ok, err := attempt(cand); err != nil {
				return nil, err
			} else if ok {
				return p.finishStructured(state, result, attempts, success, base), nil
			}
		}
	}

	if userQuery != "" && !tried(userQuery) {
		if _, err := attempt(userQuery); err != nil {
			return nil, err
		}
	}

	return p.finishStructured(state, result, attempts, success, base), nil
}

// finishStructured writes the engine's bookkeeping into the state.
func (p *Pipeline) finishStructured(state *datatypes.PipelineState, result *search.StructuredResult, attempts []string, success, base string) []string {
	used := success
	if used == "" {
		if len(attempts) > 0 {
			used = attempts[len(attempts)-1]
		} else {
			used = base
		}
	}
	fallbackUsed := success != "" && len(attempts) > 0 && used != attempts[0]

	if result != nil {
		state.StructuredRows = result.Rows
		state.StructuredColumns = result.Columns
		state.StructuredStyleCodes = result.StyleCodes
		state.StructuredSQL = result.SQL
	}
	state.ConstraintsAttempts = attempts
	state.UsedConstraints = used
	state.FallbackUsed = fallbackUsed

	if m := observability.DefaultMetrics; m != nil {
		outcome := "exhausted"
		switch {
		case success != "" && !fallbackUsed:
			outcome = "original"
		case fallbackUsed:
			outcome = "fallback"
		}
		m.RelaxationAttemptsTotal.WithLabelValues(outcome).Inc()
	}

	return []string{
		"structured_rows", "structured_columns", "structured_style_codes",
		"structured_sql", "constraints_attempts", "used_constraints", "fallback_used",
	}
}
