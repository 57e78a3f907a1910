// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline implements the recommendation pipeline: a fixed
// linear sequence of stages sharing one mutable state record.
//
//	intent_split → structured_search → semantic_search → fusion → compose
//
// Each stage writes its own state fields exactly once and never touches
// earlier stages' fields. The handler observes stage completions to emit
// progress events; the compose stage's output is the sole input to the
// generation phase.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
	"github.com/styleseek-ai/styleseek/services/agent/observability"
	"github.com/styleseek-ai/styleseek/services/models"
	"github.com/styleseek-ai/styleseek/services/search"
)

var tracer = otel.Tracer("styleseek.agent.pipeline")

// Stage names, in execution order. These appear verbatim in state events
// and telemetry.
const (
	StageIntentSplit      = "intent_split"
	StageStructuredSearch = "structured_search"
	StageSemanticSearch   = "semantic_search"
	StageFusion           = "fusion"
	StageCompose          = "compose"
)

// MaxRecommend caps every accepted recommendation list.
const MaxRecommend = 30

// StructuredSearcher is the structured (tabular) retrieval backend.
type StructuredSearcher interface {
	Query(ctx context.Context, constraints string) (*search.StructuredResult, error)
}

// SemanticSearcher is the review retrieval backend.
type SemanticSearcher interface {
	Search(ctx context.Context, keywords string, styleCodeFilter []string) (*search.SemanticResult, error)
}

// ModelClient is the scoring-model runtime.
type ModelClient interface {
	SplitIntent(ctx context.Context, query string) (models.IntentSplit, error)
	GenerateRelaxedCandidates(ctx context.Context, constraints, brandHint string) ([]string, error)
	FuseDecision(ctx context.Context, query, history string, products []datatypes.Product, reviewSummary string, reviewCodes []string) (*datatypes.FusionDecision, error)
	RankProducts(ctx context.Context, query, history string, products []datatypes.Product) ([]string, error)
}

// Config holds the pipeline's tunables.
type Config struct {
	// MemoryMaxTurns bounds how many past turns feed history formatting.
	MemoryMaxTurns int

	// RelaxRules are the substrings the rule-based relaxation strips
	// from a constraint, tried in order.
	RelaxRules []string
}

// ConfigFromEnv reads MEMORY_MAX_TURNS (default 6) and
// STRUCTURED_RELAX_RULES (comma-separated, default "기모,소재").
func ConfigFromEnv() Config {
	cfg := Config{
		MemoryMaxTurns: 6,
		RelaxRules:     []string{"기모", "소재"},
	}
	if v := os.Getenv("MEMORY_MAX_TURNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			slog.Warn("invalid MEMORY_MAX_TURNS, using default", "value", v)
		} else {
			cfg.MemoryMaxTurns = n
		}
	}
	if v := os.Getenv("STRUCTURED_RELAX_RULES"); v != "" {
		var rules []string
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				rules = append(rules, r)
			}
		}
		if len(rules) > 0 {
			cfg.RelaxRules = rules
		}
	}
	return cfg
}

// Observer receives (stage name, updated state keys) after each stage's
// partial update is merged.
type Observer func(stage string, updateKeys []string)

// stageFunc runs one stage against the shared state and returns the
// names of the fields it wrote.
type stageFunc func(ctx context.Context, state *datatypes.PipelineState) ([]string, error)

// Pipeline wires the stages to their backends.
type Pipeline struct {
	structured StructuredSearcher
	semantic   SemanticSearcher
	models     ModelClient
	cfg        Config
}

// New builds a pipeline. All three backends are required.
func New(structured StructuredSearcher, semantic SemanticSearcher, modelClient ModelClient, cfg Config) *Pipeline {
	if structured == nil {
		panic("pipeline.New: nil structured searcher")
	}
	if semantic == nil {
		panic("pipeline.New: nil semantic searcher")
	}
	if modelClient == nil {
		panic("pipeline.New: nil model client")
	}
	return &Pipeline{structured: structured, semantic: semantic, models: modelClient, cfg: cfg}
}

// Run drives every stage in order against state.
//
// # Description
//
// Stages run strictly in sequence with no skipping or re-entry. After
// each stage the observer (if non-nil) is invoked with the stage name
// and the field names it wrote. The first stage error aborts the run;
// only remote-transport failures surface here, every other degradation
// is handled inside the stages.
func (p *Pipeline) Run(ctx context.Context, state *datatypes.PipelineState, observe Observer) error {
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()

	stages := []struct {
		name string
		fn   stageFunc
	}{
		{StageIntentSplit, p.runIntentSplit},
		{StageStructuredSearch, p.runStructuredSearch},
		{StageSemanticSearch, p.runSemanticSearch},
		{StageFusion, p.runFusion},
		{StageCompose, p.runCompose},
	}

	for _, stage := range stages {
		start := time.Now()
		keys, err := stage.fn(ctx, state)
		if m := observability.DefaultMetrics; m != nil {
			m.StageDurationSeconds.WithLabelValues(stage.name).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("failed_stage", stage.name))
			return fmt.Errorf("%s: %w", stage.name, err)
		}
		slog.Debug("pipeline stage complete",
			"stage", stage.name,
			"update_keys", keys,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if observe != nil {
			observe(stage.name, keys)
		}
	}
	return nil
}
