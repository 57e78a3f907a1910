// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package models talks to the scoring-model runtime: the external service
// hosting the compiled intent-splitter, constraint-relaxer, fusion and
// ranking models. Model outputs are never trusted: every response passes
// through a strict coercer that falls back to a zero value on any shape
// mismatch. Only transport failures surface as errors.
package models

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

var tracer = otel.Tracer("styleseek.models")

// Client calls the scoring-model runtime over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client from the environment.
// MODEL_RUNTIME_URL defaults to the compose-network address.
func NewClient() *Client {
	baseURL := os.Getenv("MODEL_RUNTIME_URL")
	if baseURL == "" {
		baseURL = "http://model-runtime:8200"
		slog.Warn("MODEL_RUNTIME_URL not set, using default", "url", baseURL)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 45 * time.Second,
		},
	}
}

// IntentSplit is the intent-splitter model's coerced output. Empty fields
// mean the model produced nothing usable for that intent.
type IntentSplit struct {
	StructuredConstraints string `json:"structured_constraints"`
	SemanticKeywords      string `json:"semantic_keywords"`
}

// SplitIntent splits a user query (with inlined history) into a
// structured-constraint string and a semantic-keyword string.
func (c *Client) SplitIntent(ctx context.Context, query string) (IntentSplit, error) {
	raw, err := c.predict(ctx, "intent_split", map[string]any{"query": query})
	if err != nil {
		return IntentSplit{}, err
	}
	return coerceIntentSplit(raw), nil
}

// GenerateRelaxedCandidates asks the constraint-relaxer model for looser
// constraint strings. brandHint may be empty. A malformed response yields
// an empty slice, never an error.
func (c *Client) GenerateRelaxedCandidates(ctx context.Context, constraints, brandHint string) ([]string, error) {
	raw, err := c.predict(ctx, "relaxed_constraints", map[string]any{
		"constraints": constraints,
		"brand_hint":  brandHint,
	})
	if err != nil {
		return nil, err
	}
	return CoerceRelaxedCandidates(raw), nil
}

// FuseDecision asks the fusion model to pick style codes from the
// structured candidates using semantic signals. A nil decision means the
// model produced no usable output and the caller must fall back.
func (c *Client) FuseDecision(ctx context.Context, query, history string, products []datatypes.Product, reviewSummary string, reviewCodes []string) (*datatypes.FusionDecision, error) {
	raw, err := c.predict(ctx, "fusion_decision", map[string]any{
		"query":              query,
		"history":            history,
		"products":           products,
		"review_summary":     reviewSummary,
		"review_style_codes": reviewCodes,
	})
	if err != nil {
		return nil, err
	}
	return coerceFusionDecision(raw), nil
}

// RankProducts asks the product-ranker model to order candidate codes by
// relevance. An empty slice means the caller must fall back.
func (c *Client) RankProducts(ctx context.Context, query, history string, products []datatypes.Product) ([]string, error) {
	raw, err := c.predict(ctx, "product_ranker", map[string]any{
		"query":    query,
		"history":  history,
		"products": products,
	})
	if err != nil {
		return nil, err
	}
	return coerceStyleCodeList(raw), nil
}

// RunJob starts one runtime job (dataset_build, compile) and relays the
// runtime's plain-text log lines to logLine as they stream. Returns when
// the runtime closes the stream; a non-2xx status or network failure is
// an error.
func (c *Client) RunJob(ctx context.Context, kind string, logLine func(string)) error {
	ctx, span := tracer.Start(ctx, "models.run_job")
	defer span.End()
	span.SetAttributes(attribute.String("job_kind", kind))

	url := fmt.Sprintf("%s/v1/jobs/%s", c.baseURL, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("job %s: %w", kind, err)
	}

	// Jobs outlive the predict timeout by far; use a bare client and
	// rely on ctx for cancellation.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("job %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("job %s: status %d: %s", kind, resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			logLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("job %s: read log stream: %w", kind, err)
	}
	return nil
}

// predict POSTs typed inputs to one model endpoint and returns the raw
// JSON prediction for the per-model coercers.
func (c *Client) predict(ctx context.Context, kind string, inputs map[string]any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "models.predict")
	defer span.End()
	span.SetAttributes(attribute.String("model_kind", kind))

	body, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("model %s: marshal inputs: %w", kind, err)
	}

	url := fmt.Sprintf("%s/v1/models/%s/predict", c.baseURL, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("model %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("model %s: status %d: %s", kind, resp.StatusCode, strings.TrimSpace(string(payload)))
		span.RecordError(err)
		return nil, err
	}

	var envelope struct {
		Prediction json.RawMessage `json:"prediction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("model %s: decode response: %w", kind, err)
	}
	return envelope.Prediction, nil
}
