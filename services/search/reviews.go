// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

var reviewTracer = otel.Tracer("styleseek.search.reviews")

const (
	// ReviewClassName is the Weaviate class holding product reviews.
	ReviewClassName = "ProductReview"

	// reviewSummaryItems caps how many per-item summaries feed the
	// aggregated review summary.
	reviewSummaryItems = 5

	// reviewSummaryCharBudget is the per-item truncation budget, in runes.
	reviewSummaryCharBudget = 200

	// reviewSearchLimit bounds one semantic query.
	reviewSearchLimit = 30
)

// SemanticResult is the normalized review-search response.
type SemanticResult struct {
	Rows          []datatypes.Product
	StyleCodes    []string
	ReviewSummary string
}

// ReviewSearcher runs BM25 keyword retrieval over the product-review
// index, optionally restricted to a candidate style-code set.
type ReviewSearcher struct {
	client *weaviate.Client
}

// NewReviewSearcher wraps an existing Weaviate client. Panics on nil:
// construction happens once in main where a missing backend is fatal.
func NewReviewSearcher(client *weaviate.Client) *ReviewSearcher {
	if client == nil {
		panic("NewReviewSearcher: nil weaviate client")
	}
	return &ReviewSearcher{client: client}
}

// reviewHit mirrors the GraphQL Get response for one review object.
type reviewHit struct {
	StyleCode  string `json:"style_code"`
	ReviewText string `json:"review_text"`
	Rating     any    `json:"rating"`
}

type reviewGetResponse struct {
	Get struct {
		ProductReview []reviewHit `json:"ProductReview"`
	} `json:"Get"`
}

// Search executes one semantic review query.
//
// # Description
//
// Runs a BM25 query with the split-out semantic keywords. When
// styleCodeFilter is non-empty, a ContainsAny filter on style_code
// restricts hits to that candidate set; an empty filter set attaches no
// filter at all. Style codes are collected in hit order with duplicates
// removed; the aggregated ReviewSummary joins the first 5 truncated
// per-item review texts with newlines.
//
// # Limitations
//
//   - A Weaviate transport failure surfaces as *TransportError and
//     aborts the pipeline, matching the structured backend's contract.
func (s *ReviewSearcher) Search(ctx context.Context, keywords string, styleCodeFilter []string) (*SemanticResult, error) {
	ctx, span := reviewTracer.Start(ctx, "reviews.search")
	defer span.End()
	span.SetAttributes(
		attribute.Int("keywords_len", len(keywords)),
		attribute.Int("filter_codes", len(styleCodeFilter)),
	)

	fields := []graphql.Field{
		{Name: "style_code"},
		{Name: "review_text"},
		{Name: "rating"},
	}

	query := s.client.GraphQL().Get().
		WithClassName(ReviewClassName).
		WithBM25(s.client.GraphQL().Bm25ArgBuilder().WithQuery(keywords)).
		WithLimit(reviewSearchLimit).
		WithFields(fields...)

	if len(styleCodeFilter) > 0 {
		where := filters.Where().
			WithPath([]string{"style_code"}).
			WithOperator(filters.ContainsAny).
			WithValueString(styleCodeFilter...)
		query = query.WithWhere(where)
	}

	result, err := query.Do(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, &TransportError{Backend: "reviews", Err: err}
	}
	if len(result.Errors) > 0 {
		err := fmt.Errorf("graphql: %s", result.Errors[0].Message)
		span.RecordError(err)
		return nil, &TransportError{Backend: "reviews", Err: err}
	}

	// Marshal to JSON and unmarshal to a typed struct for compile-time
	// safety on the response shape.
	jsonBytes, err := json.Marshal(result.Data)
	if err != nil {
		return nil, &TransportError{Backend: "reviews", Err: err}
	}
	var typed reviewGetResponse
	if err := json.Unmarshal(jsonBytes, &typed); err != nil {
		return nil, &TransportError{Backend: "reviews", Err: err}
	}

	out := &SemanticResult{}
	seen := make(map[string]bool)
	var summaries []string
	for _, hit := range typed.Get.ProductReview {
		row := datatypes.Product{
			"style_code":  hit.StyleCode,
			"review_text": hit.ReviewText,
			"rating":      hit.Rating,
		}
		out.Rows = append(out.Rows, row)
		if code := datatypes.ProductCode(row); code != "" && !seen[code] {
			seen[code] = true
			out.StyleCodes = append(out.StyleCodes, code)
		}
		if len(summaries) < reviewSummaryItems && strings.TrimSpace(hit.ReviewText) != "" {
			summaries = append(summaries, TruncateOnWordBoundary(hit.ReviewText, reviewSummaryCharBudget))
		}
	}
	out.ReviewSummary = strings.Join(summaries, "\n")

	span.SetAttributes(attribute.Int("hits", len(out.Rows)))
	return out, nil
}

// TruncateOnWordBoundary cuts s to at most budget runes, preferring the
// last space inside the budget, and appends "…" when anything was cut.
func TruncateOnWordBoundary(s string, budget int) string {
	if utf8.RuneCountInString(s) <= budget {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:budget])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ") + "…"
}

// EnsureSchema creates the ProductReview class when absent. Existing
// classes are left untouched.
func (s *ReviewSearcher) EnsureSchema(ctx context.Context) error {
	exists, err := s.client.Schema().ClassExistenceChecker().
		WithClassName(ReviewClassName).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("check review schema: %w", err)
	}
	if exists {
		return nil
	}

	indexFilterable := new(bool)
	*indexFilterable = true

	class := &models.Class{
		Class:       ReviewClassName,
		Description: "One customer review for one product.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:            "style_code",
				DataType:        []string{"text"},
				Description:     "The product style code this review belongs to.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:         "review_text",
				DataType:     []string{"text"},
				Description:  "The free-text review body.",
				Tokenization: "word",
			},
			{
				Name:            "rating",
				DataType:        []string{"number"},
				Description:     "Star rating, 1-5.",
				IndexFilterable: indexFilterable,
			},
		},
	}

	if err := s.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("create review schema: %w", err)
	}
	slog.Info("Created Weaviate class", "class", ReviewClassName)
	return nil
}
