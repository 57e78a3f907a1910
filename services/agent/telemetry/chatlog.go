// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package telemetry appends structured chat and feedback records to
// JSONL files under the agent data directory. Appends are best-effort:
// callers on the streaming path log failures and move on.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

const (
	chatLogFile     = "chat.jsonl"
	feedbackLogFile = "feedback.jsonl"

	// maxSlimProducts caps the product list embedded in one chat record.
	maxSlimProducts = 50
)

// slimProductFields is the fixed field subset kept per logged product.
var slimProductFields = []string{
	"style_code", "brand", "category", "subcategory",
	"product_name", "material", "price", "url",
}

// StructuredSummary describes the constraint-search outcome for one turn.
type StructuredSummary struct {
	ConstraintsUsed     string   `json:"constraints_used"`
	ConstraintsAttempts []string `json:"constraints_attempts"`
	FallbackUsed        bool     `json:"fallback_used"`
	SQL                 string   `json:"sql"`
	RowsCount           int      `json:"rows_count"`
}

// UnstructuredSummary describes the semantic-search outcome for one turn.
type UnstructuredSummary struct {
	ReviewStyleCodes []string `json:"review_style_codes"`
	ReviewSummary    string   `json:"review_summary"`
}

// ChatRecord is one line of chat.jsonl. Nullable fields stay null when a
// turn failed before producing them.
type ChatRecord struct {
	Timestamp                time.Time            `json:"timestamp"`
	SessionID                string               `json:"session_id"`
	MessageID                string               `json:"message_id"`
	UserQuery                string               `json:"user_query"`
	ElapsedMs                int64                `json:"elapsed_ms"`
	Error                    *string              `json:"error"`
	ErrorType                *string              `json:"error_type"`
	Structured               *StructuredSummary   `json:"structured"`
	Products                 []map[string]any     `json:"products"`
	Unstructured             *UnstructuredSummary `json:"unstructured"`
	RecommendedStyleCodes    []string             `json:"recommended_style_codes"`
	RecommendedProductsCount int                  `json:"recommended_products_count"`
}

// FeedbackRecord is one line of feedback.jsonl.
type FeedbackRecord struct {
	Timestamp          time.Time `json:"timestamp"`
	SessionID          string    `json:"session_id"`
	MessageID          string    `json:"message_id"`
	Rating             *int      `json:"rating"`
	SelectedStyleCodes []string  `json:"selected_style_codes"`
	Notes              string    `json:"notes"`
}

// Appender writes JSONL telemetry under a data directory.
type Appender struct {
	dir string
	mu  sync.Mutex
}

// NewAppender creates the data directory when needed. AGENT_DATA_DIR is
// the conventional source for dir; empty falls back to ./data.
func NewAppender(dir string) (*Appender, error) {
	if dir == "" {
		dir = "data"
		slog.Warn("AGENT_DATA_DIR not set, using default", "dir", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry dir: %w", err)
	}
	return &Appender{dir: dir}, nil
}

// AppendChat appends one chat record. The error return exists for tests;
// the streaming path ignores it after logging.
func (a *Appender) AppendChat(rec ChatRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return a.appendLine(chatLogFile, rec)
}

// AppendFeedback appends one feedback record.
func (a *Appender) AppendFeedback(rec FeedbackRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return a.appendLine(feedbackLogFile, rec)
}

func (a *Appender) appendLine(file string, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal telemetry record: %w", err)
	}
	line = append(line, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(a.dir, file), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open telemetry log %s: %w", file, err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append telemetry log %s: %w", file, err)
	}
	return nil
}

// SlimProducts reduces products to the fixed logged field subset, capped
// at 50 items.
func SlimProducts(products []datatypes.Product) []map[string]any {
	n := len(products)
	if n > maxSlimProducts {
		n = maxSlimProducts
	}
	out := make([]map[string]any, 0, n)
	for _, p := range products[:n] {
		slim := make(map[string]any, len(slimProductFields))
		for _, field := range slimProductFields {
			if v, ok := p[field]; ok {
				slim[field] = v
			}
		}
		if code := datatypes.ProductCode(p); code != "" {
			slim["style_code"] = code
		}
		out = append(out, slim)
	}
	return out
}
