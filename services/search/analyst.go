// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package search provides clients for the two retrieval backends: the
// structured (tabular) analyst service and the semantic review index.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

var analystTracer = otel.Tracer("styleseek.search.analyst")

// TransportError marks a failure reaching or reading a remote search
// backend. The pipeline aborts on it; empty results never produce one.
type TransportError struct {
	Backend string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StructuredResult is the normalized analyst response.
type StructuredResult struct {
	Rows       []datatypes.Product
	Columns    []string
	StyleCodes []string
	SQL        string
	ResultText string
}

// AnalystClient queries the structured search backend. The backend
// accepts a natural-language constraint string, generates SQL against the
// product catalog, and returns the matching rows.
type AnalystClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAnalystClient builds a client from the environment.
// ANALYST_SERVICE_URL defaults to the compose-network address.
func NewAnalystClient() *AnalystClient {
	baseURL := os.Getenv("ANALYST_SERVICE_URL")
	if baseURL == "" {
		baseURL = "http://analyst:8100"
		slog.Warn("ANALYST_SERVICE_URL not set, using default", "url", baseURL)
	}
	return &AnalystClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type analystRequest struct {
	Query string `json:"query"`
}

type analystResponse struct {
	Rows       []map[string]any `json:"rows"`
	Columns    []string         `json:"columns"`
	SQL        string           `json:"sql"`
	ResultText string           `json:"result_text"`
}

// Query executes one constraint string against the analyst backend.
//
// # Description
//
// Sends the constraint as a natural-language query and normalizes the
// response: rows become Product maps, style codes are extracted in row
// order, and when the backend omits column names they are inferred from
// the select list of the returned SQL. A non-2xx status or network
// failure surfaces as *TransportError; zero rows is a normal result.
func (c *AnalystClient) Query(ctx context.Context, constraints string) (*StructuredResult, error) {
	ctx, span := analystTracer.Start(ctx, "analyst.query")
	defer span.End()
	span.SetAttributes(attribute.Int("constraints_len", len(constraints)))

	body, err := json.Marshal(analystRequest{Query: constraints})
	if err != nil {
		return nil, &TransportError{Backend: "analyst", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/query", bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Backend: "analyst", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, &TransportError{Backend: "analyst", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
		span.RecordError(err)
		return nil, &TransportError{Backend: "analyst", Err: err}
	}

	var parsed analystResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		span.RecordError(err)
		return nil, &TransportError{Backend: "analyst", Err: err}
	}

	result := &StructuredResult{
		Rows:       make([]datatypes.Product, 0, len(parsed.Rows)),
		Columns:    parsed.Columns,
		SQL:        parsed.SQL,
		ResultText: parsed.ResultText,
	}
	for _, row := range parsed.Rows {
		result.Rows = append(result.Rows, datatypes.Product(row))
	}
	result.StyleCodes = datatypes.ProductCodes(result.Rows)
	if len(result.Columns) == 0 && parsed.SQL != "" {
		result.Columns = columnsFromSQL(parsed.SQL)
	}

	span.SetAttributes(attribute.Int("rows", len(result.Rows)))
	return result, nil
}

var selectListRe = regexp.MustCompile(`(?is)\bselect\s+(.*?)\s+from\b`)

// columnsFromSQL infers column names from the select list of a SQL
// statement. Aliases win over expressions; "select *" yields nothing.
func columnsFromSQL(sql string) []string {
	m := selectListRe.FindStringSubmatch(sql)
	if m == nil {
		return nil
	}
	list := strings.TrimSpace(m[1])
	if list == "" || list == "*" {
		return nil
	}

	var cols []string
	depth := 0
	start := 0
	flush := func(end int) {
		item := strings.TrimSpace(list[start:end])
		if item == "" {
			return
		}
		cols = append(cols, columnName(item))
	}
	for i, r := range list {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(list))
	return cols
}

// columnName extracts the output name of one select-list item.
func columnName(item string) string {
	lower := strings.ToLower(item)
	if idx := strings.LastIndex(lower, " as "); idx >= 0 {
		return strings.Trim(strings.TrimSpace(item[idx+4:]), "`\"")
	}
	fields := strings.Fields(item)
	last := fields[len(fields)-1]
	if dot := strings.LastIndex(last, "."); dot >= 0 {
		last = last[dot+1:]
	}
	return strings.Trim(last, "`\"")
}
