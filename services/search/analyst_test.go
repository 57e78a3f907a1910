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
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalyst(t *testing.T, handler http.HandlerFunc) *AnalystClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("ANALYST_SERVICE_URL", srv.URL)
	return NewAnalystClient()
}

func TestAnalystClient_Query_Normalizes(t *testing.T) {
	client := newTestAnalyst(t, func(w http.ResponseWriter, r *http.Request) {
		var req analystRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "기모 바지", req.Query)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(analystResponse{
			Rows: []map[string]any{
				{"STYLE_CODE": "A1", "brand": "나이키"},
				{"style_code": "B2", "brand": "아디다스"},
			},
			SQL: "SELECT style_code, brand FROM products WHERE material = '기모'",
		})
	})

	result, err := client.Query(context.Background(), "기모 바지")
	require.NoError(t, err)

	assert.Len(t, result.Rows, 2)
	assert.Equal(t, []string{"A1", "B2"}, result.StyleCodes)
	assert.Equal(t, []string{"style_code", "brand"}, result.Columns,
		"columns inferred from SQL when backend omits them")
}

func TestAnalystClient_Query_EmptyRowsIsNotAnError(t *testing.T) {
	client := newTestAnalyst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(analystResponse{Rows: []map[string]any{}})
	})

	result, err := client.Query(context.Background(), "없는 조건")
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
}

func TestAnalystClient_Query_TransportError(t *testing.T) {
	client := newTestAnalyst(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	})

	_, err := client.Query(context.Background(), "q")
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "analyst", te.Backend)
}

func TestColumnsFromSQL(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			"plain columns",
			"SELECT style_code, brand, price FROM products",
			[]string{"style_code", "brand", "price"},
		},
		{
			"aliases and qualified names",
			"select p.style_code, count(*) as review_count from products p group by 1",
			[]string{"style_code", "review_count"},
		},
		{
			"function with comma inside",
			"SELECT coalesce(category, subcategory) AS category, price FROM products",
			[]string{"category", "price"},
		},
		{"star", "SELECT * FROM products", nil},
		{"no select", "EXPLAIN something", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, columnsFromSQL(tt.sql))
		})
	}
}
