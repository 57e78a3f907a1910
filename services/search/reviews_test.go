// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// newTestSearcher fakes the Weaviate GraphQL endpoint with a canned body.
func newTestSearcher(t *testing.T, graphqlBody string) (*ReviewSearcher, *[]string) {
	t.Helper()
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/graphql") {
			payload, _ := io.ReadAll(r.Body)
			queries = append(queries, string(payload))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, graphqlBody)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	t.Cleanup(srv.Close)

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   strings.TrimPrefix(srv.URL, "http://"),
		Scheme: "http",
	})
	require.NoError(t, err)
	return NewReviewSearcher(client), &queries
}

func TestReviewSearcher_Search_ParsesHits(t *testing.T) {
	body := `{"data":{"Get":{"ProductReview":[
		{"style_code":"A1","review_text":"따뜻하고 좋아요","rating":5},
		{"style_code":"B2","review_text":"사이즈가 커요","rating":3},
		{"style_code":"A1","review_text":"재구매 의사 있음","rating":4}
	]}}}`
	searcher, _ := newTestSearcher(t, body)

	result, err := searcher.Search(context.Background(), "따뜻한 바지", nil)
	require.NoError(t, err)

	assert.Len(t, result.Rows, 3)
	assert.Equal(t, []string{"A1", "B2"}, result.StyleCodes, "duplicates removed, order kept")
	assert.Equal(t, 3, len(strings.Split(result.ReviewSummary, "\n")))
}

func TestReviewSearcher_Search_FilterOnlyWhenNonEmpty(t *testing.T) {
	body := `{"data":{"Get":{"ProductReview":[]}}}`

	searcher, queries := newTestSearcher(t, body)
	_, err := searcher.Search(context.Background(), "키워드", nil)
	require.NoError(t, err)
	require.Len(t, *queries, 1)
	assert.NotContains(t, (*queries)[0], "ContainsAny", "no filter without candidate codes")

	searcher, queries = newTestSearcher(t, body)
	_, err = searcher.Search(context.Background(), "키워드", []string{"A1", "B2"})
	require.NoError(t, err)
	require.Len(t, *queries, 1)
	assert.Contains(t, (*queries)[0], "ContainsAny")
}

func TestReviewSearcher_Search_GraphQLErrorIsTransport(t *testing.T) {
	body := `{"errors":[{"message":"class not found"}]}`
	searcher, _ := newTestSearcher(t, body)

	_, err := searcher.Search(context.Background(), "q", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "class not found")
}

func TestTruncateOnWordBoundary(t *testing.T) {
	short := "짧은 리뷰"
	assert.Equal(t, short, TruncateOnWordBoundary(short, 200))

	long := strings.Repeat("아주 좋은 상품입니다 ", 40)
	got := TruncateOnWordBoundary(long, 50)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, utf8.RuneCountInString(got), 51)
	assert.False(t, strings.HasSuffix(strings.TrimSuffix(got, "…"), " "))
}

func TestTruncateOnWordBoundary_NoSpace(t *testing.T) {
	long := strings.Repeat("가", 100)
	got := TruncateOnWordBoundary(long, 10)
	assert.Equal(t, strings.Repeat("가", 10)+"…", got)
}
