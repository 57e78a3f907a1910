// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestAppender_AppendChat(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAppender(dir)
	require.NoError(t, err)

	require.NoError(t, a.AppendChat(ChatRecord{
		SessionID: "s1",
		MessageID: "m1",
		UserQuery: "기모 바지",
		Structured: &StructuredSummary{
			ConstraintsUsed: "기모 바지",
			FallbackUsed:    true,
			RowsCount:       3,
		},
	}))
	require.NoError(t, a.AppendChat(ChatRecord{SessionID: "s2", MessageID: "m2"}))

	lines := readLines(t, filepath.Join(dir, "chat.jsonl"))
	require.Len(t, lines, 2)

	var rec ChatRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "s1", rec.SessionID)
	assert.True(t, rec.Structured.FallbackUsed)
	assert.False(t, rec.Timestamp.IsZero())
	assert.Nil(t, rec.Error)
}

func TestAppender_AppendFeedback(t *testing.T) {
	dir := t.TempDir()
	a, err := NewAppender(dir)
	require.NoError(t, err)

	rating := 4
	require.NoError(t, a.AppendFeedback(FeedbackRecord{
		SessionID: "s1",
		MessageID: "m1",
		Rating:    &rating,
	}))

	lines := readLines(t, filepath.Join(dir, "feedback.jsonl"))
	require.Len(t, lines, 1)
}

func TestSlimProducts(t *testing.T) {
	products := make([]datatypes.Product, 60)
	for i := range products {
		products[i] = datatypes.Product{
			"STYLE_CODE":  "code",
			"brand":       "브랜드",
			"price":       10000,
			"internal_id": "dropped",
		}
	}

	slim := SlimProducts(products)
	require.Len(t, slim, 50, "capped at 50")
	assert.Equal(t, "code", slim[0]["style_code"], "canonical code key")
	assert.Equal(t, "브랜드", slim[0]["brand"])
	assert.NotContains(t, slim[0], "internal_id")
}
