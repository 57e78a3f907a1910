// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSSEWriter_SetsHeaders(t *testing.T) {
	w := httptest.NewRecorder()

	_, err := NewSSEWriter(w)
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", w.Header().Get("Connection"))
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
}

// nonFlushingWriter hides the recorder's Flush method.
type nonFlushingWriter struct {
	http.ResponseWriter
}

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(nonFlushingWriter{httptest.NewRecorder()})
	assert.Error(t, err)
}

func TestWriteEvent_FrameFormat(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	err = writer.WriteEvent("token", "msg-1", map[string]string{"delta": "안녕"})
	require.NoError(t, err)

	assert.Equal(t, "event: token\nid: msg-1\ndata: {\"delta\":\"안녕\"}\n\n", w.Body.String())
	assert.True(t, w.Flushed, "frame must be flushed immediately")
}

func TestWriteEvent_PreservesOrder(t *testing.T) {
	w := httptest.NewRecorder()
	writer, err := NewSSEWriter(w)
	require.NoError(t, err)

	require.NoError(t, writer.WriteEvent("start", "m", map[string]int{"n": 1}))
	require.NoError(t, writer.WriteEvent("token", "m", map[string]int{"n": 2}))
	require.NoError(t, writer.WriteEvent("done", "m", map[string]int{"n": 3}))

	events := parseSSEEvents(t, w.Body.String())
	assert.Equal(t, []string{"start", "token", "done"}, eventNames(events))
}
