// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin HTTP handlers for the agent service.
//
// This file implements the SSE writer used by the chat-stream endpoint.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// SSEWriter writes server-sent events in emission order.
//
// The transport must preserve event order with no reordering or loss:
// the client renders token deltas incrementally. Every event carries the
// same id (the message id) so reconnect logic can correlate.
type SSEWriter interface {
	// WriteEvent serializes payload as JSON and writes one SSE frame.
	WriteEvent(event, id string, payload any) error
}

// sseWriter is the production SSEWriter over an http.ResponseWriter.
type sseWriter struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

var _ SSEWriter = (*sseWriter)(nil)

// NewSSEWriter prepares w for SSE streaming and returns the writer.
// Returns an error when the underlying writer cannot flush, which makes
// incremental delivery impossible.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &sseWriter{writer: w, flusher: flusher}, nil
}

// WriteEvent writes one frame and flushes immediately. A write failure
// (client gone) surfaces as an error so the caller can stop emitting.
func (w *sseWriter) WriteEvent(event, id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, "event: %s\nid: %s\ndata: %s\n\n", event, id, data); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	w.flusher.Flush()
	return nil
}
