// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm provides the text-generation client interface and backends.
package llm

import "context"

// GenerationParams are optional sampling parameters. Nil fields are left
// to the backend's defaults.
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamEventType discriminates the events a streaming backend emits.
type StreamEventType string

const (
	StreamEventToken StreamEventType = "token"
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one incremental unit from a streaming generation call.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Error   error
}

// StreamCallback receives stream events in emission order. Returning a
// non-nil error aborts the stream.
type StreamCallback func(event StreamEvent) error

// Message is one chat turn sent to a generation backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMClient is the interface every generation backend implements.
type LLMClient interface {
	// Generate runs a blocking completion and returns the full text.
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)

	// ChatStream runs a streaming completion, relaying deltas to callback.
	// The callback is invoked from the caller's goroutine; an error event
	// is always the last event delivered on failure.
	ChatStream(ctx context.Context, messages []Message, params GenerationParams, callback StreamCallback) error
}
