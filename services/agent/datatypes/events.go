// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Stream event payloads for the chat-stream endpoint.
//
// Every payload carries the session and message identifiers so the client
// can correlate events without relying on connection state. The SSE id
// field is the message id, constant for the whole stream.
package datatypes

// Stream event names, in emission order on the success path.
const (
	EventStart = "start"
	EventState = "state"
	EventToken = "token"
	EventError = "error"
	EventFinal = "final"
	EventDone  = "done"
)

// StartEvent is emitted immediately on request receipt.
type StartEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
}

// StateEvent reports pipeline stage completion. Node is the stage name;
// UpdateKeys lists the state field names the stage wrote.
type StateEvent struct {
	SessionID  string   `json:"session_id"`
	MessageID  string   `json:"message_id"`
	Node       string   `json:"node"`
	UpdateKeys []string `json:"update_keys"`
}

// TokenEvent carries one text fragment of the generated answer.
type TokenEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Delta     string `json:"delta"`
}

// ErrorEvent reports a pipeline failure before generation started.
type ErrorEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
}

// FinalEvent carries the complete recommendation payload.
type FinalEvent struct {
	SessionID                  string           `json:"session_id"`
	MessageID                  string           `json:"message_id"`
	ElapsedMs                  int64            `json:"elapsed_ms"`
	RecommendedProducts        []Product        `json:"recommended_products"`
	GroupedRecommendedProducts *GroupedProducts `json:"grouped_recommended_products"`
	RecommendedStyleCodes      []string         `json:"recommended_style_codes"`
}

// DoneEvent terminates every stream, success or failure.
type DoneEvent struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
}
