// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the agent service.
//
// This file contains request types for the chat-stream and feedback
// endpoints. Pipeline state and product types live in pipeline.go; stream
// event payloads live in events.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxUserQueryBytes is the maximum size of a single user query.
	// Checked in bytes, not runes, to bound memory regardless of encoding.
	MaxUserQueryBytes = 16 * 1024 // 16KB

	// MaxFeedbackNoteBytes bounds the free-text note on feedback submissions.
	MaxFeedbackNoteBytes = 8 * 1024 // 8KB
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
// Initialized in init() with custom validators.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()

	_ = chatValidate.RegisterValidation("maxquerybytes", validateMaxQueryBytes)
	_ = chatValidate.RegisterValidation("maxnotebytes", validateMaxNoteBytes)
}

func validateMaxQueryBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxUserQueryBytes
}

func validateMaxNoteBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxFeedbackNoteBytes
}

// =============================================================================
// Chat Message
// =============================================================================

// ChatMessage is one conversation turn.
//
// Role is "user" or "assistant". System turns are never stored in
// sessions; the composer injects its own instructions per request.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content"`
}

// =============================================================================
// Chat Stream Request
// =============================================================================

// ChatStreamRequest represents the body of POST /v1/chat/stream.
//
// # Description
//
// Carries one user turn for an existing or new session. SessionID is the
// thread identifier the session store keys on; a new session is created
// transparently on first use. ClientMessageID is optional and, when
// present, becomes the message identifier echoed on every stream event so
// the client can correlate; otherwise the server generates one.
//
// # Validation
//
//   - SessionID: required, 1-128 chars
//   - UserQuery: required, at most 16KB
//   - ClientMessageID: optional, valid UUID v4 when present
type ChatStreamRequest struct {
	SessionID       string `json:"session_id" validate:"required,min=1,max=128"`
	UserQuery       string `json:"user_query" validate:"required,maxquerybytes"`
	ClientMessageID string `json:"client_message_id" validate:"omitempty,uuid4"`
}

// Validate validates the ChatStreamRequest fields.
func (r *ChatStreamRequest) Validate() error {
	return chatValidate.Struct(r)
}

// MessageID returns the client-supplied message id, generating a fresh
// UUID when the client did not supply one.
func (r *ChatStreamRequest) MessageID() string {
	if r.ClientMessageID != "" {
		return r.ClientMessageID
	}
	return uuid.NewString()
}

// =============================================================================
// Feedback Request
// =============================================================================

// FeedbackRequest represents the body of POST /v1/feedback.
//
// # Description
//
// User feedback on a completed recommendation turn. Rating is optional;
// when present it must be 1-5. SelectedStyleCodes lists the products the
// user actually clicked or saved. The endpoint always succeeds: feedback
// is telemetry, not a transaction.
type FeedbackRequest struct {
	SessionID          string   `json:"session_id" validate:"required,min=1,max=128"`
	MessageID          string   `json:"message_id" validate:"required,min=1,max=128"`
	Rating             *int     `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	SelectedStyleCodes []string `json:"selected_style_codes,omitempty" validate:"omitempty,max=50"`
	Notes              string   `json:"notes,omitempty" validate:"maxnotebytes"`
}

// Validate validates the FeedbackRequest fields.
func (r *FeedbackRequest) Validate() error {
	return chatValidate.Struct(r)
}

// =============================================================================
// Session
// =============================================================================

// Session is the persisted per-thread conversation record.
//
// Messages holds the full ordered turn list. LastState is the pipeline
// snapshot from the most recent successful turn, kept for debugging and
// curation; it is never read back into a new turn's pipeline.
type Session struct {
	Messages  []ChatMessage  `json:"messages"`
	LastState *PipelineState `json:"last_state,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}
