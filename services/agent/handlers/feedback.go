// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
	"github.com/styleseek-ai/styleseek/services/agent/observability"
	"github.com/styleseek-ai/styleseek/services/agent/telemetry"
)

// FeedbackHandler serves POST /v1/feedback.
type FeedbackHandler struct {
	telemetry *telemetry.Appender
}

// NewFeedbackHandler wires the handler.
func NewFeedbackHandler(appender *telemetry.Appender) *FeedbackHandler {
	if appender == nil {
		panic("NewFeedbackHandler: nil telemetry appender")
	}
	return &FeedbackHandler{telemetry: appender}
}

// Handle accepts one feedback submission. Feedback is telemetry, not a
// transaction: a parseable request always returns ok, and an append
// failure is logged but never surfaced.
func (h *FeedbackHandler) Handle(c *gin.Context) {
	var req datatypes.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.telemetry.AppendFeedback(telemetry.FeedbackRecord{
		SessionID:          req.SessionID,
		MessageID:          req.MessageID,
		Rating:             req.Rating,
		SelectedStyleCodes: req.SelectedStyleCodes,
		Notes:              req.Notes,
	}); err != nil {
		slog.Warn("failed to append feedback telemetry",
			"message_id", req.MessageID, "error", err)
	}

	if m := observability.DefaultMetrics; m != nil {
		m.RequestsTotal.WithLabelValues("feedback", "success").Inc()
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
