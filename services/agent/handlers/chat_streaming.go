// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Streaming chat orchestrator: POST /v1/chat/stream.
//
// # Description
//
// Drives the recommendation pipeline stage-by-stage over one SSE
// connection. Event sequence on success:
//
//	start → state* → token* → final → done
//
// and on pipeline failure: start → state* → error → done. Generation
// runs exactly once per request, hosted on a single background producer
// goroutine bridged to the response through a bounded channel.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
	"github.com/styleseek-ai/styleseek/services/agent/observability"
	"github.com/styleseek-ai/styleseek/services/agent/pipeline"
	"github.com/styleseek-ai/styleseek/services/agent/session"
	"github.com/styleseek-ai/styleseek/services/agent/telemetry"
	"github.com/styleseek-ai/styleseek/services/llm"
	"github.com/styleseek-ai/styleseek/services/search"
)

var chatTracer = otel.Tracer("styleseek.agent.handlers")

// apologyText replaces the answer when the generation stream fails. The
// client never receives a truncated dangling stream.
const apologyText = "추천을 생성하는 중 오류가 발생했습니다. 잠시 후 다시 시도해 주세요."

// streamBufferCap bounds pending generation deltas. A backpressure
// bound, not a cap on total output.
const streamBufferCap = 200

// ChatHandler serves the streaming chat endpoint.
type ChatHandler struct {
	pipeline   *pipeline.Pipeline
	llm        llm.LLMClient
	sessions   *session.Store
	telemetry  *telemetry.Appender
	chunkChars int
	chunkDelay time.Duration
}

// NewChatHandler wires the handler. All dependencies are required.
//
// STREAM_CHUNK_CHARS (default 24) sets the token-piece width in runes;
// STREAM_DELAY_MS (default 15) paces pieces for perceived typing speed.
func NewChatHandler(p *pipeline.Pipeline, llmClient llm.LLMClient, sessions *session.Store, appender *telemetry.Appender) *ChatHandler {
	if p == nil {
		panic("NewChatHandler: nil pipeline")
	}
	if llmClient == nil {
		panic("NewChatHandler: nil llm client")
	}
	if sessions == nil {
		panic("NewChatHandler: nil session store")
	}
	if appender == nil {
		panic("NewChatHandler: nil telemetry appender")
	}

	chunkChars := envInt("STREAM_CHUNK_CHARS", 24)
	if chunkChars < 1 {
		chunkChars = 1
	}
	delayMs := envInt("STREAM_DELAY_MS", 15)
	if delayMs < 0 {
		delayMs = 0
	}

	return &ChatHandler{
		pipeline:   p,
		llm:        llmClient,
		sessions:   sessions,
		telemetry:  appender,
		chunkChars: chunkChars,
		chunkDelay: time.Duration(delayMs) * time.Millisecond,
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "key", key, "value", v)
		return def
	}
	return n
}

// Handle implements POST /v1/chat/stream.
func (h *ChatHandler) Handle(c *gin.Context) {
	ctx, span := chatTracer.Start(c.Request.Context(), "chat.stream")
	defer span.End()

	var req datatypes.ChatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messageID := req.MessageID()
	startedAt := time.Now()
	span.SetAttributes(
		attribute.String("session_id", req.SessionID),
		attribute.String("message_id", messageID),
	)

	writer, err := NewSSEWriter(c.Writer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	if m := observability.DefaultMetrics; m != nil {
		m.ActiveStreams.Inc()
		defer m.ActiveStreams.Dec()
	}

	emit := func(event string, payload any) bool {
		if err := writer.WriteEvent(event, messageID, payload); err != nil {
			slog.Debug("client disconnected", "message_id", messageID, "event", event)
			return false
		}
		return true
	}

	emit(datatypes.EventStart, datatypes.StartEvent{
		SessionID: req.SessionID,
		MessageID: messageID,
	})

	// Read the session once at start; the only write happens at the
	// successful end of the turn.
	sess, found, err := h.sessions.Get(req.SessionID)
	if err != nil {
		slog.Warn("failed to load session, starting empty",
			"session_id", req.SessionID, "error", err)
	}
	if !found || sess == nil {
		sess = &datatypes.Session{}
	}

	state := &datatypes.PipelineState{
		UserQuery: req.UserQuery,
		Messages:  sess.Messages,
	}

	pipeErr := h.pipeline.Run(ctx, state, func(stage string, keys []string) {
		emit(datatypes.EventState, datatypes.StateEvent{
			SessionID:  req.SessionID,
			MessageID:  messageID,
			Node:       stage,
			UpdateKeys: keys,
		})
	})

	if pipeErr != nil {
		slog.Error("pipeline failed",
			"session_id", req.SessionID,
			"message_id", messageID,
			"error", pipeErr,
		)
		span.RecordError(pipeErr)
		if m := observability.DefaultMetrics; m != nil {
			m.ErrorsTotal.WithLabelValues(errorType(pipeErr)).Inc()
			m.RequestsTotal.WithLabelValues("chat_stream", "error").Inc()
			m.StreamDurationSeconds.WithLabelValues("error").Observe(time.Since(startedAt).Seconds())
		}

		emit(datatypes.EventError, datatypes.ErrorEvent{
			SessionID: req.SessionID,
			MessageID: messageID,
			Error:     pipeErr.Error(),
			ErrorType: errorType(pipeErr),
		})
		h.appendChatTelemetry(req, messageID, state, startedAt, pipeErr)
		emit(datatypes.EventDone, datatypes.DoneEvent{
			SessionID: req.SessionID,
			MessageID: messageID,
		})
		return
	}

	// Exactly one generation phase per request, entered when the
	// composer exposed a non-empty prompt.
	var generated string
	if state.Response != nil && strings.TrimSpace(state.Response.ComposerPrompt) != "" {
		generated = h.streamGeneration(ctx, emit, req.SessionID, messageID,
			state.Response.ComposerPrompt, startedAt)
	}

	h.appendChatTelemetry(req, messageID, state, startedAt, nil)

	// Session update: one user turn plus one assistant turn, skipped
	// entirely when nothing was generated. Persistence is best-effort.
	if generated != "" {
		sess.Messages = append(state.Messages, datatypes.ChatMessage{
			Role:    "assistant",
			Content: generated,
		})
		sess.LastState = state
		if err := h.sessions.Put(req.SessionID, sess); err != nil {
			slog.Warn("failed to persist session",
				"session_id", req.SessionID, "error", err)
			if m := observability.DefaultMetrics; m != nil {
				m.ErrorsTotal.WithLabelValues("persistence").Inc()
			}
		}
	}

	finalEvent := datatypes.FinalEvent{
		SessionID: req.SessionID,
		MessageID: messageID,
		ElapsedMs: time.Since(startedAt).Milliseconds(),
	}
	if state.Response != nil {
		finalEvent.RecommendedProducts = state.Response.RecommendedProducts
		finalEvent.GroupedRecommendedProducts = state.Response.GroupedRecommendedProducts
		finalEvent.RecommendedStyleCodes = state.Response.RecommendedStyleCodes
	}
	emit(datatypes.EventFinal, finalEvent)
	emit(datatypes.EventDone, datatypes.DoneEvent{
		SessionID: req.SessionID,
		MessageID: messageID,
	})

	if m := observability.DefaultMetrics; m != nil {
		m.RequestsTotal.WithLabelValues("chat_stream", "success").Inc()
		m.StreamDurationSeconds.WithLabelValues("success").Observe(time.Since(startedAt).Seconds())
	}
}

// generationDelta is one unit bridged from the producer goroutine.
type generationDelta struct {
	text string
	err  error
}

// streamGeneration runs the generation phase: a background producer
// pushes text deltas into a bounded channel while this goroutine
// consumes, chunks, and emits them. Returns the accumulated text, which
// is the apology string when the stream failed.
//
// # Limitations
//
//   - A client disconnect stops emission; the producer terminates via
//     context cancellation without emitting further events. No timeout
//     beyond the transport's own applies here.
func (h *ChatHandler) streamGeneration(ctx context.Context, emit func(string, any) bool, sessionID, messageID, prompt string, startedAt time.Time) string {
	ctx, span := chatTracer.Start(ctx, "chat.generation")
	defer span.End()

	gctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan generationDelta, streamBufferCap)
	go func() {
		defer close(ch)
		err := h.llm.ChatStream(gctx,
			[]llm.Message{{Role: "user", Content: prompt}},
			llm.GenerationParams{},
			func(ev llm.StreamEvent) error {
				if ev.Type != llm.StreamEventToken {
					return nil
				}
				select {
				case ch <- generationDelta{text: ev.Content}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		if err != nil && gctx.Err() == nil {
			// Converted to an in-band signal so the consumer never
			// misses a producer failure on channel close.
			select {
			case ch <- generationDelta{err: err}:
			case <-gctx.Done():
			}
		}
	}()

	var accum strings.Builder
	firstToken := true
	failed := false

	for d := range ch {
		if d.err != nil {
			slog.Error("generation stream failed",
				"message_id", messageID, "error", d.err)
			span.RecordError(d.err)
			failed = true
			break
		}
		if !h.emitChunks(emit, sessionID, messageID, d.text, &accum, &firstToken, startedAt) {
			return accum.String()
		}
	}

	if failed {
		if m := observability.DefaultMetrics; m != nil {
			m.ErrorsTotal.WithLabelValues("generation").Inc()
		}
		// Partial output from the failed attempt is discarded; the
		// client gets the apology chunked the same way.
		accum.Reset()
		h.emitChunks(emit, sessionID, messageID, apologyText, &accum, &firstToken, startedAt)
	}
	return accum.String()
}

// emitChunks splits one delta into rune-width pieces and emits a token
// event per piece, pacing with the configured delay. Returns false when
// the client is gone.
func (h *ChatHandler) emitChunks(emit func(string, any) bool, sessionID, messageID, delta string, accum *strings.Builder, firstToken *bool, startedAt time.Time) bool {
	for _, piece := range chunkRunes(delta, h.chunkChars) {
		accum.WriteString(piece)
		if !emit(datatypes.EventToken, datatypes.TokenEvent{
			SessionID: sessionID,
			MessageID: messageID,
			Delta:     piece,
		}) {
			return false
		}
		if m := observability.DefaultMetrics; m != nil {
			m.TokenEventsTotal.Inc()
			if *firstToken {
				m.TimeToFirstTokenSeconds.Observe(time.Since(startedAt).Seconds())
			}
		}
		*firstToken = false
		if h.chunkDelay > 0 {
			time.Sleep(h.chunkDelay)
		}
	}
	return true
}

// chunkRunes splits s into pieces of at most width runes. Concatenating
// the pieces reconstructs s exactly.
func chunkRunes(s string, width int) []string {
	if s == "" {
		return nil
	}
	if width < 1 {
		width = 1
	}
	runes := []rune(s)
	pieces := make([]string, 0, (len(runes)+width-1)/width)
	for i := 0; i < len(runes); i += width {
		end := i + width
		if end > len(runes) {
			end = len(runes)
		}
		pieces = append(pieces, string(runes[i:end]))
	}
	return pieces
}

// errorType names the error category for the error event and telemetry.
func errorType(err error) string {
	var te *search.TransportError
	if errors.As(err, &te) {
		return "TransportError"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "ContextError"
	}
	return "PipelineError"
}

// appendChatTelemetry writes the per-turn chat record. Failures are
// logged and swallowed: telemetry never affects the response.
func (h *ChatHandler) appendChatTelemetry(req datatypes.ChatStreamRequest, messageID string, state *datatypes.PipelineState, startedAt time.Time, pipeErr error) {
	rec := telemetry.ChatRecord{
		SessionID: req.SessionID,
		MessageID: messageID,
		UserQuery: req.UserQuery,
		ElapsedMs: time.Since(startedAt).Milliseconds(),
	}
	if pipeErr != nil {
		msg := pipeErr.Error()
		kind := errorType(pipeErr)
		rec.Error = &msg
		rec.ErrorType = &kind
	}
	if state != nil {
		rec.Structured = &telemetry.StructuredSummary{
			ConstraintsUsed:     state.UsedConstraints,
			ConstraintsAttempts: state.ConstraintsAttempts,
			FallbackUsed:        state.FallbackUsed,
			SQL:                 state.StructuredSQL,
			RowsCount:           len(state.StructuredRows),
		}
		rec.Products = telemetry.SlimProducts(state.StructuredRows)
		rec.Unstructured = &telemetry.UnstructuredSummary{
			ReviewStyleCodes: state.ReviewStyleCodes,
			ReviewSummary:    state.ReviewSummary,
		}
		if state.Response != nil {
			rec.RecommendedStyleCodes = state.Response.RecommendedStyleCodes
			rec.RecommendedProductsCount = len(state.Response.RecommendedProducts)
		}
	}

	if err := h.telemetry.AppendChat(rec); err != nil {
		slog.Warn("failed to append chat telemetry",
			"message_id", messageID, "error", err)
	}
}
