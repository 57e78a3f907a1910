// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points an OpenAIClient at a local fake via OPENAI_BASE_URL.
func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_MODEL", "test-model")
	t.Setenv("OPENAI_BASE_URL", srv.URL+"/v1")

	client, err := NewOpenAIClient()
	require.NoError(t, err)
	return client
}

func TestOpenAIClient_ChatStream_RelaysDeltas(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"안녕", "하세요", "!"} {
			fmt.Fprintf(w,
				"data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var got []string
	err := client.ChatStream(context.Background(),
		[]Message{{Role: "user", Content: "인사해줘"}},
		GenerationParams{},
		func(ev StreamEvent) error {
			require.Equal(t, StreamEventToken, ev.Type)
			got = append(got, ev.Content)
			return nil
		})

	require.NoError(t, err)
	assert.Equal(t, "안녕하세요!", strings.Join(got, ""))
}

func TestOpenAIClient_ChatStream_ErrorDeliveredToCallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	var errEvents int
	err := client.ChatStream(context.Background(),
		[]Message{{Role: "user", Content: "q"}},
		GenerationParams{},
		func(ev StreamEvent) error {
			if ev.Type == StreamEventError {
				errEvents++
				assert.Error(t, ev.Error)
			}
			return nil
		})

	require.Error(t, err)
	assert.Equal(t, 1, errEvents)
}

func TestOpenAIClient_ChatStream_CallbackAbort(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 10; i++ {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}\n\n")
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	calls := 0
	err := client.ChatStream(context.Background(),
		[]Message{{Role: "user", Content: "q"}},
		GenerationParams{},
		func(ev StreamEvent) error {
			calls++
			return fmt.Errorf("stop")
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestOpenAIClient_Generate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"답변"}}]}`)
	})

	out, err := client.Generate(context.Background(), "질문", GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "답변", out)
}
