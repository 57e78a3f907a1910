// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	sess, found, err := s.Get("nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, sess)
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	in := &datatypes.Session{
		Messages: []datatypes.ChatMessage{
			{Role: "user", Content: "기모 바지 추천해줘"},
			{Role: "assistant", Content: "추천드립니다"},
		},
		LastState: &datatypes.PipelineState{UserQuery: "기모 바지 추천해줘"},
	}
	require.NoError(t, s.Put("thread-1", in))

	out, found, err := s.Get("thread-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in.Messages, out.Messages)
	assert.Equal(t, "기모 바지 추천해줘", out.LastState.UserQuery)
	assert.False(t, out.UpdatedAt.IsZero())
}

func TestStore_LastWriterWins(t *testing.T) {
	s := newTestStore(t)

	first := &datatypes.Session{Messages: []datatypes.ChatMessage{{Role: "user", Content: "첫번째"}}}
	second := &datatypes.Session{Messages: []datatypes.ChatMessage{{Role: "user", Content: "두번째"}}}

	require.NoError(t, s.Put("t", first))
	require.NoError(t, s.Put("t", second))

	out, found, err := s.Get("t")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "두번째", out.Messages[0].Content)
}

func TestStore_ThreadsAreIndependent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Put("a", &datatypes.Session{
		Messages: []datatypes.ChatMessage{{Role: "user", Content: "A의 질문"}},
	}))

	_, found, err := s.Get("b")
	require.NoError(t, err)
	assert.False(t, found)
}
