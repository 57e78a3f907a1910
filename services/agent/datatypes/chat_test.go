// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatStreamRequest_Validate(t *testing.T) {
	valid := ChatStreamRequest{SessionID: "s1", UserQuery: "기모 바지 추천해줘"}
	assert.NoError(t, valid.Validate())

	missing := ChatStreamRequest{UserQuery: "질문"}
	assert.Error(t, missing.Validate())

	oversized := ChatStreamRequest{
		SessionID: "s1",
		UserQuery: strings.Repeat("가", MaxUserQueryBytes),
	}
	assert.Error(t, oversized.Validate())

	badID := ChatStreamRequest{SessionID: "s1", UserQuery: "q", ClientMessageID: "not-a-uuid"}
	assert.Error(t, badID.Validate())
}

func TestChatStreamRequest_MessageID(t *testing.T) {
	withID := ChatStreamRequest{ClientMessageID: "550e8400-e29b-41d4-a716-446655440000"}
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", withID.MessageID())

	withoutID := ChatStreamRequest{}
	id := withoutID.MessageID()
	require.NotEmpty(t, id)
	assert.NotEqual(t, id, withoutID.MessageID(), "generated ids must be fresh per call")
}

func TestFeedbackRequest_Validate(t *testing.T) {
	good := 5
	valid := FeedbackRequest{SessionID: "s1", MessageID: "m1", Rating: &good}
	assert.NoError(t, valid.Validate())

	zero := 0
	outOfRange := FeedbackRequest{SessionID: "s1", MessageID: "m1", Rating: &zero}
	assert.Error(t, outOfRange.Validate())

	noRating := FeedbackRequest{SessionID: "s1", MessageID: "m1"}
	assert.NoError(t, noRating.Validate())
}
