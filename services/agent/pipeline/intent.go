// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

// FormatHistory renders conversation turns for model prompts: the last
// maxTurns*2 messages, "사용자:"/"어시스턴트:" prefixed, blank contents
// dropped, joined by newline.
func FormatHistory(messages []datatypes.ChatMessage, maxTurns int) string {
	if len(messages) == 0 {
		return ""
	}
	limit := maxTurns * 2
	if len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	var lines []string
	for _, m := range messages {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch m.Role {
		case "user":
			lines = append(lines, "사용자: "+content)
		case "assistant":
			lines = append(lines, "어시스턴트: "+content)
		default:
			lines = append(lines, m.Role+": "+content)
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// runIntentSplit appends the user turn and splits the query into the
// structured-constraint and semantic-keyword intents.
//
// History is formatted from the turns before the new user message and
// prefixed onto the splitter's input so multi-turn references ("그 중에
// 더 싼 거") resolve against earlier turns.
func (p *Pipeline) runIntentSplit(ctx context.Context, state *datatypes.PipelineState) ([]string, error) {
	historyText := FormatHistory(state.Messages, p.cfg.MemoryMaxTurns)
	state.Messages = append(state.Messages, datatypes.ChatMessage{
		Role:    "user",
		Content: state.UserQuery,
	})

	intentQuery := state.UserQuery
	if historyText != "" {
		intentQuery = fmt.Sprintf("대화 히스토리:\n%s\n\n사용자 질문:\n%s", historyText, state.UserQuery)
	}

	split, err := p.models.SplitIntent(ctx, intentQuery)
	if err != nil {
		return nil, err
	}

	state.StructuredConstraints = split.StructuredConstraints
	state.SemanticKeywords = split.SemanticKeywords
	return []string{"messages", "structured_constraints", "semantic_keywords"}, nil
}
