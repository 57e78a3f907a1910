// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

// composerInstructions is the fixed formatting block of the generation
// prompt. The generated answer, not this prompt, reaches the user.
const composerInstructions = `요청:
- 한국어로, 사용자 질문에 맞는 '패션 의류 쇼핑 추천' 답변을 작성해라.
- 반드시 카테고리별 섹션(예: '상의', '아우터', '바지' 등)으로 나눠서 작성해라.
- 각 섹션에서 상위 추천부터 보여줘라.
- 추천은 총 최대 30개까지 가능하나, 너무 길어지면 카테고리별로 '상세 3~5개 + 나머지 간단 나열' 방식으로 요약해라.
- 각 상품의 상세 표기는 가능한 한 (상품명, 가격, 색상, 사이즈, 소재/특징 1줄, 링크(url))을 포함해라.
- 사용자의 의도가 불명확하면, 마지막에 선택 질문 1~2개(예: 핏/예산/사용상황)를 짧게 추가해라.`

// runCompose assembles the final recommendation payload and the single
// generation prompt. It never calls a generation model itself.
//
// # Description
//
// When fusion produced no products but structured rows exist, the
// product-ranker model re-ranks them (capped at 30); an unusable ranking
// falls back to the first 30 rows verbatim. The accepted products are
// grouped by category (subcategory, then "기타", when absent) in
// first-seen order, and the prompt embeds the history (or "없음"), the
// query, the structured decision, the grouping, and the fixed formatting
// instructions. The final style-code list is re-derived from the
// accepted products.
func (p *Pipeline) runCompose(ctx context.Context, state *datatypes.PipelineState) ([]string, error) {
	recProducts := state.FusedProducts

	if len(recProducts) == 0 && len(state.StructuredRows) > 0 {
		historyText := FormatHistory(state.Messages, p.cfg.MemoryMaxTurns)
		codes, err := p.models.RankProducts(ctx, state.UserQuery, historyText, state.StructuredRows)
		if err != nil {
			return nil, err
		}
		if len(codes) > MaxRecommend {
			codes = codes[:MaxRecommend]
		}
		recProducts = datatypes.PickProducts(codes, state.StructuredRows)
		if len(recProducts) == 0 {
			recProducts = datatypes.FallbackProducts(state.StructuredRows, MaxRecommend)
		}
	}

	grouped := datatypes.NewGroupedProducts(recProducts)
	prompt := buildComposerPrompt(state, grouped, p.cfg.MemoryMaxTurns)

	state.Response = &datatypes.APIResponse{
		RecommendedProducts:        recProducts,
		GroupedRecommendedProducts: grouped,
		RecommendedStyleCodes:      datatypes.ProductCodes(recProducts),
		ComposerPrompt:             prompt,
	}
	return []string{"response"}, nil
}

func buildComposerPrompt(state *datatypes.PipelineState, grouped *datatypes.GroupedProducts, maxTurns int) string {
	historyText := FormatHistory(state.Messages, maxTurns)
	if historyText == "" {
		historyText = "없음"
	}

	decisionJSON := "{}"
	if state.Decision != nil {
		if b, err := json.Marshal(state.Decision); err == nil {
			decisionJSON = string(b)
		}
	}
	groupedJSON := "{}"
	if b, err := json.Marshal(grouped); err == nil {
		groupedJSON = string(b)
	}

	return strings.TrimSpace(fmt.Sprintf(`[대화 히스토리]
%s

사용자 질문: %s

아래는 추천 결정 결과다(구조화):
%s

아래는 추천 상품(카테고리별 그룹)이다:
%s

%s`, historyText, state.UserQuery, decisionJSON, groupedJSON, composerInstructions))
}
