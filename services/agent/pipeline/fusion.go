// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"context"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

// runFusion combines structured candidates and semantic signals into the
// accepted recommendation set.
//
// # Description
//
// The fusion model sees the query, the full history, the structured
// products, and the review summary and codes. When its output is empty
// or unusable, the deterministic fallback takes over: the ordered
// intersection of the review codes with the structured product codes
// (review order preserved), and when that too is empty, the first 30
// structured codes in their original order. Accepted code lists are
// capped at 30. Codes with no matching product stay in the code list but
// produce no product record.
func (p *Pipeline) runFusion(ctx context.Context, state *datatypes.PipelineState) ([]string, error) {
	historyText := FormatHistory(state.Messages, p.cfg.MemoryMaxTurns)

	decision, err := p.models.FuseDecision(ctx,
		state.UserQuery, historyText,
		state.StructuredRows, state.ReviewSummary, state.ReviewStyleCodes)
	if err != nil {
		return nil, err
	}

	var codes []string
	if decision != nil && len(decision.StyleCodes) > 0 {
		codes = decision.StyleCodes
	} else {
		codes = fallbackFusionCodes(state.StructuredRows, state.ReviewStyleCodes)
		decision = &datatypes.FusionDecision{StyleCodes: codes}
	}
	if len(codes) > MaxRecommend {
		codes = codes[:MaxRecommend]
	}
	decision.StyleCodes = codes

	state.Decision = decision
	state.FusedProducts = datatypes.PickProducts(codes, state.StructuredRows)
	return []string{"decision", "fused_products"}, nil
}

// fallbackFusionCodes is the deterministic decision when the model gave
// nothing usable.
func fallbackFusionCodes(products []datatypes.Product, reviewCodes []string) []string {
	productCodes := datatypes.ProductCodes(products)

	inSet := make(map[string]bool, len(productCodes))
	for _, c := range productCodes {
		inSet[c] = true
	}
	var intersection []string
	for _, c := range reviewCodes {
		if inSet[c] {
			intersection = append(intersection, c)
		}
	}
	if len(intersection) > 0 {
		if len(intersection) > MaxRecommend {
			intersection = intersection[:MaxRecommend]
		}
		return intersection
	}
	if len(productCodes) > MaxRecommend {
		productCodes = productCodes[:MaxRecommend]
	}
	return productCodes
}
