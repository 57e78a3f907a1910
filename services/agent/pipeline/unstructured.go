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

// runSemanticSearch queries the review index with the split-out keywords,
// restricted to the structured candidates when any exist. An empty
// structured code set attaches no filter: reviews then range over the
// whole catalog.
func (p *Pipeline) runSemanticSearch(ctx context.Context, state *datatypes.PipelineState) ([]string, error) {
	result, err := p.semantic.Search(ctx, state.SemanticKeywords, state.StructuredStyleCodes)
	if err != nil {
		return nil, err
	}

	state.ReviewRows = result.Rows
	state.ReviewStyleCodes = result.StyleCodes
	state.ReviewSummary = result.ReviewSummary
	return []string{"review_rows", "review_style_codes", "review_summary"}, nil
}
