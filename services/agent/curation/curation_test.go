// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package curation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsEmptyState(t *testing.T) {
	state, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, state.ExcludedMessageIDs)
	assert.NotNil(t, state.QualityLabels)
	assert.Equal(t, 0, state.Version)
}

func TestSaveLoad_RoundTripAndVersionBump(t *testing.T) {
	dir := t.TempDir()

	state := &State{
		ExcludedMessageIDs: []string{"m2", "m1", "m2", ""},
		QualityLabels: map[string]string{
			"m1": LabelGood,
			"m2": "excellent", // invalid, dropped
			"m3": LabelBad,
		},
	}
	require.NoError(t, Save(dir, state, "2026-08-28T00:00:00Z"))
	assert.Equal(t, 1, state.Version)

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, loaded.ExcludedMessageIDs, "sorted, deduped")
	assert.Equal(t, map[string]string{"m1": LabelGood, "m3": LabelBad}, loaded.QualityLabels)
	assert.Equal(t, "2026-08-28T00:00:00Z", loaded.UpdatedAt)

	require.NoError(t, Save(dir, loaded, "2026-08-29T00:00:00Z"))
	assert.Equal(t, 2, loaded.Version)
}
