// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package jobs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore()

	job := s.Create(KindDatasetBuild)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, StatusQueued, job.Status)

	got, ok := s.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, KindDatasetBuild, got.Kind)

	_, ok = s.Get("missing")
	assert.False(t, ok)
}

func TestStore_StatusTransitions(t *testing.T) {
	s := NewStore()
	job := s.Create(KindCompile)

	require.NoError(t, s.SetStatus(job.ID, StatusRunning))
	require.NoError(t, s.SetStatus(job.ID, StatusDone))

	got, ok := s.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, StatusDone, got.Status)

	assert.Error(t, s.SetStatus("missing", StatusError))
}

func TestStore_AppendParsesProgress(t *testing.T) {
	s := NewStore()
	job := s.Create(KindCompile)

	require.NoError(t, s.Append(job.ID, "starting compile"))
	require.NoError(t, s.Append(job.ID, "progress: 3/10"))
	require.NoError(t, s.Append(job.ID, "epoch finished, progress: 7 / 10"))

	got, _ := s.Get(job.ID)
	assert.Equal(t, 7, got.ProgressDone)
	assert.Equal(t, 10, got.ProgressTotal)
	assert.Len(t, got.Log, 3)
}

func TestStore_LogRingCap(t *testing.T) {
	s := NewStore()
	job := s.Create(KindDatasetBuild)

	for i := 0; i < 250; i++ {
		require.NoError(t, s.Append(job.ID, fmt.Sprintf("line %d", i)))
	}

	got, _ := s.Get(job.ID)
	require.Len(t, got.Log, 200)
	assert.Equal(t, "line 50", got.Log[0])
	assert.Equal(t, "line 249", got.Log[199])
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	job := s.Create(KindDatasetBuild)
	require.NoError(t, s.Append(job.ID, "original"))

	got, _ := s.Get(job.ID)
	got.Status = StatusError

	fresh, _ := s.Get(job.ID)
	assert.Equal(t, StatusQueued, fresh.Status)
}
