// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package jobs tracks async admin tasks (dataset builds, model compiles)
// in an expiring in-process registry. The work itself runs in the
// external model runtime; this store only mirrors status and log tails
// for the admin endpoints.
package jobs

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Known job kinds.
const (
	KindDatasetBuild = "dataset_build"
	KindCompile      = "compile"
)

const (
	// maxLogLines caps the rolling log buffer per job.
	maxLogLines = 200

	defaultTTL      = 24 * time.Hour
	cleanupInterval = time.Hour
)

// progressRe matches "progress: x/y" anywhere in a log line.
var progressRe = regexp.MustCompile(`progress:\s*(\d+)\s*/\s*(\d+)`)

// Job is one tracked async task.
type Job struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Status        Status    `json:"status"`
	Log           []string  `json:"log"`
	ProgressDone  int       `json:"progress_done"`
	ProgressTotal int       `json:"progress_total"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store is the expiring job registry. Entries drop out 24h after their
// last touch, bounding memory without explicit cleanup endpoints.
type Store struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{cache: gocache.New(defaultTTL, cleanupInterval)}
}

// Create registers a new queued job of kind and returns it.
func (s *Store) Create(kind string) *Job {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(job.ID, job, gocache.DefaultExpiration)
	return job
}

// Get returns a copy of the job with id.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(id)
	if !ok {
		return Job{}, false
	}
	return *(v.(*Job)), true
}

// SetStatus moves the job to status.
func (s *Store) SetStatus(id string, status Status) error {
	return s.update(id, func(j *Job) {
		j.Status = status
	})
}

// Append adds one log line to the job's rolling buffer, trimming to the
// last 200 lines and re-parsing progress counters from the new line.
func (s *Store) Append(id, line string) error {
	return s.update(id, func(j *Job) {
		j.Log = append(j.Log, line)
		if len(j.Log) > maxLogLines {
			j.Log = j.Log[len(j.Log)-maxLogLines:]
		}
		if m := progressRe.FindStringSubmatch(line); m != nil {
			done, err1 := strconv.Atoi(m[1])
			total, err2 := strconv.Atoi(m[2])
			if err1 == nil && err2 == nil {
				j.ProgressDone = done
				j.ProgressTotal = total
			}
		}
	})
}

func (s *Store) update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(id)
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job := v.(*Job)
	fn(job)
	job.UpdatedAt = time.Now().UTC()
	s.cache.Set(id, job, gocache.DefaultExpiration)
	return nil
}
