// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package curation persists the reviewer's dataset-curation state: which
// logged messages are excluded from training sets and the per-message
// quality labels. One versioned JSON document, replaced atomically.
package curation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const stateFile = "curation_state.json"

// Quality labels accepted for a message.
const (
	LabelGood    = "good"
	LabelBad     = "bad"
	LabelUnknown = "unknown"
)

// State is the curation document.
type State struct {
	Version            int               `json:"version"`
	ExcludedMessageIDs []string          `json:"excluded_message_ids"`
	QualityLabels      map[string]string `json:"quality_labels"`
	UpdatedAt          string            `json:"updated_at"`
}

// Normalize sorts and deduplicates the exclusion set and drops labels
// outside the accepted vocabulary.
func (s *State) Normalize() {
	seen := make(map[string]bool, len(s.ExcludedMessageIDs))
	unique := s.ExcludedMessageIDs[:0]
	for _, id := range s.ExcludedMessageIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	sort.Strings(unique)
	s.ExcludedMessageIDs = unique

	for id, label := range s.QualityLabels {
		switch label {
		case LabelGood, LabelBad, LabelUnknown:
		default:
			delete(s.QualityLabels, id)
		}
	}
}

// Load reads the curation state from dir. A missing file yields an empty
// state, not an error.
func Load(dir string) (*State, error) {
	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	if os.IsNotExist(err) {
		return &State{QualityLabels: map[string]string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read curation state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse curation state: %w", err)
	}
	if state.QualityLabels == nil {
		state.QualityLabels = map[string]string{}
	}
	state.Normalize()
	return &state, nil
}

// Save normalizes, bumps the version, and atomically replaces the state
// file (write to tmp, then rename).
func Save(dir string, state *State, now string) error {
	state.Normalize()
	state.Version++
	state.UpdatedAt = now

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal curation state: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create curation dir: %w", err)
	}
	tmp := filepath.Join(dir, stateFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write curation tmp: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, stateFile)); err != nil {
		return fmt.Errorf("replace curation state: %w", err)
	}
	return nil
}
