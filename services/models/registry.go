// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ArtifactKinds lists the model artifacts the runtime serves. Each kind
// maps to one compiled-model file under the artifacts directory.
var ArtifactKinds = []string{"relaxed_constraints", "product_ranker", "fusion_decision"}

// Artifact is the cached metadata for one compiled model file.
type Artifact struct {
	Kind     string    `json:"kind"`
	Path     string    `json:"path"`
	SHA256   string    `json:"sha256"`
	LoadedAt time.Time `json:"loaded_at"`
}

// Registry is the process-scoped artifact cache.
//
// # Description
//
// Caches per-kind artifact metadata so the agent can report which model
// versions are live and detect when the external compile job replaced
// one. A fsnotify watcher on the artifacts directory invalidates the
// matching kind on any write; the admin reload endpoint calls ReloadAll.
// Absent artifact files are not an error: the runtime falls back to its
// uncompiled defaults, and the registry records no entry for that kind.
type Registry struct {
	dir string

	mu        sync.RWMutex
	artifacts map[string]Artifact

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRegistry builds a registry over dir and performs an initial load.
// Pass the result of os.Getenv("ARTIFACTS_DIR"); an empty dir disables
// the registry (all lookups miss, watcher not started).
func NewRegistry(dir string) *Registry {
	r := &Registry{
		dir:       dir,
		artifacts: make(map[string]Artifact),
		done:      make(chan struct{}),
	}
	if dir == "" {
		slog.Warn("ARTIFACTS_DIR not set, artifact registry disabled")
		return r
	}
	r.ReloadAll()
	return r
}

// Get returns the cached artifact for kind.
func (r *Registry) Get(kind string) (Artifact, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[kind]
	return a, ok
}

// Snapshot returns a copy of every cached artifact, keyed by kind.
func (r *Registry) Snapshot() map[string]Artifact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Artifact, len(r.artifacts))
	for k, v := range r.artifacts {
		out[k] = v
	}
	return out
}

// Invalidate drops the cached entry for kind and reloads it from disk.
func (r *Registry) Invalidate(kind string) {
	r.mu.Lock()
	delete(r.artifacts, kind)
	r.mu.Unlock()
	r.load(kind)
}

// ReloadAll reloads every known artifact kind from disk.
func (r *Registry) ReloadAll() {
	if r.dir == "" {
		return
	}
	for _, kind := range ArtifactKinds {
		r.load(kind)
	}
}

// load reads one artifact file's metadata into the cache. A missing file
// clears the entry.
func (r *Registry) load(kind string) {
	path := filepath.Join(r.dir, kind+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		r.mu.Lock()
		delete(r.artifacts, kind)
		r.mu.Unlock()
		if !os.IsNotExist(err) {
			slog.Warn("failed to read model artifact", "kind", kind, "error", err)
		}
		return
	}

	sum := sha256.Sum256(data)
	artifact := Artifact{
		Kind:     kind,
		Path:     path,
		SHA256:   hex.EncodeToString(sum[:]),
		LoadedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.artifacts[kind] = artifact
	r.mu.Unlock()
	slog.Info("model artifact loaded", "kind", kind, "sha256", artifact.SHA256[:12])
}

// Watch starts the fsnotify loop invalidating kinds whose files change.
// Call Close to stop it.
func (r *Registry) Watch() error {
	if r.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create artifacts watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch artifacts dir %s: %w", r.dir, err)
	}
	r.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				kind := kindFromPath(event.Name)
				if kind == "" {
					continue
				}
				slog.Info("artifact change detected, invalidating",
					"kind", kind, "op", event.Op.String())
				r.Invalidate(kind)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("artifacts watcher error", "error", err)
			case <-r.done:
				return
			}
		}
	}()

	slog.Info("watching artifacts directory", "dir", r.dir)
	return nil
}

// Close stops the watcher goroutine.
func (r *Registry) Close() {
	close(r.done)
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
}

func kindFromPath(path string) string {
	base := filepath.Base(path)
	for _, kind := range ArtifactKinds {
		if base == kind+".json" {
			return kind
		}
	}
	return ""
}
