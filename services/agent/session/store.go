// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session persists per-thread conversation state in an embedded
// BadgerDB instance.
//
// BadgerDB gives low-latency local access (~100µs) without an external
// database dependency. Sessions are JSON values under a "session/" key
// prefix, one key per thread id.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/styleseek-ai/styleseek/services/agent/datatypes"
)

const keyPrefix = "session/"

// Config holds configuration for the session store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// GCInterval is how often to run value log garbage collection.
	// Set to 0 to disable.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults: durable writes, 5-minute GC.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk I/O, no GC.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog to BadgerDB's Logger interface.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	slog.Error(fmt.Sprintf("badger: "+format, args...))
}
func (badgerLogger) Warningf(format string, args ...interface{}) {
	slog.Warn(fmt.Sprintf("badger: "+format, args...))
}
func (badgerLogger) Infof(format string, args ...interface{}) {
	slog.Debug(fmt.Sprintf("badger: "+format, args...))
}
func (badgerLogger) Debugf(format string, args ...interface{}) {
	slog.Debug(fmt.Sprintf("badger: "+format, args...))
}

// Store is the badger-backed session store.
//
// Concurrent requests for the same thread id are not serialized here:
// last writer wins on the session value. Requests for different threads
// are fully independent.
type Store struct {
	db   *badger.DB
	cfg  Config
	done chan struct{}
}

// Open creates the store, creating the directory when needed, and starts
// the GC runner when GCInterval > 0.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("session store: path required for persistent mode")
		}
		if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create session store dir: %w", err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	s := &Store{db: db, cfg: cfg, done: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		go s.runGC()
	}
	return s, nil
}

// Get reads the session for threadID. The second return is false when no
// session exists yet.
func (s *Store) Get(threadID string) (*datatypes.Session, bool, error) {
	var sess datatypes.Session
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + threadID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("get session %s: %w", threadID, err)
	}
	if !found {
		return nil, false, nil
	}
	return &sess, true, nil
}

// Put writes the session for threadID, stamping UpdatedAt.
func (s *Store) Put(threadID string, sess *datatypes.Session) error {
	sess.UpdatedAt = time.Now().UTC()
	val, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", threadID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+threadID), val)
	})
	if err != nil {
		return fmt.Errorf("put session %s: %w", threadID, err)
	}
	return nil
}

// Close stops the GC runner and closes the database.
func (s *Store) Close() error {
	close(s.done)
	return s.db.Close()
}

// runGC runs value-log garbage collection on the configured interval.
// badger.ErrNoRewrite means nothing to collect, which is normal.
func (s *Store) runGC() {
	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := s.db.RunValueLogGC(s.cfg.GCDiscardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				slog.Warn("session store GC failed", "error", err)
			}
		case <-s.done:
			return
		}
	}
}
