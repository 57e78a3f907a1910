// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/styleseek-ai/styleseek/services/agent/curation"
	"github.com/styleseek-ai/styleseek/services/agent/jobs"
	"github.com/styleseek-ai/styleseek/services/models"
)

// JobRunner executes one long-running runtime job, streaming log lines
// through logLine until the job finishes.
type JobRunner interface {
	RunJob(ctx context.Context, kind string, logLine func(string)) error
}

// AdminHandler serves the operator endpoints under /v1/admin: artifact
// reloads, async dataset-build and compile jobs, and curation state.
type AdminHandler struct {
	registry    *models.Registry
	jobs        *jobs.Store
	runner      JobRunner
	curationDir string
}

// NewAdminHandler wires the handler. curationDir is where the curation
// state document lives, usually the telemetry data dir.
func NewAdminHandler(registry *models.Registry, store *jobs.Store, runner JobRunner, curationDir string) *AdminHandler {
	if registry == nil {
		panic("NewAdminHandler: nil registry")
	}
	if store == nil {
		panic("NewAdminHandler: nil job store")
	}
	if runner == nil {
		panic("NewAdminHandler: nil job runner")
	}
	return &AdminHandler{
		registry:    registry,
		jobs:        store,
		runner:      runner,
		curationDir: curationDir,
	}
}

// RequireAdminKey guards the admin group. When ADMIN_API_KEY is unset
// the group is open (local dev); when set, every request must carry the
// matching X-Admin-Key header.
func RequireAdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		want := os.Getenv("ADMIN_API_KEY")
		if want == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-Admin-Key") != want {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			return
		}
		c.Next()
	}
}

// ReloadArtifacts re-reads every model artifact from disk and returns
// the resulting snapshot.
func (h *AdminHandler) ReloadArtifacts(c *gin.Context) {
	h.registry.ReloadAll()
	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"artifacts": h.registry.Snapshot(),
	})
}

// StartJob queues one async runtime job and returns its id immediately.
// The job's status and log tail are polled via JobStatus.
func (h *AdminHandler) StartJob(c *gin.Context) {
	kind := c.Param("kind")
	switch kind {
	case jobs.KindDatasetBuild, jobs.KindCompile:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown job kind: " + kind})
		return
	}

	job := h.jobs.Create(kind)
	go h.runJob(job.ID, kind)

	c.JSON(http.StatusOK, gin.H{"ok": true, "job_id": job.ID})
}

// runJob drives one job to completion in the background. The request
// context is gone by now, so the job runs under its own deadline.
func (h *AdminHandler) runJob(id, kind string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	if err := h.jobs.SetStatus(id, jobs.StatusRunning); err != nil {
		slog.Warn("job vanished before start", "job_id", id, "error", err)
		return
	}
	slog.Info("admin job started", "job_id", id, "kind", kind)

	err := h.runner.RunJob(ctx, kind, func(line string) {
		if appendErr := h.jobs.Append(id, line); appendErr != nil {
			slog.Warn("failed to append job log", "job_id", id, "error", appendErr)
		}
	})
	if err != nil {
		_ = h.jobs.Append(id, "error: "+err.Error())
		_ = h.jobs.SetStatus(id, jobs.StatusError)
		slog.Error("admin job failed", "job_id", id, "kind", kind, "error", err)
		return
	}
	_ = h.jobs.SetStatus(id, jobs.StatusDone)
	slog.Info("admin job finished", "job_id", id, "kind", kind)
}

// JobStatus returns the tracked state of one job.
func (h *AdminHandler) JobStatus(c *gin.Context) {
	job, ok := h.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// GetCurationState returns the current curation document.
func (h *AdminHandler) GetCurationState(c *gin.Context) {
	state, err := curation.Load(h.curationDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

// PutCurationState replaces the curation document with the request body.
func (h *AdminHandler) PutCurationState(c *gin.Context) {
	var state curation.State
	if err := c.ShouldBindJSON(&state); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if state.QualityLabels == nil {
		state.QualityLabels = map[string]string{}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := curation.Save(h.curationDir, &state, now); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}
