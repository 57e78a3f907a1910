// Copyright (C) 2025 StyleSeek AI (dev@styleseek.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/styleseek-ai/styleseek/services/agent/handlers"
)

func SetupRoutes(router *gin.Engine, chat *handlers.ChatHandler,
	feedback *handlers.FeedbackHandler, admin *handlers.AdminHandler) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.POST("/chat/stream", chat.Handle)
		v1.POST("/feedback", feedback.Handle)

		// Operator routes, key-guarded when ADMIN_API_KEY is set
		adminGroup := v1.Group("/admin", handlers.RequireAdminKey())
		{
			adminGroup.POST("/reload_artifacts", admin.ReloadArtifacts)
			adminGroup.POST("/jobs/:kind", admin.StartJob)
			adminGroup.GET("/jobs/:id", admin.JobStatus)
			adminGroup.GET("/curation/state", admin.GetCurationState)
			adminGroup.PUT("/curation/state", admin.PutCurationState)
		}
	}
}
