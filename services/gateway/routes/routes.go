// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianSQL/pkg/extensions"
	"github.com/AleutianAI/AleutianSQL/services/gateway/audit"
	"github.com/AleutianAI/AleutianSQL/services/gateway/handlers"
	"github.com/AleutianAI/AleutianSQL/services/gateway/middleware"
)

// SetupRoutes registers every gateway endpoint.
//
// Probes, version, and metrics stay outside the authenticated group so
// load balancers and Prometheus can reach them without credentials.
func SetupRoutes(router *gin.Engine, runner handlers.AgentRunner, db handlers.Pinger,
	sinks []audit.Sink, version string, opts extensions.ServiceOptions) {

	router.GET("/healthz", handlers.HandleHealthz(db))
	router.GET("/readyz", handlers.HandleReadyz())
	router.GET("/version", handlers.HandleVersion(version))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(opts.AuthProvider))
	{
		v1.POST("/ask", handlers.HandleAsk(runner, sinks, opts))
	}
}
