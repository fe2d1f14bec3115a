// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the voyager HTTP surface.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/engine"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/handlers"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/resilience"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/session"
)

// SetupRoutes registers every endpoint on the router.
func SetupRoutes(router *gin.Engine, eng *engine.Engine, store session.Store, guard *resilience.Service) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.POST("/turn", handlers.HandleTurn(eng))
		v1.GET("/chat/ws", handlers.HandleChatWebSocket(eng))
		v1.GET("/resilience/breakers", handlers.BreakerStates(guard))

		threads := v1.Group("/threads")
		{
			threads.GET("", handlers.ListThreads(store))
			threads.GET("/:threadId/receipts", handlers.GetReceipt(eng))
			threads.GET("/:threadId/history", handlers.GetHistory(store))
			threads.DELETE("/:threadId", handlers.DeleteThread(store))
		}
	}
}
