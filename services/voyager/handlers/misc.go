// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/resilience"
)

// HealthCheck reports service liveness.
//
// GET /health
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// BreakerStates exposes the live circuit breaker states for
// operational diagnostics.
//
// GET /v1/resilience/breakers
func BreakerStates(guard *resilience.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		states := guard.BreakerStates()
		out := make(map[string]string, len(states))
		for target, state := range states {
			out[target] = state.String()
		}
		c.JSON(http.StatusOK, gin.H{"breakers": out})
	}
}
