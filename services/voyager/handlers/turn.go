// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin HTTP handlers for the voyager
// service.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/engine"
)

// HandleTurn processes one conversational turn.
//
// POST /v1/turn {"message": "...", "thread_id": "..."} →
// {"reply": "...", "thread_id": "...", "citations": [...], "receipts": {...}}
//
// The engine degrades internally; the only 4xx here is a malformed or
// oversized request.
func HandleTurn(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.TurnRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		resp, err := eng.HandleTurn(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
