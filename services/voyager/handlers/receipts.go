// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/engine"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/session"
)

// GetReceipt returns the most recent receipt for a thread. This is
// the read-only "why did you say that" surface.
//
// GET /v1/threads/:threadId/receipts
func GetReceipt(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		threadID := c.Param("threadId")

		receipt, err := eng.LastReceipt(c.Request.Context(), threadID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrNotInitialized) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no receipt for thread"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "receipt lookup failed"})
			return
		}
		c.JSON(http.StatusOK, receipt)
	}
}
