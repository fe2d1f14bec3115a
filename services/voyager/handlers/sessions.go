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

	"github.com/AleutianAI/AleutianVoyage/services/voyager/session"
)

// ListThreads enumerates live thread ids for session administration.
//
// GET /v1/threads
func ListThreads(store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ids, err := store.ListThreads(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "thread listing failed"})
			return
		}
		if ids == nil {
			ids = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"threads": ids, "count": len(ids)})
	}
}

// DeleteThread removes a thread's slots, history and receipt.
//
// DELETE /v1/threads/:threadId
func DeleteThread(store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		threadID := c.Param("threadId")

		if err := store.DeleteThread(c.Request.Context(), threadID); err != nil {
			if errors.Is(err, session.ErrNotInitialized) {
				c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "thread deletion failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": threadID})
	}
}

// GetHistory returns a thread's bounded message history.
//
// GET /v1/threads/:threadId/history
func GetHistory(store session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		threadID := c.Param("threadId")

		msgs, err := store.GetMessages(c.Request.Context(), threadID)
		if err != nil {
			if errors.Is(err, session.ErrNotInitialized) {
				c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"thread_id": threadID, "messages": msgs})
	}
}
