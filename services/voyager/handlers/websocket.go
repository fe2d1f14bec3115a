// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
	"github.com/AleutianAI/AleutianVoyage/services/voyager/engine"
)

// WSRequest is one inbound chat message on the websocket.
type WSRequest struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
}

// WSResponse mirrors TurnResponse plus an error field for malformed
// frames; the socket stays open across turn failures.
type WSResponse struct {
	Reply     string   `json:"reply,omitempty"`
	ThreadID  string   `json:"thread_id,omitempty"`
	Citations []string `json:"citations,omitempty"`
	Error     string   `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// HandleChatWebSocket runs an interactive chat session over one
// websocket connection. The whole connection shares a thread id, so
// slot state carries across messages.
//
// GET /v1/chat/ws
func HandleChatWebSocket(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}
		defer ws.Close()

		// The connection's default thread; a frame may override it.
		threadID := uuid.NewString()
		if err := ws.WriteJSON(WSResponse{ThreadID: threadID}); err != nil {
			return
		}

		for {
			var req WSRequest
			if err := ws.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Warn("websocket read failed", "error", err)
				}
				return
			}
			if req.ThreadID != "" {
				threadID = req.ThreadID
			}

			resp, err := eng.HandleTurn(c.Request.Context(), datatypes.TurnRequest{
				Message:  req.Message,
				ThreadID: threadID,
			})
			if err != nil {
				if werr := ws.WriteJSON(WSResponse{Error: err.Error(), ThreadID: threadID}); werr != nil {
					return
				}
				continue
			}
			threadID = resp.ThreadID
			if err := ws.WriteJSON(WSResponse{
				Reply:     resp.Reply,
				ThreadID:  resp.ThreadID,
				Citations: resp.Citations,
			}); err != nil {
				return
			}
		}
	}
}
