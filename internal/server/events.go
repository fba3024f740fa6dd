// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	// eventWriteTimeout bounds one status message write.
	eventWriteTimeout = 10 * time.Second

	// eventCloseGrace is how long the close handshake may take.
	eventCloseGrace = time.Second
)

// handleJobEvents streams job status changes over a websocket until the job
// is terminal or the client disconnects. The first message is the current
// status.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	events, stop, ok := s.exports.Subscribe(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown export job")
		return
	}
	defer stop()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the client
		s.log.Debug().Err(err).Str("job", id).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Reads only to notice the client leaving
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case status, open := <-events:
			if !open {
				conn.SetWriteDeadline(time.Now().Add(eventCloseGrace))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := conn.WriteJSON(status); err != nil {
				s.log.Debug().Err(err).Str("job", id).Msg("websocket write failed")
				return
			}
		}
	}
}
