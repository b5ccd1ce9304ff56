package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

const keepAliveInterval = 30 * time.Second

// handleProgressStream handles GET /imports/progress/stream
// Server-Sent Events endpoint for live import progress and session log entries
func (s *Server) handleProgressStream(c *fiber.Ctx) error {
	if s.broadcaster == nil {
		return RespondError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Progress streaming is not enabled", "")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Accel-Buffering", "no") // Disable nginx buffering

	broadcaster := s.broadcaster
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		subID, updateCh := broadcaster.Subscribe()
		defer broadcaster.Unsubscribe(subID)

		initialData, err := json.Marshal(fiber.Map{
			"type": "initial",
			"data": broadcaster.GetAllProgress(),
		})
		if err != nil {
			slog.Error("failed to marshal initial progress", "error", err)
			return
		}

		fmt.Fprintf(w, "data: %s\n\n", initialData)
		if err := w.Flush(); err != nil {
			return
		}

		keepAliveTicker := time.NewTicker(keepAliveInterval)
		defer keepAliveTicker.Stop()

		for {
			select {
			case update, ok := <-updateCh:
				if !ok {
					return
				}

				eventType := "progress"
				if update.Entry != nil {
					eventType = "log"
				}
				updateData, err := json.Marshal(fiber.Map{
					"type": eventType,
					"data": update,
				})
				if err != nil {
					slog.Error("failed to marshal progress update", "error", err, "session_id", update.SessionID)
					continue
				}

				fmt.Fprintf(w, "data: %s\n\n", updateData)
				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-keepAliveTicker.C:
				fmt.Fprintf(w, ": keep-alive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})

	return nil
}
