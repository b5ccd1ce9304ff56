package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProgressUpdate is one event on the import progress stream
type ProgressUpdate struct {
	SessionID  string    `json:"session_id"`
	Percentage int       `json:"percentage"`
	Entry      *Entry    `json:"entry,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProgressBroadcaster fans import session progress out to stream subscribers
type ProgressBroadcaster struct {
	// Session id to current progress percentage
	progress map[string]int
	mu       sync.RWMutex
	log      *slog.Logger

	subscribers map[string]chan ProgressUpdate
	subMu       sync.RWMutex
	closed      bool
}

// NewProgressBroadcaster creates a new progress broadcaster
func NewProgressBroadcaster() *ProgressBroadcaster {
	return &ProgressBroadcaster{
		progress:    make(map[string]int),
		subscribers: make(map[string]chan ProgressUpdate),
		log:         slog.Default().With("component", "progress-broadcaster"),
	}
}

func (pb *ProgressBroadcaster) Close() error {
	pb.subMu.Lock()
	for _, ch := range pb.subscribers {
		close(ch)
	}
	pb.subscribers = make(map[string]chan ProgressUpdate)
	pb.closed = true
	pb.subMu.Unlock()

	pb.mu.Lock()
	pb.progress = make(map[string]int)
	pb.mu.Unlock()

	return nil
}

// UpdateProgress records the progress of a session and broadcasts it
func (pb *ProgressBroadcaster) UpdateProgress(sessionID string, percentage int) {
	percentage = max(0, min(100, percentage))

	pb.mu.Lock()
	if percentage >= 100 {
		// Completed sessions are no longer tracked
		delete(pb.progress, sessionID)
	} else {
		pb.progress[sessionID] = percentage
	}
	pb.mu.Unlock()

	pb.broadcast(ProgressUpdate{
		SessionID:  sessionID,
		Percentage: percentage,
		Timestamp:  time.Now(),
	})
}

// PublishEntry broadcasts a session log entry alongside the session's current progress
func (pb *ProgressBroadcaster) PublishEntry(sessionID string, entry Entry) {
	pb.mu.RLock()
	percentage := pb.progress[sessionID]
	pb.mu.RUnlock()

	pb.broadcast(ProgressUpdate{
		SessionID:  sessionID,
		Percentage: percentage,
		Entry:      &entry,
		Timestamp:  entry.Timestamp,
	})
}

func (pb *ProgressBroadcaster) broadcast(update ProgressUpdate) {
	pb.subMu.RLock()
	defer pb.subMu.RUnlock()

	for subID, ch := range pb.subscribers {
		select {
		case ch <- update:
		default:
			// Slow subscriber, drop rather than block the import
			pb.log.WarnContext(context.Background(), "subscriber channel full, skipping update",
				"subscriber_id", subID,
				"session_id", update.SessionID)
		}
	}
}

// ClearProgress removes progress tracking for a finished or failed session
func (pb *ProgressBroadcaster) ClearProgress(sessionID string) {
	pb.mu.Lock()
	delete(pb.progress, sessionID)
	pb.mu.Unlock()
}

// GetProgress returns the current progress for a session
func (pb *ProgressBroadcaster) GetProgress(sessionID string) (int, bool) {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	percentage, exists := pb.progress[sessionID]
	return percentage, exists
}

// GetAllProgress returns a copy of all current progress states
func (pb *ProgressBroadcaster) GetAllProgress() map[string]int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	progressCopy := make(map[string]int, len(pb.progress))
	for id, percentage := range pb.progress {
		progressCopy[id] = percentage
	}
	return progressCopy
}

// Subscribe creates a new stream subscriber and returns its id and update channel
func (pb *ProgressBroadcaster) Subscribe() (string, <-chan ProgressUpdate) {
	pb.subMu.Lock()
	defer pb.subMu.Unlock()

	subID := "sub-" + uuid.NewString()
	ch := make(chan ProgressUpdate, 32)
	if pb.closed {
		close(ch)
		return subID, ch
	}
	pb.subscribers[subID] = ch

	pb.log.DebugContext(context.Background(), "New progress subscriber", "subscriber_id", subID, "total_subscribers", len(pb.subscribers))
	return subID, ch
}

// Unsubscribe removes a subscriber and closes its channel
func (pb *ProgressBroadcaster) Unsubscribe(subID string) {
	pb.subMu.Lock()
	defer pb.subMu.Unlock()

	if ch, exists := pb.subscribers[subID]; exists {
		close(ch)
		delete(pb.subscribers, subID)
		pb.log.DebugContext(context.Background(), "Progress subscriber removed", "subscriber_id", subID, "total_subscribers", len(pb.subscribers))
	}
}
