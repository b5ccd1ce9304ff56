package progress

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/javi11/skillvault/internal/slogutil"
)

// Level classifies a session log entry
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Entry is one line of an import session log
type Entry struct {
	Seq       int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Step      string    `json:"step,omitempty"`
	Message   string    `json:"message"`
}

// Listener is called for every entry a session records
type Listener func(Entry)

// Session is the context of a single import: its log sequence, its progress
// and the listeners watching it. Sessions are independent; concurrent imports
// each get their own.
type Session struct {
	id          string
	broadcaster *ProgressBroadcaster
	logger      *slog.Logger

	mu        sync.Mutex
	seq       int64
	entries   []Entry
	listeners []Listener
	percent   int
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithListener registers a listener at creation time
func WithListener(l Listener) SessionOption {
	return func(s *Session) {
		s.listeners = append(s.listeners, l)
	}
}

// WithBroadcaster forwards entries and progress to a broadcaster
func WithBroadcaster(b *ProgressBroadcaster) SessionOption {
	return func(s *Session) {
		s.broadcaster = b
	}
}

// WithLogger mirrors entries to logger
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// NewSession starts a session with a fresh id and an empty log
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		id:     uuid.NewString(),
		logger: slog.Default().With("component", "import"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Context attaches the session id to ctx for structured logging
func (s *Session) Context(ctx context.Context) context.Context {
	return slogutil.With(ctx, "import_id", s.id)
}

// OnEntry registers a listener for entries recorded from now on
func (s *Session) OnEntry(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Log records an entry and notifies listeners
func (s *Session) Log(level Level, step, format string, args ...any) Entry {
	s.mu.Lock()
	s.seq++
	entry := Entry{
		Seq:       s.seq,
		Timestamp: time.Now(),
		Level:     level,
		Step:      step,
		Message:   fmt.Sprintf(format, args...),
	}
	s.entries = append(s.entries, entry)
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	s.logger.Log(context.Background(), slogLevel(level), entry.Message,
		"import_id", s.id,
		"seq", entry.Seq,
		"step", step)

	for _, l := range listeners {
		s.notify(l, entry)
	}
	if s.broadcaster != nil {
		s.broadcaster.PublishEntry(s.id, entry)
	}
	return entry
}

func (s *Session) Info(step, format string, args ...any) Entry {
	return s.Log(LevelInfo, step, format, args...)
}

func (s *Session) Success(step, format string, args ...any) Entry {
	return s.Log(LevelSuccess, step, format, args...)
}

func (s *Session) Warn(step, format string, args ...any) Entry {
	return s.Log(LevelWarning, step, format, args...)
}

func (s *Session) Error(step, format string, args ...any) Entry {
	return s.Log(LevelError, step, format, args...)
}

// notify shields the import from a panicking listener
func (s *Session) notify(l Listener, entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Progress listener panicked", "import_id", s.id, "panic", r)
		}
	}()
	l(entry)
}

// Entries returns a copy of the log in sequence order
func (s *Session) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// UpdateProgress implements Broadcaster for trackers created from this session
func (s *Session) UpdateProgress(sessionID string, percentage int) {
	percentage = max(0, min(100, percentage))

	s.mu.Lock()
	s.percent = percentage
	s.mu.Unlock()

	if s.broadcaster != nil {
		s.broadcaster.UpdateProgress(sessionID, percentage)
	}
}

// Percent returns the last reported progress percentage
func (s *Session) Percent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percent
}

// Tracker returns a tracker covering [minPercent, maxPercent] of this session
func (s *Session) Tracker(minPercent, maxPercent int) *Tracker {
	return NewTracker(s, s.id, minPercent, maxPercent)
}

func slogLevel(level Level) slog.Level {
	switch level {
	case LevelError:
		return slog.LevelError
	case LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
