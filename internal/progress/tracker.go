package progress

// Broadcaster receives percentage updates for an import session
type Broadcaster interface {
	UpdateProgress(sessionID string, percentage int)
}

// Tracker maps step-local progress onto a slice of the session's percentage range
type Tracker struct {
	sessionID   string
	broadcaster Broadcaster
	minPercent  int
	maxPercent  int
}

// NewTracker creates a progress tracker for a session with a percentage range
func NewTracker(broadcaster Broadcaster, sessionID string, minPercent, maxPercent int) *Tracker {
	return &Tracker{
		sessionID:   sessionID,
		broadcaster: broadcaster,
		minPercent:  minPercent,
		maxPercent:  maxPercent,
	}
}

// Update reports progress within the configured percentage range
func (pt *Tracker) Update(current, total int) {
	if total > 0 && pt.broadcaster != nil {
		rangeSize := pt.maxPercent - pt.minPercent
		percentage := pt.minPercent + (current * rangeSize / total)
		pt.broadcaster.UpdateProgress(pt.sessionID, percentage)
	}
}

// Done moves progress to the top of the range
func (pt *Tracker) Done() {
	if pt.broadcaster != nil {
		pt.broadcaster.UpdateProgress(pt.sessionID, pt.maxPercent)
	}
}
