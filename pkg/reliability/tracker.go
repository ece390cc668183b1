// Package reliability tracks inbound AS2 Message-IDs to detect retransmits.
package reliability

import (
	"sync"
	"time"
)

// DuplicateTracker remembers recently seen Message-IDs so the inbound
// servlet can short-circuit a retransmit (the sender's AS2 stack redelivers
// when it fails to receive an MDN in time) instead of re-dispatching the
// SBD to every registered handler a second time.
type DuplicateTracker struct {
	mu              sync.Mutex
	receivedAt      map[string]time.Time
	duplicateWindow time.Duration
}

// NewDuplicateTracker builds a tracker that considers a Message-ID a
// duplicate for window after it was first seen.
func NewDuplicateTracker(window time.Duration) *DuplicateTracker {
	return &DuplicateTracker{
		receivedAt:      make(map[string]time.Time),
		duplicateWindow: window,
	}
}

// Seen reports whether messageID was already marked received within the
// duplicate window, then marks it received regardless, so the first call
// for a given id always returns false.
func (t *DuplicateTracker) Seen(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if at, ok := t.receivedAt[messageID]; ok && time.Since(at) < t.duplicateWindow {
		return true
	}
	t.receivedAt[messageID] = time.Now()
	return false
}

// Cleanup removes entries older than the duplicate window. Callers run it
// periodically (e.g. hourly) so the map does not grow unbounded.
func (t *DuplicateTracker) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for id, at := range t.receivedAt {
		if now.Sub(at) > t.duplicateWindow {
			delete(t.receivedAt, id)
		}
	}
}
