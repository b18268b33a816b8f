package services

import (
	"sync"

	"github.com/itish2003/therapybot/models"
)

// DefaultHistoryLimit is the number of turns kept per session (100 exchanges).
const DefaultHistoryLimit = 200

// HistoryStore keeps each session's turn log in process memory. Logs are
// trimmed to the most recent limit turns; sessions themselves are never
// evicted, so the number of sessions grows for the life of the process.
type HistoryStore struct {
	mu    sync.Mutex
	limit int
	logs  map[string][]models.Turn
}

// NewHistoryStore creates an empty store keeping at most limit turns per
// session. A non-positive limit falls back to DefaultHistoryLimit.
func NewHistoryStore(limit int) *HistoryStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &HistoryStore{
		limit: limit,
		logs:  make(map[string][]models.Turn),
	}
}

// Get returns a copy of the session's turns, oldest first.
func (h *HistoryStore) Get(sessionID string) []models.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := h.logs[sessionID]
	out := make([]models.Turn, len(turns))
	copy(out, turns)
	return out
}

// Append adds turns to the session log and drops the oldest ones past the limit.
func (h *HistoryStore) Append(sessionID string, turns ...models.Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	history := append(h.logs[sessionID], turns...)
	if len(history) > h.limit {
		trimmed := make([]models.Turn, h.limit)
		copy(trimmed, history[len(history)-h.limit:])
		history = trimmed
	}
	h.logs[sessionID] = history
}

// Len returns the number of turns held for the session.
func (h *HistoryStore) Len(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.logs[sessionID])
}
