// Package session holds the process-wide registry of live meeting
// sessions. The registry is the only shared mutable state in the ingestion
// pipeline; everything else reads snapshots taken under the per-session
// lock.
package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coach-sidekick/coach-sidekick-api/internal/domain/entities"
)

// Metadata carries the optional descriptive fields known at session
// creation time.
type Metadata struct {
	MeetingURL        string
	Platform          string
	PlatformMeetingID string
	Status            string
}

// Store is an in-memory registry of active meeting sessions keyed by bot
// id. All methods are safe for concurrent use; two sessions never contend
// with each other beyond the registry map lookup.
type Store struct {
	mu     sync.RWMutex
	slots  map[string]*slot
	logger *zap.Logger
}

// slot wraps one session with its own lock and trigger bookkeeping. The
// in-flight flags are read and written under the slot lock so a
// set/check/clear sequence is atomic with respect to other evaluations for
// the same session.
type slot struct {
	mu      sync.Mutex
	session *entities.MeetingSession

	saveInFlight     bool
	analysisInFlight bool

	lastAnalyzedIndex int
	latestAnalysis    *entities.CoachingAnalysis
}

// NewStore creates an empty session registry.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		slots:  make(map[string]*slot),
		logger: logger,
	}
}

// getOrCreate returns the slot for id, creating a placeholder session when
// the id has not been seen. Created reports whether a new session was made.
func (st *Store) getOrCreate(id string) (*slot, bool) {
	st.mu.RLock()
	sl, ok := st.slots[id]
	st.mu.RUnlock()
	if ok {
		return sl, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	// Re-check: another goroutine may have created it between the locks.
	if sl, ok := st.slots[id]; ok {
		return sl, false
	}
	sl = &slot{session: entities.NewMeetingSession(id)}
	st.slots[id] = sl
	if st.logger != nil {
		st.logger.Info("session created", zap.String("session_id", id))
	}
	return sl, true
}

// Create registers a session for id with the given metadata. Duplicate
// creation is tolerated: an existing session keeps its transcript and only
// absorbs non-empty metadata fields.
func (st *Store) Create(id string, meta Metadata) *entities.MeetingSession {
	sl, _ := st.getOrCreate(id)

	sl.mu.Lock()
	defer sl.mu.Unlock()
	s := sl.session
	if meta.MeetingURL != "" {
		s.MeetingURL = meta.MeetingURL
	}
	if meta.Platform != "" {
		s.Platform = meta.Platform
	}
	if meta.PlatformMeetingID != "" {
		s.PlatformMeetingID = meta.PlatformMeetingID
	}
	if meta.Status != "" {
		s.Status = meta.Status
	}
	s.UpdatedAt = time.Now().UTC()
	return s.Clone()
}

// Get returns a snapshot of the session, or false when the id is unknown.
// Not-found is a normal result for read paths, signaling the caller to
// treat the next event as the first for that id.
func (st *Store) Get(id string) (*entities.MeetingSession, bool) {
	st.mu.RLock()
	sl, ok := st.slots[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.session.Clone(), true
}

// IDs lists all registered session ids.
func (st *Store) IDs() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	ids := make([]string, 0, len(st.slots))
	for id := range st.slots {
		ids = append(ids, id)
	}
	return ids
}

// Append adds a transcript entry, auto-creating the session when the entry
// arrives before any status event. It returns the new total entry count
// and the new final-entry count so trigger evaluation needs no second read.
func (st *Store) Append(id string, entry entities.TranscriptEntry) (total, finals int) {
	sl, _ := st.getOrCreate(id)

	sl.mu.Lock()
	defer sl.mu.Unlock()
	s := sl.session
	s.Transcript = append(s.Transcript, entry)
	s.WebhookEvents++
	s.UpdatedAt = time.Now().UTC()
	for _, e := range s.Transcript {
		if e.IsFinal {
			finals++
		}
	}
	return len(s.Transcript), finals
}

// UpdateStatus sets the session status, creating the session when unseen.
func (st *Store) UpdateStatus(id, status string) {
	sl, _ := st.getOrCreate(id)

	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.session.Status = status
	sl.session.WebhookEvents++
	sl.session.UpdatedAt = time.Now().UTC()
}

// MarkEntriesSaved advances the saved high-water mark to max(current,
// count). Regressions from out-of-order or duplicate save confirmations
// are clamped, and the mark never exceeds the transcript length.
func (st *Store) MarkEntriesSaved(id string, count int) {
	st.mu.RLock()
	sl, ok := st.slots[id]
	st.mu.RUnlock()
	if !ok {
		return
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	s := sl.session
	if count > len(s.Transcript) {
		count = len(s.Transcript)
	}
	if count > s.LastSavedIndex {
		s.LastSavedIndex = count
	}
}

// SnapshotUnsaved copies the entries past the saved high-water mark. The
// returned from index is the absolute position of the first copied entry.
func (st *Store) SnapshotUnsaved(id string) (entries []entities.TranscriptEntry, from int, ok bool) {
	st.mu.RLock()
	sl, found := st.slots[id]
	st.mu.RUnlock()
	if !found {
		return nil, 0, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	s := sl.session
	from = s.LastSavedIndex
	entries = make([]entities.TranscriptEntry, len(s.Transcript)-from)
	copy(entries, s.Transcript[from:])
	return entries, from, true
}

// TryBeginSave atomically claims the per-session persistence slot. It
// returns false when a save is already in flight; the caller skips, it
// does not queue.
func (st *Store) TryBeginSave(id string) bool {
	st.mu.RLock()
	sl, ok := st.slots[id]
	st.mu.RUnlock()
	if !ok {
		return false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.saveInFlight {
		return false
	}
	sl.saveInFlight = true
	return true
}

// EndSave releases the persistence slot.
func (st *Store) EndSave(id string) {
	st.mu.RLock()
	sl, ok := st.slots[id]
	st.mu.RUnlock()
	if !ok {
		return
	}
	sl.mu.Lock()
	sl.saveInFlight = false
	sl.mu.Unlock()
}

// SaveInFlight reports whether a persistence call is running for id.
func (st *Store) SaveInFlight(id string) bool {
	st.mu.RLock()
	sl, ok := st.slots[id]
	st.mu.RUnlock()
	if !ok {
		return false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.saveInFlight
}

// TryBeginAnalysis atomically claims the per-session analysis slot.
func (st *Store) TryBeginAnalysis(id string) bool {
	st.mu.RLock()
	sl, ok := st.slots[id]
	st.mu.RUnlock()
	if !ok {
		return false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.analysisInFlight {
		return false
	}
	sl.analysisInFlight = true
	return true
}

// EndAnalysis releases the analysis slot.
func (st *Store) EndAnalysis(id string) {
	st.mu.RLock()
	sl, ok := st.slots[id]
	st.mu.RUnlock()
	if !ok {
		return
	}
	sl.mu.Lock()
	sl.analysisInFlight = false
	sl.mu.Unlock()
}

// LastAnalyzedIndex returns the analysis dedup cursor for id.
func (st *Store) LastAnalyzedIndex(id string) int {
	st.mu.RLock()
	sl, ok := st.slots[id]
	st.mu.RUnlock()
	if !ok {
		return 0
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.lastAnalyzedIndex
}

// SetAnalysis records a completed analysis. The cursor is adopted from the
// record but never allowed to regress; a stale completion keeps the newer
// cursor while still updating the suggestion snapshot when it is the most
// recent result we have.
func (st *Store) SetAnalysis(id string, analysis *entities.CoachingAnalysis) {
	if analysis == nil {
		return
	}
	st.mu.RLock()
	sl, ok := st.slots[id]
	st.mu.RUnlock()
	if !ok {
		return
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if analysis.LastAnalyzedTranscriptIndex > sl.lastAnalyzedIndex {
		sl.lastAnalyzedIndex = analysis.LastAnalyzedTranscriptIndex
	}
	sl.latestAnalysis = analysis
}

// LatestAnalysis returns the most recent analysis held for id.
func (st *Store) LatestAnalysis(id string) (*entities.CoachingAnalysis, bool) {
	st.mu.RLock()
	sl, ok := st.slots[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.latestAnalysis == nil {
		return nil, false
	}
	return sl.latestAnalysis, true
}

// Teardown removes the session from the registry and returns its final
// snapshot. The caller is responsible for flushing first.
func (st *Store) Teardown(id string) (*entities.MeetingSession, bool) {
	st.mu.Lock()
	sl, ok := st.slots[id]
	if ok {
		delete(st.slots, id)
	}
	st.mu.Unlock()
	if !ok {
		return nil, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if st.logger != nil {
		st.logger.Info("session torn down",
			zap.String("session_id", id),
			zap.Int("entries", len(sl.session.Transcript)),
			zap.Int("saved", sl.session.LastSavedIndex))
	}
	return sl.session.Clone(), true
}
