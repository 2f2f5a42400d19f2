package agent

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// maxRecentCharts bounds the per-session chart memory; the oldest reference
// is evicted first.
const maxRecentCharts = 5

// Draft is a composed-but-unsent email waiting for the user's confirmation.
type Draft struct {
	Recipients  []string
	Subject     string
	Body        string
	Attachments []string
}

// DraftStore holds at most one pending draft per session. Drafts never
// expire on their own; they live until approved, rejected or overwritten.
type DraftStore struct {
	store *cache.Cache
}

func NewDraftStore() *DraftStore {
	return &DraftStore{store: cache.New(cache.NoExpiration, 0)}
}

// Stash saves a draft for the session, silently replacing any unapproved
// draft already there.
func (s *DraftStore) Stash(sessionID string, draft Draft) {
	s.store.Set(sessionID, draft, cache.NoExpiration)
}

// Take removes and returns the session's pending draft, if any.
func (s *DraftStore) Take(sessionID string) (Draft, bool) {
	value, found := s.store.Get(sessionID)
	if !found {
		return Draft{}, false
	}
	s.store.Delete(sessionID)
	return value.(Draft), true
}

// Has reports whether a pending draft exists without consuming it.
func (s *DraftStore) Has(sessionID string) bool {
	_, found := s.store.Get(sessionID)
	return found
}

type turnArtifacts struct {
	lastAnswer string
	chartRefs  []string
}

// Artifacts remembers, per session, the last answer body and the charts
// produced recently, so a later "email this to me" can be fulfilled without
// the user restating what "this" is. Entries fade after a period of
// inactivity.
type Artifacts struct {
	mu    sync.Mutex
	store *cache.Cache
}

func NewArtifacts() *Artifacts {
	return &Artifacts{store: cache.New(1*time.Hour, 10*time.Minute)}
}

// Record stores the answer text and merges chartRefs into the session's
// recent-chart list: duplicates dropped, capacity capped with the oldest
// evicted first.
func (a *Artifacts) Record(sessionID, answerText string, chartRefs []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current := a.get(sessionID)
	current.lastAnswer = answerText
	current.chartRefs = mergeCharts(current.chartRefs, chartRefs)
	a.store.Set(sessionID, current, cache.DefaultExpiration)
}

// AddCharts merges chart references without touching the answer text. Used
// mid-turn so charts rendered in this turn are already attachable by an
// email tool call later in the same turn.
func (a *Artifacts) AddCharts(sessionID string, chartRefs []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	current := a.get(sessionID)
	current.chartRefs = mergeCharts(current.chartRefs, chartRefs)
	a.store.Set(sessionID, current, cache.DefaultExpiration)
}

func mergeCharts(existing, incoming []string) []string {
	for _, ref := range incoming {
		if ref == "" || contains(existing, ref) {
			continue
		}
		existing = append(existing, ref)
	}
	if len(existing) > maxRecentCharts {
		existing = existing[len(existing)-maxRecentCharts:]
	}
	return existing
}

// LastAnswer returns the most recent final answer for the session, or empty.
func (a *Artifacts) LastAnswer(sessionID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.get(sessionID).lastAnswer
}

// RecentCharts returns a copy of the session's chart references, oldest
// first.
func (a *Artifacts) RecentCharts(sessionID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	refs := a.get(sessionID).chartRefs
	out := make([]string, len(refs))
	copy(out, refs)
	return out
}

func (a *Artifacts) get(sessionID string) turnArtifacts {
	if value, found := a.store.Get(sessionID); found {
		return value.(turnArtifacts)
	}
	return turnArtifacts{}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
