// Package session keeps the server-side state of one search flow: the
// filter draft, the candidate lists currently on offer, the supersession
// sequence numbers for autocomplete responses, and the result controller.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edunet/search-gateway/internal/models"
	"github.com/edunet/search-gateway/internal/observability"
	"github.com/edunet/search-gateway/internal/results"
)

type Session struct {
	id string

	mu            sync.Mutex
	filters       models.SearchFilters
	candidates    map[models.SuggestKind][]models.Candidate
	issuedSeq     map[models.SuggestKind]uint64
	appliedSeq    map[models.SuggestKind]uint64
	userEdited    bool
	geocodeSeeded bool
	controller    *results.Controller
	lastActive    time.Time
	closed        bool
}

func newSession(pageSize int) *Session {
	return &Session{
		id:         uuid.New().String(),
		candidates: make(map[models.SuggestKind][]models.Candidate),
		issuedSeq:  make(map[models.SuggestKind]uint64),
		appliedSeq: make(map[models.SuggestKind]uint64),
		controller: results.NewController(pageSize),
		lastActive: time.Now(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Results() *results.Controller { return s.controller }

// NextSuggestSeq issues the sequence number for a new autocomplete lookup of
// the given kind. Responses come back tagged with it so late arrivals from
// older keystrokes can be told apart from the current one.
func (s *Session) NextSuggestSeq(kind models.SuggestKind) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issuedSeq[kind]++
	return s.issuedSeq[kind]
}

// ApplyCandidates installs a lookup result unless a newer one already landed
// or the session closed. For location candidates it also re-checks the typed
// text against the fresh list: an exact label match restores the resolved
// location ID that editing had cleared.
func (s *Session) ApplyCandidates(kind models.SuggestKind, seq uint64, candidates []models.Candidate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || seq <= s.appliedSeq[kind] {
		observability.SuggestSupersededTotal.WithLabelValues(kind.String()).Inc()
		return false
	}
	s.appliedSeq[kind] = seq
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	s.candidates[kind] = candidates

	if kind == models.KindLocation {
		s.filters.ResolvedLocationID = nil
		typed := strings.TrimSpace(s.filters.LocationText)
		for _, cand := range candidates {
			if cand.ID != nil && strings.EqualFold(typed, strings.TrimSpace(cand.Label)) {
				id := *cand.ID
				s.filters.ResolvedLocationID = &id
				break
			}
		}
	}
	return true
}

// Candidates returns the list currently on offer for a kind.
func (s *Session) Candidates(kind models.SuggestKind) []models.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.candidates[kind]
	if out == nil {
		return []models.Candidate{}
	}
	return out
}

// SetLocationText records a manual edit of the location field. Free text is
// untrusted: the resolved location ID and any geolocation coordinates are
// dropped until the text is re-anchored by a selection or an exact match.
// The returned sequence tags the lookup for this exact text; issuing it under
// the same lock keeps a lookup from ever carrying a newer edit's sequence.
// A closed session returns zero, which no ApplyCandidates call accepts.
func (s *Session) SetLocationText(text string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.filters.LocationText = text
	s.filters.ResolvedLocationID = nil
	s.filters.Coordinates = nil
	s.userEdited = true
	s.lastActive = time.Now()
	s.issuedSeq[models.KindLocation]++
	return s.issuedSeq[models.KindLocation]
}

// SelectCandidate commits a picked location suggestion: label and ID move
// into the filters together and the candidate list is cleared.
func (s *Session) SelectCandidate(cand models.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.filters.LocationText = cand.Label
	s.filters.ResolvedLocationID = nil
	if cand.ID != nil {
		id := *cand.ID
		s.filters.ResolvedLocationID = &id
	}
	s.filters.Coordinates = nil
	s.candidates[models.KindLocation] = []models.Candidate{}
	// A lookup issued for the pre-selection text may still be in flight;
	// advancing the cursor past it keeps it from reopening the panel and
	// clearing the ID anchored here.
	s.issuedSeq[models.KindLocation]++
	s.appliedSeq[models.KindLocation] = s.issuedSeq[models.KindLocation]
	s.userEdited = true
	s.lastActive = time.Now()
}

// SeedLocation prefills the location field from geolocation. It runs at most
// once and never overwrites anything the user already typed.
func (s *Session) SeedLocation(label string, coords *models.Coordinates) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.userEdited || s.geocodeSeeded {
		return false
	}
	s.geocodeSeeded = true
	s.filters.LocationText = label
	s.filters.ResolvedLocationID = nil
	if coords != nil {
		c := *coords
		s.filters.Coordinates = &c
	}
	return true
}

func (s *Session) SetCategory(kind models.CategoryKind, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.filters.Category = models.Category{Kind: kind, Value: value}
	s.lastActive = time.Now()
}

// Snapshot returns a copy of the current filters.
func (s *Session) Snapshot() models.SearchFilters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filters
	if s.filters.ResolvedLocationID != nil {
		id := *s.filters.ResolvedLocationID
		out.ResolvedLocationID = &id
	}
	if s.filters.Coordinates != nil {
		c := *s.filters.Coordinates
		out.Coordinates = &c
	}
	return out
}

func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close marks the session dead and abandons any in-flight search so late
// completions cannot write into it.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.controller.Invalidate()
}
