package session

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/edunet/search-gateway/internal/config"
	"github.com/edunet/search-gateway/internal/models"
)

func testRegistry() *Registry {
	return NewRegistry(config.SessionConfig{
		IdleTTL:         30 * time.Minute,
		SweepInterval:   time.Minute,
		DefaultPageSize: 5,
		MaxPageSize:     50,
	}, zap.NewNop())
}

func intPtr(v int64) *int64 { return &v }

func TestSelectCandidateAnchorsLocation(t *testing.T) {
	s := testRegistry().Create(0)

	s.SelectCandidate(models.Candidate{ID: intPtr(42), Label: "Sousse, Khezama"})

	f := s.Snapshot()
	if f.LocationText != "Sousse, Khezama" {
		t.Fatalf("location text = %q", f.LocationText)
	}
	if f.ResolvedLocationID == nil || *f.ResolvedLocationID != 42 {
		t.Fatalf("resolved location ID = %v, want 42", f.ResolvedLocationID)
	}
	if got := s.Candidates(models.KindLocation); len(got) != 0 {
		t.Fatalf("selection should clear candidates, got %d", len(got))
	}
}

func TestEditClearsResolvedLocation(t *testing.T) {
	s := testRegistry().Create(0)

	s.SelectCandidate(models.Candidate{ID: intPtr(42), Label: "Sousse"})
	s.SetLocationText("Sousse K")

	f := s.Snapshot()
	if f.ResolvedLocationID != nil {
		t.Fatalf("editing the text should clear the resolved ID, got %v", *f.ResolvedLocationID)
	}
	if f.LocationText != "Sousse K" {
		t.Fatalf("location text = %q", f.LocationText)
	}
}

func TestExactMatchRestoresResolvedLocation(t *testing.T) {
	s := testRegistry().Create(0)
	seq := s.SetLocationText("sousse, khezama ")

	applied := s.ApplyCandidates(models.KindLocation, seq, []models.Candidate{
		{ID: intPtr(7), Label: "Sousse, Sahloul"},
		{ID: intPtr(9), Label: "Sousse, Khezama"},
	})
	if !applied {
		t.Fatal("candidates were not applied")
	}

	f := s.Snapshot()
	if f.ResolvedLocationID == nil || *f.ResolvedLocationID != 9 {
		t.Fatalf("exact label match should restore ID 9, got %v", f.ResolvedLocationID)
	}
}

func TestNoMatchLeavesLocationUntrusted(t *testing.T) {
	s := testRegistry().Create(0)
	seq := s.SetLocationText("Souss")

	s.ApplyCandidates(models.KindLocation, seq, []models.Candidate{
		{ID: intPtr(7), Label: "Sousse"},
	})

	if f := s.Snapshot(); f.ResolvedLocationID != nil {
		t.Fatalf("prefix is not an exact match, got ID %v", *f.ResolvedLocationID)
	}
}

func TestStaleCandidateResponseDiscarded(t *testing.T) {
	s := testRegistry().Create(0)

	seqA := s.NextSuggestSeq(models.KindLocation)
	seqB := s.NextSuggestSeq(models.KindLocation)

	// The newer lookup's response lands first.
	if !s.ApplyCandidates(models.KindLocation, seqB, []models.Candidate{{Label: "Sfax"}}) {
		t.Fatal("newest response rejected")
	}
	if s.ApplyCandidates(models.KindLocation, seqA, []models.Candidate{{Label: "Sousse"}}) {
		t.Fatal("stale response accepted")
	}

	got := s.Candidates(models.KindLocation)
	if len(got) != 1 || got[0].Label != "Sfax" {
		t.Fatalf("candidates = %+v, want the newest lookup's list", got)
	}
}

func TestSelectCandidateDiscardsInFlightLookup(t *testing.T) {
	s := testRegistry().Create(0)

	// The user types, then clicks a suggestion before the lookup for the
	// typed text has resolved.
	seq := s.SetLocationText("Sousse")
	s.SelectCandidate(models.Candidate{ID: intPtr(9), Label: "Sousse, Khezama"})

	if s.ApplyCandidates(models.KindLocation, seq, []models.Candidate{
		{ID: intPtr(7), Label: "Sousse"},
	}) {
		t.Fatal("lookup issued before the selection was applied after it")
	}

	f := s.Snapshot()
	if f.ResolvedLocationID == nil || *f.ResolvedLocationID != 9 {
		t.Fatalf("resolved location ID = %v, want the selected 9", f.ResolvedLocationID)
	}
	if got := s.Candidates(models.KindLocation); len(got) != 0 {
		t.Fatalf("late lookup reinstalled candidates: %+v", got)
	}
}

func TestEditSequenceTagsItsOwnText(t *testing.T) {
	s := testRegistry().Create(0)

	first := s.SetLocationText("Sousse")
	second := s.SetLocationText("Sfax")

	// The older edit's lookup resolves last; its list must not land.
	if !s.ApplyCandidates(models.KindLocation, second, []models.Candidate{{Label: "Sfax"}}) {
		t.Fatal("newest edit's response rejected")
	}
	if s.ApplyCandidates(models.KindLocation, first, []models.Candidate{{Label: "Sousse"}}) {
		t.Fatal("older edit's response accepted")
	}

	got := s.Candidates(models.KindLocation)
	if len(got) != 1 || got[0].Label != "Sfax" {
		t.Fatalf("candidates = %+v, want the newest edit's list", got)
	}
}

func TestClosedSessionEditReturnsDeadSequence(t *testing.T) {
	r := testRegistry()
	s := r.Create(0)
	r.Delete(s.ID())

	seq := s.SetLocationText("Tunis")
	if seq != 0 {
		t.Fatalf("closed session issued sequence %d", seq)
	}
	if s.ApplyCandidates(models.KindLocation, seq, []models.Candidate{{Label: "Tunis"}}) {
		t.Fatal("dead sequence accepted")
	}
}

func TestSequencesAreIndependentPerKind(t *testing.T) {
	s := testRegistry().Create(0)

	locSeq := s.NextSuggestSeq(models.KindLocation)
	estSeq := s.NextSuggestSeq(models.KindEstablishment)

	if !s.ApplyCandidates(models.KindLocation, locSeq, nil) {
		t.Fatal("location response rejected")
	}
	if !s.ApplyCandidates(models.KindEstablishment, estSeq, nil) {
		t.Fatal("establishment response rejected")
	}
}

func TestSeedLocationRunsOnce(t *testing.T) {
	s := testRegistry().Create(0)

	coords := &models.Coordinates{Lat: 35.8256, Lon: 10.6084}
	if !s.SeedLocation("Sousse, Khezama", coords) {
		t.Fatal("first seed rejected")
	}
	if s.SeedLocation("Tunis", nil) {
		t.Fatal("second seed accepted")
	}

	f := s.Snapshot()
	if f.LocationText != "Sousse, Khezama" {
		t.Fatalf("location text = %q", f.LocationText)
	}
	if f.Coordinates == nil || f.Coordinates.Lat != 35.8256 {
		t.Fatalf("coordinates = %+v", f.Coordinates)
	}
}

func TestSeedLocationNeverOverwritesUserInput(t *testing.T) {
	s := testRegistry().Create(0)
	s.SetLocationText("Monastir")

	if s.SeedLocation("Sousse", &models.Coordinates{Lat: 1, Lon: 2}) {
		t.Fatal("seed overwrote user input")
	}
	if f := s.Snapshot(); f.LocationText != "Monastir" {
		t.Fatalf("location text = %q", f.LocationText)
	}
}

func TestEditDropsSeededCoordinates(t *testing.T) {
	s := testRegistry().Create(0)
	s.SeedLocation("Sousse", &models.Coordinates{Lat: 35.8, Lon: 10.6})

	s.SetLocationText("Sfax")

	if f := s.Snapshot(); f.Coordinates != nil {
		t.Fatalf("manual edit should drop seeded coordinates, got %+v", f.Coordinates)
	}
}

func TestClosedSessionRejectsCandidates(t *testing.T) {
	r := testRegistry()
	s := r.Create(0)
	seq := s.NextSuggestSeq(models.KindLocation)

	r.Delete(s.ID())

	if s.ApplyCandidates(models.KindLocation, seq, []models.Candidate{{Label: "Tunis"}}) {
		t.Fatal("closed session accepted candidates")
	}
	if !s.Closed() {
		t.Fatal("session not marked closed")
	}
}

func TestRegistryGetAndDelete(t *testing.T) {
	r := testRegistry()
	s := r.Create(0)

	got, err := r.Get(s.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID() != s.ID() {
		t.Fatalf("Get returned session %q, want %q", got.ID(), s.ID())
	}

	r.Delete(s.ID())
	if _, err := r.Get(s.ID()); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	// Deleting again is a no-op.
	r.Delete(s.ID())
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	r := testRegistry()
	idle := r.Create(0)
	fresh := r.Create(0)
	fresh.Touch()

	// Make the first session look idle past the TTL.
	idle.mu.Lock()
	idle.lastActive = time.Now().Add(-time.Hour)
	idle.mu.Unlock()

	r.sweep(time.Now())

	if _, err := r.Get(idle.ID()); err != ErrSessionNotFound {
		t.Fatalf("idle session should be expired, got %v", err)
	}
	if _, err := r.Get(fresh.ID()); err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}
	if !idle.Closed() {
		t.Fatal("expired session not closed")
	}
}
