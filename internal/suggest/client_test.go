package suggest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"github.com/edunet/search-gateway/internal/cache"
	"github.com/edunet/search-gateway/internal/config"
	"github.com/edunet/search-gateway/internal/models"
)

type stubDirectory struct {
	mu             sync.Mutex
	locationCalls  int32
	lastLocationQ  string
	locations      []models.Candidate
	establishments []string
	metadata       *models.Metadata
	err            error
	establishCalls int32
	metadataCalls  int32
}

func (s *stubDirectory) LocationAutocomplete(_ context.Context, query string) ([]models.Candidate, error) {
	atomic.AddInt32(&s.locationCalls, 1)
	s.mu.Lock()
	s.lastLocationQ = query
	s.mu.Unlock()
	return s.locations, s.err
}

func (s *stubDirectory) EstablishmentAutocomplete(_ context.Context, _ string) ([]string, error) {
	atomic.AddInt32(&s.establishCalls, 1)
	return s.establishments, s.err
}

func (s *stubDirectory) Metadata(_ context.Context) (*models.Metadata, error) {
	atomic.AddInt32(&s.metadataCalls, 1)
	return s.metadata, s.err
}

func (s *stubDirectory) lastLocationQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLocationQ
}

func testConfig() config.SuggestConfig {
	return config.SuggestConfig{
		MinQueryLength: 1,
		DebounceWindow: 30 * time.Millisecond,
		MaxCandidates:  8,
	}
}

func TestLookupShortQuerySkipsRemote(t *testing.T) {
	dir := &stubDirectory{}
	c := New(dir, nil, testConfig(), zap.NewNop())

	got, err := c.Lookup(context.Background(), models.KindLocation, "   ")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty candidates, got %d", len(got))
	}
	if n := atomic.LoadInt32(&dir.locationCalls); n != 0 {
		t.Fatalf("expected no remote calls, got %d", n)
	}
}

func TestLookupCoalescesBurstToNewestQuery(t *testing.T) {
	dir := &stubDirectory{
		locations: []models.Candidate{{Label: "Sousse, Khezama"}},
	}
	c := New(dir, nil, testConfig(), zap.NewNop())

	queries := []string{"S", "So", "Sou"}
	results := make([][]models.Candidate, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			got, err := c.Lookup(context.Background(), models.KindLocation, q)
			if err != nil {
				t.Errorf("Lookup(%q): %v", q, err)
			}
			results[i] = got
		}(i, q)
		time.Sleep(5 * time.Millisecond)
	}
	wg.Wait()

	if n := atomic.LoadInt32(&dir.locationCalls); n != 1 {
		t.Fatalf("expected 1 coalesced remote call, got %d", n)
	}
	if q := dir.lastLocationQuery(); q != "Sou" {
		t.Fatalf("expected fetch for newest query %q, got %q", "Sou", q)
	}
	for i, got := range results {
		if len(got) != 1 || got[0].Label != "Sousse, Khezama" {
			t.Fatalf("waiter %d got %+v", i, got)
		}
	}
}

func TestLookupSeparateBurstsFetchSeparately(t *testing.T) {
	dir := &stubDirectory{locations: []models.Candidate{{Label: "Tunis"}}}
	c := New(dir, nil, testConfig(), zap.NewNop())

	if _, err := c.Lookup(context.Background(), models.KindLocation, "Tu"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, err := c.Lookup(context.Background(), models.KindLocation, "Tun"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if n := atomic.LoadInt32(&dir.locationCalls); n != 2 {
		t.Fatalf("expected 2 remote calls across bursts, got %d", n)
	}
}

func TestLookupEstablishmentNamesBecomeCandidates(t *testing.T) {
	dir := &stubDirectory{
		establishments: []string{"Lycée Pilote de Sousse", "Lycée Technique"},
	}
	c := New(dir, nil, testConfig(), zap.NewNop())

	got, err := c.Lookup(context.Background(), models.KindEstablishment, "Lyc")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	for _, cand := range got {
		if cand.ID != nil {
			t.Fatalf("establishment candidate carries an ID: %+v", cand)
		}
	}
	if got[0].Label != "Lycée Pilote de Sousse" {
		t.Fatalf("unexpected first label %q", got[0].Label)
	}
}

func TestLookupCapsCandidates(t *testing.T) {
	names := make([]string, 20)
	for i := range names {
		names[i] = "Etablissement"
	}
	dir := &stubDirectory{establishments: names}

	cfg := testConfig()
	cfg.MaxCandidates = 8
	c := New(dir, nil, cfg, zap.NewNop())

	got, err := c.Lookup(context.Background(), models.KindEstablishment, "Eta")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("expected cap at 8 candidates, got %d", len(got))
	}
	if n := atomic.LoadInt32(&dir.establishCalls); n != 1 {
		t.Fatalf("expected 1 establishment fetch, got %d", n)
	}
}

func TestLookupMetadataMergesAndFilters(t *testing.T) {
	dir := &stubDirectory{
		metadata: &models.Metadata{
			Niveaux:    []string{"Primaire", "Secondaire", "Supérieur"},
			Formations: []string{"Informatique", "Sciences"},
		},
	}
	c := New(dir, nil, testConfig(), zap.NewNop())

	got, err := c.Lookup(context.Background(), models.KindMetadata, "se")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	want := map[string]bool{"Secondaire": true, "Sciences": true}
	if len(got) != len(want) {
		t.Fatalf("expected %d candidates, got %+v", len(want), got)
	}
	for _, cand := range got {
		if !want[cand.Label] {
			t.Fatalf("unexpected candidate %q", cand.Label)
		}
	}
	if n := atomic.LoadInt32(&dir.metadataCalls); n != 1 {
		t.Fatalf("expected 1 metadata fetch, got %d", n)
	}
}

func TestLookupFailureDegradesToEmpty(t *testing.T) {
	dir := &stubDirectory{err: errors.New("backend down")}
	c := New(dir, nil, testConfig(), zap.NewNop())

	got, err := c.Lookup(context.Background(), models.KindLocation, "Sousse")
	if err != nil {
		t.Fatalf("expected silent degradation, got error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty candidates on failure, got %d", len(got))
	}
}

func TestLookupServesFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache(config.RedisConfig{
		Addresses:    []string{mr.Addr()},
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		TTL:          config.CacheTTLConfig{Suggestions: time.Minute},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { rc.Close() })

	dir := &stubDirectory{locations: []models.Candidate{{Label: "Sfax"}}}
	c := New(dir, rc, testConfig(), zap.NewNop())

	if _, err := c.Lookup(context.Background(), models.KindLocation, "Sf"); err != nil {
		t.Fatalf("first Lookup: %v", err)
	}
	got, err := c.Lookup(context.Background(), models.KindLocation, "Sf")
	if err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if len(got) != 1 || got[0].Label != "Sfax" {
		t.Fatalf("unexpected cached candidates %+v", got)
	}
	if n := atomic.LoadInt32(&dir.locationCalls); n != 1 {
		t.Fatalf("expected second lookup to hit the cache, got %d remote calls", n)
	}
}

func TestLookupCallerContextCancellation(t *testing.T) {
	dir := &stubDirectory{locations: []models.Candidate{{Label: "Tunis"}}}
	cfg := testConfig()
	cfg.DebounceWindow = 200 * time.Millisecond
	c := New(dir, nil, cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := c.Lookup(ctx, models.KindLocation, "Tu"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
