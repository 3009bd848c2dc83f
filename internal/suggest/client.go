// Package suggest serves autocomplete candidates from the directory backend,
// coalescing keystroke bursts and degrading silently on failure. Suggestions
// are a convenience, never a critical path: a broken lookup yields an empty
// list, not an error.
package suggest

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/edunet/search-gateway/internal/cache"
	"github.com/edunet/search-gateway/internal/config"
	"github.com/edunet/search-gateway/internal/models"
	"github.com/edunet/search-gateway/internal/observability"
)

// fetch budget once a coalescing window closes; independent of any caller's
// request context so one impatient client does not starve the shared fetch.
const lookupTimeout = 3 * time.Second

// Directory is the slice of the directory client this package needs.
type Directory interface {
	LocationAutocomplete(ctx context.Context, query string) ([]models.Candidate, error)
	EstablishmentAutocomplete(ctx context.Context, query string) ([]string, error)
	Metadata(ctx context.Context) (*models.Metadata, error)
}

type pendingLookup struct {
	query      string
	done       chan struct{}
	candidates []models.Candidate
	err        error
}

type Client struct {
	dir           Directory
	cache         *cache.RedisCache
	logger        *zap.Logger
	minLen        int
	window        time.Duration
	maxCandidates int

	mu      sync.Mutex
	pending map[models.SuggestKind]*pendingLookup
}

// New builds a client. rc may be nil; every lookup then goes remote.
func New(dir Directory, rc *cache.RedisCache, cfg config.SuggestConfig, logger *zap.Logger) *Client {
	return &Client{
		dir:           dir,
		cache:         rc,
		logger:        logger,
		minLen:        cfg.MinQueryLength,
		window:        cfg.DebounceWindow,
		maxCandidates: cfg.MaxCandidates,
		pending:       make(map[models.SuggestKind]*pendingLookup),
	}
}

// Lookup returns candidates for a query. Lookups for the same kind arriving
// within the debounce window share one remote fetch issued for the newest
// query of the burst; callers racing with newer input sort out staleness via
// the session's per-kind sequence numbers. The only error returned is the
// caller's own context expiring — remote failures degrade to an empty list.
func (c *Client) Lookup(ctx context.Context, kind models.SuggestKind, query string) ([]models.Candidate, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < c.minLen {
		observability.SuggestLookupsTotal.WithLabelValues(kind.String(), "short_circuit").Inc()
		return []models.Candidate{}, nil
	}

	if c.cache != nil {
		cached, err := c.cache.GetCandidates(ctx, kind, q)
		if err != nil {
			c.logger.Warn("suggestion cache lookup failed", zap.Error(err))
		}
		if cached != nil {
			observability.SuggestLookupsTotal.WithLabelValues(kind.String(), "cache_hit").Inc()
			return cached, nil
		}
	}

	p := c.join(kind, q)

	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if p.err != nil {
		observability.SuggestLookupsTotal.WithLabelValues(kind.String(), "error").Inc()
		return []models.Candidate{}, nil
	}

	observability.SuggestLookupsTotal.WithLabelValues(kind.String(), "remote").Inc()
	return p.candidates, nil
}

func (c *Client) join(kind models.SuggestKind, query string) *pendingLookup {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p := c.pending[kind]; p != nil {
		// Newest keystroke of the burst wins the coalesced fetch.
		p.query = query
		return p
	}

	p := &pendingLookup{query: query, done: make(chan struct{})}
	c.pending[kind] = p
	time.AfterFunc(c.window, func() { c.flush(kind) })
	return p
}

func (c *Client) flush(kind models.SuggestKind) {
	c.mu.Lock()
	p := c.pending[kind]
	delete(c.pending, kind)
	c.mu.Unlock()
	if p == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	p.candidates, p.err = c.fetch(ctx, kind, p.query)
	if p.err != nil {
		c.logger.Warn("suggestion lookup failed",
			zap.String("kind", kind.String()),
			zap.Error(p.err),
		)
	} else if c.cache != nil {
		if err := c.cache.SetCandidates(ctx, kind, p.query, p.candidates); err != nil {
			c.logger.Warn("suggestion cache store failed", zap.Error(err))
		}
	}

	close(p.done)
}

func (c *Client) fetch(ctx context.Context, kind models.SuggestKind, query string) ([]models.Candidate, error) {
	switch kind {
	case models.KindLocation:
		candidates, err := c.dir.LocationAutocomplete(ctx, query)
		if err != nil {
			return nil, err
		}
		return c.truncate(candidates), nil

	case models.KindEstablishment:
		names, err := c.dir.EstablishmentAutocomplete(ctx, query)
		if err != nil {
			return nil, err
		}
		candidates := make([]models.Candidate, 0, len(names))
		for _, name := range names {
			candidates = append(candidates, models.Candidate{Label: name})
		}
		return c.truncate(candidates), nil

	case models.KindMetadata:
		meta, err := c.dir.Metadata(ctx)
		if err != nil {
			return nil, err
		}
		return c.truncate(filterMetadata(meta, query)), nil

	default:
		return []models.Candidate{}, nil
	}
}

func (c *Client) truncate(candidates []models.Candidate) []models.Candidate {
	if candidates == nil {
		return []models.Candidate{}
	}
	if len(candidates) > c.maxCandidates {
		return candidates[:c.maxCandidates]
	}
	return candidates
}

// filterMetadata merges the level and formation lists into one candidate set
// for the pill filters, matched case-insensitively anywhere in the label.
func filterMetadata(meta *models.Metadata, query string) []models.Candidate {
	needle := strings.ToLower(query)
	merged := make([]models.Candidate, 0, len(meta.Niveaux)+len(meta.Formations))
	for _, lists := range [][]string{meta.Niveaux, meta.Formations} {
		for _, label := range lists {
			if strings.Contains(strings.ToLower(label), needle) {
				merged = append(merged, models.Candidate{Label: label})
			}
		}
	}
	return merged
}
