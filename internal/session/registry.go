package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edunet/search-gateway/internal/config"
	"github.com/edunet/search-gateway/internal/observability"
)

var ErrSessionNotFound = errors.New("session not found")

// Registry owns the live sessions and expires the idle ones.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	idleTTL       time.Duration
	sweepInterval time.Duration
	pageSize      int
	logger        *zap.Logger

	quit chan struct{}
	done chan struct{}
}

func NewRegistry(cfg config.SessionConfig, logger *zap.Logger) *Registry {
	return &Registry{
		sessions:      make(map[string]*Session),
		idleTTL:       cfg.IdleTTL,
		sweepInterval: cfg.SweepInterval,
		pageSize:      cfg.DefaultPageSize,
		logger:        logger,
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Create opens a new session with the given page size; pageSize <= 0 falls
// back to the configured default.
func (r *Registry) Create(pageSize int) *Session {
	if pageSize <= 0 {
		pageSize = r.pageSize
	}
	s := newSession(pageSize)

	r.mu.Lock()
	r.sessions[s.id] = s
	r.mu.Unlock()

	observability.ActiveSessions.Inc()
	observability.SessionsTotal.WithLabelValues("created").Inc()
	return s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete closes and removes a session. Removing an unknown ID is a no-op.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	s.close()
	observability.ActiveSessions.Dec()
	observability.SessionsTotal.WithLabelValues("closed").Inc()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// StartSweeper expires idle sessions in the background until Stop is called.
func (r *Registry) StartSweeper() {
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep(time.Now())
			case <-r.quit:
				return
			}
		}
	}()
}

func (r *Registry) Stop() {
	close(r.quit)
	<-r.done
}

func (r *Registry) sweep(now time.Time) {
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.close()
		observability.ActiveSessions.Dec()
		observability.SessionsTotal.WithLabelValues("expired").Inc()
	}
	if len(expired) > 0 {
		r.logger.Debug("expired idle sessions", zap.Int("count", len(expired)))
	}
}
