// Package results holds the per-session search result lifecycle: a small
// state machine (idle, loading, loaded, empty, failed) plus client-side
// pagination over the last completed result set.
package results

import (
	"sync"

	"github.com/edunet/search-gateway/internal/models"
)

// Controller tracks one session's result state. Every search submission gets
// a generation number from Begin; completions carrying a stale generation are
// discarded so an abandoned in-flight search can never overwrite the state a
// newer submission produced.
type Controller struct {
	mu       sync.Mutex
	state    models.ResultState
	items    []models.EstablishmentSummary
	page     int
	pageSize int
	gen      uint64
	lastErr  error
}

func NewController(pageSize int) *Controller {
	return &Controller{
		state:    models.StateIdle,
		items:    []models.EstablishmentSummary{},
		page:     1,
		pageSize: pageSize,
	}
}

// Begin marks a new submission in flight and returns its generation. Any
// prior in-flight submission is implicitly abandoned.
func (c *Controller) Begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = models.StateLoading
	c.page = 1
	c.lastErr = nil
	return c.gen
}

// Complete installs the result set for the given generation. Returns false
// when the generation is stale and the results were discarded.
func (c *Controller) Complete(gen uint64, items []models.EstablishmentSummary) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	if items == nil {
		items = []models.EstablishmentSummary{}
	}
	c.items = items
	c.page = 1
	if len(items) == 0 {
		c.state = models.StateEmpty
	} else {
		c.state = models.StateLoaded
	}
	return true
}

// Fail records a submission failure for the given generation. Prior results
// are cleared; failed and empty are distinct terminal states.
func (c *Controller) Fail(gen uint64, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.items = []models.EstablishmentSummary{}
	c.page = 1
	c.state = models.StateFailed
	c.lastErr = err
	return true
}

// SetPage moves to page n, clamped to the valid range. Changing pages never
// refetches; it re-slices the already loaded set.
func (c *Controller) SetPage(n int) models.ResultPage {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.totalPagesLocked()
	if n < 1 {
		n = 1
	}
	if n > total {
		n = total
	}
	c.page = n
	return c.pageLocked()
}

// Invalidate abandons any in-flight submission. Used when the session closes.
func (c *Controller) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
}

// Snapshot returns the current state, the visible page and the last failure.
func (c *Controller) Snapshot() (models.ResultState, models.ResultPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.pageLocked(), c.lastErr
}

func (c *Controller) totalPagesLocked() int {
	if len(c.items) == 0 {
		return 1
	}
	return (len(c.items) + c.pageSize - 1) / c.pageSize
}

func (c *Controller) pageLocked() models.ResultPage {
	total := c.totalPagesLocked()
	start := (c.page - 1) * c.pageSize
	end := start + c.pageSize
	if start > len(c.items) {
		start = len(c.items)
	}
	if end > len(c.items) {
		end = len(c.items)
	}
	return models.ResultPage{
		Items:      c.items[start:end],
		Page:       c.page,
		PageSize:   c.pageSize,
		TotalPages: total,
		Total:      len(c.items),
	}
}
