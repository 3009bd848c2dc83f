// Package directory is the HTTP client for the Edunet directory backend.
// The backend owns the establishment corpus; the gateway only queries it.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/edunet/search-gateway/internal/config"
	"github.com/edunet/search-gateway/internal/models"
	"github.com/edunet/search-gateway/internal/observability"
	"github.com/edunet/search-gateway/internal/resilience"
)

var ErrNotFound = errors.New("establishment not found")

type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

func NewClient(cfg config.DirectoryConfig, searchCfg config.SearchConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cb:         resilience.NewCircuitBreaker("directory", searchCfg.CircuitBreaker, logger),
		logger:     logger,
	}
}

// Search executes one directory query. It is breaker-wrapped but never
// retried: a failed submission surfaces once and the user retries manually.
func (c *Client) Search(ctx context.Context, params models.QueryParams) ([]models.EstablishmentSummary, error) {
	ctx, span := observability.StartSpan(ctx, "directory.search",
		attribute.Int("param_count", len(params)),
	)
	defer span.End()

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	var results []models.EstablishmentSummary
	_, err := c.cb.Execute(func() (any, error) {
		return nil, c.get(ctx, "search", "/api/recherche/", values, &results)
	})
	if err != nil {
		return nil, fmt.Errorf("directory search: %w", err)
	}
	if results == nil {
		results = []models.EstablishmentSummary{}
	}
	return results, nil
}

func (c *Client) LocationAutocomplete(ctx context.Context, query string) ([]models.Candidate, error) {
	ctx, span := observability.StartSpan(ctx, "directory.location_autocomplete")
	defer span.End()

	var candidates []models.Candidate
	err := c.get(ctx, "location_autocomplete", "/api/localisation-autocomplete/", url.Values{"q": {query}}, &candidates)
	if err != nil {
		return nil, fmt.Errorf("location autocomplete: %w", err)
	}
	return candidates, nil
}

// EstablishmentAutocomplete returns bare name strings; the backend caps the
// list at 8 entries.
func (c *Client) EstablishmentAutocomplete(ctx context.Context, query string) ([]string, error) {
	ctx, span := observability.StartSpan(ctx, "directory.establishment_autocomplete")
	defer span.End()

	var names []string
	err := c.get(ctx, "establishment_autocomplete", "/api/etablissements-autocomplete/", url.Values{"q": {query}}, &names)
	if err != nil {
		return nil, fmt.Errorf("establishment autocomplete: %w", err)
	}
	return names, nil
}

func (c *Client) Metadata(ctx context.Context) (*models.Metadata, error) {
	ctx, span := observability.StartSpan(ctx, "directory.metadata")
	defer span.End()

	var meta models.Metadata
	if err := c.get(ctx, "metadata", "/api/metadata/", nil, &meta); err != nil {
		return nil, fmt.Errorf("directory metadata: %w", err)
	}
	return &meta, nil
}

func (c *Client) Detail(ctx context.Context, id int64) (*models.EstablishmentDetail, error) {
	ctx, span := observability.StartSpan(ctx, "directory.detail",
		attribute.Int64("etablissement.id", id),
	)
	defer span.End()

	var detail models.EstablishmentDetail
	path := "/api/etablissements/" + strconv.FormatInt(id, 10) + "/"
	if err := c.get(ctx, "detail", path, nil, &detail); err != nil {
		return nil, fmt.Errorf("directory detail: %w", err)
	}
	return &detail, nil
}

func (c *Client) HealthCheck(ctx context.Context) error {
	var meta models.Metadata
	return c.get(ctx, "metadata", "/api/metadata/", nil, &meta)
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.DirectoryRequestDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		observability.DirectoryRequestDuration.WithLabelValues(endpoint, "not_found").Observe(time.Since(start).Seconds())
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		observability.DirectoryRequestDuration.WithLabelValues(endpoint, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("directory status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		observability.DirectoryRequestDuration.WithLabelValues(endpoint, "decode_error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("directory decode: %w", err)
	}

	observability.DirectoryRequestDuration.WithLabelValues(endpoint, "success").Observe(time.Since(start).Seconds())
	return nil
}
