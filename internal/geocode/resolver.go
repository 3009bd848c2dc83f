// Package geocode turns a device position fix into a human-readable default
// locality label via the Nominatim reverse-geocoding service.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edunet/search-gateway/internal/cache"
	"github.com/edunet/search-gateway/internal/config"
	"github.com/edunet/search-gateway/internal/models"
	"github.com/edunet/search-gateway/internal/observability"
)

// Sentinel labels. Pairwise distinct so callers can tell why no real
// locality was produced.
const (
	LabelUnknown = "Localisation inconnue"
	LabelDenied  = "Localisation refusée"
	LabelError   = "Localisation indisponible"
)

type Resolver struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	cache      *cache.RedisCache
	logger     *zap.Logger
}

// NewResolver builds a resolver. cache may be nil; resolution then always
// hits the remote service.
func NewResolver(cfg config.GeocodeConfig, rc *cache.RedisCache, logger *zap.Logger) *Resolver {
	return &Resolver{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		cache:      rc,
		logger:     logger,
	}
}

// Resolve maps a fix to a locality label. It never returns an error: every
// failure mode degrades to one of the sentinel labels, and the caller seeds
// the location field with whatever comes back. One call per session; the
// session layer enforces the at-most-once rule.
func (r *Resolver) Resolve(ctx context.Context, fix models.GeoFix) string {
	if fix.Denied {
		observability.GeocodeResolutionsTotal.WithLabelValues("denied").Inc()
		return LabelDenied
	}
	if fix.Coords == nil {
		observability.GeocodeResolutionsTotal.WithLabelValues("unavailable").Inc()
		return LabelUnknown
	}

	coords := *fix.Coords

	if r.cache != nil {
		label, err := r.cache.GetGeocodeLabel(ctx, coords)
		if err != nil {
			r.logger.Warn("geocode cache lookup failed", zap.Error(err))
		}
		if label != "" {
			observability.GeocodeResolutionsTotal.WithLabelValues("cache_hit").Inc()
			return label
		}
	}

	label, err := r.reverse(ctx, coords)
	if err != nil {
		r.logger.Warn("reverse geocoding failed",
			zap.Float64("lat", coords.Lat),
			zap.Float64("lon", coords.Lon),
			zap.Error(err),
		)
		observability.GeocodeResolutionsTotal.WithLabelValues("error").Inc()
		return LabelError
	}

	if r.cache != nil && label != LabelUnknown {
		if err := r.cache.SetGeocodeLabel(ctx, coords, label); err != nil {
			r.logger.Warn("geocode cache store failed", zap.Error(err))
		}
	}

	observability.GeocodeResolutionsTotal.WithLabelValues("success").Inc()
	return label
}

type nominatimAddress struct {
	City          string `json:"city"`
	Town          string `json:"town"`
	Village       string `json:"village"`
	State         string `json:"state"`
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	CityDistrict  string `json:"city_district"`
}

func (r *Resolver) reverse(ctx context.Context, coords models.Coordinates) (string, error) {
	start := time.Now()

	u := r.baseURL + "/reverse?" + url.Values{
		"lat":            {strconv.FormatFloat(coords.Lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(coords.Lon, 'f', -1, 64)},
		"format":         {"json"},
		"addressdetails": {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	// Required by Nominatim's usage policy.
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var payload struct {
		Address nominatimAddress `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("nominatim decode: %w", err)
	}

	r.logger.Debug("reverse geocoded",
		zap.Duration("took", time.Since(start)),
	)

	return composeLabel(payload.Address), nil
}

// composeLabel picks the finest available locality and district. The chains
// mirror what Nominatim actually returns across urban and rural fixes.
func composeLabel(addr nominatimAddress) string {
	ville := firstNonEmpty(addr.City, addr.Town, addr.Village, addr.State)
	if ville == "" {
		return LabelUnknown
	}

	quartier := firstNonEmpty(addr.Neighbourhood, addr.Suburb, addr.CityDistrict)
	if quartier == "" {
		return ville
	}
	return ville + ", " + quartier
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
