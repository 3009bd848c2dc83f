package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edunet/search-gateway/internal/config"
	"github.com/edunet/search-gateway/internal/models"
	"github.com/edunet/search-gateway/internal/observability"
)

// RedisCache holds the gateway's shared read-through caches: candidate lists,
// directory metadata, establishment details and reverse-geocode labels.
// Search results are deliberately never cached here; every submission goes to
// the directory backend and replaces the prior result set.
type RedisCache struct {
	client redis.UniversalClient
	ttl    config.CacheTTLConfig
	logger *zap.Logger
}

func NewRedisCache(cfg config.RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	var client redis.UniversalClient

	if len(cfg.Addresses) > 1 {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        cfg.Addresses,
			Password:     cfg.Password,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:         cfg.Addresses[0],
			Password:     cfg.Password,
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("redis cache connected", zap.Strings("addresses", cfg.Addresses))

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func (rc *RedisCache) GetCandidates(ctx context.Context, kind models.SuggestKind, query string) ([]models.Candidate, error) {
	key := candidateKey(kind, query)
	val, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		observability.CacheMisses.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get candidates: %w", err)
	}
	observability.CacheHits.Inc()
	var candidates []models.Candidate
	if err := json.Unmarshal([]byte(val), &candidates); err != nil {
		return nil, fmt.Errorf("cache unmarshal candidates: %w", err)
	}
	return candidates, nil
}

func (rc *RedisCache) SetCandidates(ctx context.Context, kind models.SuggestKind, query string, candidates []models.Candidate) error {
	data, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("cache marshal candidates: %w", err)
	}
	return rc.client.Set(ctx, candidateKey(kind, query), data, rc.ttl.Suggestions).Err()
}

func (rc *RedisCache) GetMetadata(ctx context.Context) (*models.Metadata, error) {
	val, err := rc.client.Get(ctx, "sg:meta").Result()
	if err == redis.Nil {
		observability.CacheMisses.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get metadata: %w", err)
	}
	observability.CacheHits.Inc()
	var meta models.Metadata
	if err := json.Unmarshal([]byte(val), &meta); err != nil {
		return nil, fmt.Errorf("cache unmarshal metadata: %w", err)
	}
	return &meta, nil
}

func (rc *RedisCache) SetMetadata(ctx context.Context, meta *models.Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("cache marshal metadata: %w", err)
	}
	return rc.client.Set(ctx, "sg:meta", data, rc.ttl.Metadata).Err()
}

func (rc *RedisCache) GetDetail(ctx context.Context, id int64) (*models.EstablishmentDetail, error) {
	key := fmt.Sprintf("sg:etab:%d", id)
	val, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		observability.CacheMisses.Inc()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get detail: %w", err)
	}
	observability.CacheHits.Inc()
	var detail models.EstablishmentDetail
	if err := json.Unmarshal([]byte(val), &detail); err != nil {
		return nil, fmt.Errorf("cache unmarshal detail: %w", err)
	}
	return &detail, nil
}

func (rc *RedisCache) SetDetail(ctx context.Context, detail *models.EstablishmentDetail) error {
	data, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("cache marshal detail: %w", err)
	}
	key := fmt.Sprintf("sg:etab:%d", detail.ID)
	return rc.client.Set(ctx, key, data, rc.ttl.Detail).Err()
}

// Geocode labels are keyed by coordinates rounded to ~10m so repeated visits
// from the same block share one Nominatim call.
func (rc *RedisCache) GetGeocodeLabel(ctx context.Context, coords models.Coordinates) (string, error) {
	val, err := rc.client.Get(ctx, geocodeKey(coords)).Result()
	if err == redis.Nil {
		observability.CacheMisses.Inc()
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache get geocode: %w", err)
	}
	observability.CacheHits.Inc()
	return val, nil
}

func (rc *RedisCache) SetGeocodeLabel(ctx context.Context, coords models.Coordinates, label string) error {
	return rc.client.Set(ctx, geocodeKey(coords), label, rc.ttl.Geocode).Err()
}

func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func candidateKey(kind models.SuggestKind, query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	return fmt.Sprintf("sg:ac:%s:%s", kind, hashString(normalized))
}

func geocodeKey(coords models.Coordinates) string {
	return fmt.Sprintf("sg:geo:%.4f:%.4f", coords.Lat, coords.Lon)
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
