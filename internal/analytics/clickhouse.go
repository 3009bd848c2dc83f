// Package analytics sinks search telemetry into ClickHouse: slow-query
// performance events and one row per completed search submission. The sink is
// optional at runtime; the gateway serves traffic without it.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/edunet/search-gateway/internal/config"
	"github.com/edunet/search-gateway/internal/models"
)

type Client struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClient(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	logger.Info("clickhouse analytics sink connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		conn:   conn,
		logger: logger,
	}, nil
}

// SearchEvent is one completed search submission, recorded regardless of
// outcome so empty and failed searches show up in the numbers too.
type SearchEvent struct {
	SessionID   string
	QueryHash   string
	Status      string
	DurationMs  float64
	ResultCount int64
	Timestamp   time.Time
	TraceID     string
}

func (c *Client) WriteQueryPerformance(ctx context.Context, event *models.AnalyticsEvent) error {
	query := `
		INSERT INTO query_performance (
			event_type, query_hash, session_id, status,
			duration_ms, result_count, timestamp, trace_id, source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return c.conn.Exec(ctx, query,
		event.EventType,
		event.QueryHash,
		event.SessionID,
		event.Status,
		event.DurationMs,
		event.ResultCount,
		event.Timestamp,
		event.TraceID,
		event.Source,
	)
}

func (c *Client) WriteSearchEvent(ctx context.Context, event *SearchEvent) error {
	query := `
		INSERT INTO search_events (
			session_id, query_hash, status, duration_ms,
			result_count, timestamp, trace_id
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	return c.conn.Exec(ctx, query,
		event.SessionID,
		event.QueryHash,
		event.Status,
		event.DurationMs,
		event.ResultCount,
		event.Timestamp,
		event.TraceID,
	)
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) EnsureTables(ctx context.Context) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS query_performance (
			event_type String,
			query_hash String,
			session_id String,
			status String,
			duration_ms Float64,
			result_count Int64,
			timestamp DateTime,
			trace_id String,
			source String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, query_hash)`,

		`CREATE TABLE IF NOT EXISTS search_events (
			session_id String,
			query_hash String,
			status String,
			duration_ms Float64,
			result_count Int64,
			timestamp DateTime,
			trace_id String
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (timestamp, session_id)`,
	}

	for _, ddl := range tables {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	c.logger.Info("clickhouse tables ensured")
	return nil
}
