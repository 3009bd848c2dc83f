package observability

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edunet/search-gateway/internal/models"
)

type SlowQueryDetector struct {
	warningThreshold  time.Duration
	criticalThreshold time.Duration
	logger            *zap.Logger
	analyticsWriter   AnalyticsWriter
}

type AnalyticsWriter interface {
	WriteQueryPerformance(ctx context.Context, event *models.AnalyticsEvent) error
}

func NewSlowQueryDetector(warning, critical time.Duration, logger *zap.Logger, aw AnalyticsWriter) *SlowQueryDetector {
	return &SlowQueryDetector{
		warningThreshold:  warning,
		criticalThreshold: critical,
		logger:            logger,
		analyticsWriter:   aw,
	}
}

// Intercept inspects one completed search submission. Submissions under the
// warning threshold return immediately with no logging or analytics overhead.
func (sqd *SlowQueryDetector) Intercept(ctx context.Context, sessionID string, params models.QueryParams, duration time.Duration, resultCount int, status string) {
	if duration <= sqd.warningThreshold {
		return
	}

	traceID := TraceIDFromContext(ctx)
	severity := sqd.classifySeverity(duration)
	queryHash := HashParams(params)

	SlowQueryCounter.WithLabelValues(severity).Inc()

	sqd.logger.Warn("slow search detected",
		zap.String("trace_id", traceID),
		zap.String("session_id", sessionID),
		zap.String("query_hash", queryHash),
		zap.Float64("duration_ms", float64(duration.Milliseconds())),
		zap.Int("result_count", resultCount),
		zap.String("status", status),
		zap.String("severity", severity),
	)

	// Written off the request path so the response is never held up.
	if sqd.analyticsWriter != nil {
		event := &models.AnalyticsEvent{
			EventType:   "query_performance",
			QueryHash:   queryHash,
			SessionID:   sessionID,
			Status:      status,
			DurationMs:  float64(duration.Milliseconds()),
			ResultCount: int64(resultCount),
			Timestamp:   time.Now().UTC(),
			TraceID:     traceID,
			Source:      "directory",
		}
		go func() {
			writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := sqd.analyticsWriter.WriteQueryPerformance(writeCtx, event); err != nil {
				sqd.logger.Error("failed to write query analytics",
					zap.String("trace_id", traceID),
					zap.Error(err),
				)
			}
		}()
	}
}

func (sqd *SlowQueryDetector) classifySeverity(d time.Duration) string {
	if d > sqd.criticalThreshold {
		return "critical"
	}
	if d > sqd.warningThreshold {
		return "warning"
	}
	return "normal"
}

// HashParams fingerprints a query for logs and analytics without storing the
// raw filter values.
func HashParams(params models.QueryParams) string {
	raw := canonicalParams(params)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:8])
}

func canonicalParams(params models.QueryParams) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}
