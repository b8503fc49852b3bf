// Package audit persists pipeline audit events to a capped stream.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/treyworks/sitesearch/internal/domain"
	"github.com/treyworks/sitesearch/internal/metrics"
)

// store is the consumer interface for the audit trail (ISP).
type store interface {
	StreamAppend(ctx context.Context, key string, maxLen int64, fields map[string]string) error
}

// Repo writes audit events. When disabled it only mirrors to the logger;
// persistence failures never fail the request they describe.
type Repo struct {
	store     store
	streamKey string
	maxLen    int64
	enabled   bool
	logger    *zap.Logger
}

// New creates an audit repository.
func New(s store, streamKey string, maxLen int64, enabled bool, logger *zap.Logger) *Repo {
	return &Repo{
		store:     s,
		streamKey: streamKey,
		maxLen:    maxLen,
		enabled:   enabled,
		logger:    logger,
	}
}

// Log records a free-form audit message with structured context.
func (r *Repo) Log(ctx context.Context, message, level string, extra map[string]string) {
	fields := make([]zap.Field, 0, len(extra))
	for k, v := range extra {
		fields = append(fields, zap.String(k, v))
	}
	switch level {
	case "error":
		r.logger.Error(message, fields...)
	case "warning":
		r.logger.Warn(message, fields...)
	case "debug":
		r.logger.Debug(message, fields...)
	default:
		r.logger.Info(message, fields...)
	}

	if !r.enabled {
		return
	}

	entry := map[string]string{
		"log_level":  level,
		"message":    message,
		"created_at": time.Now().UTC().Format(time.RFC3339),
	}
	if len(extra) > 0 {
		if data, err := json.Marshal(extra); err == nil {
			entry["context"] = string(data)
		}
	}

	if err := r.store.StreamAppend(ctx, r.streamKey, r.maxLen, entry); err != nil {
		metrics.AuditDroppedTotal.Inc()
		r.logger.Warn("audit event dropped", zap.Error(err))
	}
}

// Event records a structured pipeline audit event.
func (r *Repo) Event(ctx context.Context, ev domain.AuditEvent) {
	r.Log(ctx, ev.Message, ev.Level, map[string]string{
		"query":          ev.Query,
		"extracted_term": ev.ExtractedTerm,
		"summary":        ev.Summary,
		"referer":        ev.Referer,
		"outcome":        ev.Outcome,
	})
}
