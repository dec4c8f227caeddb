package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/fenwall/aclcore/internal/acl"
)

// LoggingActivityRecorder is the default acl.ActivityRecorder for this
// binary: it forwards every event to structured logging rather than a
// dedicated activity-log table, grounded on the teacher's general "log
// everything of interest through zap, let the aggregator index it" posture.
type LoggingActivityRecorder struct {
	log *zap.Logger
}

func NewLoggingActivityRecorder(log *zap.Logger) *LoggingActivityRecorder {
	return &LoggingActivityRecorder{log: log}
}

func (r *LoggingActivityRecorder) Record(ctx context.Context, event acl.ActivityEvent) {
	r.log.Info("activity",
		zap.String("kind", string(event.Kind)),
		zap.Int64("rule_id", int64(event.RuleID)),
		zap.String("detail", event.Detail))
}
