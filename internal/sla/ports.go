package sla

import (
	"time"

	"sla-engine/internal/models"
)

// EventSink is the narrow emission port the breach recorder pushes
// notification events through. The notification engine is the production
// implementation; tests substitute a capture sink.
type EventSink interface {
	EnqueueEvent(projectID string, trigger models.TriggerKind, payload map[string]interface{}, channels []string, now time.Time)
}

// Archiver durably appends breach records outside the in-memory log.
// Implementations own retry and failure logging; calls must not block the
// evaluation path.
type Archiver interface {
	ArchiveBreach(projectID string, rec models.SLABreachRecord)
}
