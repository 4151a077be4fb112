package notify

import "sla-engine/internal/models"

// Archiver durably appends delivery records outside the in-memory log.
// Implementations own retry and failure logging.
type Archiver interface {
	ArchiveDelivery(projectID string, rec models.NotificationDeliveryRecord)
}

// DeliveryListener observes delivery records as they are appended. Used to
// feed live dashboard streams; must not block.
type DeliveryListener func(projectID string, rec models.NotificationDeliveryRecord)
