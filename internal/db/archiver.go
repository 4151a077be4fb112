package db

import (
	"context"
	"time"

	"sla-engine/internal/logging"
	"sla-engine/internal/models"
	"sla-engine/internal/utils"
)

// Archiver adapts the archive tables to the engines' archiver ports. Inserts
// are retried; persistent failures are logged and dropped, since the
// in-memory logs stay authoritative.
type Archiver struct {
	db     *DB
	logger *logging.Logger
}

func NewArchiver(db *DB, logger *logging.Logger) *Archiver {
	return &Archiver{db: db, logger: logger}
}

func (a *Archiver) ArchiveBreach(projectID string, rec models.SLABreachRecord) {
	err := utils.Retry(a.logger, 3, 500*time.Millisecond, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.db.InsertBreachRecord(ctx, projectID, rec)
	})
	if err != nil {
		a.logger.Errorf("Archive breach record %s failed: %v", rec.ID, err)
	}
}

func (a *Archiver) ArchiveDelivery(projectID string, rec models.NotificationDeliveryRecord) {
	err := utils.Retry(a.logger, 3, 500*time.Millisecond, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.db.InsertDeliveryRecord(ctx, projectID, rec)
	})
	if err != nil {
		a.logger.Errorf("Archive delivery record %s failed: %v", rec.ID, err)
	}
}
