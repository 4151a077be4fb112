package db

import (
	"context"
	"encoding/json"
	"fmt"

	"sla-engine/internal/models"
)

// InsertBreachRecord appends one breach record to the archive.
func (d *DB) InsertBreachRecord(ctx context.Context, projectID string, rec models.SLABreachRecord) error {
	query := `
        INSERT INTO sla_breach_records (
            id, project_id, policy_id, task_id, task_title, target_id,
            target_type, elapsed_minutes, occurred_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (id) DO NOTHING`
	_, err := d.Pool.Exec(ctx, query,
		rec.ID, projectID, rec.PolicyID, rec.TaskID, rec.TaskTitle,
		rec.TargetID, string(rec.TargetType), rec.ElapsedMinutes, rec.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to insert breach record: %w", err)
	}
	return nil
}

// InsertDeliveryRecord appends one delivery record to the archive.
func (d *DB) InsertDeliveryRecord(ctx context.Context, projectID string, rec models.NotificationDeliveryRecord) error {
	channels, err := json.Marshal(rec.Channels)
	if err != nil {
		return fmt.Errorf("failed to encode channels: %w", err)
	}
	recipients, err := json.Marshal(rec.Recipients)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}

	query := `
        INSERT INTO notification_delivery_records (
            id, event_id, project_id, trigger_kind, channels, recipients,
            summary, delivered_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO NOTHING`
	_, err = d.Pool.Exec(ctx, query,
		rec.ID, rec.EventID, projectID, string(rec.Trigger), channels,
		recipients, rec.Summary, rec.DeliveredAt)
	if err != nil {
		return fmt.Errorf("failed to insert delivery record: %w", err)
	}
	return nil
}
