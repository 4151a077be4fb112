package notify

import (
	"time"

	"sla-engine/internal/models"
)

// DueSoonWindow is how far ahead a due date may sit to count as due soon.
const DueSoonWindow = 3 * 24 * time.Hour

// RegisterDueSoonNotifications enqueues a due_soon event for every task whose
// due date falls within the look-ahead window, is not already past, and is
// not completed. Each task id is registered at most once until reset.
// Returns the number of events enqueued.
func (e *Engine) RegisterDueSoonNotifications(projectID string, tasks []models.TaskSnapshot, now time.Time) int {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	seen := e.dueSoonSeen[projectID]
	if seen == nil {
		seen = make(map[string]bool)
		e.dueSoonSeen[projectID] = seen
	}

	horizon := now.Add(e.dueSoonWindow)
	enqueued := 0
	for _, task := range tasks {
		if task.DueDate == nil || task.Completed() || seen[task.ID] {
			continue
		}
		due := *task.DueDate
		if due.Before(now) || due.After(horizon) {
			continue
		}

		e.enqueueLocked(projectID, models.TriggerDueSoon, map[string]interface{}{
			"task_id":    task.ID,
			"task_title": task.Title,
			"due_date":   due.Format(time.RFC3339),
			"recipients": append([]string(nil), task.AssigneeIDs...),
		}, models.EnqueueOptions{}, now)
		seen[task.ID] = true
		enqueued++
	}

	if enqueued > 0 {
		e.logger.Infof("Registered %d due-soon notifications for project %s", enqueued, projectID)
	}
	return enqueued
}
