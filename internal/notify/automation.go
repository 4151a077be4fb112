package notify

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"sla-engine/internal/models"
)

// RegisterAutomationRun appends a fully-defaulted schedule entry and
// announces it through the notification pipeline.
func (e *Engine) RegisterAutomationRun(projectID string, in models.AutomationRunInput, now time.Time) models.AutomationRunSchedule {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	e.seedAutomationsLocked(projectID, now)

	run := models.AutomationRunSchedule{
		ID:            uuid.New().String(),
		Name:          in.Name,
		Cadence:       in.Cadence,
		AutomationRef: in.AutomationRef,
		Status:        in.Status,
		CreatedAt:     now,
	}
	if run.Name == "" {
		run.Name = "Automation run"
	}
	if run.Cadence == "" {
		run.Cadence = models.RunDaily
	}
	if in.NextRunAt != nil {
		run.NextRunAt = *in.NextRunAt
	} else {
		run.NextRunAt = now.Add(60 * time.Minute)
	}
	if run.Status == "" {
		run.Status = models.RunScheduled
	}

	e.automations[projectID] = append(e.automations[projectID], run)
	e.logger.Infof("Registered automation run %q (%s) for project %s", run.Name, run.Cadence, projectID)

	e.enqueueLocked(projectID, models.TriggerAutomationRun, map[string]interface{}{
		"automation_id": run.ID,
		"name":          run.Name,
		"cadence":       string(run.Cadence),
		"next_run_at":   run.NextRunAt.Format(time.RFC3339),
	}, models.EnqueueOptions{}, now)

	return run
}

// AutomationRuns returns the project's schedules, seeding defaults on first
// access, sorted soonest first.
func (e *Engine) AutomationRuns(projectID string, now time.Time) []models.AutomationRunSchedule {
	unlock := e.locks.Lock(projectID)
	defer unlock()
	return e.automationRunsLocked(projectID, now)
}

func (e *Engine) automationRunsLocked(projectID string, now time.Time) []models.AutomationRunSchedule {
	e.seedAutomationsLocked(projectID, now)

	out := append([]models.AutomationRunSchedule(nil), e.automations[projectID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(out[j].NextRunAt) })
	return out
}

func (e *Engine) seedAutomationsLocked(projectID string, now time.Time) {
	if _, ok := e.automations[projectID]; ok {
		return
	}
	e.automations[projectID] = defaultAutomationRuns(now)
	e.logger.Infof("Seeded default automation runs for project %s", projectID)
}
