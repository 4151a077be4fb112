package notify

import (
	"time"

	"github.com/google/uuid"
	"sla-engine/internal/models"
)

const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelSlack = "slack"

	CadenceImmediate  = "immediate"
	CadenceDigestOnly = "digest_only"
)

// defaultScheme builds the notification scheme every project starts with:
// five trigger kinds with a channel matrix, and two digests.
func defaultScheme(projectID string, now time.Time) *models.NotificationScheme {
	matrix := func(trigger models.TriggerKind, email, slack bool) models.NotificationTriggerConfig {
		return models.NotificationTriggerConfig{
			ID:      uuid.New().String(),
			Trigger: trigger,
			Channels: []models.NotificationChannelConfig{
				{Channel: ChannelInApp, Enabled: true, Cadence: CadenceImmediate},
				{Channel: ChannelEmail, Enabled: email, Cadence: CadenceImmediate},
				{Channel: ChannelSlack, Enabled: slack, Cadence: CadenceImmediate},
			},
		}
	}

	return &models.NotificationScheme{
		ProjectID: projectID,
		Triggers: []models.NotificationTriggerConfig{
			matrix(models.TriggerMention, false, false),
			matrix(models.TriggerAssignment, true, false),
			matrix(models.TriggerDueSoon, false, false),
			matrix(models.TriggerAutomationRun, false, false),
			matrix(models.TriggerSLABreach, true, true),
		},
		Digests: []models.NotificationDigestConfig{
			{
				ID:              uuid.New().String(),
				Name:            "Daily activity digest",
				Cadence:         models.CadenceDaily,
				SendTime:        "09:00",
				Channels:        []string{ChannelInApp, ChannelEmail},
				RecipientGroups: []string{"project_members"},
				Triggers: []models.TriggerKind{
					models.TriggerMention,
					models.TriggerAssignment,
					models.TriggerDueSoon,
				},
			},
			{
				ID:              uuid.New().String(),
				Name:            "Weekly SLA summary",
				Cadence:         models.CadenceWeekly,
				SendTime:        "09:00",
				Channels:        []string{ChannelEmail},
				RecipientGroups: []string{"project_leads"},
				Triggers: []models.TriggerKind{
					models.TriggerSLABreach,
					models.TriggerAutomationRun,
				},
			},
		},
		UpdatedAt: now,
	}
}

// defaultAutomationRuns seeds the schedules every project starts with.
func defaultAutomationRuns(now time.Time) []models.AutomationRunSchedule {
	return []models.AutomationRunSchedule{
		{
			ID:            uuid.New().String(),
			Name:          "Daily digest run",
			Cadence:       models.RunDaily,
			NextRunAt:     now.Add(24 * time.Hour),
			AutomationRef: "digest",
			Status:        models.RunScheduled,
			CreatedAt:     now,
		},
		{
			ID:            uuid.New().String(),
			Name:          "Hourly SLA escalation sweep",
			Cadence:       models.RunHourly,
			NextRunAt:     now.Add(time.Hour),
			AutomationRef: "sla_escalation",
			Status:        models.RunScheduled,
			CreatedAt:     now,
		},
		{
			ID:            uuid.New().String(),
			Name:          "Weekly briefing run",
			Cadence:       models.RunWeekly,
			NextRunAt:     now.Add(7 * 24 * time.Hour),
			AutomationRef: "briefing",
			Status:        models.RunScheduled,
			CreatedAt:     now,
		},
	}
}
