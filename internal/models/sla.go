package models

import "time"

// TargetType identifies which commitment an SLA target times.
type TargetType string

const (
	TargetResponse   TargetType = "response"
	TargetResolution TargetType = "resolution"
	TargetUpdate     TargetType = "update"
)

// TargetStatus is the evaluated state of one target for one task.
type TargetStatus string

const (
	StatusOnTrack  TargetStatus = "on_track"
	StatusAtRisk   TargetStatus = "at_risk"
	StatusBreached TargetStatus = "breached"
	StatusMet      TargetStatus = "met"
)

// DefaultWarningThreshold is the fraction of a target's duration that, once
// remaining time drops to or below it, flips the status to at_risk.
const DefaultWarningThreshold = 0.25

// SLATarget is a single timed commitment inside a policy.
type SLATarget struct {
	ID               string     `json:"id"`
	Type             TargetType `json:"type"`
	DurationMinutes  int        `json:"duration_minutes"`
	WarningThreshold float64    `json:"warning_threshold"`
	Statuses         []string   `json:"statuses,omitempty"` // restricts which task statuses the target applies to
}

// RuleKind selects the predicate a pause/resume rule evaluates.
type RuleKind string

const (
	RuleBlocked     RuleKind = "blocked"
	RuleStatus      RuleKind = "status"
	RuleCustomField RuleKind = "custom_field"
)

// SLAClockRule freezes (pause) or restarts (resume) the SLA clock while its
// predicate holds for a task. Rules carry no identity beyond the policy.
type SLAClockRule struct {
	Kind     RuleKind `json:"kind"`
	Statuses []string `json:"statuses,omitempty"`
	Field    string   `json:"field,omitempty"`
	Values   []string `json:"values,omitempty"`
}

// TaskFilter narrows which tasks a policy applies to. All present filters are
// ANDed; an absent filter means no constraint.
type TaskFilter struct {
	Priorities   []string               `json:"priorities,omitempty"`
	Statuses     []string               `json:"statuses,omitempty"`
	CustomFields map[string]interface{} `json:"custom_fields,omitempty"` // value: scalar equality or list membership
}

// SLAPolicy is the per-project definition of timed commitments. Policies are
// upserted, never physically deleted; deactivation is via Active=false.
type SLAPolicy struct {
	ID             string         `json:"id"`
	ProjectID      string         `json:"project_id"`
	Name           string         `json:"name"`
	Active         bool           `json:"active"`
	Targets        []SLATarget    `json:"targets"`
	PauseRules     []SLAClockRule `json:"pause_rules,omitempty"`
	ResumeRules    []SLAClockRule `json:"resume_rules,omitempty"`
	Filter         *TaskFilter    `json:"filter,omitempty"`
	NotifyChannels []string       `json:"notify_channels,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// SLAPolicyUpsert is the input shape for creating or replacing a policy.
type SLAPolicyUpsert struct {
	ID             string         `json:"id,omitempty"`
	Name           string         `json:"name" binding:"required"`
	Active         *bool          `json:"active,omitempty"`
	Targets        []SLATarget    `json:"targets" binding:"required"`
	PauseRules     []SLAClockRule `json:"pause_rules,omitempty"`
	ResumeRules    []SLAClockRule `json:"resume_rules,omitempty"`
	Filter         *TaskFilter    `json:"filter,omitempty"`
	NotifyChannels []string       `json:"notify_channels,omitempty"`
}

// SLATaskState is the persistent bookkeeping for one (policy, task) pair.
// Owned by the evaluator; created lazily on first evaluation.
type SLATaskState struct {
	PolicyID        string          `json:"policy_id"`
	TaskID          string          `json:"task_id"`
	BreachedTargets map[string]bool `json:"breached_targets"`
	PausedMinutes   float64         `json:"paused_minutes"`
	LastCheckedAt   *time.Time      `json:"last_checked_at,omitempty"`
	LastStatus      string          `json:"last_status,omitempty"`
}

// SLABreachRecord is an immutable append-only log entry for a first-time
// breach transition.
type SLABreachRecord struct {
	ID             string     `json:"id"`
	PolicyID       string     `json:"policy_id"`
	TaskID         string     `json:"task_id"`
	TaskTitle      string     `json:"task_title,omitempty"`
	TargetID       string     `json:"target_id"`
	TargetType     TargetType `json:"target_type"`
	ElapsedMinutes float64    `json:"elapsed_minutes"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

// SLAPolicyRollup aggregates evaluation statuses for one policy.
type SLAPolicyRollup struct {
	PolicyID   string `json:"policy_id"`
	PolicyName string `json:"policy_name"`
	OnTrack    int    `json:"on_track"`
	AtRisk     int    `json:"at_risk"`
	Breached   int    `json:"breached"`
	Met        int    `json:"met"`
	TotalTasks int    `json:"total_tasks"`
}

// SLAHealthSnapshot is the transient aggregate returned by each evaluation
// call. It is recomputed every call and never persisted.
type SLAHealthSnapshot struct {
	ProjectID      string            `json:"project_id"`
	GeneratedAt    time.Time         `json:"generated_at"`
	Policies       []SLAPolicyRollup `json:"policies"`
	Totals         SLAPolicyRollup   `json:"totals"`
	RecentBreaches []SLABreachRecord `json:"recent_breaches"`
}
