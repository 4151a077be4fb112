package models

import "time"

// TriggerKind identifies what caused a notification event.
type TriggerKind string

const (
	TriggerMention       TriggerKind = "mention"
	TriggerAssignment    TriggerKind = "assignment"
	TriggerDueSoon       TriggerKind = "due_soon"
	TriggerAutomationRun TriggerKind = "automation_run"
	TriggerSLABreach     TriggerKind = "sla_breach"
	TriggerDigest        TriggerKind = "digest"
)

// NotificationChannelConfig is one cell of a trigger's channel matrix.
type NotificationChannelConfig struct {
	Channel string `json:"channel"`
	Enabled bool   `json:"enabled"`
	Cadence string `json:"cadence"` // immediate or digest_only
}

// NotificationTriggerConfig holds the channel matrix for one trigger kind.
type NotificationTriggerConfig struct {
	ID       string                      `json:"id"`
	Trigger  TriggerKind                 `json:"trigger"`
	Channels []NotificationChannelConfig `json:"channels"`
}

// DigestCadence is how often a digest may be sent.
type DigestCadence string

const (
	CadenceDaily  DigestCadence = "daily"
	CadenceWeekly DigestCadence = "weekly"
)

// Minutes returns the cadence window length.
func (c DigestCadence) Minutes() int {
	if c == CadenceWeekly {
		return 10080
	}
	return 1440
}

// NotificationDigestConfig defines a batched, cadence-gated summary send.
type NotificationDigestConfig struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Cadence         DigestCadence `json:"cadence"`
	SendTime        string        `json:"send_time"` // nominal HH:MM wall time
	Channels        []string      `json:"channels"`
	RecipientGroups []string      `json:"recipient_groups"`
	Triggers        []TriggerKind `json:"triggers"`
}

// NotificationScheme is the per-project delivery configuration, seeded with
// defaults on first access and mutated only through explicit updates.
type NotificationScheme struct {
	ProjectID string                      `json:"project_id"`
	Triggers  []NotificationTriggerConfig `json:"triggers"`
	Digests   []NotificationDigestConfig  `json:"digests"`
	UpdatedAt time.Time                   `json:"updated_at"`
}

// NotificationEvent is a scheduled-but-undelivered queue entry. It leaves the
// queue once its scheduled time has passed and it is processed.
type NotificationEvent struct {
	ID           string                 `json:"id"`
	Trigger      TriggerKind            `json:"trigger"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Channels     []string               `json:"channels"`
	ScheduledFor time.Time              `json:"scheduled_for"`
	CreatedAt    time.Time              `json:"created_at"`
}

// EnqueueOptions overrides channel resolution and scheduling on enqueue.
type EnqueueOptions struct {
	Channels     []string   `json:"channels,omitempty"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// NotificationDeliveryRecord is the immutable append-only result of
// processing one event.
type NotificationDeliveryRecord struct {
	ID          string      `json:"id"`
	EventID     string      `json:"event_id"`
	Trigger     TriggerKind `json:"trigger"`
	Channels    []string    `json:"channels"`
	Recipients  []string    `json:"recipients"`
	Summary     string      `json:"summary"`
	DeliveredAt time.Time   `json:"delivered_at"`
}

// RunCadence is how often an automation schedule recurs. Unlike digests,
// schedules may recur more often than daily.
type RunCadence string

const (
	RunHourly RunCadence = "hourly"
	RunDaily  RunCadence = "daily"
	RunWeekly RunCadence = "weekly"
)

// AutomationRunStatus is the lifecycle state of an automation schedule.
type AutomationRunStatus string

const (
	RunScheduled AutomationRunStatus = "scheduled"
	RunRunning   AutomationRunStatus = "running"
	RunPaused    AutomationRunStatus = "paused"
)

// AutomationRunSchedule is a recurring job whose execution is announced via
// the notification pipeline.
type AutomationRunSchedule struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Cadence       RunCadence          `json:"cadence"`
	NextRunAt     time.Time           `json:"next_run_at"`
	AutomationRef string              `json:"automation_ref,omitempty"`
	Status        AutomationRunStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
}

// AutomationRunInput is the partial input for registering a schedule; blank
// fields are defaulted by the registry.
type AutomationRunInput struct {
	Name          string              `json:"name,omitempty"`
	Cadence       RunCadence          `json:"cadence,omitempty"`
	NextRunAt     *time.Time          `json:"next_run_at,omitempty"`
	AutomationRef string              `json:"automation_ref,omitempty"`
	Status        AutomationRunStatus `json:"status,omitempty"`
}

// DigestStatus pairs a digest definition with its send history.
type DigestStatus struct {
	Digest     NotificationDigestConfig `json:"digest"`
	LastSentAt *time.Time               `json:"last_sent_at,omitempty"`
	NextSendAt time.Time                `json:"next_send_at"`
}

// NotificationDigestSummary is the dashboard-facing view of digest state,
// recent deliveries, and upcoming automation runs.
type NotificationDigestSummary struct {
	ProjectID        string                       `json:"project_id"`
	GeneratedAt      time.Time                    `json:"generated_at"`
	Digests          []DigestStatus               `json:"digests"`
	RecentDeliveries []NotificationDeliveryRecord `json:"recent_deliveries"`
	UpcomingRuns     []AutomationRunSchedule      `json:"upcoming_runs"`
}
