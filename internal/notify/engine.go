package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"sla-engine/internal/logging"
	"sla-engine/internal/models"
	"sla-engine/internal/utils"
)

var (
	// ErrTriggerNotFound is returned when a channel update references an
	// unknown trigger config id.
	ErrTriggerNotFound = errors.New("notification trigger not found")
	// ErrDigestNotFound is returned when a digest update references an
	// unknown digest id.
	ErrDigestNotFound = errors.New("notification digest not found")
)

// dueWindow is how far past now an event's schedule may still count as due.
const dueWindow = time.Minute

// digestGraceWindow shaves the cadence gate so a digest lands even when the
// processing tick fires slightly early.
const digestGraceWindow = 5 * time.Minute

// Engine owns per-project notification schemes, the event queue, the
// delivery log, digest send history, due-soon registrations, and automation
// run schedules. All mutating calls are serialized per project.
type Engine struct {
	logger   *logging.Logger
	archiver Archiver
	listener DeliveryListener

	dueSoonWindow time.Duration

	locks          *utils.KeyedMutex
	schemes        map[string]*models.NotificationScheme
	queues         map[string][]models.NotificationEvent
	deliveries     map[string][]models.NotificationDeliveryRecord
	deliveredIDs   map[string]map[string]bool
	digestLastSent map[string]map[string]time.Time
	dueSoonSeen    map[string]map[string]bool
	automations    map[string][]models.AutomationRunSchedule
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithArchiver attaches a durable sink for delivery records.
func WithArchiver(a Archiver) EngineOption {
	return func(e *Engine) { e.archiver = a }
}

// WithDeliveryListener registers an observer for appended delivery records.
func WithDeliveryListener(fn DeliveryListener) EngineOption {
	return func(e *Engine) { e.listener = fn }
}

// WithDueSoonWindow overrides the due-soon look-ahead window.
func WithDueSoonWindow(days int) EngineOption {
	return func(e *Engine) {
		if days > 0 {
			e.dueSoonWindow = time.Duration(days) * 24 * time.Hour
		}
	}
}

// NewEngine constructs a notification Engine.
func NewEngine(logger *logging.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		logger:         logger,
		dueSoonWindow:  DueSoonWindow,
		locks:          utils.NewKeyedMutex(),
		schemes:        make(map[string]*models.NotificationScheme),
		queues:         make(map[string][]models.NotificationEvent),
		deliveries:     make(map[string][]models.NotificationDeliveryRecord),
		deliveredIDs:   make(map[string]map[string]bool),
		digestLastSent: make(map[string]map[string]time.Time),
		dueSoonSeen:    make(map[string]map[string]bool),
		automations:    make(map[string][]models.AutomationRunSchedule),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scheme returns a detached copy of the project's scheme, seeding defaults
// on first access.
func (e *Engine) Scheme(projectID string, now time.Time) models.NotificationScheme {
	unlock := e.locks.Lock(projectID)
	defer unlock()
	return copyScheme(e.schemeLocked(projectID, now))
}

// Enqueue appends an event to the project's queue. Channels default to the
// scheme's enabled channels for the trigger; schedule defaults to now.
func (e *Engine) Enqueue(projectID string, trigger models.TriggerKind, payload map[string]interface{}, opts models.EnqueueOptions, now time.Time) models.NotificationEvent {
	unlock := e.locks.Lock(projectID)
	defer unlock()
	return e.enqueueLocked(projectID, trigger, payload, opts, now)
}

// EnqueueEvent implements the SLA evaluator's emission port.
func (e *Engine) EnqueueEvent(projectID string, trigger models.TriggerKind, payload map[string]interface{}, channels []string, now time.Time) {
	e.Enqueue(projectID, trigger, payload, models.EnqueueOptions{Channels: channels}, now)
}

func (e *Engine) enqueueLocked(projectID string, trigger models.TriggerKind, payload map[string]interface{}, opts models.EnqueueOptions, now time.Time) models.NotificationEvent {
	scheme := e.schemeLocked(projectID, now)

	channels := opts.Channels
	if len(channels) == 0 {
		channels = enabledChannels(scheme, trigger)
	}
	scheduled := now
	if opts.ScheduledFor != nil {
		scheduled = *opts.ScheduledFor
	}

	ev := models.NotificationEvent{
		ID:           uuid.New().String(),
		Trigger:      trigger,
		Payload:      copyPayload(payload),
		Channels:     append([]string(nil), channels...),
		ScheduledFor: scheduled,
		CreatedAt:    now,
	}
	e.queues[projectID] = append(e.queues[projectID], ev)
	e.logger.Debugf("Enqueued %s event %s for project %s", trigger, ev.ID, projectID)
	return ev
}

// PendingEvents returns a detached copy of the project's queue.
func (e *Engine) PendingEvents(projectID string) []models.NotificationEvent {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	out := make([]models.NotificationEvent, 0, len(e.queues[projectID]))
	for _, ev := range e.queues[projectID] {
		ev.Payload = copyPayload(ev.Payload)
		ev.Channels = append([]string(nil), ev.Channels...)
		out = append(out, ev)
	}
	return out
}

// UpdateTriggerChannel enables or disables one channel of a trigger's matrix
// and sets its cadence. Fails without mutating when the trigger id is unknown.
func (e *Engine) UpdateTriggerChannel(projectID, triggerID, channel string, enabled bool, cadence string, now time.Time) error {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	scheme := e.schemeLocked(projectID, now)
	for i := range scheme.Triggers {
		if scheme.Triggers[i].ID != triggerID {
			continue
		}
		if cadence == "" {
			cadence = CadenceImmediate
		}
		updated := false
		for j := range scheme.Triggers[i].Channels {
			if scheme.Triggers[i].Channels[j].Channel == channel {
				scheme.Triggers[i].Channels[j].Enabled = enabled
				scheme.Triggers[i].Channels[j].Cadence = cadence
				updated = true
				break
			}
		}
		if !updated {
			scheme.Triggers[i].Channels = append(scheme.Triggers[i].Channels, models.NotificationChannelConfig{
				Channel: channel, Enabled: enabled, Cadence: cadence,
			})
		}
		scheme.UpdatedAt = now
		e.logger.Infof("Updated channel %s on trigger %s for project %s", channel, scheme.Triggers[i].Trigger, projectID)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrTriggerNotFound, triggerID)
}

// UpdateDigestChannels replaces a digest's channel list. Fails without
// mutating when the digest id is unknown.
func (e *Engine) UpdateDigestChannels(projectID, digestID string, channels []string, now time.Time) error {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	scheme := e.schemeLocked(projectID, now)
	for i := range scheme.Digests {
		if scheme.Digests[i].ID != digestID {
			continue
		}
		scheme.Digests[i].Channels = append([]string(nil), channels...)
		scheme.UpdatedAt = now
		e.logger.Infof("Updated channels on digest %s for project %s", scheme.Digests[i].Name, projectID)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDigestNotFound, digestID)
}

// ProcessQueue drains due events into delivery records, then evaluates each
// digest's cadence gate, sending digests whose window has elapsed. Returns
// only the immediate deliveries; digest deliveries land in the log but are
// not returned.
func (e *Engine) ProcessQueue(projectID string, now time.Time) []models.NotificationDeliveryRecord {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	scheme := e.schemeLocked(projectID, now)

	var due, rest []models.NotificationEvent
	for _, ev := range e.queues[projectID] {
		if !ev.ScheduledFor.After(now.Add(dueWindow)) {
			due = append(due, ev)
		} else {
			rest = append(rest, ev)
		}
	}
	e.queues[projectID] = rest

	immediate := []models.NotificationDeliveryRecord{}
	for _, ev := range due {
		if e.deliveredIDs[projectID][ev.ID] {
			e.logger.Warnf("Dropping already-delivered event %s for project %s", ev.ID, projectID)
			continue
		}
		rec := e.deliverLocked(projectID, ev, deriveRecipients(ev), summarize(ev), now)
		immediate = append(immediate, rec)
	}

	for i := range scheme.Digests {
		digest := scheme.Digests[i]
		if !e.digestDueLocked(projectID, digest, now) {
			continue
		}
		ev := models.NotificationEvent{
			ID:       uuid.New().String(),
			Trigger:  models.TriggerDigest,
			Channels: append([]string(nil), digest.Channels...),
			Payload: map[string]interface{}{
				"digest_id":   digest.ID,
				"digest_name": digest.Name,
				"cadence":     string(digest.Cadence),
			},
			ScheduledFor: now,
			CreatedAt:    now,
		}
		summary := e.digestSummaryLineLocked(projectID, digest)
		e.deliverLocked(projectID, ev, append([]string(nil), digest.RecipientGroups...), summary, now)
		if e.digestLastSent[projectID] == nil {
			e.digestLastSent[projectID] = make(map[string]time.Time)
		}
		e.digestLastSent[projectID][digest.ID] = now
	}

	return immediate
}

// deliverLocked appends one delivery record, marks the event id delivered,
// archives, and notifies the listener. Caller holds the project lock.
func (e *Engine) deliverLocked(projectID string, ev models.NotificationEvent, recipients []string, summary string, now time.Time) models.NotificationDeliveryRecord {
	rec := models.NotificationDeliveryRecord{
		ID:          uuid.New().String(),
		EventID:     ev.ID,
		Trigger:     ev.Trigger,
		Channels:    append([]string(nil), ev.Channels...),
		Recipients:  recipients,
		Summary:     summary,
		DeliveredAt: now,
	}
	e.deliveries[projectID] = append(e.deliveries[projectID], rec)
	if e.deliveredIDs[projectID] == nil {
		e.deliveredIDs[projectID] = make(map[string]bool)
	}
	e.deliveredIDs[projectID][ev.ID] = true
	e.logger.Infof("Delivered %s notification %s to %d recipients in project %s", ev.Trigger, rec.ID, len(recipients), projectID)

	if e.archiver != nil {
		go e.archiver.ArchiveDelivery(projectID, rec)
	}
	if e.listener != nil {
		e.listener(projectID, rec)
	}
	return rec
}

// digestDueLocked applies the cadence gate: first-ever sends are always due,
// later ones once the cadence window (minus grace) has elapsed.
func (e *Engine) digestDueLocked(projectID string, digest models.NotificationDigestConfig, now time.Time) bool {
	last, ok := e.digestLastSent[projectID][digest.ID]
	if !ok {
		return true
	}
	gate := last.Add(time.Duration(digest.Cadence.Minutes())*time.Minute - digestGraceWindow)
	return !now.Before(gate)
}

func (e *Engine) digestSummaryLineLocked(projectID string, digest models.NotificationDigestConfig) string {
	since := e.digestLastSent[projectID][digest.ID]
	count := 0
	for _, rec := range e.deliveries[projectID] {
		if !since.IsZero() && rec.DeliveredAt.Before(since) {
			continue
		}
		for _, tr := range digest.Triggers {
			if rec.Trigger == tr {
				count++
				break
			}
		}
	}
	return fmt.Sprintf("%s (%s): %d notifications summarized", digest.Name, digest.Cadence, count)
}

// Deliveries returns the project's delivery log, most recent first, capped at
// limit (0 means all).
func (e *Engine) Deliveries(projectID string, limit int) []models.NotificationDeliveryRecord {
	unlock := e.locks.Lock(projectID)
	defer unlock()
	return e.recentDeliveriesLocked(projectID, limit)
}

func (e *Engine) recentDeliveriesLocked(projectID string, limit int) []models.NotificationDeliveryRecord {
	log := e.deliveries[projectID]
	if limit <= 0 || limit > len(log) {
		limit = len(log)
	}
	out := make([]models.NotificationDeliveryRecord, 0, limit)
	for i := len(log) - 1; i >= len(log)-limit; i-- {
		rec := log[i]
		rec.Channels = append([]string(nil), rec.Channels...)
		rec.Recipients = append([]string(nil), rec.Recipients...)
		out = append(out, rec)
	}
	return out
}

// DigestSummary reports digest send state, the recent delivery tail, and
// upcoming automation runs for dashboards.
func (e *Engine) DigestSummary(projectID string, now time.Time) models.NotificationDigestSummary {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	scheme := e.schemeLocked(projectID, now)
	out := models.NotificationDigestSummary{
		ProjectID:   projectID,
		GeneratedAt: now,
		Digests:     []models.DigestStatus{},
	}
	for _, digest := range scheme.Digests {
		status := models.DigestStatus{Digest: digest}
		if last, ok := e.digestLastSent[projectID][digest.ID]; ok {
			sent := last
			status.LastSentAt = &sent
			status.NextSendAt = last.Add(time.Duration(digest.Cadence.Minutes()) * time.Minute)
		} else {
			status.NextSendAt = now
		}
		out.Digests = append(out.Digests, status)
	}
	out.RecentDeliveries = e.recentDeliveriesLocked(projectID, 20)
	out.UpcomingRuns = e.automationRunsLocked(projectID, now)
	return out
}

// ResetProject clears all notification state for a project.
func (e *Engine) ResetProject(projectID string) {
	unlock := e.locks.Lock(projectID)
	defer unlock()

	delete(e.schemes, projectID)
	delete(e.queues, projectID)
	delete(e.deliveries, projectID)
	delete(e.deliveredIDs, projectID)
	delete(e.digestLastSent, projectID)
	delete(e.dueSoonSeen, projectID)
	delete(e.automations, projectID)
	e.logger.Infof("Reset notification state for project %s", projectID)
}

func (e *Engine) schemeLocked(projectID string, now time.Time) *models.NotificationScheme {
	scheme, ok := e.schemes[projectID]
	if !ok {
		scheme = defaultScheme(projectID, now)
		e.schemes[projectID] = scheme
		e.logger.Infof("Seeded default notification scheme for project %s", projectID)
	}
	return scheme
}

// enabledChannels resolves the scheme's enabled channel list for a trigger.
func enabledChannels(scheme *models.NotificationScheme, trigger models.TriggerKind) []string {
	for _, tc := range scheme.Triggers {
		if tc.Trigger != trigger {
			continue
		}
		var out []string
		for _, ch := range tc.Channels {
			if ch.Enabled {
				out = append(out, ch.Channel)
			}
		}
		return out
	}
	return []string{ChannelInApp}
}

// deriveRecipients resolves who a delivery addresses: explicit payload
// recipients, else the assignee, else the whole project team.
func deriveRecipients(ev models.NotificationEvent) []string {
	switch v := ev.Payload["recipients"].(type) {
	case []string:
		if len(v) > 0 {
			return append([]string(nil), v...)
		}
	case []interface{}:
		if len(v) > 0 {
			out := make([]string, 0, len(v))
			for _, r := range v {
				out = append(out, fmt.Sprint(r))
			}
			return out
		}
	case string:
		if v != "" {
			return []string{v}
		}
	}
	if id, ok := ev.Payload["assignee_id"].(string); ok && id != "" {
		return []string{id}
	}
	return []string{"project_team"}
}

// summarize builds the human-readable delivery line for an event.
func summarize(ev models.NotificationEvent) string {
	str := func(key string) string {
		if v, ok := ev.Payload[key]; ok {
			return fmt.Sprint(v)
		}
		return ""
	}
	switch ev.Trigger {
	case models.TriggerMention:
		return fmt.Sprintf("You were mentioned on %q", str("task_title"))
	case models.TriggerAssignment:
		return fmt.Sprintf("You were assigned %q", str("task_title"))
	case models.TriggerDueSoon:
		return fmt.Sprintf("Task %q is due soon (%s)", str("task_title"), str("due_date"))
	case models.TriggerAutomationRun:
		return fmt.Sprintf("Automation %q scheduled (%s cadence)", str("name"), str("cadence"))
	case models.TriggerSLABreach:
		return fmt.Sprintf("SLA breached on %q after %s minutes", str("task_title"), str("elapsed_minutes"))
	default:
		return fmt.Sprintf("%s notification", ev.Trigger)
	}
}

func copyScheme(s *models.NotificationScheme) models.NotificationScheme {
	out := *s
	out.Triggers = make([]models.NotificationTriggerConfig, len(s.Triggers))
	for i, tc := range s.Triggers {
		tc.Channels = append([]models.NotificationChannelConfig(nil), tc.Channels...)
		out.Triggers[i] = tc
	}
	out.Digests = make([]models.NotificationDigestConfig, len(s.Digests))
	for i, d := range s.Digests {
		d.Channels = append([]string(nil), d.Channels...)
		d.RecipientGroups = append([]string(nil), d.RecipientGroups...)
		d.Triggers = append([]models.TriggerKind(nil), d.Triggers...)
		out.Digests[i] = d
	}
	return out
}

func copyPayload(p map[string]interface{}) map[string]interface{} {
	if p == nil {
		return nil
	}
	out := make(map[string]interface{}, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
