package notify

import (
	"errors"
	"testing"
	"time"

	"sla-engine/internal/logging"
	"sla-engine/internal/models"
)

var base = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(logging.NewDiscard())
}

func countByTrigger(records []models.NotificationDeliveryRecord, trigger models.TriggerKind) int {
	n := 0
	for _, rec := range records {
		if rec.Trigger == trigger {
			n++
		}
	}
	return n
}

func TestSchemeSeededWithDefaults(t *testing.T) {
	e := newTestEngine(t)
	scheme := e.Scheme("p1", base)

	if len(scheme.Triggers) != 5 {
		t.Errorf("triggers = %d, want 5", len(scheme.Triggers))
	}
	if len(scheme.Digests) != 2 {
		t.Errorf("digests = %d, want 2", len(scheme.Digests))
	}
	kinds := map[models.TriggerKind]bool{}
	for _, tc := range scheme.Triggers {
		kinds[tc.Trigger] = true
		if tc.ID == "" {
			t.Error("trigger config missing id")
		}
	}
	for _, want := range []models.TriggerKind{
		models.TriggerMention, models.TriggerAssignment, models.TriggerDueSoon,
		models.TriggerAutomationRun, models.TriggerSLABreach,
	} {
		if !kinds[want] {
			t.Errorf("default scheme missing trigger %s", want)
		}
	}
}

func TestEnqueueResolvesChannelsFromScheme(t *testing.T) {
	e := newTestEngine(t)

	breach := e.Enqueue("p1", models.TriggerSLABreach, nil, models.EnqueueOptions{}, base)
	if len(breach.Channels) != 3 {
		t.Errorf("sla_breach channels = %v, want in_app+email+slack", breach.Channels)
	}

	mention := e.Enqueue("p1", models.TriggerMention, nil, models.EnqueueOptions{}, base)
	if len(mention.Channels) != 1 || mention.Channels[0] != ChannelInApp {
		t.Errorf("mention channels = %v, want [in_app]", mention.Channels)
	}

	explicit := e.Enqueue("p1", models.TriggerMention, nil, models.EnqueueOptions{
		Channels: []string{ChannelSlack},
	}, base)
	if len(explicit.Channels) != 1 || explicit.Channels[0] != ChannelSlack {
		t.Errorf("override channels = %v, want [slack]", explicit.Channels)
	}
}

func TestProcessQueuePartitionsByScheduleTime(t *testing.T) {
	e := newTestEngine(t)

	e.Enqueue("p1", models.TriggerMention, map[string]interface{}{"task_title": "A"}, models.EnqueueOptions{}, base)
	future := base.Add(2 * time.Hour)
	e.Enqueue("p1", models.TriggerMention, map[string]interface{}{"task_title": "B"}, models.EnqueueOptions{
		ScheduledFor: &future,
	}, base)

	delivered := e.ProcessQueue("p1", base)
	if len(delivered) != 1 {
		t.Fatalf("immediate deliveries = %d, want 1", len(delivered))
	}
	pending := e.PendingEvents("p1")
	if len(pending) != 1 || !pending[0].ScheduledFor.Equal(future) {
		t.Errorf("pending = %+v, want the future event retained", pending)
	}

	// the future event becomes due once its schedule arrives
	delivered = e.ProcessQueue("p1", future)
	if len(delivered) != 1 {
		t.Errorf("deliveries at schedule = %d, want 1", len(delivered))
	}
	if got := len(e.PendingEvents("p1")); got != 0 {
		t.Errorf("pending after drain = %d, want 0", got)
	}
}

func TestProcessQueueReturnShape(t *testing.T) {
	e := newTestEngine(t)
	e.Enqueue("p1", models.TriggerAssignment, map[string]interface{}{"task_title": "Ship it"}, models.EnqueueOptions{}, base)

	returned := e.ProcessQueue("p1", base)

	// returned slice holds only the immediate delivery
	if len(returned) != 1 || returned[0].Trigger != models.TriggerAssignment {
		t.Fatalf("returned = %+v, want just the assignment delivery", returned)
	}

	// the log additionally holds both first-send digests
	log := e.Deliveries("p1", 0)
	if len(log) != 3 {
		t.Fatalf("delivery log = %d records, want 3 (1 immediate + 2 digests)", len(log))
	}
	if got := countByTrigger(log, models.TriggerDigest); got != 2 {
		t.Errorf("digest records in log = %d, want 2", got)
	}
}

func TestRecipientsDerivation(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]interface{}
		want    []string
	}{
		{"explicit list", map[string]interface{}{"recipients": []interface{}{"u1", "u2"}}, []string{"u1", "u2"}},
		{"explicit string", map[string]interface{}{"recipients": "u3"}, []string{"u3"}},
		{"assignee fallback", map[string]interface{}{"assignee_id": "u4"}, []string{"u4"}},
		{"team fallback", map[string]interface{}{}, []string{"project_team"}},
		{"empty list falls through", map[string]interface{}{"recipients": []interface{}{}, "assignee_id": "u5"}, []string{"u5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deriveRecipients(models.NotificationEvent{Payload: tt.payload})
			if len(got) != len(tt.want) {
				t.Fatalf("recipients = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("recipients = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestDigestCadenceGate(t *testing.T) {
	e := newTestEngine(t)

	// first-ever processing sends both digests
	e.ProcessQueue("p1", base)
	log := e.Deliveries("p1", 0)
	if got := countByTrigger(log, models.TriggerDigest); got != 2 {
		t.Fatalf("first-send digests = %d, want 2", got)
	}

	// 1450 minutes later the daily window (1440 - 5 grace) has elapsed,
	// the weekly one has not
	later := base.Add(1450 * time.Minute)
	e.ProcessQueue("p1", later)
	log = e.Deliveries("p1", 0)
	if got := countByTrigger(log, models.TriggerDigest); got != 3 {
		t.Errorf("digests after daily window = %d, want 3", got)
	}
}

func TestDigestNotResentWithinSameMinute(t *testing.T) {
	e := newTestEngine(t)

	e.ProcessQueue("p1", base)
	e.ProcessQueue("p1", base.Add(30*time.Second))

	log := e.Deliveries("p1", 0)
	if got := countByTrigger(log, models.TriggerDigest); got != 2 {
		t.Errorf("digest records = %d, want 2 (no resend within the cadence window)", got)
	}
}

func TestUpdateTriggerChannel(t *testing.T) {
	e := newTestEngine(t)
	scheme := e.Scheme("p1", base)

	var slaTriggerID string
	for _, tc := range scheme.Triggers {
		if tc.Trigger == models.TriggerSLABreach {
			slaTriggerID = tc.ID
		}
	}

	later := base.Add(time.Hour)
	if err := e.UpdateTriggerChannel("p1", slaTriggerID, ChannelSlack, false, "", later); err != nil {
		t.Fatalf("UpdateTriggerChannel: %v", err)
	}

	updated := e.Scheme("p1", later)
	if !updated.UpdatedAt.Equal(later) {
		t.Errorf("updatedAt = %v, want %v", updated.UpdatedAt, later)
	}
	ev := e.Enqueue("p1", models.TriggerSLABreach, nil, models.EnqueueOptions{}, later)
	for _, ch := range ev.Channels {
		if ch == ChannelSlack {
			t.Error("slack still resolved after being disabled")
		}
	}
}

func TestUpdateUnknownTriggerLeavesSchemeUntouched(t *testing.T) {
	e := newTestEngine(t)
	before := e.Scheme("p1", base)

	err := e.UpdateTriggerChannel("p1", "bogus-id", ChannelEmail, true, "", base.Add(time.Hour))
	if !errors.Is(err, ErrTriggerNotFound) {
		t.Fatalf("err = %v, want ErrTriggerNotFound", err)
	}

	after := e.Scheme("p1", base)
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("updatedAt changed on failed update: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestUpdateDigestChannels(t *testing.T) {
	e := newTestEngine(t)
	scheme := e.Scheme("p1", base)
	digestID := scheme.Digests[0].ID

	if err := e.UpdateDigestChannels("p1", digestID, []string{ChannelSlack}, base.Add(time.Minute)); err != nil {
		t.Fatalf("UpdateDigestChannels: %v", err)
	}
	updated := e.Scheme("p1", base)
	if len(updated.Digests[0].Channels) != 1 || updated.Digests[0].Channels[0] != ChannelSlack {
		t.Errorf("digest channels = %v, want [slack]", updated.Digests[0].Channels)
	}

	err := e.UpdateDigestChannels("p1", "bogus-id", []string{ChannelEmail}, base)
	if !errors.Is(err, ErrDigestNotFound) {
		t.Errorf("err = %v, want ErrDigestNotFound", err)
	}
}

func TestRedeliveryDedupedByEventID(t *testing.T) {
	e := newTestEngine(t)
	ev := e.Enqueue("p1", models.TriggerMention, nil, models.EnqueueOptions{}, base)
	e.ProcessQueue("p1", base)

	// simulate a retried send of the same event id
	e.queues["p1"] = append(e.queues["p1"], ev)
	returned := e.ProcessQueue("p1", base.Add(time.Minute))

	if len(returned) != 0 {
		t.Errorf("redelivered = %d records, want 0", len(returned))
	}
	log := e.Deliveries("p1", 0)
	if got := countByTrigger(log, models.TriggerMention); got != 1 {
		t.Errorf("mention records = %d, want 1", got)
	}
}

func TestDeliveriesMostRecentFirstAndCapped(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 5; i++ {
		e.Enqueue("p1", models.TriggerMention, map[string]interface{}{"task_title": i}, models.EnqueueOptions{}, base)
	}
	e.ProcessQueue("p1", base)

	page := e.Deliveries("p1", 3)
	if len(page) != 3 {
		t.Fatalf("page size = %d, want 3", len(page))
	}
	for i := 1; i < len(page); i++ {
		if page[i].DeliveredAt.After(page[i-1].DeliveredAt) {
			t.Error("deliveries not most-recent-first")
		}
	}
}

func TestDigestSummary(t *testing.T) {
	e := newTestEngine(t)
	e.ProcessQueue("p1", base)

	summary := e.DigestSummary("p1", base.Add(time.Hour))
	if len(summary.Digests) != 2 {
		t.Fatalf("digests = %d, want 2", len(summary.Digests))
	}
	for _, d := range summary.Digests {
		if d.LastSentAt == nil {
			t.Errorf("digest %s missing last sent", d.Digest.Name)
			continue
		}
		wantNext := d.LastSentAt.Add(time.Duration(d.Digest.Cadence.Minutes()) * time.Minute)
		if !d.NextSendAt.Equal(wantNext) {
			t.Errorf("next send = %v, want %v", d.NextSendAt, wantNext)
		}
	}
	if len(summary.UpcomingRuns) != 3 {
		t.Errorf("upcoming runs = %d, want the 3 seeded defaults", len(summary.UpcomingRuns))
	}
	if len(summary.RecentDeliveries) == 0 {
		t.Error("recent deliveries empty")
	}
}

func TestResetProjectClearsNotificationState(t *testing.T) {
	e := newTestEngine(t)
	e.Enqueue("p1", models.TriggerMention, nil, models.EnqueueOptions{}, base)
	e.ProcessQueue("p1", base)

	e.ResetProject("p1")

	if got := len(e.Deliveries("p1", 0)); got != 0 {
		t.Errorf("deliveries after reset = %d", got)
	}
	if got := len(e.PendingEvents("p1")); got != 0 {
		t.Errorf("pending after reset = %d", got)
	}
	// scheme reseeds on next access
	if got := len(e.Scheme("p1", base).Triggers); got != 5 {
		t.Errorf("reseeded triggers = %d, want 5", got)
	}
}
