package sla

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"sla-engine/internal/logging"
	"sla-engine/internal/models"
	"sla-engine/internal/utils"
)

// ErrPolicyNotFound is returned when an upsert addresses a policy id that
// does not exist in the project.
var ErrPolicyNotFound = errors.New("sla policy not found")

// Service owns per-project SLA policies, per (policy, task) bookkeeping, and
// the breach log. All mutating calls are serialized per project.
type Service struct {
	logger      *logging.Logger
	sink        EventSink
	archiver    Archiver
	recentLimit int

	locks    *utils.KeyedMutex
	policies map[string][]*models.SLAPolicy
	states   map[string]map[string]*models.SLATaskState
	breaches map[string][]models.SLABreachRecord
}

// Option configures a Service.
type Option func(*Service)

// WithArchiver attaches a durable sink for breach records.
func WithArchiver(a Archiver) Option {
	return func(s *Service) { s.archiver = a }
}

// WithRecentBreachLimit caps the breach tail returned in snapshots.
func WithRecentBreachLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentLimit = n
		}
	}
}

// New constructs an SLA Service emitting breach events into sink.
func New(logger *logging.Logger, sink EventSink, opts ...Option) *Service {
	s := &Service{
		logger:      logger,
		sink:        sink,
		recentLimit: 20,
		locks:       utils.NewKeyedMutex(),
		policies:    make(map[string][]*models.SLAPolicy),
		states:      make(map[string]map[string]*models.SLATaskState),
		breaches:    make(map[string][]models.SLABreachRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertPolicy creates or replaces a policy. An empty id creates a new
// policy; a non-empty id must reference an existing one.
func (s *Service) UpsertPolicy(projectID string, in models.SLAPolicyUpsert, now time.Time) (models.SLAPolicy, error) {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	targets := make([]models.SLATarget, len(in.Targets))
	copy(targets, in.Targets)
	for i := range targets {
		if targets[i].ID == "" {
			targets[i].ID = uuid.New().String()
		}
		if targets[i].WarningThreshold == 0 {
			targets[i].WarningThreshold = models.DefaultWarningThreshold
		}
	}

	if in.ID != "" {
		for _, p := range s.policies[projectID] {
			if p.ID != in.ID {
				continue
			}
			p.Name = in.Name
			p.Active = active
			p.Targets = targets
			p.PauseRules = append([]models.SLAClockRule(nil), in.PauseRules...)
			p.ResumeRules = append([]models.SLAClockRule(nil), in.ResumeRules...)
			p.Filter = copyFilter(in.Filter)
			p.NotifyChannels = append([]string(nil), in.NotifyChannels...)
			p.UpdatedAt = now
			s.logger.Infof("Updated SLA policy %s in project %s", p.ID, projectID)
			return copyPolicy(p), nil
		}
		return models.SLAPolicy{}, ErrPolicyNotFound
	}

	p := &models.SLAPolicy{
		ID:             uuid.New().String(),
		ProjectID:      projectID,
		Name:           in.Name,
		Active:         active,
		Targets:        targets,
		PauseRules:     append([]models.SLAClockRule(nil), in.PauseRules...),
		ResumeRules:    append([]models.SLAClockRule(nil), in.ResumeRules...),
		Filter:         copyFilter(in.Filter),
		NotifyChannels: append([]string(nil), in.NotifyChannels...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.policies[projectID] = append(s.policies[projectID], p)
	s.logger.Infof("Created SLA policy %s in project %s", p.ID, projectID)
	return copyPolicy(p), nil
}

// Policies returns detached copies of the project's policies.
func (s *Service) Policies(projectID string) []models.SLAPolicy {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	out := make([]models.SLAPolicy, 0, len(s.policies[projectID]))
	for _, p := range s.policies[projectID] {
		out = append(out, copyPolicy(p))
	}
	return out
}

// Evaluate runs every active policy against the task snapshots, updating
// per-task bookkeeping and firing breach records on first transitions.
// Only the first target of each policy is evaluated.
func (s *Service) Evaluate(projectID string, tasks []models.TaskSnapshot, now time.Time) models.SLAHealthSnapshot {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	snap := models.SLAHealthSnapshot{
		ProjectID:   projectID,
		GeneratedAt: now,
		Policies:    []models.SLAPolicyRollup{},
	}

	for _, pol := range s.policies[projectID] {
		if !pol.Active || len(pol.Targets) == 0 {
			continue
		}
		target := pol.Targets[0]
		roll := models.SLAPolicyRollup{PolicyID: pol.ID, PolicyName: pol.Name}

		for _, task := range tasks {
			if !matchesFilter(pol.Filter, task) {
				continue
			}
			if len(target.Statuses) > 0 && !containsString(target.Statuses, task.Status) {
				continue
			}

			st := s.stateFor(projectID, pol.ID, task.ID)
			status := s.evaluateTarget(projectID, pol, target, task, st, now)

			roll.TotalTasks++
			switch status {
			case models.StatusOnTrack:
				roll.OnTrack++
			case models.StatusAtRisk:
				roll.AtRisk++
			case models.StatusBreached:
				roll.Breached++
			case models.StatusMet:
				roll.Met++
			}
		}

		snap.Policies = append(snap.Policies, roll)
		snap.Totals.OnTrack += roll.OnTrack
		snap.Totals.AtRisk += roll.AtRisk
		snap.Totals.Breached += roll.Breached
		snap.Totals.Met += roll.Met
		snap.Totals.TotalTasks += roll.TotalTasks
	}

	snap.RecentBreaches = s.recentBreachesLocked(projectID)
	return snap
}

// evaluateTarget computes one target's status for one task and persists the
// updated bookkeeping. Caller holds the project lock.
func (s *Service) evaluateTarget(projectID string, pol *models.SLAPolicy, target models.SLATarget, task models.TaskSnapshot, st *models.SLATaskState, now time.Time) models.TargetStatus {
	start := task.StartedAt(now)
	var total float64
	if task.Completed() {
		total = task.CompletedAt.Sub(start).Minutes()
	} else {
		total = now.Sub(start).Minutes()
	}
	if total < 0 {
		total = 0
	}

	paused := matchesAnyRule(pol.PauseRules, task)
	if paused {
		if st.LastCheckedAt != nil {
			st.PausedMinutes += now.Sub(*st.LastCheckedAt).Minutes()
		}
	} else if matchesAnyRule(pol.ResumeRules, task) {
		st.PausedMinutes = 0
	}

	effective := total - st.PausedMinutes
	if effective < 0 {
		effective = 0
	}
	duration := float64(target.DurationMinutes)
	remaining := duration - effective

	warn := target.WarningThreshold
	if warn == 0 {
		warn = models.DefaultWarningThreshold
	}

	var status models.TargetStatus
	switch {
	case task.Completed():
		if effective <= duration {
			status = models.StatusMet
		} else {
			status = models.StatusBreached
		}
	case remaining <= 0:
		status = models.StatusBreached
	case remaining <= duration*warn:
		status = models.StatusAtRisk
	default:
		status = models.StatusOnTrack
	}

	// An overdue task can still have SLA time left, but it is never healthy.
	if status == models.StatusOnTrack && task.Overdue(now) {
		status = models.StatusAtRisk
	}

	if status == models.StatusBreached && !st.BreachedTargets[target.ID] {
		s.recordBreach(projectID, pol, target, task, effective, now)
		st.BreachedTargets[target.ID] = true
	}

	checked := now
	st.LastCheckedAt = &checked
	st.LastStatus = task.Status
	return status
}

// recordBreach appends a breach record and emits an sla_breach event routed
// to the policy's channels. Caller guarantees this is a first transition.
func (s *Service) recordBreach(projectID string, pol *models.SLAPolicy, target models.SLATarget, task models.TaskSnapshot, elapsed float64, now time.Time) {
	rec := models.SLABreachRecord{
		ID:             uuid.New().String(),
		PolicyID:       pol.ID,
		TaskID:         task.ID,
		TaskTitle:      task.Title,
		TargetID:       target.ID,
		TargetType:     target.Type,
		ElapsedMinutes: elapsed,
		OccurredAt:     now,
	}
	s.breaches[projectID] = append(s.breaches[projectID], rec)
	s.logger.Warnf("SLA breach: project=%s policy=%s task=%s target=%s elapsed=%.1fm",
		projectID, pol.ID, task.ID, target.ID, elapsed)

	if s.archiver != nil {
		go s.archiver.ArchiveBreach(projectID, rec)
	}
	if s.sink != nil {
		s.sink.EnqueueEvent(projectID, models.TriggerSLABreach, map[string]interface{}{
			"task_id":         task.ID,
			"task_title":      task.Title,
			"policy_id":       pol.ID,
			"target_id":       target.ID,
			"elapsed_minutes": elapsed,
		}, pol.NotifyChannels, now)
	}
}

// Breaches returns the project's breach log, most recent first, capped at limit
// (0 means all).
func (s *Service) Breaches(projectID string, limit int) []models.SLABreachRecord {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	log := s.breaches[projectID]
	if limit <= 0 || limit > len(log) {
		limit = len(log)
	}
	out := make([]models.SLABreachRecord, 0, limit)
	for i := len(log) - 1; i >= len(log)-limit; i-- {
		out = append(out, log[i])
	}
	return out
}

// TaskState returns a detached copy of the bookkeeping for one (policy, task)
// pair, if it exists.
func (s *Service) TaskState(projectID, policyID, taskID string) (models.SLATaskState, bool) {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	st, ok := s.states[projectID][policyID+"|"+taskID]
	if !ok {
		return models.SLATaskState{}, false
	}
	out := *st
	out.BreachedTargets = make(map[string]bool, len(st.BreachedTargets))
	for k, v := range st.BreachedTargets {
		out.BreachedTargets[k] = v
	}
	return out, true
}

// ResetProject clears all SLA state for a project: policies, task
// bookkeeping, and the breach log.
func (s *Service) ResetProject(projectID string) {
	unlock := s.locks.Lock(projectID)
	defer unlock()

	delete(s.policies, projectID)
	delete(s.states, projectID)
	delete(s.breaches, projectID)
	s.logger.Infof("Reset SLA state for project %s", projectID)
}

func (s *Service) stateFor(projectID, policyID, taskID string) *models.SLATaskState {
	byKey, ok := s.states[projectID]
	if !ok {
		byKey = make(map[string]*models.SLATaskState)
		s.states[projectID] = byKey
	}
	key := policyID + "|" + taskID
	st, ok := byKey[key]
	if !ok {
		st = &models.SLATaskState{
			PolicyID:        policyID,
			TaskID:          taskID,
			BreachedTargets: make(map[string]bool),
		}
		byKey[key] = st
	}
	return st
}

func (s *Service) recentBreachesLocked(projectID string) []models.SLABreachRecord {
	log := s.breaches[projectID]
	n := s.recentLimit
	if n > len(log) {
		n = len(log)
	}
	out := make([]models.SLABreachRecord, 0, n)
	for i := len(log) - 1; i >= len(log)-n; i-- {
		out = append(out, log[i])
	}
	return out
}

func copyPolicy(p *models.SLAPolicy) models.SLAPolicy {
	out := *p
	out.Targets = append([]models.SLATarget(nil), p.Targets...)
	out.PauseRules = append([]models.SLAClockRule(nil), p.PauseRules...)
	out.ResumeRules = append([]models.SLAClockRule(nil), p.ResumeRules...)
	out.Filter = copyFilter(p.Filter)
	out.NotifyChannels = append([]string(nil), p.NotifyChannels...)
	return out
}

func copyFilter(f *models.TaskFilter) *models.TaskFilter {
	if f == nil {
		return nil
	}
	out := &models.TaskFilter{
		Priorities: append([]string(nil), f.Priorities...),
		Statuses:   append([]string(nil), f.Statuses...),
	}
	if f.CustomFields != nil {
		out.CustomFields = make(map[string]interface{}, len(f.CustomFields))
		for k, v := range f.CustomFields {
			out.CustomFields[k] = v
		}
	}
	return out
}
