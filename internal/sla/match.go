package sla

import (
	"fmt"

	"sla-engine/internal/models"
)

// matchesFilter reports whether a task satisfies a policy's match filter.
// All present constraints are ANDed; a nil filter matches everything.
func matchesFilter(f *models.TaskFilter, task models.TaskSnapshot) bool {
	if f == nil {
		return true
	}
	if len(f.Priorities) > 0 && !containsString(f.Priorities, task.Priority) {
		return false
	}
	if len(f.Statuses) > 0 && !containsString(f.Statuses, task.Status) {
		return false
	}
	for field, want := range f.CustomFields {
		got, ok := task.CustomFields[field]
		if !ok {
			return false
		}
		if !valueMatches(want, got) {
			return false
		}
	}
	return true
}

// valueMatches compares a filter value against a task custom-field value:
// list values mean membership, scalars mean equality.
func valueMatches(want, got interface{}) bool {
	switch w := want.(type) {
	case []interface{}:
		for _, v := range w {
			if fmt.Sprint(v) == fmt.Sprint(got) {
				return true
			}
		}
		return false
	case []string:
		return containsString(w, fmt.Sprint(got))
	default:
		return fmt.Sprint(want) == fmt.Sprint(got)
	}
}

// matchesAnyRule reports whether any clock rule holds for the task.
func matchesAnyRule(rules []models.SLAClockRule, task models.TaskSnapshot) bool {
	for _, r := range rules {
		if ruleMatches(r, task) {
			return true
		}
	}
	return false
}

func ruleMatches(rule models.SLAClockRule, task models.TaskSnapshot) bool {
	switch rule.Kind {
	case models.RuleBlocked:
		return task.Blocked
	case models.RuleStatus:
		return containsString(rule.Statuses, task.Status)
	case models.RuleCustomField:
		got, ok := task.CustomFields[rule.Field]
		if !ok {
			return false
		}
		return containsString(rule.Values, fmt.Sprint(got))
	default:
		return false
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
