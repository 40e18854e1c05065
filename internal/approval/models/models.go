package models

import (
	"cmp"
	"slices"
	"time"

	id "intake/pkg/domain"
)

// ApprovalStep is one stage a service request passes through before it is approved.
type ApprovalStep struct {
	ID               id.ApprovalStepID   `json:"id"`
	ServiceRequestID id.ServiceRequestID `json:"service_request_id"`
	Name             string              `json:"name"`
	Approver         string              `json:"approver,omitempty"`
	Sequence         int                 `json:"sequence"`
	Completed        bool                `json:"completed"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
}

// Complete marks the step done at now. Completing a finished step keeps the
// original completion time.
func (s *ApprovalStep) Complete(now time.Time) {
	if s.Completed {
		return
	}
	s.Completed = true
	s.CompletedAt = &now
}

type StepState string

const (
	StateComplete StepState = "complete"
	StateCurrent  StepState = "current"
	StatePending  StepState = "pending"
)

// Display labels, icons and variants of the timeline.
const (
	LabelCompleted  = "Completed"
	LabelInProgress = "In Progress"
	LabelPending    = "Pending"

	IconSuccess = "utility:success"
	IconClock   = "utility:clock"

	VariantSuccess = "success"
	VariantWarning = "warning"
	VariantDefault = "default"
)

// TimelineEntry is an approval step decorated for display.
type TimelineEntry struct {
	ApprovalStep
	State       StepState `json:"state"`
	StatusLabel string    `json:"status_label"`
	Icon        string    `json:"icon"`
	IconVariant string    `json:"icon_variant"`
}

// BuildTimeline orders steps by sequence and derives each entry's display state.
// The first incomplete step in that order is the current one; every later
// incomplete step is pending. The input slice is not modified.
func BuildTimeline(steps []ApprovalStep) []TimelineEntry {
	sorted := slices.Clone(steps)
	slices.SortStableFunc(sorted, func(a, b ApprovalStep) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	entries := make([]TimelineEntry, 0, len(sorted))
	currentFound := false
	for _, step := range sorted {
		entry := TimelineEntry{ApprovalStep: step}
		switch {
		case step.Completed:
			entry.State = StateComplete
			entry.StatusLabel = LabelCompleted
			entry.Icon = IconSuccess
			entry.IconVariant = VariantSuccess
		case !currentFound:
			currentFound = true
			entry.State = StateCurrent
			entry.StatusLabel = LabelInProgress
			entry.Icon = IconClock
			entry.IconVariant = VariantWarning
		default:
			entry.State = StatePending
			entry.StatusLabel = LabelPending
			entry.Icon = IconClock
			entry.IconVariant = VariantDefault
		}
		entries = append(entries, entry)
	}
	return entries
}

// Current returns the step in progress, or false when every step is complete.
func Current(entries []TimelineEntry) (TimelineEntry, bool) {
	for _, e := range entries {
		if e.State == StateCurrent {
			return e, true
		}
	}
	return TimelineEntry{}, false
}
