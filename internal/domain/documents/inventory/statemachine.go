package inventory

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusValidated Status = "validated"
	StatusDone      Status = "done"
	StatusCanceled  Status = "canceled"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusDraft, StatusValidated, StatusDone, StatusCanceled}
}

// Operation names a workflow step for state gating and error reporting.
type Operation string

const (
	OpEdit      Operation = "edit"
	OpSave      Operation = "save"
	OpValidate  Operation = "validate"
	OpConfirm   Operation = "confirm"
	OpCancel    Operation = "cancel"
	OpDelete    Operation = "delete"
	OpActualize Operation = "actualize"
)

// forward lists the transitions an operation may request. Demotion to draft
// is not here: only demote can perform it.
var forward = map[Status]map[Status]bool{
	StatusDraft: {
		StatusValidated: true,
		StatusCanceled:  true,
	},
	StatusValidated: {
		StatusValidated: true,
		StatusDone:      true,
		StatusCanceled:  true,
	},
}

// CanTransitionTo reports whether to is reachable from s in one step.
func (s Status) CanTransitionTo(to Status) bool {
	return forward[s][to]
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusCanceled
}

// Editable reports whether rows and header may still change.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusValidated
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusValidated, StatusDone, StatusCanceled:
		return true
	}
	return false
}

// Require fails with InvalidStateError unless the session is editable.
func (s *Session) Require(op Operation) error {
	if !s.Status.Editable() {
		return NewInvalidState(s.Status, op)
	}
	return nil
}

// transition moves the session to the target of op.
func (s *Session) transition(op Operation, to Status, at time.Time) error {
	if !s.Status.CanTransitionTo(to) {
		return NewInvalidState(s.Status, op)
	}
	s.Status = to
	switch to {
	case StatusValidated:
		s.ValidatedAt = &at
	case StatusDone:
		s.ConfirmedAt = &at
	}
	return nil
}

// Validate marks the session validated. Re-validation is allowed.
func (s *Session) Validate(at time.Time) error {
	return s.transition(OpValidate, StatusValidated, at)
}

// Confirm marks the session done.
func (s *Session) Confirm(at time.Time) error {
	if s.Status != StatusValidated {
		return NewInvalidState(s.Status, OpConfirm)
	}
	return s.transition(OpConfirm, StatusDone, at)
}

// Cancel moves the session to its terminal canceled state.
func (s *Session) Cancel(at time.Time) error {
	return s.transition(OpCancel, StatusCanceled, at)
}

// demote rolls a validated session back to draft after its rows changed.
// It reports whether a demotion happened.
func (s *Session) demote() bool {
	if s.Status != StatusValidated {
		return false
	}
	s.Status = StatusDraft
	s.ValidatedAt = nil
	return true
}
