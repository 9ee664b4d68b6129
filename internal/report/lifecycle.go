package report

import (
	"errors"
	"time"

	"github.com/postureboard/postureboard/internal/identity"
)

// ErrNotFound is returned when a report lookup finds no record.
var ErrNotFound = errors.New("report not found")

// ErrDuplicatePeriod is returned when a report already exists for the
// (tenant, quarter, year) and no force refresh was requested.
var ErrDuplicatePeriod = errors.New("report already exists for period")

// ErrForbidden is returned when the caller's role is insufficient for the
// requested transition or edit.
var ErrForbidden = errors.New("role not permitted")

// ErrInvalidTransition is returned when a transition is requested from the
// wrong prior state.
var ErrInvalidTransition = errors.New("report is not in the required state")

// ErrSentImmutable is returned when a force refresh targets a period whose
// report has already been distributed. Sent reports are immutable history.
var ErrSentImmutable = errors.New("report already sent for period")

// Actor identifies who is requesting a transition or edit.
type Actor struct {
	ID   string
	Role identity.Role
}

// transitionRule names the required prior state and the roles allowed to
// perform a transition.
type transitionRule struct {
	from  Status
	roles []identity.Role
}

// The lifecycle is strictly linear. A transition requires BOTH the exact
// prior state and a sufficient role; there is deliberately no reopen path.
// StatusSent is absent here: it is reachable only through MarkSent, which
// the distribution service calls after every recipient send succeeded.
var transitions = map[Status]transitionRule{
	StatusReviewed:     {from: StatusNew, roles: []identity.Role{identity.RoleAdmin, identity.RoleAnalyst}},
	StatusAnalystReady: {from: StatusReviewed, roles: []identity.Role{identity.RoleAdmin, identity.RoleAnalyst}},
	StatusManagerReady: {from: StatusAnalystReady, roles: []identity.Role{identity.RoleAdmin}},
}

// Transition advances the report to target, enforcing the role gate before
// the state gate: an under-privileged caller gets ErrForbidden even when the
// report is also in the wrong state. Reaching manager_ready stamps the
// approver's identity.
func Transition(r *Report, target Status, actor Actor) error {
	rule, ok := transitions[target]
	if !ok {
		return ErrInvalidTransition
	}
	if !actor.Role.AnyOf(rule.roles...) {
		return ErrForbidden
	}
	if r.Status != rule.from {
		return ErrInvalidTransition
	}

	r.Status = target
	if target == StatusManagerReady {
		r.ApprovedBy = actor.ID
	}
	return nil
}

// MarkSent moves a fully distributed report to sent and stamps SentAt.
// Only the distribution service may call this, and only from manager_ready.
func MarkSent(r *Report, at time.Time) error {
	if r.Status != StatusManagerReady {
		return ErrInvalidTransition
	}
	r.Status = StatusSent
	t := at.UTC()
	r.SentAt = &t
	return nil
}

// CanEditFields reports whether the role may update the report's free-text
// fields. Field edits are independent of status and never change it.
func CanEditFields(role identity.Role) bool {
	return role.AnyOf(identity.RoleAdmin, identity.RoleAnalyst)
}
