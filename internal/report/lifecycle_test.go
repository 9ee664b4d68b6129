package report_test

import (
	"errors"
	"testing"
	"time"

	"github.com/postureboard/postureboard/internal/identity"
	"github.com/postureboard/postureboard/internal/report"
)

func admin() report.Actor   { return report.Actor{ID: "admin-1", Role: identity.RoleAdmin} }
func analyst() report.Actor { return report.Actor{ID: "analyst-1", Role: identity.RoleAnalyst} }
func viewer() report.Actor  { return report.Actor{ID: "viewer-1", Role: identity.RoleViewer} }

func TestLinearHappyPath(t *testing.T) {
	r := &report.Report{Status: report.StatusNew}

	if err := report.Transition(r, report.StatusReviewed, analyst()); err != nil {
		t.Fatalf("new → reviewed: %v", err)
	}
	if err := report.Transition(r, report.StatusAnalystReady, analyst()); err != nil {
		t.Fatalf("reviewed → analyst_ready: %v", err)
	}
	if err := report.Transition(r, report.StatusManagerReady, admin()); err != nil {
		t.Fatalf("analyst_ready → manager_ready: %v", err)
	}
	if r.ApprovedBy != "admin-1" {
		t.Errorf("ApprovedBy = %q, want admin-1", r.ApprovedBy)
	}
	if err := report.MarkSent(r, time.Now()); err != nil {
		t.Fatalf("manager_ready → sent: %v", err)
	}
	if r.SentAt == nil {
		t.Error("SentAt must be stamped on sent")
	}
}

func TestInsufficientRoleIsAuthorizationError(t *testing.T) {
	r := &report.Report{Status: report.StatusAnalystReady}

	err := report.Transition(r, report.StatusManagerReady, analyst())
	if !errors.Is(err, report.ErrForbidden) {
		t.Errorf("analyst → manager_ready: err = %v, want ErrForbidden", err)
	}
	if r.Status != report.StatusAnalystReady {
		t.Error("failed transition must not mutate status")
	}
}

func TestViewerCannotTransitionAtAll(t *testing.T) {
	r := &report.Report{Status: report.StatusNew}
	if err := report.Transition(r, report.StatusReviewed, viewer()); !errors.Is(err, report.ErrForbidden) {
		t.Errorf("viewer transition: err = %v, want ErrForbidden", err)
	}
}

func TestSkippingAStateIsPreconditionError(t *testing.T) {
	// Guards check both role and prior state: even an admin cannot jump
	// reviewed → manager_ready past analyst_ready.
	r := &report.Report{Status: report.StatusReviewed}
	err := report.Transition(r, report.StatusManagerReady, admin())
	if !errors.Is(err, report.ErrInvalidTransition) {
		t.Errorf("reviewed → manager_ready: err = %v, want ErrInvalidTransition", err)
	}
}

func TestRoleCheckedBeforeState(t *testing.T) {
	// Wrong role AND wrong state surfaces the authorization error.
	r := &report.Report{Status: report.StatusNew}
	err := report.Transition(r, report.StatusManagerReady, analyst())
	if !errors.Is(err, report.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestNoBackwardTransitions(t *testing.T) {
	r := &report.Report{Status: report.StatusManagerReady}
	if err := report.Transition(r, report.StatusReviewed, admin()); !errors.Is(err, report.ErrInvalidTransition) {
		t.Errorf("manager_ready → reviewed: err = %v, want ErrInvalidTransition", err)
	}
}

func TestSentUnreachableViaTransition(t *testing.T) {
	r := &report.Report{Status: report.StatusManagerReady}
	if err := report.Transition(r, report.StatusSent, admin()); !errors.Is(err, report.ErrInvalidTransition) {
		t.Errorf("Transition to sent: err = %v, want ErrInvalidTransition (distribution only)", err)
	}
}

func TestMarkSentRequiresManagerReady(t *testing.T) {
	for _, from := range []report.Status{
		report.StatusNew, report.StatusReviewed, report.StatusAnalystReady, report.StatusSent,
	} {
		r := &report.Report{Status: from}
		if err := report.MarkSent(r, time.Now()); !errors.Is(err, report.ErrInvalidTransition) {
			t.Errorf("MarkSent from %s: err = %v, want ErrInvalidTransition", from, err)
		}
	}
}

func TestFieldEditRoles(t *testing.T) {
	if !report.CanEditFields(identity.RoleAdmin) || !report.CanEditFields(identity.RoleAnalyst) {
		t.Error("admin and analyst must be able to edit free-text fields")
	}
	if report.CanEditFields(identity.RoleManager) || report.CanEditFields(identity.RoleViewer) {
		t.Error("manager and viewer must not edit free-text fields")
	}
}
