package render_test

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/postureboard/postureboard/internal/report"
	"github.com/postureboard/postureboard/internal/report/render"
)

func sampleReport() *report.Report {
	start, end := report.Period(2, 2026)
	return &report.Report{
		ID:           uuid.MustParse("1b671a64-40d5-491e-99b0-da01ff1f3341"),
		TenantID:     uuid.MustParse("9b2e61f0-0b37-4e24-9cdd-3a53aa1bb0e8"),
		Quarter:      2,
		Year:         2026,
		PeriodStart:  start,
		PeriodEnd:    end,
		IdentityRisk: 90,
		TrainingRisk: 100,
		DeviceRisk:   40,
		CloudRisk:    25,
		ThreatRisk:   75,
		OverallRisk:  69,
		Metrics: report.SecurityMetrics{
			Threat: report.ThreatMetrics{TotalThreats: 6},
		},
		Summary:         "Overall posture improved over the quarter.",
		Recommendations: "Enforce MFA for the remaining 17 accounts and reduce global administrators to two.",
		AnalystComments: "The endpoint fleet is mostly compliant. A long free-text comment exercises word wrapping across multiple lines in the rendered document so the layout stays stable.",
		Status:          report.StatusManagerReady,
	}
}

func TestRenderProducesPDF(t *testing.T) {
	out, err := render.Render(sampleReport())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("rendered document is empty")
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Errorf("output does not start with a PDF header: %q", out[:8])
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	rep := sampleReport()

	first, err := render.Render(rep)
	if err != nil {
		t.Fatalf("first render: %v", err)
	}
	second, err := render.Render(rep)
	if err != nil {
		t.Fatalf("second render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("re-rendering the same report must produce identical bytes")
	}
}

func TestRenderToleratesEmptyComments(t *testing.T) {
	rep := sampleReport()
	rep.Summary = ""
	rep.Recommendations = ""
	rep.AnalystComments = ""

	if _, err := render.Render(rep); err != nil {
		t.Fatalf("Render with empty sections: %v", err)
	}
}

func TestFilename(t *testing.T) {
	if got := render.Filename(sampleReport()); got != "security-report-2026-Q2.pdf" {
		t.Errorf("Filename = %q", got)
	}
}
