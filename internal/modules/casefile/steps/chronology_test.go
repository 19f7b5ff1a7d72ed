package steps

import (
	"testing"
	"time"

	"gorm.io/datatypes"

	types "github.com/demandly/casefile-backend/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func eventOn(date time.Time) *types.MedicalEvent {
	return &types.MedicalEvent{DateOfService: date}
}

func TestDaysBetween(t *testing.T) {
	if got := daysBetween(day(2024, 1, 1), day(2024, 2, 1)); got != 31 {
		t.Fatalf("Jan 1 to Feb 1 = %d days, want 31", got)
	}
	if got := daysBetween(day(2024, 1, 1), day(2024, 1, 31)); got != 30 {
		t.Fatalf("Jan 1 to Jan 31 = %d days, want 30", got)
	}
	if got := daysBetween(day(2024, 3, 5), day(2024, 3, 5)); got != 0 {
		t.Fatalf("same day = %d days, want 0", got)
	}
}

func TestDetectTreatmentGaps_ThresholdBoundary(t *testing.T) {
	// 30 days apart: not a gap. The threshold is strictly greater-than.
	events := []*types.MedicalEvent{
		eventOn(day(2024, 1, 1)),
		eventOn(day(2024, 1, 31)),
	}
	if gaps := DetectTreatmentGaps(events, GapThresholdDays); len(gaps) != 0 {
		t.Fatalf("30-day spacing must not be flagged, got %+v", gaps)
	}

	// 31 days apart: one gap.
	events = []*types.MedicalEvent{
		eventOn(day(2024, 1, 1)),
		eventOn(day(2024, 2, 1)),
	}
	gaps := DetectTreatmentGaps(events, GapThresholdDays)
	if len(gaps) != 1 {
		t.Fatalf("31-day spacing must be one gap, got %+v", gaps)
	}
	g := gaps[0]
	if g.StartDate != "2024-01-01" || g.EndDate != "2024-02-01" || g.DurationDays != 31 {
		t.Fatalf("gap = %+v", g)
	}
}

func TestDetectTreatmentGaps_MultipleGaps(t *testing.T) {
	events := []*types.MedicalEvent{
		eventOn(day(2024, 1, 1)),
		eventOn(day(2024, 3, 1)),
		eventOn(day(2024, 3, 15)),
		eventOn(day(2024, 6, 1)),
	}
	gaps := DetectTreatmentGaps(events, GapThresholdDays)
	if len(gaps) != 2 {
		t.Fatalf("want 2 gaps, got %+v", gaps)
	}
}

func TestDetectTreatmentGaps_FewEvents(t *testing.T) {
	if gaps := DetectTreatmentGaps(nil, GapThresholdDays); len(gaps) != 0 {
		t.Fatalf("no events, no gaps: %+v", gaps)
	}
	if gaps := DetectTreatmentGaps([]*types.MedicalEvent{eventOn(day(2024, 1, 1))}, GapThresholdDays); len(gaps) != 0 {
		t.Fatalf("single event, no gaps: %+v", gaps)
	}
}

func TestScanMMI_LatestDeterminationWins(t *testing.T) {
	early := eventOn(day(2023, 2, 1))
	early.Prognosis = "Patient has reached maximum medical improvement."
	middle := eventOn(day(2023, 5, 1))
	late := eventOn(day(2023, 8, 1))
	late.Assessment = "Considered permanent and stationary at this time."
	late.PermanencyNotes = "P&S per AME evaluation."

	reached, date, notes := ScanMMI([]*types.MedicalEvent{early, middle, late})
	if !reached {
		t.Fatalf("MMI should be detected")
	}
	if date == nil || !date.Equal(day(2023, 8, 1)) {
		t.Fatalf("latest determination must win, got %v", date)
	}
	if notes != "P&S per AME evaluation." {
		t.Fatalf("notes = %q", notes)
	}
}

func TestScanMMI_NoKeywords(t *testing.T) {
	ev := eventOn(day(2023, 2, 1))
	ev.Prognosis = "Continuing physical therapy, improvement expected."
	reached, date, _ := ScanMMI([]*types.MedicalEvent{ev})
	if reached || date != nil {
		t.Fatalf("no keyword, no MMI")
	}
}

func TestBuildPainHistory(t *testing.T) {
	a := eventOn(day(2023, 1, 10))
	a.ProviderName = "Dr. Smith"
	a.VitalSigns = datatypes.JSON(`{"pain_score": 7, "notes": "worse in morning"}`)
	b := eventOn(day(2023, 2, 10))
	b.VitalSigns = datatypes.JSON(`{"blood_pressure": "120/80"}`)
	c := eventOn(day(2023, 3, 10))
	c.FacilityName = "Mercy PT"
	c.VitalSigns = datatypes.JSON(`{"pain_score": 4}`)

	points := BuildPainHistory([]*types.MedicalEvent{a, b, c})
	if len(points) != 2 {
		t.Fatalf("only events with a pain score qualify, got %+v", points)
	}
	if points[0].Score != 7 || points[0].Provider != "Dr. Smith" || points[0].Notes != "worse in morning" {
		t.Fatalf("first point = %+v", points[0])
	}
	if points[1].Provider != "Mercy PT" {
		t.Fatalf("facility should stand in for a missing provider: %+v", points[1])
	}
}

func TestBuildProviderSummaries_GroupsCaseInsensitive(t *testing.T) {
	a := eventOn(day(2023, 1, 1))
	a.ProviderName = "Dr. Smith"
	a.TotalCharge = 100
	b := eventOn(day(2023, 2, 1))
	b.ProviderName = "DR. SMITH"
	b.TotalCharge = 50
	c := eventOn(day(2023, 3, 1))
	c.FacilityName = "Mercy General"

	out := BuildProviderSummaries([]*types.MedicalEvent{a, b, c})
	if len(out) != 2 {
		t.Fatalf("want 2 providers, got %+v", out)
	}
	if out[0].Name != "Dr. Smith" || out[0].VisitCount != 2 || out[0].TotalCharges != 150 {
		t.Fatalf("top provider = %+v", out[0])
	}
	if out[1].Name != "Mercy General" || out[1].VisitCount != 1 {
		t.Fatalf("second provider = %+v", out[1])
	}
}

func TestBuildDiagnosisSummaries(t *testing.T) {
	a := eventOn(day(2023, 1, 1))
	a.Diagnoses = datatypes.JSON(`[{"diagnosis_name": "Lumbar Strain"}, {"diagnosis_name": "Sciatica"}]`)
	b := eventOn(day(2023, 4, 1))
	b.Diagnoses = datatypes.JSON(`[{"diagnosis_name": "lumbar strain"}]`)

	out := BuildDiagnosisSummaries([]*types.MedicalEvent{a, b})
	if len(out) != 2 {
		t.Fatalf("want 2 diagnoses, got %+v", out)
	}
	top := out[0]
	if top.Name != "Lumbar Strain" || top.MentionCount != 2 {
		t.Fatalf("top diagnosis = %+v", top)
	}
	if top.FirstSeen != "2023-01-01" || top.LastSeen != "2023-04-01" {
		t.Fatalf("first/last seen = %+v", top)
	}
}

func TestBuildBodyPartSummaries(t *testing.T) {
	a := eventOn(day(2023, 1, 1))
	a.Diagnoses = datatypes.JSON(`[{"diagnosis_name": "disc herniation", "body_part": "lumbar spine"}]`)
	a.TreatmentsProcedures = datatypes.JSON(`["lumbar spine injection", "ice therapy"]`)
	b := eventOn(day(2023, 2, 1))
	b.Diagnoses = datatypes.JSON(`[{"diagnosis_name": "radiculopathy", "body_part": "lumbar spine"}]`)

	out := BuildBodyPartSummaries([]*types.MedicalEvent{a, b})
	if len(out) != 1 {
		t.Fatalf("want 1 body part, got %+v", out)
	}
	bp := out[0]
	if bp.BodyPart != "lumbar spine" || len(bp.Diagnoses) != 2 {
		t.Fatalf("summary = %+v", bp)
	}
	if len(bp.InferredTreatments) != 1 || bp.InferredTreatments[0] != "lumbar spine injection" {
		t.Fatalf("inferred treatments must only include name matches: %+v", bp.InferredTreatments)
	}
}
