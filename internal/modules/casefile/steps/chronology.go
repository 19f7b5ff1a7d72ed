package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/demandly/casefile-backend/internal/data/repos"
	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/logger"
	"github.com/demandly/casefile-backend/internal/platform/openai"
)

// GapThresholdDays is the span between consecutive encounters above which a
// treatment gap is recorded.
const GapThresholdDays = 30

const dateLayout = "2006-01-02"

// Fallback text when prose generation fails; the chronology still persists
// with every computed field intact.
const (
	narrativeUnavailable        = "Narrative generation failed. Regenerate the chronology to retry."
	executiveSummaryUnavailable = "Executive summary generation failed. Regenerate the chronology to retry."
)

type ChronologyDeps struct {
	Log    *logger.Logger
	Oracle openai.Client
	Cases  repos.CaseRepo
	Events repos.MedicalEventRepo
	Chrons repos.MedicalChronologyRepo
}

type TreatmentGap struct {
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	DurationDays int    `json:"durationDays"`
	Explanation  string `json:"explanation,omitempty"`
	Impact       string `json:"impact,omitempty"`
}

type PainPoint struct {
	Date     string  `json:"date"`
	Score    float64 `json:"score"`
	Provider string  `json:"provider"`
	Notes    string  `json:"notes,omitempty"`
}

type ProviderSummary struct {
	Name         string  `json:"name"`
	VisitCount   int     `json:"visitCount"`
	TotalCharges float64 `json:"totalCharges"`
}

type DiagnosisSummary struct {
	Name         string `json:"name"`
	FirstSeen    string `json:"firstSeen"`
	LastSeen     string `json:"lastSeen"`
	MentionCount int    `json:"mentionCount"`
}

// BodyPartSummary groups diagnoses by stated body part. InferredTreatments
// is a substring heuristic, not a verified clinical link; consumers must not
// read it as one.
type BodyPartSummary struct {
	BodyPart           string   `json:"bodyPart"`
	Diagnoses          []string `json:"diagnoses"`
	InferredTreatments []string `json:"inferredTreatments"`
}

// BuildChronology materializes the case-wide chronology from the current set
// of medical events: one row per case, fully replaced on regeneration.
func BuildChronology(ctx context.Context, deps ChronologyDeps, caseID uuid.UUID) error {
	if deps.Log == nil || deps.Oracle == nil || deps.Cases == nil || deps.Events == nil || deps.Chrons == nil {
		return fmt.Errorf("chronology: missing deps")
	}
	log := deps.Log.With("step", "BuildChronology", "case_id", caseID)
	dbc := dbctx.Context{Ctx: ctx}

	events, err := deps.Events.GetByCaseID(dbc, caseID)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return fmt.Errorf("chronology: case has no medical events")
	}

	caseRec, err := deps.Cases.GetByID(dbc, caseID)
	if err != nil {
		return fmt.Errorf("load case: %w", err)
	}

	first := events[0].DateOfService
	last := events[len(events)-1].DateOfService

	var totalCost float64
	for _, ev := range events {
		totalCost += ev.TotalCharge
	}

	gaps := DetectTreatmentGaps(events, GapThresholdDays)
	gaps = enrichGaps(ctx, deps, log, caseRec, gaps)

	painHistory := BuildPainHistory(events)
	providerSummaries := BuildProviderSummaries(events)
	diagnosisSummaries := BuildDiagnosisSummaries(events)
	bodyPartSummaries := BuildBodyPartSummaries(events)
	mmiReached, mmiDate, mmiNotes := ScanMMI(events)

	seed := chronologySeed{
		ClientName:    caseRec.ClientName,
		DurationDays:  daysBetween(first, last),
		TotalVisits:   len(events),
		TotalCost:     totalCost,
		FirstVisit:    first.Format(dateLayout),
		LastVisit:     last.Format(dateLayout),
		TopDiagnoses:  topDiagnoses(diagnosisSummaries, 5),
		TopProviders:  topProviders(providerSummaries, 5),
		TreatmentGaps: gaps,
	}
	if caseRec.IncidentDate != nil {
		seed.IncidentDate = caseRec.IncidentDate.Format(dateLayout)
	}

	narrative := narrativeUnavailable
	narSys, narUser := promptNarrative(seed)
	if text, err := deps.Oracle.GenerateText(ctx, narSys, narUser); err != nil {
		log.Warn("Narrative generation failed", "error", err)
	} else {
		narrative = text
	}

	executive := executiveSummaryUnavailable
	exSys, exUser := promptExecutiveSummary(seed)
	if text, err := deps.Oracle.GenerateText(ctx, exSys, exUser); err != nil {
		log.Warn("Executive summary generation failed", "error", err)
	} else {
		executive = text
	}

	chron := &types.MedicalChronology{
		CaseID:                caseID,
		TreatmentDurationDays: daysBetween(first, last),
		TotalVisits:           len(events),
		TotalMedicalCost:      totalCost,
		FirstVisitDate:        &first,
		LastVisitDate:         &last,
		ExecutiveSummary:      executive,
		FullNarrative:         narrative,
		MMIReached:            mmiReached,
		MMINotes:              mmiNotes,
	}
	if mmiReached {
		chron.MMIDate = mmiDate
	}

	chron.TreatmentGaps = marshalJSONField(gaps)
	chron.PainHistory = marshalJSONField(painHistory)
	chron.ProviderSummaries = marshalJSONField(providerSummaries)
	chron.DiagnosisSummaries = marshalJSONField(diagnosisSummaries)
	chron.BodyPartSummaries = marshalJSONField(bodyPartSummaries)

	if _, err := deps.Chrons.Upsert(dbc, chron); err != nil {
		return fmt.Errorf("upsert chronology: %w", err)
	}

	log.Info("Chronology generated",
		"visits", len(events),
		"gaps", len(gaps),
		"mmi_reached", mmiReached,
	)
	return nil
}

// DetectTreatmentGaps walks consecutive event pairs and records every span
// exceeding thresholdDays. Events must already be ordered by date ascending.
func DetectTreatmentGaps(events []*types.MedicalEvent, thresholdDays int) []TreatmentGap {
	gaps := []TreatmentGap{}
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		days := daysBetween(prev.DateOfService, cur.DateOfService)
		if days > thresholdDays {
			gaps = append(gaps, TreatmentGap{
				StartDate:    prev.DateOfService.Format(dateLayout),
				EndDate:      cur.DateOfService.Format(dateLayout),
				DurationDays: days,
			})
		}
	}
	return gaps
}

// enrichGaps asks the oracle for favorably-framed explanations and impact
// ratings. Best-effort: any failure returns the plain gap list unchanged.
func enrichGaps(ctx context.Context, deps ChronologyDeps, log *logger.Logger, caseRec *types.Case, gaps []TreatmentGap) []TreatmentGap {
	if len(gaps) == 0 {
		return gaps
	}

	incident := ""
	if caseRec.IncidentDate != nil {
		incident = caseRec.IncidentDate.Format(dateLayout)
	}
	system, user := promptEnrichGaps(caseRec.ClientName, incident, gaps)
	raw, err := deps.Oracle.GenerateText(ctx, system, user)
	if err != nil {
		log.Warn("Gap enrichment failed, keeping plain gaps", "error", err)
		return gaps
	}
	objs, err := ExtractJSONArray(raw)
	if err != nil {
		log.Warn("Gap enrichment output unparseable, keeping plain gaps", "error", err)
		return gaps
	}

	for i := range gaps {
		if i >= len(objs) {
			break
		}
		gaps[i].Explanation = stringValue(objs[i]["explanation"])
		switch impact := strings.ToLower(stringValue(objs[i]["impact"])); impact {
		case "low", "medium", "high":
			gaps[i].Impact = impact
		}
	}
	return gaps
}

// BuildPainHistory emits one point per event carrying a pain score, in event
// order. No interpolation.
func BuildPainHistory(events []*types.MedicalEvent) []PainPoint {
	points := []PainPoint{}
	for _, ev := range events {
		vitals := decodeJSONObject(ev.VitalSigns)
		if vitals == nil {
			continue
		}
		score, ok := vitals["pain_score"]
		if !ok || score == nil {
			continue
		}
		provider := ev.ProviderName
		if provider == "" {
			provider = ev.FacilityName
		}
		points = append(points, PainPoint{
			Date:     ev.DateOfService.Format(dateLayout),
			Score:    floatValue(score),
			Provider: provider,
			Notes:    stringValue(vitals["notes"]),
		})
	}
	return points
}

// BuildProviderSummaries groups events by case-insensitive
// provider-or-facility name, sorted by visit count descending.
func BuildProviderSummaries(events []*types.MedicalEvent) []ProviderSummary {
	type acc struct {
		display string
		visits  int
		charges float64
		seq     int
	}
	byName := map[string]*acc{}

	for _, ev := range events {
		name := strings.TrimSpace(ev.ProviderName)
		if name == "" {
			name = strings.TrimSpace(ev.FacilityName)
		}
		if name == "" {
			name = unknownToken
		}
		key := strings.ToLower(name)
		a, ok := byName[key]
		if !ok {
			a = &acc{display: name, seq: len(byName)}
			byName[key] = a
		}
		a.visits++
		a.charges += ev.TotalCharge
	}

	accs := make([]*acc, 0, len(byName))
	for _, a := range byName {
		accs = append(accs, a)
	}
	sort.SliceStable(accs, func(i, j int) bool {
		if accs[i].visits != accs[j].visits {
			return accs[i].visits > accs[j].visits
		}
		return accs[i].seq < accs[j].seq
	})

	out := make([]ProviderSummary, 0, len(accs))
	for _, a := range accs {
		out = append(out, ProviderSummary{Name: a.display, VisitCount: a.visits, TotalCharges: a.charges})
	}
	return out
}

// BuildDiagnosisSummaries groups diagnoses by case-insensitive name with
// first/last seen dates and mention counts, sorted by mentions descending.
func BuildDiagnosisSummaries(events []*types.MedicalEvent) []DiagnosisSummary {
	type acc struct {
		display  string
		first    time.Time
		last     time.Time
		mentions int
		seq      int
	}
	byName := map[string]*acc{}

	for _, ev := range events {
		for _, d := range decodeJSONArray(ev.Diagnoses) {
			name := strings.TrimSpace(stringValue(d["diagnosis_name"]))
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			a, ok := byName[key]
			if !ok {
				a = &acc{display: name, first: ev.DateOfService, last: ev.DateOfService, seq: len(byName)}
				byName[key] = a
			}
			a.mentions++
			if ev.DateOfService.Before(a.first) {
				a.first = ev.DateOfService
			}
			if ev.DateOfService.After(a.last) {
				a.last = ev.DateOfService
			}
		}
	}

	accs := make([]*acc, 0, len(byName))
	for _, a := range byName {
		accs = append(accs, a)
	}
	sort.SliceStable(accs, func(i, j int) bool {
		if accs[i].mentions != accs[j].mentions {
			return accs[i].mentions > accs[j].mentions
		}
		return accs[i].seq < accs[j].seq
	})

	out := make([]DiagnosisSummary, 0, len(accs))
	for _, a := range accs {
		out = append(out, DiagnosisSummary{
			Name:         a.display,
			FirstSeen:    a.first.Format(dateLayout),
			LastSeen:     a.last.Format(dateLayout),
			MentionCount: a.mentions,
		})
	}
	return out
}

// BuildBodyPartSummaries groups diagnoses by stated body part and attaches,
// per group, every treatment string that contains the body-part name as a
// case-insensitive substring. Heuristic association only.
func BuildBodyPartSummaries(events []*types.MedicalEvent) []BodyPartSummary {
	type acc struct {
		display   string
		diagnoses *stringSet
		seq       int
	}
	byPart := map[string]*acc{}

	var allTreatments []string
	treatmentSeen := map[string]bool{}

	for _, ev := range events {
		for _, d := range decodeJSONArray(ev.Diagnoses) {
			part := strings.TrimSpace(stringValue(d["body_part"]))
			if part == "" {
				continue
			}
			key := strings.ToLower(part)
			a, ok := byPart[key]
			if !ok {
				a = &acc{display: part, diagnoses: newStringSet(), seq: len(byPart)}
				byPart[key] = a
			}
			a.diagnoses.add(strings.TrimSpace(stringValue(d["diagnosis_name"])))
		}

		var treatments []string
		if err := json.Unmarshal(ev.TreatmentsProcedures, &treatments); err == nil {
			for _, t := range treatments {
				if t != "" && !treatmentSeen[t] {
					treatmentSeen[t] = true
					allTreatments = append(allTreatments, t)
				}
			}
		}
	}

	accs := make([]*acc, 0, len(byPart))
	for _, a := range byPart {
		accs = append(accs, a)
	}
	sort.SliceStable(accs, func(i, j int) bool { return accs[i].seq < accs[j].seq })

	out := make([]BodyPartSummary, 0, len(accs))
	for _, a := range accs {
		inferred := []string{}
		partLower := strings.ToLower(a.display)
		for _, t := range allTreatments {
			if strings.Contains(strings.ToLower(t), partLower) {
				inferred = append(inferred, t)
			}
		}
		out = append(out, BodyPartSummary{
			BodyPart:           a.display,
			Diagnoses:          a.diagnoses.ordered,
			InferredTreatments: inferred,
		})
	}
	return out
}

var mmiKeywords = []string{
	"maximum medical improvement",
	"mmi",
	"permanent and stationary",
	"p&s",
}

// ScanMMI walks events newest to oldest and reports the first whose
// prognosis, permanency, assessment, or plan text contains an MMI keyword.
// The latest-dated determination is the one that stands.
func ScanMMI(events []*types.MedicalEvent) (reached bool, date *time.Time, notes string) {
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		haystack := strings.ToLower(strings.Join([]string{
			ev.Prognosis, ev.PermanencyNotes, ev.Assessment, ev.Plan,
		}, "\n"))
		for _, kw := range mmiKeywords {
			if strings.Contains(haystack, kw) {
				d := ev.DateOfService
				text := ev.Prognosis
				if text == "" {
					text = ev.PermanencyNotes
				}
				return true, &d, text
			}
		}
	}
	return false, nil, ""
}

// daysBetween is the calendar-day difference between two dates; dates one
// month apart (Jan 1 to Feb 1) count 31 days.
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func topDiagnoses(all []DiagnosisSummary, n int) []DiagnosisSummary {
	if len(all) <= n {
		return all
	}
	return all[:n]
}

func topProviders(all []ProviderSummary, n int) []ProviderSummary {
	if len(all) <= n {
		return all
	}
	return all[:n]
}

func decodeJSONObject(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func decodeJSONArray(raw []byte) []map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var loose []any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil
	}
	out := make([]map[string]any, 0, len(loose))
	for _, item := range loose {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}
