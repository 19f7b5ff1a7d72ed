package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/demandly/casefile-backend/internal/data/repos"
	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/logger"
)

type SynthesisDeps struct {
	Log   *logger.Logger
	Cases repos.CaseRepo
	Docs  repos.DocumentRepo
}

type TimelineEntry struct {
	Date           string `json:"date"`
	Provider       string `json:"provider"`
	VisitType      string `json:"visitType"`
	ChiefComplaint string `json:"chiefComplaint"`
}

type ItemizedCharge struct {
	DocumentID  string  `json:"documentId"`
	Date        string  `json:"date,omitempty"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
}

type DamagesCalculation struct {
	MedicalBills    float64          `json:"medicalBills"`
	WageLoss        float64          `json:"wageLoss"`
	Total           float64          `json:"total"`
	ItemizedCharges []ItemizedCharge `json:"itemizedCharges"`
}

type DocumentPayload struct {
	DocumentID string         `json:"documentId"`
	Category   string         `json:"category"`
	Data       map[string]any `json:"data"`
}

// SynthesizeCase folds every completed document's structured data into the
// case-level views: the treatment timeline, the damages figure, and the raw
// aggregation. Runs once per completion wave, behind the executor's gate.
func SynthesizeCase(ctx context.Context, deps SynthesisDeps, caseID uuid.UUID) error {
	if deps.Log == nil || deps.Cases == nil || deps.Docs == nil {
		return fmt.Errorf("synthesize: missing deps")
	}
	log := deps.Log.With("step", "SynthesizeCase", "case_id", caseID)
	dbc := dbctx.Context{Ctx: ctx}

	docs, err := deps.Docs.GetByCaseID(dbc, caseID)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}

	payloads := make([]DocumentPayload, 0, len(docs))
	var warnings []string
	for _, doc := range docs {
		if doc.ProcessingStatus != types.DocStatusCompleted {
			continue
		}
		if len(doc.ExtractedData) == 0 {
			warnings = append(warnings, fmt.Sprintf("document %q completed without structured data", doc.OriginalName))
			continue
		}
		var data map[string]any
		if err := json.Unmarshal(doc.ExtractedData, &data); err != nil {
			warnings = append(warnings, fmt.Sprintf("document %q has undecodable structured data", doc.OriginalName))
			continue
		}
		payloads = append(payloads, DocumentPayload{
			DocumentID: doc.ID.String(),
			Category:   doc.Category,
			Data:       data,
		})
	}

	timeline := BuildTreatmentTimeline(payloads)
	damages := ComputeDamages(payloads)
	warnings = append(warnings, synthesisWarnings(payloads, timeline, damages)...)

	extractedJSON, err := json.Marshal(payloads)
	if err != nil {
		return fmt.Errorf("marshal aggregation: %w", err)
	}
	timelineJSON, err := json.Marshal(timeline)
	if err != nil {
		return fmt.Errorf("marshal timeline: %w", err)
	}
	damagesJSON, err := json.Marshal(damages)
	if err != nil {
		return fmt.Errorf("marshal damages: %w", err)
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	if err := deps.Cases.ApplySynthesis(dbc, caseID, repos.CaseSynthesisUpdate{
		Status:             types.CaseStatusExtractionComplete,
		ExtractedData:      extractedJSON,
		TreatmentTimeline:  timelineJSON,
		DamagesCalculation: damagesJSON,
		AttorneyWarnings:   warningsJSON,
	}); err != nil {
		return fmt.Errorf("apply synthesis: %w", err)
	}

	log.Info("Case synthesis complete",
		"documents", len(payloads),
		"timeline_entries", len(timeline),
		"damages_total", damages.Total,
	)
	return nil
}

// BuildTreatmentTimeline scans medical-records payloads only, lifting each
// visit's (date, provider, visit type, chief complaint) and sorting the
// combined list ascending by date. Visits with missing or unparseable dates
// sort after all dated visits, preserving input order among themselves.
func BuildTreatmentTimeline(payloads []DocumentPayload) []TimelineEntry {
	type keyedEntry struct {
		entry TimelineEntry
		dated bool
		seq   int
	}
	var keyed []keyedEntry

	for _, p := range payloads {
		if p.Category != types.CategoryMedicalRecords {
			continue
		}
		for _, v := range anySlice(p.Data["visits"]) {
			visit, ok := v.(map[string]any)
			if !ok {
				continue
			}
			entry := TimelineEntry{
				Date:           stringValue(visit["date"]),
				Provider:       stringValue(visit["provider"]),
				VisitType:      stringValue(visit["visitType"]),
				ChiefComplaint: stringValue(visit["chiefComplaint"]),
			}
			_, dated := parseEventDate(strings.TrimSpace(entry.Date))
			keyed = append(keyed, keyedEntry{entry: entry, dated: dated, seq: len(keyed)})
		}
	}

	sort.SliceStable(keyed, func(i, j int) bool {
		a, b := keyed[i], keyed[j]
		if a.dated && b.dated {
			at, _ := parseEventDate(strings.TrimSpace(a.entry.Date))
			bt, _ := parseEventDate(strings.TrimSpace(b.entry.Date))
			if !at.Equal(bt) {
				return at.Before(bt)
			}
			return a.seq < b.seq
		}
		return a.dated && !b.dated
	})

	out := make([]TimelineEntry, 0, len(keyed))
	for _, k := range keyed {
		out = append(out, k.entry)
	}
	return out
}

// ComputeDamages sums medical-bills charges and wage-documentation loss
// totals across completed documents.
func ComputeDamages(payloads []DocumentPayload) DamagesCalculation {
	var out DamagesCalculation
	out.ItemizedCharges = []ItemizedCharge{}

	for _, p := range payloads {
		switch p.Category {
		case types.CategoryMedicalBills:
			for _, c := range anySlice(p.Data["charges"]) {
				charge, ok := c.(map[string]any)
				if !ok {
					continue
				}
				amount := floatValue(charge["amountBilled"])
				out.MedicalBills += amount
				out.ItemizedCharges = append(out.ItemizedCharges, ItemizedCharge{
					DocumentID:  p.DocumentID,
					Date:        stringValue(charge["date"]),
					Description: stringValue(charge["description"]),
					Amount:      amount,
				})
			}
		case types.CategoryWageDocumentation:
			out.WageLoss += floatValue(p.Data["totalWageLoss"])
		}
	}

	out.Total = out.MedicalBills + out.WageLoss
	return out
}

func synthesisWarnings(payloads []DocumentPayload, timeline []TimelineEntry, damages DamagesCalculation) []string {
	var warnings []string

	undated := 0
	for _, e := range timeline {
		if _, ok := parseEventDate(strings.TrimSpace(e.Date)); !ok {
			undated++
		}
	}
	if undated > 0 {
		warnings = append(warnings, fmt.Sprintf("%d timeline visits have no parseable date and sort last", undated))
	}

	for _, p := range payloads {
		if p.Category != types.CategoryMedicalBills {
			continue
		}
		if summary, ok := p.Data["summary"].(map[string]any); ok {
			if floatValue(summary["totalBilled"]) == 0 {
				warnings = append(warnings, "a medical-bills document reported zero total billed")
			}
		}
	}

	return warnings
}
