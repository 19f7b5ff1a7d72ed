package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/platform/logger"
	"github.com/demandly/casefile-backend/internal/platform/openai"
)

type EventExtractionDeps struct {
	Log    *logger.Logger
	Oracle openai.Client
}

// unknownToken normalizes missing provider/facility names for identity
// comparison. Two extracted records are the same encounter iff
// (date_of_service, provider_name, facility_name) match exactly.
const unknownToken = "unknown"

// ExtractMedicalEvents pulls every encounter out of a clinical or billing
// document. Chunks go to the oracle sequentially: one document legitimately
// describes many encounters and the merge is a running accumulator. A chunk
// whose response fails to parse is logged and contributes zero events.
func ExtractMedicalEvents(ctx context.Context, deps EventExtractionDeps, caseID, docID uuid.UUID, text string, maxChunkSize int) ([]*types.MedicalEvent, error) {
	if deps.Log == nil || deps.Oracle == nil {
		return nil, fmt.Errorf("extract_events: missing deps")
	}
	log := deps.Log.With("step", "ExtractMedicalEvents", "document_id", docID)

	chunks := SplitIntoChunks(text, maxChunkSize)

	var records []map[string]any
	for i, chunk := range chunks {
		system, user := promptExtractEvents(chunk)
		raw, err := deps.Oracle.GenerateText(ctx, system, user)
		if err != nil {
			log.Warn("Event chunk oracle call failed", "chunk_index", i, "error", err)
			continue
		}
		objs, err := ExtractJSONArray(raw)
		if err != nil {
			log.Warn("Event chunk output unparseable", "chunk_index", i, "error", err)
			continue
		}
		for _, obj := range objs {
			if strings.TrimSpace(stringValue(obj["date_of_service"])) == "" {
				continue
			}
			records = append(records, obj)
		}
	}

	deduped := DedupeEventRecords(records)

	events := make([]*types.MedicalEvent, 0, len(deduped))
	for _, rec := range deduped {
		ev, err := eventFromRecord(caseID, docID, rec)
		if err != nil {
			log.Warn("Dropping event record", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// DedupeEventRecords collapses records sharing an identity key, preserving
// first-occurrence order. A list with no colliding keys comes back unchanged.
func DedupeEventRecords(records []map[string]any) []map[string]any {
	byKey := map[string]map[string]any{}
	var order []string

	for _, rec := range records {
		key := eventIdentityKey(rec)
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = rec
			order = append(order, key)
			continue
		}
		mergeEventRecord(existing, rec)
	}

	out := make([]map[string]any, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

func eventIdentityKey(rec map[string]any) string {
	provider := strings.TrimSpace(stringValue(rec["provider_name"]))
	if provider == "" {
		provider = unknownToken
	}
	facility := strings.TrimSpace(stringValue(rec["facility_name"]))
	if facility == "" {
		facility = unknownToken
	}
	return stringValue(rec["date_of_service"]) + "|" + provider + "|" + facility
}

// Scalar text fields keep the first non-null value; a present value is never
// overwritten. Array fields union-dedupe.
var eventScalarFields = []string{
	"chief_complaint",
	"subjective_findings",
	"objective_findings",
	"assessment",
	"plan",
	"prognosis",
}

var eventStringArrayFields = []string{
	"treatments_procedures",
	"key_quotes",
	"red_flags",
	"causation_statements",
}

func mergeEventRecord(dst, src map[string]any) {
	for _, field := range eventScalarFields {
		if strings.TrimSpace(stringValue(dst[field])) == "" {
			if v := strings.TrimSpace(stringValue(src[field])); v != "" {
				dst[field] = v
			}
		}
	}

	dst["diagnoses"] = unionObjectsByName(anySlice(dst["diagnoses"]), anySlice(src["diagnoses"]), "diagnosis_name")
	dst["medications"] = unionObjectsByName(anySlice(dst["medications"]), anySlice(src["medications"]), "medication_name")

	for _, field := range eventStringArrayFields {
		set := newStringSet()
		set.addAll(stringSlice(dst[field]))
		set.addAll(stringSlice(src[field]))
		out := make([]any, 0, len(set.ordered))
		for _, s := range set.ordered {
			out = append(out, s)
		}
		dst[field] = out
	}
}

// unionObjectsByName concatenates two object lists, keeping the first object
// seen for each value of nameKey.
func unionObjectsByName(a, b []any, nameKey string) []any {
	seen := map[string]bool{}
	out := make([]any, 0, len(a)+len(b))
	for _, item := range append(append([]any{}, a...), b...) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(stringValue(obj[nameKey]))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, obj)
	}
	return out
}

func eventFromRecord(caseID, docID uuid.UUID, rec map[string]any) (*types.MedicalEvent, error) {
	dateRaw := stringValue(rec["date_of_service"])
	date, ok := parseEventDate(strings.TrimSpace(dateRaw))
	if !ok {
		return nil, fmt.Errorf("unparseable date_of_service %q", dateRaw)
	}

	ev := &types.MedicalEvent{
		CaseID:        caseID,
		DocumentID:    docID,
		DateOfService: date,

		ProviderName: strings.TrimSpace(stringValue(rec["provider_name"])),
		FacilityName: strings.TrimSpace(stringValue(rec["facility_name"])),
		ProviderType: strings.TrimSpace(stringValue(rec["provider_type"])),

		ChiefComplaint:     stringValue(rec["chief_complaint"]),
		SubjectiveFindings: stringValue(rec["subjective_findings"]),
		ObjectiveFindings:  stringValue(rec["objective_findings"]),
		Assessment:         stringValue(rec["assessment"]),
		Plan:               stringValue(rec["plan"]),
		Prognosis:          stringValue(rec["prognosis"]),
		PermanencyNotes:    stringValue(rec["permanency_notes"]),

		TotalCharge:           floatValue(rec["total_charge"]),
		InsurancePaid:         floatValue(rec["insurance_paid"]),
		PatientResponsibility: floatValue(rec["patient_responsibility"]),
	}

	ev.Diagnoses = marshalJSONField(rec["diagnoses"])
	ev.TreatmentsProcedures = marshalJSONField(rec["treatments_procedures"])
	ev.Medications = marshalJSONField(rec["medications"])
	ev.Imaging = marshalJSONField(rec["imaging"])
	ev.VitalSigns = marshalJSONField(rec["vital_signs"])
	ev.KeyQuotes = marshalJSONField(rec["key_quotes"])
	ev.RedFlags = marshalJSONField(rec["red_flags"])
	ev.CausationStatements = marshalJSONField(rec["causation_statements"])

	return ev, nil
}

func marshalJSONField(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
