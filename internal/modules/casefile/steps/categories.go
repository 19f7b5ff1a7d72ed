package steps

import (
	"sort"
	"time"

	types "github.com/demandly/casefile-backend/internal/domain"
)

// mergeFunc folds per-chunk extraction results, in chunk order, into one
// payload. Entries may be nil where a chunk's parse failed; a merge must
// skip those.
type mergeFunc func(chunks []map[string]any) map[string]any

// categorySpec closes over everything category-specific: the extraction
// prompt and the chunk-merge strategy. Adding a category is one table entry.
type categorySpec struct {
	userPrompt func(text string) string
	merge      mergeFunc
}

var categorySpecs = map[string]categorySpec{
	types.CategoryMedicalRecords: {
		userPrompt: medicalRecordsPrompt,
		merge:      mergeMedicalRecords,
	},
	types.CategoryMedicalBills: {
		userPrompt: medicalBillsPrompt,
		merge:      mergeMedicalBills,
	},
	types.CategoryWageDocumentation: {
		userPrompt: wageDocumentationPrompt,
		merge:      mergeFirstChunk,
	},
	types.CategoryInsuranceCorrespondence: {
		userPrompt: correspondencePrompt,
		merge:      mergeFirstChunk,
	},
	types.CategoryLegalCorrespondence: {
		userPrompt: correspondencePrompt,
		merge:      mergeFirstChunk,
	},
	types.CategoryOther: {
		userPrompt: correspondencePrompt,
		merge:      mergeFirstChunk,
	},
}

// KnownCategory reports whether the classifier's label has a table entry.
func KnownCategory(category string) bool {
	_, ok := categorySpecs[category]
	return ok
}

// mergeFirstChunk is the documented behavior for categories with no
// cross-chunk merge: the first successfully parsed chunk wins, the rest are
// discarded.
func mergeFirstChunk(chunks []map[string]any) map[string]any {
	for _, c := range chunks {
		if c != nil {
			return c
		}
	}
	return nil
}

func mergeMedicalRecords(chunks []map[string]any) map[string]any {
	out := map[string]any{}

	var patient any
	var visits []any
	var imaging []any
	preExisting := newStringSet()
	futureTreatment := newStringSet()

	for _, c := range chunks {
		if c == nil {
			continue
		}
		if patient == nil {
			if p, ok := c["patient"]; ok && p != nil {
				patient = p
			}
		}
		visits = append(visits, anySlice(c["visits"])...)
		imaging = append(imaging, anySlice(c["imagingSummary"])...)
		preExisting.addAll(stringSlice(c["preExistingConditions"]))
		futureTreatment.addAll(stringSlice(c["futureTreatmentRecommendations"]))
	}

	sortVisitsByDate(visits)

	out["patient"] = patient
	out["visits"] = visits
	out["imagingSummary"] = imaging
	out["preExistingConditions"] = preExisting.ordered
	out["futureTreatmentRecommendations"] = futureTreatment.ordered
	return out
}

func mergeMedicalBills(chunks []map[string]any) map[string]any {
	out := map[string]any{}

	var providers []any
	var charges []any
	var totalBilled, totalPaid, totalDue float64

	for _, c := range chunks {
		if c == nil {
			continue
		}
		if p, ok := c["provider"]; ok && p != nil {
			providers = append(providers, p)
		}
		providers = append(providers, anySlice(c["providers"])...)
		charges = append(charges, anySlice(c["charges"])...)

		if summary, ok := c["summary"].(map[string]any); ok {
			totalBilled += floatValue(summary["totalBilled"])
			totalPaid += floatValue(summary["totalPaid"])
			totalDue += floatValue(summary["totalDue"])
		}
	}

	out["providers"] = providers
	out["charges"] = charges
	out["summary"] = map[string]any{
		"totalBilled": totalBilled,
		"totalPaid":   totalPaid,
		"totalDue":    totalDue,
	}
	return out
}

// sortVisitsByDate orders visit entries ascending by their "date" field.
// Entries whose date is missing or unparseable sort after all dated entries,
// preserving their relative input order.
func sortVisitsByDate(visits []any) {
	type keyed struct {
		t  time.Time
		ok bool
	}
	keys := make([]keyed, len(visits))
	for i, v := range visits {
		if obj, isMap := v.(map[string]any); isMap {
			if t, ok := parseEventDate(stringValue(obj["date"])); ok {
				keys[i] = keyed{t: t, ok: true}
				continue
			}
		}
		keys[i] = keyed{}
	}
	// sort via index permutation so date keys travel with their visits
	idx := make([]int, len(visits))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if ka.ok && kb.ok {
			return ka.t.Before(kb.t)
		}
		return ka.ok && !kb.ok
	})
	sorted := make([]any, len(visits))
	for i, j := range idx {
		sorted[i] = visits[j]
	}
	copy(visits, sorted)
}

var eventDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC3339,
}

func parseEventDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ---- loose-typed JSON helpers ----

type stringSet struct {
	seen    map[string]bool
	ordered []string
}

func newStringSet() *stringSet {
	return &stringSet{seen: map[string]bool{}, ordered: []string{}}
}

func (s *stringSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.ordered = append(s.ordered, v)
}

func (s *stringSet) addAll(vs []string) {
	for _, v := range vs {
		s.add(v)
	}
}

func anySlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func stringSlice(v any) []string {
	raw, _ := v.([]any)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
