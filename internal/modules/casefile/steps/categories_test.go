package steps

import (
	"testing"

	types "github.com/demandly/casefile-backend/internal/domain"
)

func TestKnownCategory(t *testing.T) {
	for _, c := range []string{
		types.CategoryMedicalRecords,
		types.CategoryMedicalBills,
		types.CategoryWageDocumentation,
		types.CategoryInsuranceCorrespondence,
		types.CategoryLegalCorrespondence,
		types.CategoryOther,
	} {
		if !KnownCategory(c) {
			t.Fatalf("category %q should be known", c)
		}
	}
	if KnownCategory("hospital_records") {
		t.Fatalf("labels outside the table must not be known")
	}
}

func TestMergeMedicalBills_SumsTotals(t *testing.T) {
	chunks := []map[string]any{
		{
			"provider": "Mercy General",
			"charges":  []any{map[string]any{"description": "MRI", "amountBilled": 500.00}},
			"summary":  map[string]any{"totalBilled": 500.00, "totalPaid": 100.00, "totalDue": 400.00},
		},
		{
			"provider": "City Imaging",
			"charges":  []any{map[string]any{"description": "X-ray", "amountBilled": 300.25}},
			"summary":  map[string]any{"totalBilled": 300.25, "totalPaid": 0.0, "totalDue": 300.25},
		},
	}
	out := mergeMedicalBills(chunks)

	summary := out["summary"].(map[string]any)
	if got := summary["totalBilled"].(float64); got != 800.25 {
		t.Fatalf("totalBilled = %v, want 800.25", got)
	}
	if got := summary["totalDue"].(float64); got != 700.25 {
		t.Fatalf("totalDue = %v, want 700.25", got)
	}
	if got := len(out["charges"].([]any)); got != 2 {
		t.Fatalf("charges length = %d, want 2", got)
	}
	providers := out["providers"].([]any)
	if len(providers) != 2 || providers[0] != "Mercy General" || providers[1] != "City Imaging" {
		t.Fatalf("providers = %v", providers)
	}
}

func TestMergeMedicalBills_SkipsFailedChunks(t *testing.T) {
	chunks := []map[string]any{
		nil,
		{"summary": map[string]any{"totalBilled": 42.0}},
		nil,
	}
	out := mergeMedicalBills(chunks)
	if got := out["summary"].(map[string]any)["totalBilled"].(float64); got != 42.0 {
		t.Fatalf("totalBilled = %v, want 42", got)
	}
}

func TestMergeMedicalRecords_FirstPatientWins(t *testing.T) {
	chunks := []map[string]any{
		{"patient": map[string]any{"name": "Jane Roe"}},
		{"patient": map[string]any{"name": "Wrong Patient"}},
	}
	out := mergeMedicalRecords(chunks)
	patient := out["patient"].(map[string]any)
	if patient["name"] != "Jane Roe" {
		t.Fatalf("patient = %v, want first chunk's patient", patient)
	}
}

func TestMergeMedicalRecords_SortsVisitsUndatedLast(t *testing.T) {
	chunks := []map[string]any{
		{"visits": []any{
			map[string]any{"date": "2023-05-01", "provider": "B"},
			map[string]any{"provider": "NoDate1"},
		}},
		{"visits": []any{
			map[string]any{"date": "2023-01-15", "provider": "A"},
			map[string]any{"provider": "NoDate2"},
		}},
	}
	out := mergeMedicalRecords(chunks)
	visits := out["visits"].([]any)
	if len(visits) != 4 {
		t.Fatalf("visits length = %d", len(visits))
	}
	first := visits[0].(map[string]any)
	second := visits[1].(map[string]any)
	if first["provider"] != "A" || second["provider"] != "B" {
		t.Fatalf("dated visits not sorted ascending: %v then %v", first, second)
	}
	third := visits[2].(map[string]any)
	fourth := visits[3].(map[string]any)
	if third["provider"] != "NoDate1" || fourth["provider"] != "NoDate2" {
		t.Fatalf("undated visits must keep input order at the end: %v then %v", third, fourth)
	}
}

func TestMergeMedicalRecords_UnionsStringLists(t *testing.T) {
	chunks := []map[string]any{
		{"preExistingConditions": []any{"diabetes", "hypertension"}},
		{"preExistingConditions": []any{"hypertension", "asthma"}},
	}
	out := mergeMedicalRecords(chunks)
	got := out["preExistingConditions"].([]string)
	want := []string{"diabetes", "hypertension", "asthma"}
	if len(got) != len(want) {
		t.Fatalf("conditions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("conditions = %v, want %v", got, want)
		}
	}
}

func TestMergeFirstChunk(t *testing.T) {
	out := mergeFirstChunk([]map[string]any{nil, {"employer": "Acme"}, {"employer": "Other"}})
	if out["employer"] != "Acme" {
		t.Fatalf("first parsed chunk should win, got %v", out)
	}
	if mergeFirstChunk([]map[string]any{nil, nil}) != nil {
		t.Fatalf("all-nil chunks should merge to nil")
	}
}

func TestParseEventDate_Layouts(t *testing.T) {
	cases := []string{"2023-04-09", "04/09/2023", "4/9/2023", "April 9, 2023", "Apr 9, 2023"}
	for _, raw := range cases {
		tm, ok := parseEventDate(raw)
		if !ok {
			t.Fatalf("failed to parse %q", raw)
		}
		if tm.Year() != 2023 || int(tm.Month()) != 4 || tm.Day() != 9 {
			t.Fatalf("%q parsed to %v", raw, tm)
		}
	}
	if _, ok := parseEventDate("not a date"); ok {
		t.Fatalf("garbage must not parse")
	}
}
