package steps

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/demandly/casefile-backend/internal/data/repos/testutil"
	types "github.com/demandly/casefile-backend/internal/domain"
)

// oracleFunc adapts a function to the oracle client interface for tests.
type oracleFunc func(ctx context.Context, system, user string) (string, error)

func (f oracleFunc) GenerateText(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

func TestExtractStructuredData_SingleChunkErrorPropagates(t *testing.T) {
	deps := StructuredExtractionDeps{
		Log: testutil.Logger(t),
		Oracle: oracleFunc(func(ctx context.Context, system, user string) (string, error) {
			return "", errors.New("rate limited")
		}),
	}
	_, err := ExtractStructuredData(context.Background(), deps, types.CategoryMedicalBills, "short bill text", DefaultMaxChunkSize)
	if err == nil {
		t.Fatalf("single-chunk oracle failure must fail the extraction")
	}
}

func TestExtractStructuredData_UnknownCategory(t *testing.T) {
	deps := StructuredExtractionDeps{
		Log: testutil.Logger(t),
		Oracle: oracleFunc(func(ctx context.Context, system, user string) (string, error) {
			t.Fatalf("oracle must not be called for an unknown category")
			return "", nil
		}),
	}
	if _, err := ExtractStructuredData(context.Background(), deps, "hospital_records", "text", DefaultMaxChunkSize); err == nil {
		t.Fatalf("unknown category must error")
	}
}

// Two paragraph-separated chunks; one chunk's response is garbage and the
// other parses. The document must still produce a payload from the survivor.
func TestExtractStructuredData_PartialChunkFailureTolerated(t *testing.T) {
	text := strings.Repeat("a", 80) + "\n\n" + strings.Repeat("b", 80)
	deps := StructuredExtractionDeps{
		Log: testutil.Logger(t),
		Oracle: oracleFunc(func(ctx context.Context, system, user string) (string, error) {
			if strings.Contains(user, "bbb") {
				return `{"provider": "Mercy", "summary": {"totalBilled": 250.0}}`, nil
			}
			return "sorry, I cannot help with that", nil
		}),
	}
	out, err := ExtractStructuredData(context.Background(), deps, types.CategoryMedicalBills, text, 100)
	if err != nil {
		t.Fatalf("one parseable chunk should carry the document: %v", err)
	}
	if got := out["summary"].(map[string]any)["totalBilled"].(float64); got != 250.0 {
		t.Fatalf("merged payload = %v", out)
	}
}

func TestExtractStructuredData_AllChunksFail(t *testing.T) {
	text := strings.Repeat("a", 80) + "\n\n" + strings.Repeat("b", 80)
	deps := StructuredExtractionDeps{
		Log: testutil.Logger(t),
		Oracle: oracleFunc(func(ctx context.Context, system, user string) (string, error) {
			return "no structured data here", nil
		}),
	}
	if _, err := ExtractStructuredData(context.Background(), deps, types.CategoryMedicalRecords, text, 100); err == nil {
		t.Fatalf("zero parseable chunks must fail the document")
	}
}

func TestExtractMedicalEvents_DedupesAcrossChunks(t *testing.T) {
	text := strings.Repeat("a", 80) + "\n\n" + strings.Repeat("b", 80)
	caseID, docID := uuid.New(), uuid.New()

	deps := EventExtractionDeps{
		Log: testutil.Logger(t),
		Oracle: oracleFunc(func(ctx context.Context, system, user string) (string, error) {
			if strings.Contains(user, "bbb") {
				return `[
					{"date_of_service": "2023-01-15", "provider_name": "Dr. Smith", "facility_name": "Mercy", "plan": "continue PT"},
					{"date_of_service": "2023-02-20", "provider_name": "Dr. Jones"}
				]`, nil
			}
			return `[
				{"date_of_service": "2023-01-15", "provider_name": "Dr. Smith", "facility_name": "Mercy", "chief_complaint": "back pain"},
				{"provider_name": "No Date Provider"}
			]`, nil
		}),
	}
	events, err := ExtractMedicalEvents(context.Background(), deps, caseID, docID, text, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2 events after dedupe and date filtering, got %d", len(events))
	}
	merged := events[0]
	if merged.ChiefComplaint != "back pain" || merged.Plan != "continue PT" {
		t.Fatalf("same-encounter fields must merge: %+v", merged)
	}
	if merged.CaseID != caseID || merged.DocumentID != docID {
		t.Fatalf("event must carry its source ids")
	}
}

func TestExtractMedicalEvents_ChunkFailureContributesNothing(t *testing.T) {
	deps := EventExtractionDeps{
		Log: testutil.Logger(t),
		Oracle: oracleFunc(func(ctx context.Context, system, user string) (string, error) {
			return "", errors.New("timeout")
		}),
	}
	events, err := ExtractMedicalEvents(context.Background(), deps, uuid.New(), uuid.New(), "short note", DefaultMaxChunkSize)
	if err != nil {
		t.Fatalf("event extraction never fails the document: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("failed chunks contribute zero events, got %d", len(events))
	}
}
