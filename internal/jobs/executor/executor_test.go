package executor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/demandly/casefile-backend/internal/data/repos"
	"github.com/demandly/casefile-backend/internal/data/repos/testutil"
	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/modules/casefile/steps"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
)

// In-memory doubles for the executor's collaborators. Only the methods the
// pipeline path touches carry real behavior.

type memStore struct {
	mu     sync.Mutex
	cases  map[uuid.UUID]*types.Case
	docs   map[uuid.UUID]*types.Document
	events []*types.MedicalEvent
	chrons map[uuid.UUID]*types.MedicalChronology

	synthesisRuns  int
	chronologyRuns int
}

func newMemStore() *memStore {
	return &memStore{
		cases:  map[uuid.UUID]*types.Case{},
		docs:   map[uuid.UUID]*types.Document{},
		chrons: map[uuid.UUID]*types.MedicalChronology{},
	}
}

type memCases struct{ s *memStore }

func (r memCases) Create(dbc dbctx.Context, cases []*types.Case) ([]*types.Case, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range cases {
		r.s.cases[c.ID] = c
	}
	return cases, nil
}

func (r memCases) GetByID(dbc dbctx.Context, caseID uuid.UUID) (*types.Case, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cases[caseID]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

func (r memCases) GetByAttorneyID(dbc dbctx.Context, attorneyID uuid.UUID) ([]*types.Case, error) {
	return nil, nil
}

func (r memCases) SetStatus(dbc dbctx.Context, caseID uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.cases[caseID].Status = status
	return nil
}

func (r memCases) ApplySynthesis(dbc dbctx.Context, caseID uuid.UUID, update repos.CaseSynthesisUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.synthesisRuns++
	c := r.s.cases[caseID]
	c.Status = update.Status
	c.ExtractedData = update.ExtractedData
	c.TreatmentTimeline = update.TreatmentTimeline
	c.DamagesCalculation = update.DamagesCalculation
	c.AttorneyWarnings = update.AttorneyWarnings
	return nil
}

type memDocs struct{ s *memStore }

func (r memDocs) Create(dbc dbctx.Context, docs []*types.Document) ([]*types.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range docs {
		r.s.docs[d.ID] = d
	}
	return docs, nil
}

func (r memDocs) GetByID(dbc dbctx.Context, docID uuid.UUID) (*types.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.docs[docID]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *d
	return &copied, nil
}

func (r memDocs) GetByCaseID(dbc dbctx.Context, caseID uuid.UUID) ([]*types.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.Document
	for _, d := range r.s.docs {
		if d.CaseID == caseID {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r memDocs) SetStatus(dbc dbctx.Context, docID uuid.UUID, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.docs[docID].ProcessingStatus = status
	return nil
}

func (r memDocs) MarkFailed(dbc dbctx.Context, docID uuid.UUID, message string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.docs[docID].ProcessingStatus = types.DocStatusFailed
	r.s.docs[docID].ProcessingError = &message
	return nil
}

func (r memDocs) Requeue(dbc dbctx.Context, docID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.docs[docID].ProcessingStatus = types.DocStatusPending
	r.s.docs[docID].ProcessingError = nil
	return nil
}

func (r memDocs) SetRawText(dbc dbctx.Context, docID uuid.UUID, rawText string, pageCount int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.docs[docID].RawText = rawText
	r.s.docs[docID].PageCount = pageCount
	return nil
}

func (r memDocs) SetClassification(dbc dbctx.Context, docID uuid.UUID, category, subcategory string, confidence float64, documentDate *time.Time, providerName string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d := r.s.docs[docID]
	d.Category = category
	d.Subcategory = subcategory
	d.ClassificationConfidence = confidence
	d.DocumentDate = documentDate
	d.ProviderName = providerName
	return nil
}

func (r memDocs) SetExtractedData(dbc dbctx.Context, docID uuid.UUID, extracted []byte) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.docs[docID].ExtractedData = extracted
	return nil
}

func (r memDocs) SoftDeleteByIDs(dbc dbctx.Context, docIDs []uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range docIDs {
		delete(r.s.docs, id)
	}
	return nil
}

type memEvents struct{ s *memStore }

func (r memEvents) Create(dbc dbctx.Context, events []*types.MedicalEvent) ([]*types.MedicalEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.events = append(r.s.events, events...)
	return events, nil
}

func (r memEvents) GetByCaseID(dbc dbctx.Context, caseID uuid.UUID) ([]*types.MedicalEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.MedicalEvent
	for _, ev := range r.s.events {
		if ev.CaseID == caseID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r memEvents) GetByDocumentID(dbc dbctx.Context, docID uuid.UUID) ([]*types.MedicalEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*types.MedicalEvent
	for _, ev := range r.s.events {
		if ev.DocumentID == docID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r memEvents) CountByCaseID(dbc dbctx.Context, caseID uuid.UUID) (int64, error) {
	evs, _ := r.GetByCaseID(dbc, caseID)
	return int64(len(evs)), nil
}

func (r memEvents) FullDeleteByDocumentID(dbc dbctx.Context, docID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.events[:0]
	for _, ev := range r.s.events {
		if ev.DocumentID != docID {
			kept = append(kept, ev)
		}
	}
	r.s.events = kept
	return nil
}

type memChrons struct{ s *memStore }

func (r memChrons) Upsert(dbc dbctx.Context, chron *types.MedicalChronology) (*types.MedicalChronology, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.chronologyRuns++
	if existing, ok := r.s.chrons[chron.CaseID]; ok {
		chron.ID = existing.ID
	} else if chron.ID == uuid.Nil {
		chron.ID = uuid.New()
	}
	r.s.chrons[chron.CaseID] = chron
	return chron, nil
}

func (r memChrons) GetByCaseID(dbc dbctx.Context, caseID uuid.UUID) (*types.MedicalChronology, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chrons[caseID]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

type memBucket struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (b *memBucket) UploadFile(ctx context.Context, key, contentType string, file io.Reader) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[key] = data
	return nil
}

func (b *memBucket) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBucket) DeleteFile(ctx context.Context, key string) error { return nil }

func (b *memBucket) SignedDownloadURL(key string, expiry time.Duration) (string, error) {
	return "https://example.test/" + key, nil
}

type rawTextExtractor struct{}

func (rawTextExtractor) Extract(originalName, mimeType string, data []byte) (string, int, error) {
	return string(data), 1, nil
}

type scriptedOracle struct{}

func (scriptedOracle) GenerateText(ctx context.Context, system, user string) (string, error) {
	switch {
	case strings.Contains(user, "Classify this case document"):
		return `{"category": "medical_records", "confidence": 0.9}`, nil
	case strings.Contains(user, "clinical or billing encounter"):
		return `[{"date_of_service": "2023-01-10", "provider_name": "Dr. Smith"}]`, nil
	case strings.Contains(user, "Treatment gaps:"):
		return `[]`, nil
	default:
		return `{"patient": {"name": "Jane Roe"}, "visits": []}`, nil
	}
}

func executorFixture(t *testing.T, docCount int) (*Executor, *memStore, uuid.UUID, []uuid.UUID) {
	t.Helper()
	t.Setenv("DOCUMENT_WORKER_COUNT", "2")

	store := newMemStore()
	caseID := uuid.New()
	store.cases[caseID] = &types.Case{ID: caseID, ClientName: "Jane Roe", Status: types.CaseStatusProcessing}

	bucket := &memBucket{files: map[string][]byte{}}
	var docIDs []uuid.UUID
	for i := 0; i < docCount; i++ {
		id := uuid.New()
		key := "cases/test/" + id.String() + ".txt"
		bucket.files[key] = []byte("Office visit note number " + id.String() + ".")
		store.docs[id] = &types.Document{
			ID:               id,
			CaseID:           caseID,
			OriginalName:     "note.txt",
			MimeType:         "text/plain",
			StorageKey:       key,
			ProcessingStatus: types.DocStatusPending,
		}
		docIDs = append(docIDs, id)
	}

	log := testutil.Logger(t)
	oracle := scriptedOracle{}
	exec := New(log,
		steps.PipelineDeps{
			Log:       log,
			Oracle:    oracle,
			Bucket:    bucket,
			Extractor: rawTextExtractor{},
			Docs:      memDocs{store},
			Events:    memEvents{store},
		},
		steps.SynthesisDeps{Log: log, Cases: memCases{store}, Docs: memDocs{store}},
		steps.ChronologyDeps{Log: log, Oracle: oracle, Cases: memCases{store}, Events: memEvents{store}, Chrons: memChrons{store}},
	)
	return exec, store, caseID, docIDs
}

func TestExecutor_SynthesizesOnceWhenAllComplete(t *testing.T) {
	exec, store, caseID, docIDs := executorFixture(t, 3)

	for _, id := range docIDs {
		exec.Submit(context.Background(), caseID, id)
	}
	exec.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, d := range store.docs {
		if d.ProcessingStatus != types.DocStatusCompleted {
			t.Fatalf("document %s status = %s", d.ID, d.ProcessingStatus)
		}
	}
	if store.cases[caseID].Status != types.CaseStatusExtractionComplete {
		t.Fatalf("case status = %s, want EXTRACTION_COMPLETE", store.cases[caseID].Status)
	}
	if store.synthesisRuns != 1 {
		t.Fatalf("synthesis runs = %d, want exactly 1", store.synthesisRuns)
	}
	if store.chronologyRuns != 1 {
		t.Fatalf("chronology runs = %d, want exactly 1", store.chronologyRuns)
	}
	if _, ok := store.chrons[caseID]; !ok {
		t.Fatalf("chronology must be materialized")
	}
}

func TestExecutor_NoSynthesisWhileDocumentsFailed(t *testing.T) {
	exec, store, caseID, docIDs := executorFixture(t, 2)

	// Second document points at a missing object, so its pipeline fails.
	store.docs[docIDs[1]].StorageKey = "cases/test/missing.txt"

	for _, id := range docIDs {
		exec.Submit(context.Background(), caseID, id)
	}
	exec.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.docs[docIDs[1]].ProcessingStatus != types.DocStatusFailed {
		t.Fatalf("missing object must fail the document")
	}
	if store.synthesisRuns != 0 {
		t.Fatalf("a FAILED document must hold synthesis back, ran %d times", store.synthesisRuns)
	}
	if store.cases[caseID].Status != types.CaseStatusProcessing {
		t.Fatalf("case status = %s, want PROCESSING", store.cases[caseID].Status)
	}
}

func TestExecutor_EvictsDrainedCaseState(t *testing.T) {
	exec, _, caseID, docIDs := executorFixture(t, 3)

	for _, id := range docIDs {
		exec.Submit(context.Background(), caseID, id)
	}
	exec.Wait()

	exec.mu.Lock()
	remaining := len(exec.cases)
	exec.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("case state entries after drain = %d, want 0", remaining)
	}

	// A fresh submission for the same case gets a fresh gate and still
	// drains cleanly.
	exec.Submit(context.Background(), caseID, docIDs[0])
	exec.Wait()

	exec.mu.Lock()
	remaining = len(exec.cases)
	exec.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("case state entries after resubmission = %d, want 0", remaining)
	}
}
