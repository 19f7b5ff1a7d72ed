package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/demandly/casefile-backend/internal/data/repos"
	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/ingestion/extractor"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/gcs"
	"github.com/demandly/casefile-backend/internal/platform/logger"
	"github.com/demandly/casefile-backend/internal/platform/openai"
)

type PipelineDeps struct {
	Log       *logger.Logger
	Oracle    openai.Client
	Bucket    gcs.BucketService
	Extractor extractor.TextExtractor
	Docs      repos.DocumentRepo
	Events    repos.MedicalEventRepo

	// MaxChunkSize of 0 falls back to DefaultMaxChunkSize.
	MaxChunkSize int
}

func (d PipelineDeps) chunkSize() int {
	if d.MaxChunkSize > 0 {
		return d.MaxChunkSize
	}
	return DefaultMaxChunkSize
}

// ProcessDocument drives one document through the pipeline stages:
// EXTRACTING_TEXT, CLASSIFYING, EXTRACTING_DATA, then COMPLETED. Any stage
// error marks the document FAILED with the error message and stops; the
// document stays untouched until an explicit requeue. Medical event
// extraction for clinical and billing documents runs after COMPLETED and can
// never fail the document.
func ProcessDocument(ctx context.Context, deps PipelineDeps, docID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	log := deps.Log.With("step", "ProcessDocument", "document_id", docID.String())

	doc, err := deps.Docs.GetByID(dbc, docID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if doc.ProcessingStatus != types.DocStatusPending {
		log.Info("skipping document not in PENDING", "status", doc.ProcessingStatus)
		return nil
	}
	log = log.With("case_id", doc.CaseID.String())

	fail := func(stage string, stageErr error) error {
		wrapped := fmt.Errorf("%s: %w", stage, stageErr)
		log.Error("document processing failed", "stage", stage, "error", stageErr)
		if mfErr := deps.Docs.MarkFailed(dbc, docID, wrapped.Error()); mfErr != nil {
			log.Error("failed to mark document FAILED", "error", mfErr)
		}
		return wrapped
	}

	// Stage 1: pull the file down and turn it into text.
	if err := deps.Docs.SetStatus(dbc, docID, types.DocStatusExtractingText); err != nil {
		return fail("set status EXTRACTING_TEXT", err)
	}
	rawText, pageCount, err := downloadAndExtract(ctx, deps, doc)
	if err != nil {
		return fail("extract text", err)
	}
	if strings.TrimSpace(rawText) == "" {
		return fail("extract text", fmt.Errorf("no text content in %s", doc.OriginalName))
	}
	if err := deps.Docs.SetRawText(dbc, docID, rawText, pageCount); err != nil {
		return fail("persist raw text", err)
	}

	// Stage 2: classify.
	if err := deps.Docs.SetStatus(dbc, docID, types.DocStatusClassifying); err != nil {
		return fail("set status CLASSIFYING", err)
	}
	cls, err := classifyDocument(ctx, deps, rawText)
	if err != nil {
		return fail("classify", err)
	}
	if err := deps.Docs.SetClassification(dbc, docID, cls.Category, cls.Subcategory, cls.Confidence, cls.DocumentDate, cls.ProviderName); err != nil {
		return fail("persist classification", err)
	}

	// Stage 3: category-shaped structured extraction.
	if err := deps.Docs.SetStatus(dbc, docID, types.DocStatusExtractingData); err != nil {
		return fail("set status EXTRACTING_DATA", err)
	}
	extracted, err := ExtractStructuredData(ctx, StructuredExtractionDeps{Log: deps.Log, Oracle: deps.Oracle}, cls.Category, rawText, deps.chunkSize())
	if err != nil {
		return fail("structured extraction", err)
	}
	extractedJSON, err := json.Marshal(extracted)
	if err != nil {
		return fail("structured extraction", fmt.Errorf("marshal extracted data: %w", err))
	}
	if err := deps.Docs.SetExtractedData(dbc, docID, extractedJSON); err != nil {
		return fail("persist extracted data", err)
	}

	if err := deps.Docs.SetStatus(dbc, docID, types.DocStatusCompleted); err != nil {
		return fail("set status COMPLETED", err)
	}
	log.Info("document processing completed", "category", cls.Category, "page_count", pageCount)

	// Event extraction is additive. A failure here leaves the document
	// COMPLETED with fewer events, not FAILED.
	if types.IsClinicalOrBilling(cls.Category) {
		if err := extractAndStoreEvents(ctx, deps, doc.CaseID, docID, rawText); err != nil {
			log.Error("medical event extraction failed", "error", err)
		}
	}
	return nil
}

func downloadAndExtract(ctx context.Context, deps PipelineDeps, doc *types.Document) (string, int, error) {
	rc, err := deps.Bucket.DownloadFile(ctx, doc.StorageKey)
	if err != nil {
		return "", 0, fmt.Errorf("download %s: %w", doc.StorageKey, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", doc.StorageKey, err)
	}
	return deps.Extractor.Extract(doc.OriginalName, doc.MimeType, data)
}

type classification struct {
	Category     string
	Subcategory  string
	Confidence   float64
	DocumentDate *time.Time
	ProviderName string
}

// classifyDocument asks the oracle for a category label and normalizes the
// response. Labels outside the category table collapse to "other" rather
// than failing the document.
func classifyDocument(ctx context.Context, deps PipelineDeps, text string) (classification, error) {
	system, user := promptClassify(text)
	raw, err := deps.Oracle.GenerateText(ctx, system, user)
	if err != nil {
		return classification{}, fmt.Errorf("oracle call: %w", err)
	}
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return classification{}, fmt.Errorf("parse classification: %w", err)
	}

	cls := classification{
		Category:     strings.ToLower(strings.TrimSpace(stringValue(obj["category"]))),
		Subcategory:  stringValue(obj["subcategory"]),
		Confidence:   floatValue(obj["confidence"]),
		ProviderName: stringValue(obj["providerName"]),
	}
	if !KnownCategory(cls.Category) {
		deps.Log.Warn("classifier returned unknown category, using other", "category", cls.Category)
		cls.Category = types.CategoryOther
	}
	if ds := stringValue(obj["documentDate"]); ds != "" {
		if t, ok := parseEventDate(ds); ok {
			cls.DocumentDate = &t
		}
	}
	return cls, nil
}

// extractAndStoreEvents replaces the document's events wholesale so a
// reprocessed document cannot double count encounters.
func extractAndStoreEvents(ctx context.Context, deps PipelineDeps, caseID, docID uuid.UUID, text string) error {
	dbc := dbctx.Context{Ctx: ctx}
	if err := deps.Events.FullDeleteByDocumentID(dbc, docID); err != nil {
		return fmt.Errorf("clear prior events: %w", err)
	}
	events, err := ExtractMedicalEvents(ctx, EventExtractionDeps{Log: deps.Log, Oracle: deps.Oracle}, caseID, docID, text, deps.chunkSize())
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	if _, err := deps.Events.Create(dbc, events); err != nil {
		return fmt.Errorf("persist events: %w", err)
	}
	return nil
}
