package handlers

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/demandly/casefile-backend/internal/data/repos"
	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/jobs/executor"
	"github.com/demandly/casefile-backend/internal/middleware"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/gcs"
	"github.com/demandly/casefile-backend/internal/platform/logger"
)

const maxUploadBytes = 50 << 20

type DocumentHandler struct {
	log    *logger.Logger
	bucket gcs.BucketService
	cases  repos.CaseRepo
	docs   repos.DocumentRepo
	exec   *executor.Executor

	// runCtx outlives requests so pipelines survive client disconnects.
	runCtx context.Context
}

func NewDocumentHandler(baseLog *logger.Logger, bucket gcs.BucketService, r repos.Set, exec *executor.Executor, runCtx context.Context) *DocumentHandler {
	return &DocumentHandler{
		log:    baseLog.With("handler", "DocumentHandler"),
		bucket: bucket,
		cases:  r.Cases,
		docs:   r.Documents,
		exec:   exec,
		runCtx: runCtx,
	}
}

// POST /api/cases/:id/documents
// Accepts one or more files under the "files" multipart field, stores each in
// the bucket, creates PENDING rows, and queues them for processing.
func (h *DocumentHandler) Upload(c *gin.Context) {
	cf, ok := h.ownedCase(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	dbc := dbctx.Context{Ctx: c.Request.Context()}
	var created []*types.Document
	for _, fh := range files {
		if fh.Size > maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("%s exceeds the upload size limit", fh.Filename)})
			return
		}
		src, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("cannot read %s", fh.Filename)})
			return
		}
		key := storageKey(cf.ID, fh.Filename)
		contentType := fh.Header.Get("Content-Type")
		err = h.bucket.UploadFile(c.Request.Context(), key, contentType, src)
		src.Close()
		if err != nil {
			h.log.Error("upload to bucket failed", "case_id", cf.ID.String(), "file", fh.Filename, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}
		created = append(created, &types.Document{
			CaseID:           cf.ID,
			OriginalName:     fh.Filename,
			MimeType:         contentType,
			SizeBytes:        fh.Size,
			StorageKey:       key,
			ProcessingStatus: types.DocStatusPending,
		})
	}

	if _, err := h.docs.Create(dbc, created); err != nil {
		h.log.Error("create document rows failed", "case_id", cf.ID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	if err := h.cases.SetStatus(dbc, cf.ID, types.CaseStatusProcessing); err != nil {
		h.log.Error("set case PROCESSING failed", "case_id", cf.ID.String(), "error", err)
	}
	for _, doc := range created {
		h.exec.Submit(h.runCtx, cf.ID, doc.ID)
	}
	c.JSON(http.StatusAccepted, gin.H{"documents": created})
}

// GET /api/documents/:id
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GET /api/documents/:id/download
func (h *DocumentHandler) DownloadURL(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	url, err := h.bucket.SignedDownloadURL(doc.StorageKey, 15*time.Minute)
	if err != nil {
		h.log.Error("signed url failed", "document_id", doc.ID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign download url"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "expires_in": int((15 * time.Minute).Seconds())})
}

// POST /api/documents/:id/reprocess
// The only retry path for a FAILED document: reset to PENDING and resubmit.
func (h *DocumentHandler) Reprocess(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	if doc.ProcessingStatus != types.DocStatusFailed && doc.ProcessingStatus != types.DocStatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "document is still processing"})
		return
	}
	if err := h.docs.Requeue(dbctx.Context{Ctx: c.Request.Context()}, doc.ID); err != nil {
		h.log.Error("requeue failed", "document_id", doc.ID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to requeue document"})
		return
	}
	h.exec.Submit(h.runCtx, doc.CaseID, doc.ID)
	c.JSON(http.StatusAccepted, gin.H{"id": doc.ID, "processingStatus": types.DocStatusPending})
}

// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	if err := h.docs.SoftDeleteByIDs(dbctx.Context{Ctx: c.Request.Context()}, []uuid.UUID{doc.ID}); err != nil {
		h.log.Error("delete document failed", "document_id", doc.ID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete document"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": doc.ID})
}

func (h *DocumentHandler) ownedCase(c *gin.Context) (*types.Case, bool) {
	attorneyID, ok := middleware.AttorneyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return nil, false
	}
	cf, err := h.cases.GetByID(dbctx.Context{Ctx: c.Request.Context()}, caseID)
	if err != nil || cf.AttorneyID != attorneyID {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return nil, false
	}
	return cf, true
}

func (h *DocumentHandler) ownedDocument(c *gin.Context) (*types.Document, bool) {
	attorneyID, ok := middleware.AttorneyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return nil, false
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	doc, err := h.docs.GetByID(dbc, docID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return nil, false
	}
	cf, err := h.cases.GetByID(dbc, doc.CaseID)
	if err != nil || cf.AttorneyID != attorneyID {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return nil, false
	}
	return doc, true
}

func storageKey(caseID uuid.UUID, filename string) string {
	return fmt.Sprintf("cases/%s/documents/%s%s", caseID, uuid.NewString(), filepath.Ext(filename))
}
