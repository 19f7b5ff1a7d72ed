package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/logger"
)

type DocumentRepo interface {
	Create(dbc dbctx.Context, docs []*types.Document) ([]*types.Document, error)
	GetByID(dbc dbctx.Context, docID uuid.UUID) (*types.Document, error)
	GetByCaseID(dbc dbctx.Context, caseID uuid.UUID) ([]*types.Document, error)
	SetStatus(dbc dbctx.Context, docID uuid.UUID, status string) error
	MarkFailed(dbc dbctx.Context, docID uuid.UUID, message string) error
	Requeue(dbc dbctx.Context, docID uuid.UUID) error
	SetRawText(dbc dbctx.Context, docID uuid.UUID, rawText string, pageCount int) error
	SetClassification(dbc dbctx.Context, docID uuid.UUID, category, subcategory string, confidence float64, documentDate *time.Time, providerName string) error
	SetExtractedData(dbc dbctx.Context, docID uuid.UUID, extracted []byte) error
	SoftDeleteByIDs(dbc dbctx.Context, docIDs []uuid.UUID) error
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	repoLog := baseLog.With("repo", "DocumentRepo")
	return &documentRepo{db: db, log: repoLog}
}

func (r *documentRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *documentRepo) Create(dbc dbctx.Context, docs []*types.Document) ([]*types.Document, error) {
	if len(docs) == 0 {
		return []*types.Document{}, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *documentRepo) GetByID(dbc dbctx.Context, docID uuid.UUID) (*types.Document, error) {
	var doc types.Document
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("id = ?", docID).
		First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) GetByCaseID(dbc dbctx.Context, caseID uuid.UUID) ([]*types.Document, error) {
	var results []*types.Document
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("case_id = ?", caseID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *documentRepo) SetStatus(dbc dbctx.Context, docID uuid.UUID, status string) error {
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Document{}).
		Where("id = ?", docID).
		Update("processing_status", status).Error
}

func (r *documentRepo) MarkFailed(dbc dbctx.Context, docID uuid.UUID, message string) error {
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Document{}).
		Where("id = ?", docID).
		Updates(map[string]any{
			"processing_status": types.DocStatusFailed,
			"processing_error":  message,
		}).Error
}

// Requeue is the external reprocess action: back to PENDING with the previous
// error cleared. It is the only retry path.
func (r *documentRepo) Requeue(dbc dbctx.Context, docID uuid.UUID) error {
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Document{}).
		Where("id = ?", docID).
		Updates(map[string]any{
			"processing_status": types.DocStatusPending,
			"processing_error":  nil,
		}).Error
}

func (r *documentRepo) SetRawText(dbc dbctx.Context, docID uuid.UUID, rawText string, pageCount int) error {
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Document{}).
		Where("id = ?", docID).
		Updates(map[string]any{
			"raw_text":   rawText,
			"page_count": pageCount,
		}).Error
}

func (r *documentRepo) SetClassification(dbc dbctx.Context, docID uuid.UUID, category, subcategory string, confidence float64, documentDate *time.Time, providerName string) error {
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Document{}).
		Where("id = ?", docID).
		Updates(map[string]any{
			"category":                  category,
			"subcategory":               subcategory,
			"classification_confidence": confidence,
			"document_date":             documentDate,
			"provider_name":             providerName,
		}).Error
}

func (r *documentRepo) SetExtractedData(dbc dbctx.Context, docID uuid.UUID, extracted []byte) error {
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Document{}).
		Where("id = ?", docID).
		Update("extracted_data", extracted).Error
}

func (r *documentRepo) SoftDeleteByIDs(dbc dbctx.Context, docIDs []uuid.UUID) error {
	if len(docIDs) == 0 {
		return nil
	}
	return r.conn(dbc).WithContext(dbc.Ctx).
		Where("id IN ?", docIDs).
		Delete(&types.Document{}).Error
}
