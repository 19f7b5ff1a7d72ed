package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/logger"
)

type MedicalEventRepo interface {
	Create(dbc dbctx.Context, events []*types.MedicalEvent) ([]*types.MedicalEvent, error)
	GetByCaseID(dbc dbctx.Context, caseID uuid.UUID) ([]*types.MedicalEvent, error)
	GetByDocumentID(dbc dbctx.Context, docID uuid.UUID) ([]*types.MedicalEvent, error)
	CountByCaseID(dbc dbctx.Context, caseID uuid.UUID) (int64, error)
	FullDeleteByDocumentID(dbc dbctx.Context, docID uuid.UUID) error
}

type medicalEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMedicalEventRepo(db *gorm.DB, baseLog *logger.Logger) MedicalEventRepo {
	repoLog := baseLog.With("repo", "MedicalEventRepo")
	return &medicalEventRepo{db: db, log: repoLog}
}

func (r *medicalEventRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *medicalEventRepo) Create(dbc dbctx.Context, events []*types.MedicalEvent) ([]*types.MedicalEvent, error) {
	if len(events) == 0 {
		return []*types.MedicalEvent{}, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// GetByCaseID returns events ordered by date of service ascending, the order
// every chronology computation assumes.
func (r *medicalEventRepo) GetByCaseID(dbc dbctx.Context, caseID uuid.UUID) ([]*types.MedicalEvent, error) {
	var results []*types.MedicalEvent
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("case_id = ?", caseID).
		Order("date_of_service ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *medicalEventRepo) GetByDocumentID(dbc dbctx.Context, docID uuid.UUID) ([]*types.MedicalEvent, error) {
	var results []*types.MedicalEvent
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("document_id = ?", docID).
		Order("date_of_service ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *medicalEventRepo) CountByCaseID(dbc dbctx.Context, caseID uuid.UUID) (int64, error) {
	var n int64
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.MedicalEvent{}).
		Where("case_id = ?", caseID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// FullDeleteByDocumentID hard-deletes a document's events. Used by the
// reprocess path so a re-run does not double-count encounters.
func (r *medicalEventRepo) FullDeleteByDocumentID(dbc dbctx.Context, docID uuid.UUID) error {
	return r.conn(dbc).WithContext(dbc.Ctx).
		Unscoped().
		Where("document_id = ?", docID).
		Delete(&types.MedicalEvent{}).Error
}
