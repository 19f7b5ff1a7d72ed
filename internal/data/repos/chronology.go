package repos

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/logger"
)

type MedicalChronologyRepo interface {
	// Upsert writes the one chronology row for the record's case, replacing
	// any previous row wholesale. Last write wins.
	Upsert(dbc dbctx.Context, chron *types.MedicalChronology) (*types.MedicalChronology, error)
	GetByCaseID(dbc dbctx.Context, caseID uuid.UUID) (*types.MedicalChronology, error)
}

type medicalChronologyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMedicalChronologyRepo(db *gorm.DB, baseLog *logger.Logger) MedicalChronologyRepo {
	repoLog := baseLog.With("repo", "MedicalChronologyRepo")
	return &medicalChronologyRepo{db: db, log: repoLog}
}

func (r *medicalChronologyRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *medicalChronologyRepo) Upsert(dbc dbctx.Context, chron *types.MedicalChronology) (*types.MedicalChronology, error) {
	if chron == nil || chron.CaseID == uuid.Nil {
		return nil, errors.New("chronology upsert: missing case_id")
	}

	conn := r.conn(dbc).WithContext(dbc.Ctx)

	var existing types.MedicalChronology
	err := conn.Unscoped().Where("case_id = ?", chron.CaseID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := conn.Create(chron).Error; err != nil {
			return nil, err
		}
		return chron, nil
	case err != nil:
		return nil, err
	}

	chron.ID = existing.ID
	chron.CreatedAt = existing.CreatedAt
	if err := conn.Unscoped().Model(&types.MedicalChronology{}).
		Where("id = ?", existing.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(chron).Error; err != nil {
		return nil, err
	}
	return chron, nil
}

func (r *medicalChronologyRepo) GetByCaseID(dbc dbctx.Context, caseID uuid.UUID) (*types.MedicalChronology, error) {
	var chron types.MedicalChronology
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("case_id = ?", caseID).
		First(&chron).Error; err != nil {
		return nil, err
	}
	return &chron, nil
}
