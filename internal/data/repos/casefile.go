package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/logger"
)

// CaseSynthesisUpdate carries the derived fields written in one synthesis
// pass. All four payloads are replaced together.
type CaseSynthesisUpdate struct {
	Status             string
	ExtractedData      []byte
	TreatmentTimeline  []byte
	DamagesCalculation []byte
	AttorneyWarnings   []byte
}

type CaseRepo interface {
	Create(dbc dbctx.Context, cases []*types.Case) ([]*types.Case, error)
	GetByID(dbc dbctx.Context, caseID uuid.UUID) (*types.Case, error)
	GetByAttorneyID(dbc dbctx.Context, attorneyID uuid.UUID) ([]*types.Case, error)
	SetStatus(dbc dbctx.Context, caseID uuid.UUID, status string) error
	ApplySynthesis(dbc dbctx.Context, caseID uuid.UUID, update CaseSynthesisUpdate) error
}

type caseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCaseRepo(db *gorm.DB, baseLog *logger.Logger) CaseRepo {
	repoLog := baseLog.With("repo", "CaseRepo")
	return &caseRepo{db: db, log: repoLog}
}

func (r *caseRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *caseRepo) Create(dbc dbctx.Context, cases []*types.Case) ([]*types.Case, error) {
	if len(cases) == 0 {
		return []*types.Case{}, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(&cases).Error; err != nil {
		return nil, err
	}
	return cases, nil
}

func (r *caseRepo) GetByID(dbc dbctx.Context, caseID uuid.UUID) (*types.Case, error) {
	var c types.Case
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("id = ?", caseID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *caseRepo) GetByAttorneyID(dbc dbctx.Context, attorneyID uuid.UUID) ([]*types.Case, error) {
	var results []*types.Case
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("attorney_id = ?", attorneyID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *caseRepo) SetStatus(dbc dbctx.Context, caseID uuid.UUID, status string) error {
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Case{}).
		Where("id = ?", caseID).
		Update("status", status).Error
}

func (r *caseRepo) ApplySynthesis(dbc dbctx.Context, caseID uuid.UUID, update CaseSynthesisUpdate) error {
	return r.conn(dbc).WithContext(dbc.Ctx).
		Model(&types.Case{}).
		Where("id = ?", caseID).
		Updates(map[string]any{
			"status":              update.Status,
			"extracted_data":      update.ExtractedData,
			"treatment_timeline":  update.TreatmentTimeline,
			"damages_calculation": update.DamagesCalculation,
			"attorney_warnings":   update.AttorneyWarnings,
		}).Error
}
