package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/logger"
)

type AttorneyRepo interface {
	Create(dbc dbctx.Context, attorneys []*types.Attorney) ([]*types.Attorney, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Attorney, error)
	GetByEmail(dbc dbctx.Context, email string) (*types.Attorney, error)
}

type attorneyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttorneyRepo(db *gorm.DB, baseLog *logger.Logger) AttorneyRepo {
	repoLog := baseLog.With("repo", "AttorneyRepo")
	return &attorneyRepo{db: db, log: repoLog}
}

func (r *attorneyRepo) conn(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *attorneyRepo) Create(dbc dbctx.Context, attorneys []*types.Attorney) ([]*types.Attorney, error) {
	if len(attorneys) == 0 {
		return []*types.Attorney{}, nil
	}
	if err := r.conn(dbc).WithContext(dbc.Ctx).Create(&attorneys).Error; err != nil {
		return nil, err
	}
	return attorneys, nil
}

func (r *attorneyRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Attorney, error) {
	var a types.Attorney
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attorneyRepo) GetByEmail(dbc dbctx.Context, email string) (*types.Attorney, error) {
	var a types.Attorney
	if err := r.conn(dbc).WithContext(dbc.Ctx).
		Where("email = ?", email).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}
