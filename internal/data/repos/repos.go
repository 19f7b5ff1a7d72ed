package repos

import (
	"gorm.io/gorm"

	"github.com/demandly/casefile-backend/internal/platform/logger"
)

// Set bundles every repo the pipeline and handlers need.
type Set struct {
	Attorneys    AttorneyRepo
	Cases        CaseRepo
	Documents    DocumentRepo
	Events       MedicalEventRepo
	Chronologies MedicalChronologyRepo
}

func Wire(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Attorneys:    NewAttorneyRepo(db, baseLog),
		Cases:        NewCaseRepo(db, baseLog),
		Documents:    NewDocumentRepo(db, baseLog),
		Events:       NewMedicalEventRepo(db, baseLog),
		Chronologies: NewMedicalChronologyRepo(db, baseLog),
	}
}
