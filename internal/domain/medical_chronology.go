package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MedicalChronology is the materialized case-wide view derived from the
// current set of MedicalEvents. Exactly one row per case; regeneration
// replaces it wholesale.
type MedicalChronology struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CaseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"case_id"`

	TreatmentDurationDays int     `gorm:"column:treatment_duration_days" json:"treatment_duration_days"`
	TotalVisits           int     `gorm:"column:total_visits" json:"total_visits"`
	TotalMedicalCost      float64 `gorm:"column:total_medical_cost" json:"total_medical_cost"`

	FirstVisitDate *time.Time `gorm:"column:first_visit_date" json:"first_visit_date,omitempty"`
	LastVisitDate  *time.Time `gorm:"column:last_visit_date" json:"last_visit_date,omitempty"`

	ExecutiveSummary string `gorm:"column:executive_summary;type:text" json:"executive_summary"`
	FullNarrative    string `gorm:"column:full_narrative;type:text" json:"full_narrative"`

	TreatmentGaps datatypes.JSON `gorm:"column:treatment_gaps;type:jsonb" json:"treatmentGaps"`
	PainHistory   datatypes.JSON `gorm:"column:pain_history;type:jsonb" json:"pain_history"`

	MMIReached bool       `gorm:"column:mmi_reached" json:"mmi_reached"`
	MMIDate    *time.Time `gorm:"column:mmi_date" json:"mmi_date,omitempty"`
	MMINotes   string     `gorm:"column:mmi_notes;type:text" json:"mmi_notes,omitempty"`

	ProviderSummaries  datatypes.JSON `gorm:"column:provider_summaries;type:jsonb" json:"provider_summaries"`
	DiagnosisSummaries datatypes.JSON `gorm:"column:diagnosis_summaries;type:jsonb" json:"diagnosis_summaries"`
	BodyPartSummaries  datatypes.JSON `gorm:"column:body_part_summaries;type:jsonb" json:"body_part_summaries"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MedicalChronology) TableName() string { return "medical_chronology" }
