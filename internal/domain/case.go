package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CaseStatusIntake             = "INTAKE"
	CaseStatusProcessing         = "PROCESSING"
	CaseStatusExtractionComplete = "EXTRACTION_COMPLETE"
)

// Case is the aggregate a matter's documents, events, and chronology hang off.
type Case struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AttorneyID uuid.UUID `gorm:"type:uuid;not null;index" json:"attorney_id"`

	ClientName   string `gorm:"column:client_name;not null" json:"client_name"`
	CaseNumber   string `gorm:"column:case_number" json:"case_number"`
	IncidentDate *time.Time `gorm:"column:incident_date" json:"incident_date,omitempty"`

	Status string `gorm:"column:status;not null;default:'INTAKE'" json:"status"`

	// Derived by case synthesis. Raw aggregation plus the two computed views.
	ExtractedData      datatypes.JSON `gorm:"column:extracted_data;type:jsonb" json:"extracted_data"`
	TreatmentTimeline  datatypes.JSON `gorm:"column:treatment_timeline;type:jsonb" json:"treatment_timeline"`
	DamagesCalculation datatypes.JSON `gorm:"column:damages_calculation;type:jsonb" json:"damages_calculation"`
	AttorneyWarnings   datatypes.JSON `gorm:"column:attorney_warnings;type:jsonb" json:"attorney_warnings"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Case) TableName() string { return "case_file" }
