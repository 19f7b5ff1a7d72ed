package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MedicalEvent is one clinical or billing encounter extracted from a
// Document. Uniqueness is operational, not a database key: two extracted
// records are the same event iff (date of service, provider name, facility
// name) match exactly, with missing names normalized to "unknown".
type MedicalEvent struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CaseID     uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	DocumentID uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`

	DateOfService time.Time `gorm:"column:date_of_service;not null;index" json:"date_of_service"`

	ProviderName string `gorm:"column:provider_name" json:"provider_name"`
	FacilityName string `gorm:"column:facility_name" json:"facility_name"`
	ProviderType string `gorm:"column:provider_type" json:"provider_type"`

	ChiefComplaint     string `gorm:"column:chief_complaint;type:text" json:"chief_complaint"`
	SubjectiveFindings string `gorm:"column:subjective_findings;type:text" json:"subjective_findings"`
	ObjectiveFindings  string `gorm:"column:objective_findings;type:text" json:"objective_findings"`
	Assessment         string `gorm:"column:assessment;type:text" json:"assessment"`
	Plan               string `gorm:"column:plan;type:text" json:"plan"`
	Prognosis          string `gorm:"column:prognosis;type:text" json:"prognosis"`
	PermanencyNotes    string `gorm:"column:permanency_notes;type:text" json:"permanency_notes"`

	// Structured sub-records.
	Diagnoses            datatypes.JSON `gorm:"column:diagnoses;type:jsonb" json:"diagnoses"`
	TreatmentsProcedures datatypes.JSON `gorm:"column:treatments_procedures;type:jsonb" json:"treatments_procedures"`
	Medications          datatypes.JSON `gorm:"column:medications;type:jsonb" json:"medications"`
	Imaging              datatypes.JSON `gorm:"column:imaging;type:jsonb" json:"imaging"`
	VitalSigns           datatypes.JSON `gorm:"column:vital_signs;type:jsonb" json:"vital_signs"`

	TotalCharge           float64 `gorm:"column:total_charge" json:"total_charge"`
	InsurancePaid         float64 `gorm:"column:insurance_paid" json:"insurance_paid"`
	PatientResponsibility float64 `gorm:"column:patient_responsibility" json:"patient_responsibility"`

	// Flagged narrative fields.
	KeyQuotes           datatypes.JSON `gorm:"column:key_quotes;type:jsonb" json:"key_quotes"`
	RedFlags            datatypes.JSON `gorm:"column:red_flags;type:jsonb" json:"red_flags"`
	CausationStatements datatypes.JSON `gorm:"column:causation_statements;type:jsonb" json:"causation_statements"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MedicalEvent) TableName() string { return "medical_event" }
