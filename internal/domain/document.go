package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Processing states, each reachable only from its predecessor; FAILED is
// reachable from any non-terminal state. The literal values are a wire
// contract with the frontend poller.
const (
	DocStatusPending        = "PENDING"
	DocStatusExtractingText = "EXTRACTING_TEXT"
	DocStatusClassifying    = "CLASSIFYING"
	DocStatusExtractingData = "EXTRACTING_DATA"
	DocStatusCompleted      = "COMPLETED"
	DocStatusFailed         = "FAILED"
)

const (
	CategoryMedicalRecords          = "medical_records"
	CategoryMedicalBills            = "medical_bills"
	CategoryWageDocumentation       = "wage_documentation"
	CategoryInsuranceCorrespondence = "insurance_correspondence"
	CategoryLegalCorrespondence     = "legal_correspondence"
	CategoryOther                   = "other"
)

// Document is one uploaded file. It belongs to exactly one Case and is only
// mutated by the pipeline stages after upload.
type Document struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CaseID uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Case   *Case     `gorm:"constraint:OnDelete:CASCADE;foreignKey:CaseID;references:ID" json:"case,omitempty"`

	OriginalName string `gorm:"column:original_name;not null" json:"original_name"`
	MimeType     string `gorm:"column:mime_type" json:"mime_type"`
	SizeBytes    int64  `gorm:"column:size_bytes" json:"size_bytes"`
	StorageKey   string `gorm:"column:storage_key;not null" json:"storage_key"`

	ProcessingStatus string  `gorm:"column:processing_status;not null;default:'PENDING';index" json:"processingStatus"`
	ProcessingError  *string `gorm:"column:processing_error" json:"processingError,omitempty"`

	RawText   string `gorm:"column:raw_text;type:text" json:"raw_text,omitempty"`
	PageCount int    `gorm:"column:page_count" json:"page_count"`

	// Classification metadata.
	Category                 string     `gorm:"column:category;index" json:"category"`
	Subcategory              string     `gorm:"column:subcategory" json:"subcategory"`
	ClassificationConfidence float64    `gorm:"column:classification_confidence" json:"classification_confidence"`
	DocumentDate             *time.Time `gorm:"column:document_date" json:"document_date,omitempty"`
	ProviderName             string     `gorm:"column:provider_name" json:"provider_name"`

	// Category-shaped structured extraction result.
	ExtractedData datatypes.JSON `gorm:"column:extracted_data;type:jsonb" json:"extracted_data"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }

// IsClinicalOrBilling reports whether a completed document additionally runs
// medical-event extraction.
func IsClinicalOrBilling(category string) bool {
	return category == CategoryMedicalRecords || category == CategoryMedicalBills
}
