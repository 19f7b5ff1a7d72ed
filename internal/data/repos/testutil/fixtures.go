package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/demandly/casefile-backend/internal/domain"
)

func SeedAttorney(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *types.Attorney {
	tb.Helper()
	a := &types.Attorney{
		ID:        uuid.New(),
		Email:     email,
		Password:  "pw",
		FirstName: "A",
		LastName:  "B",
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed attorney: %v", err)
	}
	return a
}

func SeedCase(tb testing.TB, ctx context.Context, tx *gorm.DB, attorneyID uuid.UUID) *types.Case {
	tb.Helper()
	c := &types.Case{
		ID:         uuid.New(),
		AttorneyID: attorneyID,
		ClientName: "Client",
		Status:     types.CaseStatusIntake,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed case: %v", err)
	}
	return c
}

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, caseID uuid.UUID, storageKey string) *types.Document {
	tb.Helper()
	d := &types.Document{
		ID:               uuid.New(),
		CaseID:           caseID,
		OriginalName:     "records.pdf",
		MimeType:         "application/pdf",
		StorageKey:       storageKey,
		ProcessingStatus: types.DocStatusPending,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedMedicalEvent(tb testing.TB, ctx context.Context, tx *gorm.DB, caseID, docID uuid.UUID, date time.Time) *types.MedicalEvent {
	tb.Helper()
	e := &types.MedicalEvent{
		ID:            uuid.New(),
		CaseID:        caseID,
		DocumentID:    docID,
		DateOfService: date,
		ProviderName:  "Dr. Seed",
		FacilityName:  "Seed Clinic",
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed medical event: %v", err)
	}
	return e
}
