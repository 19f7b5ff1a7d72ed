package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/demandly/casefile-backend/internal/data/repos"
	types "github.com/demandly/casefile-backend/internal/domain"
	"github.com/demandly/casefile-backend/internal/middleware"
	"github.com/demandly/casefile-backend/internal/platform/dbctx"
	"github.com/demandly/casefile-backend/internal/platform/logger"
)

type CaseHandler struct {
	log    *logger.Logger
	cases  repos.CaseRepo
	docs   repos.DocumentRepo
	events repos.MedicalEventRepo
	chrons repos.MedicalChronologyRepo
}

func NewCaseHandler(baseLog *logger.Logger, r repos.Set) *CaseHandler {
	return &CaseHandler{
		log:    baseLog.With("handler", "CaseHandler"),
		cases:  r.Cases,
		docs:   r.Documents,
		events: r.Events,
		chrons: r.Chronologies,
	}
}

// POST /api/cases
func (h *CaseHandler) CreateCase(c *gin.Context) {
	attorneyID, ok := middleware.AttorneyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req struct {
		ClientName   string `json:"client_name"`
		CaseNumber   string `json:"case_number"`
		IncidentDate string `json:"incident_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ClientName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_name is required"})
		return
	}
	cf := types.Case{
		AttorneyID: attorneyID,
		ClientName: req.ClientName,
		CaseNumber: req.CaseNumber,
		Status:     types.CaseStatusIntake,
	}
	if req.IncidentDate != "" {
		t, err := time.Parse("2006-01-02", req.IncidentDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "incident_date must be YYYY-MM-DD"})
			return
		}
		cf.IncidentDate = &t
	}
	if _, err := h.cases.Create(dbctx.Context{Ctx: c.Request.Context()}, []*types.Case{&cf}); err != nil {
		h.log.Error("create case failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create case"})
		return
	}
	c.JSON(http.StatusCreated, cf)
}

// GET /api/cases
func (h *CaseHandler) ListCases(c *gin.Context) {
	attorneyID, ok := middleware.AttorneyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	cases, err := h.cases.GetByAttorneyID(dbctx.Context{Ctx: c.Request.Context()}, attorneyID)
	if err != nil {
		h.log.Error("list cases failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list cases"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cases": cases})
}

// GET /api/cases/:id
func (h *CaseHandler) GetCase(c *gin.Context) {
	cf, ok := h.ownedCase(c)
	if !ok {
		return
	}
	docs, err := h.docs.GetByCaseID(dbctx.Context{Ctx: c.Request.Context()}, cf.ID)
	if err != nil {
		h.log.Error("load case documents failed", "case_id", cf.ID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load case"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"case": cf, "documents": docs})
}

// GET /api/cases/:id/events
func (h *CaseHandler) GetEvents(c *gin.Context) {
	cf, ok := h.ownedCase(c)
	if !ok {
		return
	}
	events, err := h.events.GetByCaseID(dbctx.Context{Ctx: c.Request.Context()}, cf.ID)
	if err != nil {
		h.log.Error("load events failed", "case_id", cf.ID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GET /api/cases/:id/chronology
func (h *CaseHandler) GetChronology(c *gin.Context) {
	cf, ok := h.ownedCase(c)
	if !ok {
		return
	}
	chron, err := h.chrons.GetByCaseID(dbctx.Context{Ctx: c.Request.Context()}, cf.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "chronology not generated yet"})
			return
		}
		h.log.Error("load chronology failed", "case_id", cf.ID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chronology"})
		return
	}
	c.JSON(http.StatusOK, chron)
}

// ownedCase loads the :id case and enforces ownership. A case belonging to a
// different attorney reads as not found.
func (h *CaseHandler) ownedCase(c *gin.Context) (*types.Case, bool) {
	attorneyID, ok := middleware.AttorneyID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, false
	}
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case id"})
		return nil, false
	}
	cf, err := h.cases.GetByID(dbctx.Context{Ctx: c.Request.Context()}, caseID)
	if err != nil || cf.AttorneyID != attorneyID {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return nil, false
	}
	return cf, true
}
