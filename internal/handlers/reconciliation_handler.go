package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reconciliation-close-backend/internal/apperr"
	"reconciliation-close-backend/internal/models"
	"reconciliation-close-backend/internal/services/workflow"
)

type ReconciliationHandler struct {
	service *workflow.Service
}

func NewReconciliationHandler(s *workflow.Service) *ReconciliationHandler {
	return &ReconciliationHandler{service: s}
}

// actorRequest is the optional body carried by every workflow action. Missing
// actors fall back to a role default per endpoint.
type actorRequest struct {
	Actor string `json:"actor"`
}

func actorOr(c *gin.Context, fallback string) string {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Actor != "" {
		return req.Actor
	}
	return fallback
}

func respondErr(c *gin.Context, err error) {
	switch {
	case apperr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case apperr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func runID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run ID"})
		return uuid.Nil, false
	}
	return id, true
}

// --- Runs ---

func (h *ReconciliationHandler) CreateRun(c *gin.Context) {
	var payload struct {
		InitiatedBy string `json:"initiated_by"`
	}
	_ = c.ShouldBindJSON(&payload)
	if payload.InitiatedBy == "" {
		payload.InitiatedBy = "analyst"
	}

	run, err := h.service.CreateRun(c.Request.Context(), payload.InitiatedBy)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"run": run})
}

func (h *ReconciliationHandler) ListRuns(c *gin.Context) {
	runs, err := h.service.ListRuns(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": runs})
}

func (h *ReconciliationHandler) GetRun(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	run, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (h *ReconciliationHandler) GetRunSummary(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	summary, err := h.service.RunSummary(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Reconcile accepts the three normalized source extracts and runs the
// matching pass synchronously.
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}

	var payload struct {
		InternalRows []models.NormalizedTransaction `json:"internal_rows"`
		ERPRows      []models.NormalizedTransaction `json:"erp_rows"`
		PSPRows      []models.NormalizedTransaction `json:"psp_rows"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	summary, err := h.service.Reconcile(c.Request.Context(), id, payload.InternalRows, payload.ERPRows, payload.PSPRows)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// --- Exceptions ---

func (h *ReconciliationHandler) ListExceptions(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	items, err := h.service.ListExceptions(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ReconciliationHandler) GetException(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exception ID"})
		return
	}
	item, err := h.service.GetException(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exception": item})
}

func (h *ReconciliationHandler) ActOnException(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exception ID"})
		return
	}

	var payload struct {
		State string `json:"state"`
		Actor string `json:"actor"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || payload.State == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state is required"})
		return
	}
	if payload.Actor == "" {
		payload.Actor = "analyst"
	}

	item, err := h.service.UpdateExceptionState(c.Request.Context(), id, models.ExceptionState(payload.State), payload.Actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exception": item})
}

// --- Monthly submissions ---

func (h *ReconciliationHandler) ListMonthlySubmissions(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	items, err := h.service.ListMonthlySubmissions(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ReconciliationHandler) GetMonthlySubmission(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	item, err := h.service.GetMonthlySubmission(c.Request.Context(), id, c.Param("month"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ReconciliationHandler) AddressMonthlyDoubtful(c *gin.Context) {
	h.monthlyAction(c, "analyst", h.service.AddressMonthlyDoubtful)
}

func (h *ReconciliationHandler) NotifyMonthly(c *gin.Context) {
	h.monthlyAction(c, "supervisor", h.service.MarkMonthlyNotified)
}

func (h *ReconciliationHandler) CreateMonthlyJournal(c *gin.Context) {
	h.monthlyAction(c, "supervisor", h.service.CreateMonthlyJournal)
}

func (h *ReconciliationHandler) SubmitMonthlyToERP(c *gin.Context) {
	h.monthlyAction(c, "admin", h.service.SubmitMonthlyToERP)
}

func (h *ReconciliationHandler) monthlyAction(
	c *gin.Context,
	defaultActor string,
	fn func(ctx context.Context, runID uuid.UUID, month, actor string) (models.MonthlySubmissionSummary, error),
) {
	id, ok := runID(c)
	if !ok {
		return
	}
	actor := actorOr(c, defaultActor)
	item, err := fn(c.Request.Context(), id, c.Param("month"), actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// --- Daily ops ---

func (h *ReconciliationHandler) ListDailyOps(c *gin.Context) {
	items, err := h.service.ListDailyOps(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ReconciliationHandler) GetDailyOps(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	summary, err := h.service.GetDailyOps(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *ReconciliationHandler) SetDailyBusinessDate(c *gin.Context) {
	id, ok := runID(c)
	if !ok {
		return
	}
	var payload struct {
		BusinessDate string `json:"business_date"`
		Actor        string `json:"actor"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil || payload.BusinessDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "business_date is required"})
		return
	}
	if payload.Actor == "" {
		payload.Actor = "supervisor"
	}

	summary, err := h.service.SetDailyBusinessDate(c.Request.Context(), id, payload.BusinessDate, payload.Actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *ReconciliationHandler) AddressDailyDoubtful(c *gin.Context) {
	h.dailyAction(c, "analyst", h.service.AddressDailyDoubtful)
}

func (h *ReconciliationHandler) NotifyDailyOps(c *gin.Context) {
	h.dailyAction(c, "supervisor", h.service.NotifyDailyOps)
}

func (h *ReconciliationHandler) CloseDailyOps(c *gin.Context) {
	h.dailyAction(c, "admin", h.service.CloseDailyOps)
}

func (h *ReconciliationHandler) dailyAction(
	c *gin.Context,
	defaultActor string,
	fn func(ctx context.Context, runID uuid.UUID, actor string) (models.DailyOpsSummary, error),
) {
	id, ok := runID(c)
	if !ok {
		return
	}
	actor := actorOr(c, defaultActor)
	summary, err := fn(c.Request.Context(), id, actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// --- Monthly close ---

func (h *ReconciliationHandler) ListMonthlyCloseBatches(c *gin.Context) {
	items, err := h.service.ListMonthlyCloseBatches(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ReconciliationHandler) GetMonthlyCloseBatch(c *gin.Context) {
	batch, err := h.service.GetMonthlyCloseBatch(c.Request.Context(), c.Param("month"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *ReconciliationHandler) CreateMonthlyCloseJournal(c *gin.Context) {
	h.closeAction(c, "supervisor", h.service.CreateMonthlyCloseJournal)
}

func (h *ReconciliationHandler) SubmitMonthlyCloseToERP(c *gin.Context) {
	h.closeAction(c, "admin", h.service.SubmitMonthlyCloseToERP)
}

func (h *ReconciliationHandler) RevertMonthlyCloseSubmission(c *gin.Context) {
	h.closeAction(c, "admin", h.service.RevertMonthlyCloseSubmission)
}

func (h *ReconciliationHandler) closeAction(
	c *gin.Context,
	defaultActor string,
	fn func(ctx context.Context, month, actor string) (models.MonthlyCloseBatch, error),
) {
	actor := actorOr(c, defaultActor)
	batch, err := fn(c.Request.Context(), c.Param("month"), actor)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// --- Feeds ---

func (h *ReconciliationHandler) ListAnnouncements(c *gin.Context) {
	items, err := h.service.ListAnnouncements(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ReconciliationHandler) ListAuditEvents(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	items, err := h.service.ListAuditEvents(c.Request.Context(), limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
