package routes

import (
	"github.com/gin-gonic/gin"

	handler "reconciliation-close-backend/internal/handlers"
	"reconciliation-close-backend/internal/repository"
	"reconciliation-close-backend/internal/services/matching"
	"reconciliation-close-backend/internal/services/workflow"
	"reconciliation-close-backend/internal/store"
)

// RegisterRoutes wires repositories, the matching engine and the workflow
// service over the given document store and mounts the API.
func RegisterRoutes(r *gin.Engine, s store.Store, cfg matching.Config) {
	runRepo := repository.NewRunRepository(s)
	decisionRepo := repository.NewDecisionRepository(s)
	exceptionRepo := repository.NewExceptionRepository(s)
	stateRepo := repository.NewWorkflowStateRepository(s)
	auditRepo := repository.NewAuditRepository(s)
	announcementRepo := repository.NewAnnouncementRepository(s)

	svc := workflow.NewService(
		runRepo,
		decisionRepo,
		exceptionRepo,
		stateRepo,
		auditRepo,
		announcementRepo,
		matching.NewEngine(cfg),
	)

	reconHandler := handler.NewReconciliationHandler(svc)

	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Run lifecycle
	runs := api.Group("/runs")
	runs.POST("", reconHandler.CreateRun)
	runs.GET("", reconHandler.ListRuns)
	runs.GET("/:runId", reconHandler.GetRun)
	runs.GET("/:runId/summary", reconHandler.GetRunSummary)
	runs.POST("/:runId/reconcile", reconHandler.Reconcile)

	// Exceptions
	runs.GET("/:runId/exceptions", reconHandler.ListExceptions)
	exceptions := api.Group("/exceptions")
	exceptions.GET("/:id", reconHandler.GetException)
	exceptions.POST("/:id/action", reconHandler.ActOnException)

	// Monthly submission workflow (per run)
	runs.GET("/:runId/monthly-submissions", reconHandler.ListMonthlySubmissions)
	runs.GET("/:runId/monthly-submissions/:month", reconHandler.GetMonthlySubmission)
	runs.POST("/:runId/monthly-submissions/:month/address-doubtful", reconHandler.AddressMonthlyDoubtful)
	runs.POST("/:runId/monthly-submissions/:month/notify", reconHandler.NotifyMonthly)
	runs.POST("/:runId/monthly-submissions/:month/journal", reconHandler.CreateMonthlyJournal)
	runs.POST("/:runId/monthly-submissions/:month/submit-erp", reconHandler.SubmitMonthlyToERP)

	// Daily ops workflow (per run)
	api.GET("/daily-ops", reconHandler.ListDailyOps)
	runs.GET("/:runId/daily-ops", reconHandler.GetDailyOps)
	runs.POST("/:runId/daily-ops/business-date", reconHandler.SetDailyBusinessDate)
	runs.POST("/:runId/daily-ops/address-doubtful", reconHandler.AddressDailyDoubtful)
	runs.POST("/:runId/daily-ops/notify", reconHandler.NotifyDailyOps)
	runs.POST("/:runId/daily-ops/close", reconHandler.CloseDailyOps)

	// Monthly close (cross-run)
	monthlyClose := api.Group("/monthly-close")
	monthlyClose.GET("", reconHandler.ListMonthlyCloseBatches)
	monthlyClose.GET("/:month", reconHandler.GetMonthlyCloseBatch)
	monthlyClose.POST("/:month/journal", reconHandler.CreateMonthlyCloseJournal)
	monthlyClose.POST("/:month/submit-erp", reconHandler.SubmitMonthlyCloseToERP)
	monthlyClose.POST("/:month/revert-submission", reconHandler.RevertMonthlyCloseSubmission)

	// Feeds
	api.GET("/announcements", reconHandler.ListAnnouncements)
	api.GET("/audit-events", reconHandler.ListAuditEvents)
}
