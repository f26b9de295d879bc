package main

import (
	"github.com/gin-gonic/gin"
	"github.com/sudo-adi/bs-server-sub001/internal/handlers"
	"github.com/sudo-adi/bs-server-sub001/internal/middleware"
	"github.com/sudo-adi/bs-server-sub001/internal/services"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(middleware.RequestID(), logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())
	r.Use(middleware.ActorIdentity())

	// Batch endpoints fan out into many transactions
	batchLimiter := middleware.NewRateLimiter(5, 10)

	var searcher services.ProfileSearcher
	if svc.search != nil {
		searcher = svc.search
	}
	healthHandler := handlers.NewHealthHandler(svc.db, svc.taskQueue, searcher, svc.hub)
	r.GET("/health", healthHandler.CheckHealth)

	stageHandler := handlers.NewProjectStageHandler(svc.stages)
	workerHandler := handlers.NewProjectWorkerHandler(svc.assignments, svc.matching)
	availabilityHandler := handlers.NewAvailabilityHandler(svc.availability)
	sseHandler := handlers.NewSSEHandler(svc.hub)
	schedulerHandler := handlers.NewSchedulerHandler(svc.scheduler)

	api := r.Group("/api")
	{
		// SSE (token validated inside the handler)
		api.GET("/events/stages", sseHandler.StreamStageEvents)

		// Reads
		api.GET("/projects/workers/unavailable", availabilityHandler.Unavailable)
		api.GET("/projects/workers/:profileId/availability", availabilityHandler.Worker)
		api.GET("/projects/:id", stageHandler.Get)
		api.GET("/projects/:id/stage-history", stageHandler.History)
		api.GET("/projects/:id/workers", workerHandler.List)
		api.GET("/projects/:id/available-workers", availabilityHandler.AvailableForProject)

		// Writes are audited
		writes := api.Group("", middleware.AuditLog(svc.logs))
		{
			for _, t := range services.Transitions() {
				writes.POST("/projects/:id/stage/"+string(t), stageHandler.Transition(t))
			}

			writes.POST("/projects/:id/workers", workerHandler.Assign)
			writes.DELETE("/projects/:id/workers/:assignmentId", workerHandler.Remove)
			writes.POST("/projects/:id/workers/bulk-remove", batchLimiter.Middleware(), workerHandler.BulkRemove)
			writes.POST("/projects/:id/matched-profiles", batchLimiter.Middleware(), workerHandler.SaveMatched)
		}

		// Admin
		admin := api.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog(svc.logs))
		{
			admin.POST("/sweep", schedulerHandler.RunSweep)
		}
	}
}
