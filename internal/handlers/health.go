package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sudo-adi/bs-server-sub001/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the state of each subsystem.
type HealthHandler struct {
	db       *gorm.DB
	queue    services.TaskQueue
	searcher services.ProfileSearcher
	hub      *services.SSEHub
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, searcher services.ProfileSearcher, hub *services.SSEHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, searcher: searcher, hub: hub}
}

// CheckHealth returns 503 when the database is unreachable; the search index
// and queue are optional and only reported.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	search := "disabled"
	if h.searcher != nil {
		search = "degraded (database fallback)"
		if h.searcher.Healthy() {
			search = "ok"
		}
	}

	sseClients := 0
	if h.hub != nil {
		sseClients = h.hub.ClientCount()
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "staffing-engine",
		"components": gin.H{
			"database":    dbStatus,
			"queue_mode":  queueMode,
			"search":      search,
			"sse_clients": sseClients,
		},
	})
}
