package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sudo-adi/bs-server-sub001/internal/services"
	"github.com/sudo-adi/bs-server-sub001/pkg/response"
)

type SchedulerHandler struct {
	scheduler *services.ProjectScheduler
}

func NewSchedulerHandler(scheduler *services.ProjectScheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

// RunSweep triggers one auto-start/auto-complete sweep
// POST /api/admin/sweep
func (h *SchedulerHandler) RunSweep(c *gin.Context) {
	report, err := h.scheduler.RunOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}
