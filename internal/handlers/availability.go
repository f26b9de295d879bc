package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sudo-adi/bs-server-sub001/internal/services"
	"github.com/sudo-adi/bs-server-sub001/pkg/response"
)

type AvailabilityHandler struct {
	availability *services.AvailabilityService
}

func NewAvailabilityHandler(availability *services.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// AvailableForProject lists eligible workers free for the whole project window
// GET /api/projects/:id/available-workers?search=&page=&limit=&requireBlueWorker=
func (h *AvailabilityHandler) AvailableForProject(c *gin.Context) {
	resp, err := h.availability.ListAvailableForProject(c.Request.Context(), c.Param("id"), &services.AvailableWorkersRequest{
		Search:            c.Query("search"),
		Page:              queryInt(c, "page", 1),
		Limit:             queryInt(c, "limit", 20),
		RequireBlueWorker: queryBool(c, "requireBlueWorker", true),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, resp)
}

// Unavailable lists workers blocked in a date range
// GET /api/projects/workers/unavailable?startDate=&endDate=&search=&page=&limit=
func (h *AvailabilityHandler) Unavailable(c *gin.Context) {
	start, err := requireDate(c, "startDate")
	if err != nil {
		respondError(c, err)
		return
	}
	end, err := requireDate(c, "endDate")
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := h.availability.ListUnavailable(c.Request.Context(), &services.UnavailableWorkersRequest{
		StartDate: start,
		EndDate:   end,
		Search:    c.Query("search"),
		Page:      queryInt(c, "page", 1),
		Limit:     queryInt(c, "limit", 20),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, resp)
}

// Worker checks one worker against a date range
// GET /api/projects/workers/:profileId/availability?startDate=&endDate=&excludeProjectId=
func (h *AvailabilityHandler) Worker(c *gin.Context) {
	start, err := requireDate(c, "startDate")
	if err != nil {
		respondError(c, err)
		return
	}
	end, err := requireDate(c, "endDate")
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.availability.Check(c.Request.Context(), c.Param("profileId"), start, end, c.Query("excludeProjectId"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}
