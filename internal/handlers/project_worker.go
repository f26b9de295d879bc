package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sudo-adi/bs-server-sub001/internal/services"
	"github.com/sudo-adi/bs-server-sub001/pkg/response"
)

type ProjectWorkerHandler struct {
	assignments *services.AssignmentService
	matching    *services.MatchingService
}

func NewProjectWorkerHandler(assignments *services.AssignmentService, matching *services.MatchingService) *ProjectWorkerHandler {
	return &ProjectWorkerHandler{assignments: assignments, matching: matching}
}

type assignWorkerBody struct {
	ProfileID       string  `json:"profileId"`
	SkillCategoryID *string `json:"skillCategoryId"`
	UserID          string  `json:"userId"`
}

// Assign matches a worker to the project
// POST /api/projects/:id/workers
func (h *ProjectWorkerHandler) Assign(c *gin.Context) {
	var body assignWorkerBody
	if err := bindOptionalJSON(c, &body); err != nil {
		respondError(c, err)
		return
	}

	assignment, err := h.assignments.AssignWorker(c.Request.Context(), c.Param("id"), &services.AssignWorkerRequest{
		ProfileID:       body.ProfileID,
		SkillCategoryID: body.SkillCategoryID,
		ActorID:         resolveActor(c, body.UserID),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, assignment)
}

type removeWorkerBody struct {
	Reason string `json:"reason"`
	UserID string `json:"userId"`
}

// Remove ends one assignment
// DELETE /api/projects/:id/workers/:assignmentId
func (h *ProjectWorkerHandler) Remove(c *gin.Context) {
	var body removeWorkerBody
	if err := bindOptionalJSON(c, &body); err != nil {
		respondError(c, err)
		return
	}

	assignment, err := h.assignments.RemoveWorker(c.Request.Context(), c.Param("id"), c.Param("assignmentId"), &services.RemoveWorkerRequest{
		Reason:  body.Reason,
		ActorID: resolveActor(c, body.UserID),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.SuccessMessage(c, "Worker removed from project", assignment)
}

type bulkRemoveBody struct {
	AssignmentIDs []string `json:"assignmentIds"`
	Reason        string   `json:"reason"`
	UserID        string   `json:"userId"`
}

// BulkRemove ends several assignments
// POST /api/projects/:id/workers/bulk-remove
func (h *ProjectWorkerHandler) BulkRemove(c *gin.Context) {
	var body bulkRemoveBody
	if err := bindOptionalJSON(c, &body); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.assignments.BulkRemove(c.Request.Context(), c.Param("id"), body.AssignmentIDs, &services.RemoveWorkerRequest{
		Reason:  body.Reason,
		ActorID: resolveActor(c, body.UserID),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}

// List returns the project's workers
// GET /api/projects/:id/workers?includeRemoved=true
func (h *ProjectWorkerHandler) List(c *gin.Context) {
	rows, err := h.assignments.ListProjectWorkers(c.Request.Context(), c.Param("id"), queryBool(c, "includeRemoved", false))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, rows)
}

type matchedProfilesBody struct {
	MatchedProfiles []services.MatchedProfile `json:"matchedProfiles"`
	UserID          string                    `json:"userId"`
}

// SaveMatched assigns a batch of matched profiles
// POST /api/projects/:id/matched-profiles
func (h *ProjectWorkerHandler) SaveMatched(c *gin.Context) {
	var body matchedProfilesBody
	if err := bindOptionalJSON(c, &body); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.matching.SaveMatchedProfiles(c.Request.Context(), c.Param("id"), &services.SaveMatchedProfilesRequest{
		MatchedProfiles: body.MatchedProfiles,
		ActorID:         resolveActor(c, body.UserID),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, result)
}
