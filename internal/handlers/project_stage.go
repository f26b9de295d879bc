package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"github.com/sudo-adi/bs-server-sub001/internal/services"
	"github.com/sudo-adi/bs-server-sub001/pkg/response"
)

type ProjectStageHandler struct {
	stages *services.ProjectStageService
}

func NewProjectStageHandler(stages *services.ProjectStageService) *ProjectStageHandler {
	return &ProjectStageHandler{stages: stages}
}

type transitionBody struct {
	ChangeReason    string   `json:"changeReason"`
	AttributableTo  string   `json:"attributableTo"`
	ActualStartDate string   `json:"actualStartDate"`
	ActualEndDate   string   `json:"actualEndDate"`
	DocumentIDs     []string `json:"documentIds"`
	UserID          string   `json:"userId"`
}

// Transition returns the handler for one stage transition
// POST /api/projects/:id/stage/<transition>
func (h *ProjectStageHandler) Transition(t services.Transition) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body transitionBody
		if err := bindOptionalJSON(c, &body); err != nil {
			respondError(c, err)
			return
		}

		start, err := parseDate("actualStartDate", body.ActualStartDate)
		if err != nil {
			respondError(c, err)
			return
		}
		end, err := parseDate("actualEndDate", body.ActualEndDate)
		if err != nil {
			respondError(c, err)
			return
		}

		project, err := h.stages.Transition(c.Request.Context(), c.Param("id"), t, &services.TransitionRequest{
			ChangeReason:    body.ChangeReason,
			AttributableTo:  models.HoldAttribution(body.AttributableTo),
			ActualStartDate: start,
			ActualEndDate:   end,
			DocumentIDs:     body.DocumentIDs,
			ActorID:         resolveActor(c, body.UserID),
		})
		if err != nil {
			respondError(c, err)
			return
		}

		response.SuccessMessage(c, "Project moved to "+string(project.Stage), project)
	}
}

// History returns the project's stage history
// GET /api/projects/:id/stage-history
func (h *ProjectStageHandler) History(c *gin.Context) {
	rows, err := h.stages.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, rows)
}

// Get returns the project with its current stage
// GET /api/projects/:id
func (h *ProjectStageHandler) Get(c *gin.Context) {
	project, err := h.stages.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, project)
}
