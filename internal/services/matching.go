package services

import (
	"context"
	"strings"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
)

// MatchedProfile is one entry of a bulk matching request.
type MatchedProfile struct {
	ProfileID       string  `json:"profileId"`
	SkillCategoryID *string `json:"skillCategoryId"`
}

type SaveMatchedProfilesRequest struct {
	MatchedProfiles []MatchedProfile
	ActorID         string
}

// MatchingService saves the outcome of a matching round.
type MatchingService struct {
	assignments *AssignmentService
}

func NewMatchingService(assignments *AssignmentService) *MatchingService {
	return &MatchingService{assignments: assignments}
}

// SaveMatchedProfiles assigns each profile independently: one failure does
// not undo the others. A missing project fails the whole call up front.
func (s *MatchingService) SaveMatchedProfiles(ctx context.Context, projectID string, req *SaveMatchedProfilesRequest) (*BulkResult, error) {
	if req == nil || strings.TrimSpace(req.ActorID) == "" {
		return nil, NewUnauthorizedError("actor id is required")
	}
	if len(req.MatchedProfiles) == 0 {
		return nil, NewValidationError("matchedProfiles", "matchedProfiles must not be empty")
	}

	var count int64
	if err := s.assignments.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return nil, NewUnexpectedError("save matched profiles", err)
	}
	if count == 0 {
		return nil, NewNotFoundError("project", projectID)
	}

	result := &BulkResult{Details: make([]BulkOutcome, 0, len(req.MatchedProfiles))}
	for _, m := range req.MatchedProfiles {
		assignment, err := s.assignments.AssignWorker(ctx, projectID, &AssignWorkerRequest{
			ProfileID:       m.ProfileID,
			SkillCategoryID: m.SkillCategoryID,
			ActorID:         req.ActorID,
		})
		if err != nil {
			result.add(BulkOutcome{ProfileID: m.ProfileID, Status: BulkStatusError, Error: outcomeError("save matched profiles", m.ProfileID, err)})
			continue
		}
		result.add(BulkOutcome{ProfileID: m.ProfileID, AssignmentID: assignment.ID, Status: BulkStatusAssigned})
	}
	return result, nil
}
