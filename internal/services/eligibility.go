package services

import (
	"fmt"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"gorm.io/gorm"
)

const notEligibleMessage = "Only benched workers can be assigned to projects"

// EligibilityChecker decides whether a profile may take a new assignment.
type EligibilityChecker interface {
	CheckEligibility(profile *models.Profile) error
}

// ProfileEligibility admits active worker profiles on the bench. When
// RequireBlueWorker is set, white-collar workers are refused too.
type ProfileEligibility struct {
	RequireBlueWorker bool
}

func (e ProfileEligibility) CheckEligibility(p *models.Profile) error {
	if !p.IsActive {
		return NewValidationError("profileId", notEligibleMessage+": profile is inactive")
	}
	if p.ProfileType != models.ProfileTypeWorker {
		return NewValidationError("profileId", fmt.Sprintf("%s: profile type is %q, expected %q", notEligibleMessage, p.ProfileType, models.ProfileTypeWorker))
	}
	if e.RequireBlueWorker && p.WorkerType != models.WorkerTypeBlue {
		return NewValidationError("profileId", fmt.Sprintf("%s: worker type is %q, expected %q", notEligibleMessage, p.WorkerType, models.WorkerTypeBlue))
	}
	for _, stage := range models.AllocatableProfileStages() {
		if p.CurrentStage == stage {
			return nil
		}
	}
	return NewValidationError("profileId", fmt.Sprintf("%s: current stage is %s", notEligibleMessage, p.CurrentStage))
}

// eligibleProfilesQuery narrows a profiles query to what ProfileEligibility admits.
func eligibleProfilesQuery(q *gorm.DB, requireBlue bool) *gorm.DB {
	q = q.Where("profiles.is_active = ?", true).
		Where("profiles.profile_type = ?", models.ProfileTypeWorker).
		Where("profiles.current_stage IN ?", models.AllocatableProfileStages())
	if requireBlue {
		q = q.Where("profiles.worker_type = ?", models.WorkerTypeBlue)
	}
	return q
}
