package services

import (
	"time"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"gorm.io/gorm"
)

type profileStageChange struct {
	profileID string
	to        models.ProfileStage
	reason    string
	projectID string
	actorID   string
}

// applyProfileStage moves a profile to ch.to and logs the move. Missing or
// deleted profiles and no-op moves are skipped. It reports whether a row changed.
func applyProfileStage(tx *gorm.DB, ch profileStageChange, now time.Time) (bool, error) {
	var profile models.Profile
	if err := tx.Select("id", "current_stage").Where("id = ?", ch.profileID).First(&profile).Error; err != nil {
		if isRecordNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if profile.CurrentStage == ch.to {
		return false, nil
	}

	if err := tx.Model(&models.Profile{}).
		Where("id = ?", ch.profileID).
		Update("current_stage", ch.to).Error; err != nil {
		return false, err
	}

	history := models.ProfileStageHistory{
		ProfileID:          ch.profileID,
		PreviousStage:      profile.CurrentStage,
		NewStage:           ch.to,
		ChangedByProfileID: strPtr(ch.actorID),
		ChangedAt:          now,
		Reason:             ch.reason,
		Metadata:           models.NewJSON(map[string]string{"projectId": ch.projectID}),
	}
	if err := tx.Create(&history).Error; err != nil {
		return false, err
	}
	return true, nil
}

type liveAssignmentStage struct {
	AssignmentStage models.AssignmentStage
	ProjectStage    models.ProjectStage
}

// nextProfileStage derives where a worker stands from its live assignments
// on open projects other than excludeProjectID: the strongest one decides,
// otherwise the worker is benched.
func nextProfileStage(tx *gorm.DB, profileID, excludeProjectID string) (models.ProfileStage, error) {
	q := tx.Model(&models.ProjectWorkerAssignment{}).
		Select("project_worker_assignments.stage AS assignment_stage, projects.stage AS project_stage").
		Joins("JOIN projects ON projects.id = project_worker_assignments.project_id").
		Where("project_worker_assignments.profile_id = ?", profileID).
		Where("project_worker_assignments.removed_at IS NULL").
		Where("projects.deleted_at IS NULL").
		Where("projects.stage NOT IN ?", models.TerminalProjectStages())
	if excludeProjectID != "" {
		q = q.Where("project_worker_assignments.project_id <> ?", excludeProjectID)
	}

	var rows []liveAssignmentStage
	if err := q.Scan(&rows).Error; err != nil {
		return "", err
	}

	best := models.ProfileStageBenched
	for _, r := range rows {
		stage := profileStageFor(r.AssignmentStage, r.ProjectStage)
		if profileStageRank(stage) > profileStageRank(best) {
			best = stage
		}
	}
	return best, nil
}

// profileStageFor maps a live assignment to the profile stage it implies.
func profileStageFor(a models.AssignmentStage, p models.ProjectStage) models.ProfileStage {
	switch a {
	case models.AssignmentStageOnSite:
		if p == models.ProjectStageOnHold {
			return models.ProfileStageOnHold
		}
		return models.ProfileStageOnSite
	case models.AssignmentStageAssigned:
		return models.ProfileStageAssigned
	case models.AssignmentStageMatched:
		return models.ProfileStageMatched
	}
	return models.ProfileStageBenched
}

func profileStageRank(s models.ProfileStage) int {
	switch s {
	case models.ProfileStageOnSite:
		return 4
	case models.ProfileStageOnHold:
		return 3
	case models.ProfileStageAssigned:
		return 2
	case models.ProfileStageMatched:
		return 1
	}
	return 0
}

// syncProfile re-derives a profile's stage from all of its live assignments
// after a change on projectID, so a worker busy elsewhere is never downgraded.
func syncProfile(tx *gorm.DB, profileID, projectID, actorID, reason string, now time.Time) error {
	next, err := nextProfileStage(tx, profileID, "")
	if err != nil {
		return err
	}
	_, err = applyProfileStage(tx, profileStageChange{
		profileID: profileID,
		to:        next,
		reason:    reason,
		projectID: projectID,
		actorID:   actorID,
	}, now)
	return err
}
