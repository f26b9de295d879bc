package services

import (
	"fmt"
	"time"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"gorm.io/gorm"
)

type cascadeContext struct {
	actorID string
	reason  string
	now     time.Time
	// deployedAt is stamped on assignments moving on site.
	deployedAt time.Time
}

// cascadeResult lists what a cascade touched, for post-commit notifications.
type cascadeResult struct {
	assignmentIDs []string
	profileIDs    []string
}

func (r *cascadeResult) affected() int {
	if r == nil {
		return 0
	}
	return len(r.assignmentIDs)
}

// applyCascade propagates a project transition onto the project's live
// assignments and their worker profiles. It runs inside the transition's
// transaction so a failure anywhere rolls the stage change back too.
func applyCascade(tx *gorm.DB, effect cascadeEffect, project *models.Project, c cascadeContext) (*cascadeResult, error) {
	switch effect {
	case cascadeShare:
		return advanceAssignments(tx, project, c, models.AssignmentStageMatched, models.AssignmentStageAssigned,
			map[string]interface{}{"shared_at": c.now},
			fmt.Sprintf("Project %s shared with employer", project.Name))
	case cascadeDeploy:
		return advanceAssignments(tx, project, c, models.AssignmentStageAssigned, models.AssignmentStageOnSite,
			map[string]interface{}{"deployed_at": c.deployedAt},
			fmt.Sprintf("Deployed on project %s", project.Name))
	case cascadeHold:
		return syncOnSiteProfiles(tx, project, c, fmt.Sprintf("Project %s on hold", project.Name))
	case cascadeResume:
		return syncOnSiteProfiles(tx, project, c, fmt.Sprintf("Project %s resumed", project.Name))
	case cascadeRelease:
		return releaseAssignments(tx, project, c)
	}
	return &cascadeResult{}, nil
}

func liveAssignments(tx *gorm.DB, projectID string, stage models.AssignmentStage) ([]models.ProjectWorkerAssignment, error) {
	q := tx.Where("project_id = ? AND removed_at IS NULL", projectID)
	if stage != "" {
		q = q.Where("stage = ?", stage)
	}
	var rows []models.ProjectWorkerAssignment
	if err := q.Order("assigned_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func advanceAssignments(
	tx *gorm.DB,
	project *models.Project,
	c cascadeContext,
	from, to models.AssignmentStage,
	stamp map[string]interface{},
	reason string,
) (*cascadeResult, error) {
	rows, err := liveAssignments(tx, project.ID, from)
	if err != nil {
		return nil, err
	}
	result := &cascadeResult{}
	if len(rows) == 0 {
		return result, nil
	}

	for _, row := range rows {
		result.assignmentIDs = append(result.assignmentIDs, row.ID)
		result.profileIDs = append(result.profileIDs, row.ProfileID)
	}

	updates := map[string]interface{}{"stage": to}
	for k, v := range stamp {
		updates[k] = v
	}
	if err := tx.Model(&models.ProjectWorkerAssignment{}).
		Where("id IN ?", result.assignmentIDs).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	for _, profileID := range result.profileIDs {
		if err := syncProfile(tx, profileID, project.ID, c.actorID, reason, c.now); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// syncOnSiteProfiles re-derives the profiles of on-site workers after the
// project itself changed stage. Assignments stay as they are.
func syncOnSiteProfiles(tx *gorm.DB, project *models.Project, c cascadeContext, reason string) (*cascadeResult, error) {
	rows, err := liveAssignments(tx, project.ID, models.AssignmentStageOnSite)
	if err != nil {
		return nil, err
	}
	result := &cascadeResult{}
	for _, row := range rows {
		if err := syncProfile(tx, row.ProfileID, project.ID, c.actorID, reason, c.now); err != nil {
			return nil, err
		}
		result.assignmentIDs = append(result.assignmentIDs, row.ID)
		result.profileIDs = append(result.profileIDs, row.ProfileID)
	}
	return result, nil
}

// releaseAssignments removes every live assignment of a closing project and
// returns each worker to the stage its other work implies.
func releaseAssignments(tx *gorm.DB, project *models.Project, c cascadeContext) (*cascadeResult, error) {
	rows, err := liveAssignments(tx, project.ID, "")
	if err != nil {
		return nil, err
	}
	result := &cascadeResult{}
	if len(rows) == 0 {
		return result, nil
	}

	reason := c.reason
	if reason == "" {
		reason = "Project completed"
	}
	for _, row := range rows {
		result.assignmentIDs = append(result.assignmentIDs, row.ID)
		result.profileIDs = append(result.profileIDs, row.ProfileID)
	}

	if err := tx.Model(&models.ProjectWorkerAssignment{}).
		Where("id IN ?", result.assignmentIDs).
		Updates(map[string]interface{}{
			"stage":                 models.AssignmentStageRemoved,
			"removed_at":            c.now,
			"removal_reason":        reason,
			"removed_by_profile_id": strPtr(c.actorID),
		}).Error; err != nil {
		return nil, err
	}

	for _, profileID := range result.profileIDs {
		if err := syncProfile(tx, profileID, project.ID, c.actorID, reason, c.now); err != nil {
			return nil, err
		}
	}
	return result, nil
}
