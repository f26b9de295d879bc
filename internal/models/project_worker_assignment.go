package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectWorkerAssignment joins a worker profile to a project.
// An assignment is live while RemovedAt is nil.
type ProjectWorkerAssignment struct {
	ID                  string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID           string          `gorm:"type:varchar(36);not null;index:idx_assignment_project" json:"projectId"`
	Project             *Project        `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	ProfileID           string          `gorm:"type:varchar(36);not null;index:idx_assignment_profile" json:"profileId"`
	Profile             *Profile        `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
	SkillCategoryID     *string         `gorm:"type:varchar(36)" json:"skillCategoryId"`
	Stage               AssignmentStage `gorm:"size:20;not null;index" json:"stage"`
	AssignedAt          time.Time       `gorm:"not null" json:"assignedAt"`
	SharedAt            *time.Time      `json:"sharedAt"`
	DeployedAt          *time.Time      `json:"deployedAt"`
	RemovedAt           *time.Time      `gorm:"index" json:"removedAt"`
	RemovalReason       *string         `gorm:"type:text" json:"removalReason"`
	AssignedByProfileID *string         `gorm:"type:varchar(36)" json:"assignedByProfileId"`
	RemovedByProfileID  *string         `gorm:"type:varchar(36)" json:"removedByProfileId"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

func (ProjectWorkerAssignment) TableName() string { return "project_worker_assignments" }

func (a *ProjectWorkerAssignment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// IsActive reports whether the assignment still occupies the worker.
func (a *ProjectWorkerAssignment) IsActive() bool {
	return a.RemovedAt == nil
}
