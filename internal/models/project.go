package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project represents a staffing project requested by an employer
type Project struct {
	ID                    string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectCode           string           `gorm:"size:50;index" json:"projectCode"`
	Name                  string           `gorm:"size:255;not null" json:"name"`
	EmployerID            *string          `gorm:"type:varchar(36);index" json:"employerId"`
	ProjectManagerID      *string          `gorm:"type:varchar(36)" json:"projectManagerId"`
	Stage                 ProjectStage     `gorm:"size:30;not null;index" json:"stage"`
	StageChangedAt        *time.Time       `json:"stageChangedAt"`
	StageChangeReason     string           `gorm:"type:text" json:"stageChangeReason,omitempty"`
	OnHoldAttributableTo  *HoldAttribution `gorm:"size:30" json:"onHoldAttributableTo"`
	AwardDate             *time.Time       `json:"awardDate"`
	DeploymentDate        *time.Time       `json:"deploymentDate"`
	StartDate             *time.Time       `json:"startDate"`
	EndDate               *time.Time       `json:"endDate"`
	RevisedCompletionDate *time.Time       `json:"revisedCompletionDate"`
	ActualStartDate       *time.Time       `json:"actualStartDate"`
	ActualEndDate         *time.Time       `json:"actualEndDate"`
	CompletionDate        *time.Time       `json:"completionDate"`
	IsActive              bool             `gorm:"not null" json:"isActive"`
	CreatedBy             *string          `gorm:"type:varchar(36)" json:"createdBy"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
	DeletedAt             gorm.DeletedAt   `gorm:"index" json:"-"`
}

func (Project) TableName() string { return "projects" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
