package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProfileTypeWorker    = "worker"
	ProfileTypeCandidate = "candidate"

	WorkerTypeBlue  = "blue"
	WorkerTypeWhite = "white"
)

// Profile is the read model of a worker or candidate. Biographical fields are
// maintained by profile management; the engine only moves CurrentStage.
type Profile struct {
	ID            string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	FirstName     string         `gorm:"size:100" json:"firstName"`
	LastName      string         `gorm:"size:100" json:"lastName"`
	Phone         string         `gorm:"size:20;index" json:"phone"`
	WorkerCode    string         `gorm:"size:50;index" json:"workerCode"`
	CandidateCode string         `gorm:"size:50;index" json:"candidateCode"`
	ProfileType   string         `gorm:"size:20;not null" json:"profileType"`
	WorkerType    string         `gorm:"size:20" json:"workerType"`
	CurrentStage  ProfileStage   `gorm:"size:30;index" json:"currentStage"`
	IsActive      bool           `gorm:"not null" json:"isActive"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Profile) TableName() string { return "profiles" }

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// FullName joins first and last name.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// ProfileStageHistory logs profile stage changes made by the engine.
type ProfileStageHistory struct {
	ID                 string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProfileID          string         `gorm:"type:varchar(36);not null;index" json:"profileId"`
	PreviousStage      ProfileStage   `gorm:"size:30" json:"previousStage"`
	NewStage           ProfileStage   `gorm:"size:30;not null" json:"newStage"`
	ChangedByProfileID *string        `gorm:"type:varchar(36)" json:"changedByProfileId"`
	ChangedAt          time.Time      `gorm:"not null;index" json:"changedAt"`
	Reason             string         `gorm:"type:text" json:"reason,omitempty"`
	Metadata           datatypes.JSON `json:"metadata,omitempty"`
}

func (ProfileStageHistory) TableName() string { return "profile_stage_histories" }

func (h *ProfileStageHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}
