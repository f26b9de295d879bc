package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrHistoryImmutable is returned when something tries to rewrite a history row.
var ErrHistoryImmutable = errors.New("stage history is append-only")

// ProjectStageHistory is the append-only log of project stage transitions.
type ProjectStageHistory struct {
	ID                 string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	ProjectID          string         `gorm:"type:varchar(36);not null;index" json:"projectId"`
	PreviousStage      ProjectStage   `gorm:"size:30" json:"previousStage"`
	NewStage           ProjectStage   `gorm:"size:30;not null" json:"newStage"`
	ChangedByProfileID *string        `gorm:"type:varchar(36)" json:"changedByProfileId"`
	ChangedAt          time.Time      `gorm:"not null;index" json:"changedAt"`
	Reason             string         `gorm:"type:text" json:"reason,omitempty"`
	DocumentIDs        datatypes.JSON `json:"documentIds,omitempty"`
	Metadata           datatypes.JSON `json:"metadata,omitempty"`
}

func (ProjectStageHistory) TableName() string { return "project_stage_histories" }

func (h *ProjectStageHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

func (h *ProjectStageHistory) BeforeUpdate(tx *gorm.DB) error { return ErrHistoryImmutable }

func (h *ProjectStageHistory) BeforeDelete(tx *gorm.DB) error { return ErrHistoryImmutable }

// Documents decodes the attached document ids.
func (h *ProjectStageHistory) Documents() []string {
	var ids []string
	if len(h.DocumentIDs) == 0 {
		return ids
	}
	_ = json.Unmarshal(h.DocumentIDs, &ids)
	return ids
}

// NewJSON encodes v for a JSON column; nil and empty values stay NULL.
func NewJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return datatypes.JSON(b)
}
