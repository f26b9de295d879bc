package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
	"gorm.io/gorm"
)

// ProjectStageService drives projects through their lifecycle.
type ProjectStageService struct {
	db        *gorm.DB
	notifier  *ChangeNotifier
	txTimeout time.Duration
	now       func() time.Time
}

func NewProjectStageService(db *gorm.DB, notifier *ChangeNotifier, txTimeout time.Duration) *ProjectStageService {
	return &ProjectStageService{
		db:        db,
		notifier:  notifier,
		txTimeout: txTimeout,
		now:       time.Now,
	}
}

// Transition applies t to the project. The stage write, the history row and
// the assignment cascade commit together or not at all.
func (s *ProjectStageService) Transition(ctx context.Context, projectID string, t Transition, req *TransitionRequest) (*models.Project, error) {
	rule, ok := transitionRules[t]
	if !ok {
		return nil, NewValidationError("transition", fmt.Sprintf("unknown transition %q", t))
	}
	if req == nil {
		req = &TransitionRequest{}
	}
	if strings.TrimSpace(req.ActorID) == "" {
		return nil, NewUnauthorizedError("actor id is required")
	}

	var (
		project  models.Project
		previous models.ProjectStage
		result   *cascadeResult
		now      time.Time
	)
	err := withinTx(ctx, s.db, s.txTimeout, rule.action, func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", projectID).First(&project).Error; err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("project", projectID)
			}
			return err
		}
		// read the clock under the row lock so history follows commit order
		now = s.now()
		if err := rule.checkSource(project.Stage); err != nil {
			return err
		}
		if err := rule.checkPayload(req); err != nil {
			return err
		}

		previous = project.Stage
		deployedAt, err := applyStageFields(&project, t, rule, req, now)
		if err != nil {
			return err
		}
		if err := tx.Select(projectStageColumns).Updates(&project).Error; err != nil {
			return err
		}

		result, err = applyCascade(tx, rule.cascade, &project, cascadeContext{
			actorID:    req.ActorID,
			reason:     req.ChangeReason,
			now:        now,
			deployedAt: deployedAt,
		})
		if err != nil {
			return err
		}

		history := models.ProjectStageHistory{
			ProjectID:          project.ID,
			PreviousStage:      previous,
			NewStage:           rule.to,
			ChangedByProfileID: strPtr(req.ActorID),
			ChangedAt:          now,
			Reason:             req.ChangeReason,
			Metadata:           models.NewJSON(transitionMetadata(t, req, result)),
		}
		if len(req.DocumentIDs) > 0 {
			history.DocumentIDs = models.NewJSON(req.DocumentIDs)
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		logTransitionFailure(projectID, t, err)
		return nil, err
	}

	logger.Info().
		Str("project_id", project.ID).
		Str("from", string(previous)).
		Str("to", string(project.Stage)).
		Str("actor_id", req.ActorID).
		Int("assignments", result.affected()).
		Msg("Project stage changed")

	s.notifier.StageChanged(StageEvent{
		Type:      EventProjectStageChanged,
		ProjectID: project.ID,
		From:      string(previous),
		To:        string(project.Stage),
		ActorID:   req.ActorID,
		At:        now,
	}, result.profileIDs)

	return &project, nil
}

var projectStageColumns = []string{
	"stage",
	"stage_changed_at",
	"stage_change_reason",
	"on_hold_attributable_to",
	"actual_start_date",
	"actual_end_date",
	"completion_date",
	"is_active",
}

// applyStageFields sets the stage and the dates a transition owns on p and
// returns the deployment date for the start cascade.
func applyStageFields(p *models.Project, t Transition, rule transitionRule, req *TransitionRequest, now time.Time) (time.Time, error) {
	p.Stage = rule.to
	p.StageChangedAt = &now
	p.StageChangeReason = req.ChangeReason

	var deployedAt time.Time
	switch t {
	case TransitionStart:
		deployedAt = now
		if req.ActualStartDate != nil && !req.ActualStartDate.IsZero() {
			deployedAt = *req.ActualStartDate
		}
		p.ActualStartDate = &deployedAt
	case TransitionHold:
		attribution := req.AttributableTo
		p.OnHoldAttributableTo = &attribution
	case TransitionResume:
		p.OnHoldAttributableTo = nil
	case TransitionComplete:
		if p.ActualEndDate == nil {
			p.ActualEndDate = &now
		}
		p.CompletionDate = &now
	case TransitionShortClose:
		end := *req.ActualEndDate
		if p.ActualStartDate != nil && end.Before(*p.ActualStartDate) {
			return deployedAt, NewValidationError(fieldActualEndDate, "actualEndDate must not be before the project's actual start date")
		}
		p.ActualEndDate = &end
		p.CompletionDate = &now
	case TransitionTerminate:
		if p.ActualEndDate == nil {
			p.ActualEndDate = &now
		}
	}

	if rule.to.IsTerminal() {
		p.IsActive = false
	}
	return deployedAt, nil
}

func transitionMetadata(t Transition, req *TransitionRequest, result *cascadeResult) map[string]interface{} {
	meta := map[string]interface{}{
		"transition":          string(t),
		"assignmentsAffected": result.affected(),
	}
	if req.AttributableTo != "" {
		meta["attributableTo"] = string(req.AttributableTo)
	}
	if req.ActualStartDate != nil {
		meta["actualStartDate"] = req.ActualStartDate.Format(time.RFC3339)
	}
	if req.ActualEndDate != nil {
		meta["actualEndDate"] = req.ActualEndDate.Format(time.RFC3339)
	}
	return meta
}

func logTransitionFailure(projectID string, t Transition, err error) {
	event := logger.Warn()
	if KindOf(err) == KindUnexpected {
		event = logger.Error()
	}
	event.Err(err).
		Str("project_id", projectID).
		Str("transition", string(t)).
		Str("kind", string(KindOf(err))).
		Msg("Project stage transition rejected")
}

// StartPlanning moves an APPROVED project to PLANNING.
func (s *ProjectStageService) StartPlanning(ctx context.Context, projectID string, req *TransitionRequest) (*models.Project, error) {
	return s.Transition(ctx, projectID, TransitionStartPlanning, req)
}

// Share moves a PLANNING project to SHARED; matched workers become assigned.
func (s *ProjectStageService) Share(ctx context.Context, projectID string, req *TransitionRequest) (*models.Project, error) {
	return s.Transition(ctx, projectID, TransitionShare, req)
}

// Start moves a SHARED project on site; assigned workers are deployed.
func (s *ProjectStageService) Start(ctx context.Context, projectID string, req *TransitionRequest) (*models.Project, error) {
	return s.Transition(ctx, projectID, TransitionStart, req)
}

func (s *ProjectStageService) Hold(ctx context.Context, projectID string, req *TransitionRequest) (*models.Project, error) {
	return s.Transition(ctx, projectID, TransitionHold, req)
}

func (s *ProjectStageService) Resume(ctx context.Context, projectID string, req *TransitionRequest) (*models.Project, error) {
	return s.Transition(ctx, projectID, TransitionResume, req)
}

func (s *ProjectStageService) Complete(ctx context.Context, projectID string, req *TransitionRequest) (*models.Project, error) {
	return s.Transition(ctx, projectID, TransitionComplete, req)
}

func (s *ProjectStageService) ShortClose(ctx context.Context, projectID string, req *TransitionRequest) (*models.Project, error) {
	return s.Transition(ctx, projectID, TransitionShortClose, req)
}

func (s *ProjectStageService) Terminate(ctx context.Context, projectID string, req *TransitionRequest) (*models.Project, error) {
	return s.Transition(ctx, projectID, TransitionTerminate, req)
}

// Cancel closes a project from any non-terminal stage.
func (s *ProjectStageService) Cancel(ctx context.Context, projectID string, req *TransitionRequest) (*models.Project, error) {
	return s.Transition(ctx, projectID, TransitionCancel, req)
}

// GetProject returns a live project.
func (s *ProjectStageService) GetProject(ctx context.Context, projectID string) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).Where("id = ?", projectID).First(&project).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, NewNotFoundError("project", projectID)
		}
		return nil, NewUnexpectedError("get project", err)
	}
	return &project, nil
}

// History returns the project's stage history, oldest first.
func (s *ProjectStageService) History(ctx context.Context, projectID string) ([]models.ProjectStageHistory, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	var rows []models.ProjectStageHistory
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("changed_at").Order("id").
		Find(&rows).Error; err != nil {
		return nil, NewUnexpectedError("list stage history", err)
	}
	return rows, nil
}
