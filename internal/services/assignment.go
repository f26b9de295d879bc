package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
	"gorm.io/gorm"
)

// AssignmentService attaches workers to projects and detaches them.
type AssignmentService struct {
	db           *gorm.DB
	availability *AvailabilityService
	eligibility  EligibilityChecker
	locker       Locker
	notifier     *ChangeNotifier
	txTimeout    time.Duration
	now          func() time.Time
}

func NewAssignmentService(db *gorm.DB, availability *AvailabilityService, locker Locker, notifier *ChangeNotifier, txTimeout time.Duration) *AssignmentService {
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &AssignmentService{
		db:           db,
		availability: availability,
		eligibility:  ProfileEligibility{RequireBlueWorker: true},
		locker:       locker,
		notifier:     notifier,
		txTimeout:    txTimeout,
		now:          time.Now,
	}
}

// SetEligibility replaces the eligibility policy.
func (s *AssignmentService) SetEligibility(e EligibilityChecker) {
	s.eligibility = e
}

type AssignWorkerRequest struct {
	ProfileID       string
	SkillCategoryID *string
	ActorID         string
}

// AssignWorker matches a benched worker to a project. Eligibility and
// availability are decided inside the transaction that writes the
// assignment, under the worker's lock, so two concurrent assignments of the
// same worker cannot both pass.
func (s *AssignmentService) AssignWorker(ctx context.Context, projectID string, req *AssignWorkerRequest) (*models.ProjectWorkerAssignment, error) {
	if req == nil || strings.TrimSpace(req.ActorID) == "" {
		return nil, NewUnauthorizedError("actor id is required")
	}
	if strings.TrimSpace(req.ProfileID) == "" {
		return nil, NewRequiredFieldError("profileId")
	}

	release, err := s.lockWorker(ctx, req.ProfileID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		project    models.Project
		assignment models.ProjectWorkerAssignment
		now        time.Time
	)
	err = withinTx(ctx, s.db, s.txTimeout, "assign worker", func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", projectID).First(&project).Error; err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("project", projectID)
			}
			return err
		}
		now = s.now()
		if project.Stage.IsTerminal() {
			return NewValidationError("projectId", fmt.Sprintf("cannot assign workers to a project in %s stage", project.Stage))
		}

		var profile models.Profile
		if err := forUpdate(tx).Where("id = ?", req.ProfileID).First(&profile).Error; err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("profile", req.ProfileID)
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.ProjectWorkerAssignment{}).
			Where("project_id = ? AND profile_id = ? AND removed_at IS NULL", project.ID, profile.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return NewConflictError("Profile is already assigned to this project", nil)
		}

		if err := s.eligibility.CheckEligibility(&profile); err != nil {
			return err
		}

		conflicts, err := s.availability.conflicts(tx, profile.ID, EffectiveWindow(nil, &project), project.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return NewConflictError("Profile has overlapping assignments: "+describeConflicts(conflicts), conflicts)
		}

		assignment = models.ProjectWorkerAssignment{
			ProjectID:           project.ID,
			ProfileID:           profile.ID,
			SkillCategoryID:     req.SkillCategoryID,
			Stage:               models.AssignmentStageMatched,
			AssignedAt:          now,
			AssignedByProfileID: strPtr(req.ActorID),
		}
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}

		return syncProfile(tx, profile.ID, project.ID, req.ActorID,
			fmt.Sprintf("Matched to project %s", project.Name), now)
	})
	if err != nil {
		logger.Debug().Err(err).
			Str("project_id", projectID).
			Str("profile_id", req.ProfileID).
			Msg("Worker assignment rejected")
		return nil, err
	}

	logger.Info().
		Str("project_id", project.ID).
		Str("profile_id", assignment.ProfileID).
		Str("assignment_id", assignment.ID).
		Msg("Worker matched to project")

	s.notifier.StageChanged(StageEvent{
		Type:         EventWorkerAssigned,
		ProjectID:    project.ID,
		To:           string(assignment.Stage),
		AssignmentID: assignment.ID,
		ProfileID:    assignment.ProfileID,
		ActorID:      req.ActorID,
		At:           now,
	}, []string{assignment.ProfileID})

	return &assignment, nil
}

func (s *AssignmentService) lockWorker(ctx context.Context, profileID string) (func(), error) {
	lockCtx := ctx
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}
	release, err := s.locker.Acquire(lockCtx, "worker:"+profileID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, NewConflictError("Another assignment for this worker is in progress", nil)
		}
		return nil, NewUnexpectedError("lock worker", err)
	}
	return release, nil
}

type RemoveWorkerRequest struct {
	Reason  string
	ActorID string
}

// RemoveWorker ends a live assignment and returns the worker to the stage
// its remaining work implies.
func (s *AssignmentService) RemoveWorker(ctx context.Context, projectID, assignmentID string, req *RemoveWorkerRequest) (*models.ProjectWorkerAssignment, error) {
	if req == nil || strings.TrimSpace(req.ActorID) == "" {
		return nil, NewUnauthorizedError("actor id is required")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, NewRequiredFieldError("reason")
	}

	var (
		assignment models.ProjectWorkerAssignment
		now        time.Time
	)
	err := withinTx(ctx, s.db, s.txTimeout, "remove worker", func(tx *gorm.DB) error {
		var project models.Project
		if err := forUpdate(tx).Where("id = ?", projectID).First(&project).Error; err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("project", projectID)
			}
			return err
		}

		if err := forUpdate(tx).
			Where("id = ? AND project_id = ?", assignmentID, projectID).
			First(&assignment).Error; err != nil {
			if isRecordNotFound(err) {
				return NewNotFoundError("assignment", assignmentID)
			}
			return err
		}
		if !assignment.IsActive() {
			return NewConflictError("Worker is already removed from this project", nil)
		}
		now = s.now()

		assignment.Stage = models.AssignmentStageRemoved
		assignment.RemovedAt = &now
		assignment.RemovalReason = &req.Reason
		assignment.RemovedByProfileID = strPtr(req.ActorID)
		if err := tx.Select("stage", "removed_at", "removal_reason", "removed_by_profile_id").
			Updates(&assignment).Error; err != nil {
			return err
		}

		return syncProfile(tx, assignment.ProfileID, projectID, req.ActorID,
			fmt.Sprintf("Removed from project %s: %s", project.Name, req.Reason), now)
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("project_id", projectID).
		Str("assignment_id", assignment.ID).
		Str("profile_id", assignment.ProfileID).
		Msg("Worker removed from project")

	s.notifier.StageChanged(StageEvent{
		Type:         EventWorkerRemoved,
		ProjectID:    projectID,
		To:           string(models.AssignmentStageRemoved),
		AssignmentID: assignment.ID,
		ProfileID:    assignment.ProfileID,
		ActorID:      req.ActorID,
		At:           now,
	}, []string{assignment.ProfileID})

	return &assignment, nil
}

// BulkOutcome is the per-item result of a bulk operation.
type BulkOutcome struct {
	ProfileID    string `json:"profileId,omitempty"`
	AssignmentID string `json:"assignmentId,omitempty"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

const (
	BulkStatusAssigned = "assigned"
	BulkStatusRemoved  = "removed"
	BulkStatusError    = "error"
)

// BulkResult summarises a bulk operation. Items fail independently.
type BulkResult struct {
	Success int           `json:"success"`
	Failed  int           `json:"failed"`
	Details []BulkOutcome `json:"details"`
}

func (r *BulkResult) add(o BulkOutcome) {
	if o.Status == BulkStatusError {
		r.Failed++
	} else {
		r.Success++
	}
	r.Details = append(r.Details, o)
}

// outcomeError is the caller-facing text for a failed bulk item. Unexpected
// failures are logged in full and reported generically.
func outcomeError(op, itemID string, err error) string {
	if KindOf(err) != KindUnexpected {
		return err.Error()
	}
	logger.Error().Err(err).
		Str("op", op).
		Str("item_id", itemID).
		Msg("Bulk item failed")
	return internalErrorMessage
}

// BulkRemove removes several assignments with one reason; each removal
// commits on its own.
func (s *AssignmentService) BulkRemove(ctx context.Context, projectID string, assignmentIDs []string, req *RemoveWorkerRequest) (*BulkResult, error) {
	if req == nil || strings.TrimSpace(req.ActorID) == "" {
		return nil, NewUnauthorizedError("actor id is required")
	}
	if len(assignmentIDs) == 0 {
		return nil, NewRequiredFieldError("assignmentIds")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, NewRequiredFieldError("reason")
	}

	result := &BulkResult{Details: make([]BulkOutcome, 0, len(assignmentIDs))}
	for _, id := range assignmentIDs {
		removed, err := s.RemoveWorker(ctx, projectID, id, req)
		if err != nil {
			result.add(BulkOutcome{AssignmentID: id, Status: BulkStatusError, Error: outcomeError("bulk remove", id, err)})
			continue
		}
		result.add(BulkOutcome{ProfileID: removed.ProfileID, AssignmentID: id, Status: BulkStatusRemoved})
	}
	return result, nil
}

// ListProjectWorkers lists a project's assignments with their profiles.
func (s *AssignmentService) ListProjectWorkers(ctx context.Context, projectID string, includeRemoved bool) ([]models.ProjectWorkerAssignment, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Project{}).Where("id = ?", projectID).Count(&count).Error; err != nil {
		return nil, NewUnexpectedError("list project workers", err)
	}
	if count == 0 {
		return nil, NewNotFoundError("project", projectID)
	}

	q := db.Preload("Profile").Where("project_id = ?", projectID)
	if !includeRemoved {
		q = q.Where("removed_at IS NULL")
	}
	var rows []models.ProjectWorkerAssignment
	if err := q.Order("assigned_at").Find(&rows).Error; err != nil {
		return nil, NewUnexpectedError("list project workers", err)
	}
	return rows, nil
}
