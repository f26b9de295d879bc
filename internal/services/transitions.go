package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
)

// Transition names a project stage transition. The value doubles as the
// route segment under /projects/{id}/stage/.
type Transition string

const (
	TransitionStartPlanning Transition = "start-planning"
	TransitionShare         Transition = "share"
	TransitionStart         Transition = "start"
	TransitionHold          Transition = "hold"
	TransitionResume        Transition = "resume"
	TransitionComplete      Transition = "complete"
	TransitionShortClose    Transition = "short-close"
	TransitionTerminate     Transition = "terminate"
	TransitionCancel        Transition = "cancel"
)

const (
	fieldChangeReason   = "changeReason"
	fieldAttributableTo = "attributableTo"
	fieldActualEndDate  = "actualEndDate"
	fieldDocumentIDs    = "documentIds"
)

// cascadeEffect is what a transition does to the project's live assignments.
type cascadeEffect int

const (
	cascadeNone cascadeEffect = iota
	cascadeShare
	cascadeDeploy
	cascadeHold
	cascadeResume
	cascadeRelease
)

type transitionRule struct {
	action string
	// from is the required source stage; empty means any non-terminal stage.
	from      models.ProjectStage
	to        models.ProjectStage
	required  []string
	documents bool
	cascade   cascadeEffect
}

var transitionOrder = []Transition{
	TransitionStartPlanning,
	TransitionShare,
	TransitionStart,
	TransitionHold,
	TransitionResume,
	TransitionComplete,
	TransitionShortClose,
	TransitionTerminate,
	TransitionCancel,
}

var transitionRules = map[Transition]transitionRule{
	TransitionStartPlanning: {
		action:   "start planning",
		from:     models.ProjectStageApproved,
		to:       models.ProjectStagePlanning,
		required: []string{fieldChangeReason},
	},
	TransitionShare: {
		action:    "share project",
		from:      models.ProjectStagePlanning,
		to:        models.ProjectStageShared,
		documents: true,
		cascade:   cascadeShare,
	},
	TransitionStart: {
		action:    "start project",
		from:      models.ProjectStageShared,
		to:        models.ProjectStageOnsite,
		documents: true,
		cascade:   cascadeDeploy,
	},
	TransitionHold: {
		action:    "hold project",
		from:      models.ProjectStageOnsite,
		to:        models.ProjectStageOnHold,
		required:  []string{fieldChangeReason, fieldAttributableTo},
		documents: true,
		cascade:   cascadeHold,
	},
	TransitionResume: {
		action:    "resume project",
		from:      models.ProjectStageOnHold,
		to:        models.ProjectStageOnsite,
		documents: true,
		cascade:   cascadeResume,
	},
	TransitionComplete: {
		action:  "complete project",
		from:    models.ProjectStageOnsite,
		to:      models.ProjectStageCompleted,
		cascade: cascadeRelease,
	},
	TransitionShortClose: {
		action:    "short-close project",
		from:      models.ProjectStageOnsite,
		to:        models.ProjectStageShortClosed,
		required:  []string{fieldChangeReason, fieldActualEndDate},
		documents: true,
		cascade:   cascadeRelease,
	},
	TransitionTerminate: {
		action:    "terminate project",
		from:      models.ProjectStageOnsite,
		to:        models.ProjectStageTerminated,
		required:  []string{fieldChangeReason},
		documents: true,
		cascade:   cascadeRelease,
	},
	TransitionCancel: {
		action:   "cancel project",
		to:       models.ProjectStageCancelled,
		required: []string{fieldChangeReason},
		cascade:  cascadeRelease,
	},
}

// Transitions lists every transition in lifecycle order.
func Transitions() []Transition {
	out := make([]Transition, len(transitionOrder))
	copy(out, transitionOrder)
	return out
}

// ParseTransition resolves a transition name.
func ParseTransition(name string) (Transition, bool) {
	t := Transition(name)
	_, ok := transitionRules[t]
	return t, ok
}

// Target returns the stage the transition moves a project to.
func (t Transition) Target() models.ProjectStage {
	return transitionRules[t].to
}

// Source returns the required source stage, empty for "any non-terminal".
func (t Transition) Source() models.ProjectStage {
	return transitionRules[t].from
}

// AcceptsDocuments reports whether documentIds may accompany the transition.
func (t Transition) AcceptsDocuments() bool {
	return transitionRules[t].documents
}

// checkSource fails unless current is a legal source stage for the rule.
func (r transitionRule) checkSource(current models.ProjectStage) error {
	if r.from == "" {
		if current.IsTerminal() {
			return &Error{
				Kind:    KindInvalidStageTransition,
				Message: fmt.Sprintf("cannot %s: project is in %s stage, required a non-terminal stage", r.action, current),
				From:    current,
			}
		}
		return nil
	}
	if current != r.from {
		return NewInvalidStageError(r.action, current, r.from)
	}
	return nil
}

// checkPayload validates mandatory fields and attachments.
func (r transitionRule) checkPayload(req *TransitionRequest) error {
	for _, field := range r.required {
		switch field {
		case fieldChangeReason:
			if strings.TrimSpace(req.ChangeReason) == "" {
				return NewRequiredFieldError(fieldChangeReason)
			}
		case fieldAttributableTo:
			if req.AttributableTo == "" {
				return NewRequiredFieldError(fieldAttributableTo)
			}
			if !req.AttributableTo.Valid() {
				return NewValidationError(fieldAttributableTo, fmt.Sprintf(
					"attributableTo must be one of %s, %s, %s, got %q",
					models.HoldAttributionEmployer, models.HoldAttributionBuildsewa,
					models.HoldAttributionForceMajeure, req.AttributableTo))
			}
		case fieldActualEndDate:
			if req.ActualEndDate == nil || req.ActualEndDate.IsZero() {
				return NewRequiredFieldError(fieldActualEndDate)
			}
		}
	}

	if len(req.DocumentIDs) > 0 {
		if !r.documents {
			return NewValidationError(fieldDocumentIDs, fmt.Sprintf("documentIds are not accepted when you %s", r.action))
		}
		for _, id := range req.DocumentIDs {
			if strings.TrimSpace(id) == "" {
				return NewValidationError(fieldDocumentIDs, "documentIds must not contain empty ids")
			}
		}
	}
	return nil
}

// TransitionRequest is the payload of a stage transition.
type TransitionRequest struct {
	ChangeReason    string
	AttributableTo  models.HoldAttribution
	ActualStartDate *time.Time
	ActualEndDate   *time.Time
	DocumentIDs     []string
	ActorID         string
}
