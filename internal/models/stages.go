package models

// ProjectStage is the lifecycle state of a staffing project.
type ProjectStage string

const (
	ProjectStageDraft       ProjectStage = "DRAFT"
	ProjectStageApproved    ProjectStage = "APPROVED"
	ProjectStagePlanning    ProjectStage = "PLANNING"
	ProjectStageShared      ProjectStage = "SHARED"
	ProjectStageOnsite      ProjectStage = "ONSITE"
	ProjectStageOnHold      ProjectStage = "ON_HOLD"
	ProjectStageCompleted   ProjectStage = "COMPLETED"
	ProjectStageShortClosed ProjectStage = "SHORT_CLOSED"
	ProjectStageTerminated  ProjectStage = "TERMINATED"
	ProjectStageCancelled   ProjectStage = "CANCELLED"
)

var projectStages = map[ProjectStage]bool{
	ProjectStageDraft:       false,
	ProjectStageApproved:    false,
	ProjectStagePlanning:    false,
	ProjectStageShared:      false,
	ProjectStageOnsite:      false,
	ProjectStageOnHold:      false,
	ProjectStageCompleted:   true,
	ProjectStageShortClosed: true,
	ProjectStageTerminated:  true,
	ProjectStageCancelled:   true,
}

// Valid reports whether s is a known project stage.
func (s ProjectStage) Valid() bool {
	_, ok := projectStages[s]
	return ok
}

// IsTerminal reports whether no further transition may leave s.
func (s ProjectStage) IsTerminal() bool {
	return projectStages[s]
}

// TerminalProjectStages lists the stages a project never leaves.
func TerminalProjectStages() []ProjectStage {
	return []ProjectStage{
		ProjectStageCompleted,
		ProjectStageShortClosed,
		ProjectStageTerminated,
		ProjectStageCancelled,
	}
}

// AssignmentStage is the lifecycle state of one worker's attachment to a project.
type AssignmentStage string

const (
	AssignmentStageMatched  AssignmentStage = "MATCHED"
	AssignmentStageAssigned AssignmentStage = "ASSIGNED"
	AssignmentStageOnSite   AssignmentStage = "ON_SITE"
	AssignmentStageRemoved  AssignmentStage = "REMOVED"
)

func (s AssignmentStage) Valid() bool {
	switch s {
	case AssignmentStageMatched, AssignmentStageAssigned, AssignmentStageOnSite, AssignmentStageRemoved:
		return true
	}
	return false
}

// ProfileStage is the worker-side stage kept in sync with assignments.
// Profiles carry other stages (training, onboarding) owned elsewhere.
type ProfileStage string

const (
	ProfileStageTrained  ProfileStage = "TRAINED"
	ProfileStageBenched  ProfileStage = "BENCHED"
	ProfileStageMatched  ProfileStage = "MATCHED"
	ProfileStageAssigned ProfileStage = "ASSIGNED"
	ProfileStageOnSite   ProfileStage = "ON_SITE"
	ProfileStageOnHold   ProfileStage = "ON_HOLD"
)

// AllocatableProfileStages are the profile stages eligible for a new assignment.
func AllocatableProfileStages() []ProfileStage {
	return []ProfileStage{ProfileStageTrained, ProfileStageBenched}
}

// HoldAttribution records which party a project hold is attributed to.
type HoldAttribution string

const (
	HoldAttributionEmployer     HoldAttribution = "EMPLOYER"
	HoldAttributionBuildsewa    HoldAttribution = "BUILDSEWA"
	HoldAttributionForceMajeure HoldAttribution = "FORCE_MAJEURE"
)

func (a HoldAttribution) Valid() bool {
	switch a {
	case HoldAttributionEmployer, HoldAttributionBuildsewa, HoldAttributionForceMajeure:
		return true
	}
	return false
}
