package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"gorm.io/gorm"
)

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DatePtr is Date as a pointer.
func DatePtr(year int, month time.Month, day int) *time.Time {
	d := Date(year, month, day)
	return &d
}

// ProjectOption customizes a fixture project.
type ProjectOption func(*models.Project)

func WithStage(stage models.ProjectStage) ProjectOption {
	return func(p *models.Project) { p.Stage = stage }
}

func WithDates(start, end *time.Time) ProjectOption {
	return func(p *models.Project) {
		p.StartDate = start
		p.EndDate = end
	}
}

// CreateProject inserts an active project, APPROVED by default.
func CreateProject(t testing.TB, db *gorm.DB, opts ...ProjectOption) *models.Project {
	t.Helper()

	code := "PRJ-" + uuid.NewString()[:6]
	p := &models.Project{
		ProjectCode: code,
		Name:        "Project " + code,
		Stage:       models.ProjectStageApproved,
		IsActive:    true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

// ProfileOption customizes a fixture profile.
type ProfileOption func(*models.Profile)

func WithProfileStage(stage models.ProfileStage) ProfileOption {
	return func(p *models.Profile) { p.CurrentStage = stage }
}

func WithName(first, last string) ProfileOption {
	return func(p *models.Profile) {
		p.FirstName = first
		p.LastName = last
	}
}

func WithWorkerType(workerType string) ProfileOption {
	return func(p *models.Profile) { p.WorkerType = workerType }
}

func Inactive() ProfileOption {
	return func(p *models.Profile) { p.IsActive = false }
}

// CreateWorker inserts an active blue-collar worker on the bench.
func CreateWorker(t testing.TB, db *gorm.DB, opts ...ProfileOption) *models.Profile {
	t.Helper()

	code := "W-" + uuid.NewString()[:6]
	p := &models.Profile{
		FirstName:    "Worker",
		LastName:     code,
		WorkerCode:   code,
		ProfileType:  models.ProfileTypeWorker,
		WorkerType:   models.WorkerTypeBlue,
		CurrentStage: models.ProfileStageBenched,
		IsActive:     true,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p
}

// CreateAssignment inserts a live assignment in the given stage.
func CreateAssignment(t testing.TB, db *gorm.DB, project *models.Project, profile *models.Profile, stage models.AssignmentStage) *models.ProjectWorkerAssignment {
	t.Helper()

	now := time.Now().UTC()
	a := &models.ProjectWorkerAssignment{
		ProjectID:  project.ID,
		ProfileID:  profile.ID,
		Stage:      stage,
		AssignedAt: now,
	}
	if stage == models.AssignmentStageOnSite {
		a.DeployedAt = &now
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	return a
}

// Reload re-reads a row by primary key.
func Reload[T any](t testing.TB, db *gorm.DB, id string) *T {
	t.Helper()

	var row T
	if err := db.Unscoped().First(&row, "id = ?", id).Error; err != nil {
		t.Fatalf("reload %T %s: %v", row, id, err)
	}
	return &row
}
