package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"github.com/sudo-adi/bs-server-sub001/internal/testutil"
	"gorm.io/gorm"
)

const testActor = "actor-1"

type testEngine struct {
	db           *gorm.DB
	hub          *SSEHub
	stages       *ProjectStageService
	availability *AvailabilityService
	assignments  *AssignmentService
	matching     *MatchingService
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	db := testutil.NewTestDB(t)
	hub := NewSSEHub()
	notifier := NewChangeNotifier(hub, nil)
	availability := NewAvailabilityService(db, NewWorkdayCalendar(CalendarNone, time.UTC), nil, time.UTC)
	assignments := NewAssignmentService(db, availability, NewLocalLocker(), notifier, 0)

	return &testEngine{
		db:           db,
		hub:          hub,
		stages:       NewProjectStageService(db, notifier, 0),
		availability: availability,
		assignments:  assignments,
		matching:     NewMatchingService(assignments),
	}
}

// allowAll admits every profile so tests can reach the availability check.
type allowAll struct{}

func (allowAll) CheckEligibility(*models.Profile) error { return nil }

func requireKind(t *testing.T, err error, kind ErrorKind) *Error {
	t.Helper()
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, kind, e.Kind, "unexpected error: %v", err)
	return e
}

func reloadProject(t *testing.T, db *gorm.DB, id string) *models.Project {
	return testutil.Reload[models.Project](t, db, id)
}

func reloadProfile(t *testing.T, db *gorm.DB, id string) *models.Profile {
	return testutil.Reload[models.Profile](t, db, id)
}

func reloadAssignment(t *testing.T, db *gorm.DB, id string) *models.ProjectWorkerAssignment {
	return testutil.Reload[models.ProjectWorkerAssignment](t, db, id)
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(where, args...).Count(&n).Error)
	return n
}

func reason(r string) *TransitionRequest {
	return &TransitionRequest{ChangeReason: r, ActorID: testActor}
}
