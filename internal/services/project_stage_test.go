package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"github.com/sudo-adi/bs-server-sub001/internal/testutil"
)

func TestTransition_FullLifecycle(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, e.db)

	steps := []struct {
		transition Transition
		req        *TransitionRequest
		want       models.ProjectStage
	}{
		{TransitionStartPlanning, reason("kick-off"), models.ProjectStagePlanning},
		{TransitionShare, reason(""), models.ProjectStageShared},
		{TransitionStart, reason(""), models.ProjectStageOnsite},
		{TransitionHold, &TransitionRequest{ChangeReason: "monsoon", AttributableTo: models.HoldAttributionForceMajeure, ActorID: testActor}, models.ProjectStageOnHold},
		{TransitionResume, reason(""), models.ProjectStageOnsite},
		{TransitionComplete, reason(""), models.ProjectStageCompleted},
	}
	for _, step := range steps {
		got, err := e.stages.Transition(ctx, project.ID, step.transition, step.req)
		require.NoError(t, err, "transition %s", step.transition)
		assert.Equal(t, step.want, got.Stage)
	}

	reloaded := reloadProject(t, e.db, project.ID)
	assert.Equal(t, models.ProjectStageCompleted, reloaded.Stage)
	assert.False(t, reloaded.IsActive)
	assert.NotNil(t, reloaded.ActualStartDate)
	assert.NotNil(t, reloaded.ActualEndDate)
	assert.NotNil(t, reloaded.CompletionDate)
	assert.Nil(t, reloaded.OnHoldAttributableTo)

	history, err := e.stages.History(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, history, len(steps))
	assert.Equal(t, models.ProjectStageApproved, history[0].PreviousStage)
	assert.Equal(t, models.ProjectStagePlanning, history[0].NewStage)
	assert.Equal(t, "kick-off", history[0].Reason)
	require.NotNil(t, history[0].ChangedByProfileID)
	assert.Equal(t, testActor, *history[0].ChangedByProfileID)
}

func TestTransition_WrongSourceStage(t *testing.T) {
	tests := []struct {
		name       string
		stage      models.ProjectStage
		transition Transition
		req        *TransitionRequest
	}{
		{"hold while planning", models.ProjectStagePlanning, TransitionHold,
			&TransitionRequest{ChangeReason: "x", AttributableTo: models.HoldAttributionEmployer, ActorID: testActor}},
		{"share while approved", models.ProjectStageApproved, TransitionShare, reason("")},
		{"start while planning", models.ProjectStagePlanning, TransitionStart, reason("")},
		{"resume while onsite", models.ProjectStageOnsite, TransitionResume, reason("")},
		{"complete while on hold", models.ProjectStageOnHold, TransitionComplete, reason("")},
		{"cancel a completed project", models.ProjectStageCompleted, TransitionCancel, reason("late")},
		{"start planning a draft", models.ProjectStageDraft, TransitionStartPlanning, reason("early")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			project := testutil.CreateProject(t, e.db, testutil.WithStage(tt.stage))

			_, err := e.stages.Transition(context.Background(), project.ID, tt.transition, tt.req)
			typed := requireKind(t, err, KindInvalidStageTransition)
			assert.Equal(t, tt.stage, typed.From)

			assert.Equal(t, tt.stage, reloadProject(t, e.db, project.ID).Stage)
			assert.Zero(t, countRows(t, e.db, &models.ProjectStageHistory{}, "project_id = ?", project.ID))
		})
	}
}

func TestTransition_PayloadValidation(t *testing.T) {
	tests := []struct {
		name       string
		stage      models.ProjectStage
		transition Transition
		req        *TransitionRequest
		field      string
	}{
		{"planning needs a reason", models.ProjectStageApproved, TransitionStartPlanning, reason("  "), fieldChangeReason},
		{"hold needs attribution", models.ProjectStageOnsite, TransitionHold, reason("rain"), fieldAttributableTo},
		{"hold rejects unknown attribution", models.ProjectStageOnsite, TransitionHold,
			&TransitionRequest{ChangeReason: "rain", AttributableTo: "NOBODY", ActorID: testActor}, fieldAttributableTo},
		{"short close needs an end date", models.ProjectStageOnsite, TransitionShortClose, reason("budget"), fieldActualEndDate},
		{"terminate needs a reason", models.ProjectStageOnsite, TransitionTerminate, reason(""), fieldChangeReason},
		{"cancel needs a reason", models.ProjectStageDraft, TransitionCancel, reason(""), fieldChangeReason},
		{"planning takes no documents", models.ProjectStageApproved, TransitionStartPlanning,
			&TransitionRequest{ChangeReason: "go", DocumentIDs: []string{"doc-1"}, ActorID: testActor}, fieldDocumentIDs},
		{"empty document id", models.ProjectStagePlanning, TransitionShare,
			&TransitionRequest{DocumentIDs: []string{""}, ActorID: testActor}, fieldDocumentIDs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			project := testutil.CreateProject(t, e.db, testutil.WithStage(tt.stage))

			_, err := e.stages.Transition(context.Background(), project.ID, tt.transition, tt.req)
			typed := requireKind(t, err, KindValidation)
			assert.Equal(t, tt.field, typed.Field)
			assert.Equal(t, tt.stage, reloadProject(t, e.db, project.ID).Stage)
		})
	}
}

func TestTransition_RequiresActor(t *testing.T) {
	e := newTestEngine(t)
	project := testutil.CreateProject(t, e.db)

	_, err := e.stages.StartPlanning(context.Background(), project.ID, &TransitionRequest{ChangeReason: "go"})
	requireKind(t, err, KindUnauthorized)
	assert.Equal(t, models.ProjectStageApproved, reloadProject(t, e.db, project.ID).Stage)
}

func TestTransition_UnknownProject(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.stages.StartPlanning(context.Background(), "missing", reason("go"))
	requireKind(t, err, KindNotFound)
	assert.True(t, IsNotFound(err))
}

func TestTransition_CancelFromAnyOpenStage(t *testing.T) {
	for _, stage := range []models.ProjectStage{
		models.ProjectStageDraft,
		models.ProjectStageApproved,
		models.ProjectStagePlanning,
		models.ProjectStageShared,
		models.ProjectStageOnsite,
		models.ProjectStageOnHold,
	} {
		t.Run(string(stage), func(t *testing.T) {
			e := newTestEngine(t)
			project := testutil.CreateProject(t, e.db, testutil.WithStage(stage))

			got, err := e.stages.Cancel(context.Background(), project.ID, reason("client withdrew"))
			require.NoError(t, err)
			assert.Equal(t, models.ProjectStageCancelled, got.Stage)
			assert.False(t, reloadProject(t, e.db, project.ID).IsActive)
		})
	}
}

func TestTransition_DocumentsRecorded(t *testing.T) {
	e := newTestEngine(t)
	project := testutil.CreateProject(t, e.db, testutil.WithStage(models.ProjectStagePlanning))

	_, err := e.stages.Share(context.Background(), project.ID, &TransitionRequest{
		DocumentIDs: []string{"doc-1", "doc-2"},
		ActorID:     testActor,
	})
	require.NoError(t, err)

	history, err := e.stages.History(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{"doc-1", "doc-2"}, history[0].Documents())
}

func TestShare_AdvancesMatchedWorkers(t *testing.T) {
	e := newTestEngine(t)
	project := testutil.CreateProject(t, e.db, testutil.WithStage(models.ProjectStagePlanning))
	worker := testutil.CreateWorker(t, e.db, testutil.WithProfileStage(models.ProfileStageMatched))
	a := testutil.CreateAssignment(t, e.db, project, worker, models.AssignmentStageMatched)

	_, err := e.stages.Share(context.Background(), project.ID, reason(""))
	require.NoError(t, err)

	got := reloadAssignment(t, e.db, a.ID)
	assert.Equal(t, models.AssignmentStageAssigned, got.Stage)
	assert.NotNil(t, got.SharedAt)
	assert.Equal(t, models.ProfileStageAssigned, reloadProfile(t, e.db, worker.ID).CurrentStage)
	assert.Equal(t, int64(1), countRows(t, e.db, &models.ProfileStageHistory{}, "profile_id = ?", worker.ID))
}

func TestStart_DeploysOnlyAssignedWorkers(t *testing.T) {
	e := newTestEngine(t)
	project := testutil.CreateProject(t, e.db, testutil.WithStage(models.ProjectStageShared))
	w1 := testutil.CreateWorker(t, e.db, testutil.WithProfileStage(models.ProfileStageAssigned))
	w2 := testutil.CreateWorker(t, e.db, testutil.WithProfileStage(models.ProfileStageAssigned))
	w3 := testutil.CreateWorker(t, e.db, testutil.WithProfileStage(models.ProfileStageMatched))
	a1 := testutil.CreateAssignment(t, e.db, project, w1, models.AssignmentStageAssigned)
	a2 := testutil.CreateAssignment(t, e.db, project, w2, models.AssignmentStageAssigned)
	a3 := testutil.CreateAssignment(t, e.db, project, w3, models.AssignmentStageMatched)

	events := e.hub.Subscribe("test")
	defer e.hub.Unsubscribe("test")

	started := testutil.Date(2024, 3, 1)
	got, err := e.stages.Start(context.Background(), project.ID, &TransitionRequest{
		ActualStartDate: &started,
		ActorID:         testActor,
	})
	require.NoError(t, err)
	require.NotNil(t, got.ActualStartDate)
	assert.True(t, got.ActualStartDate.Equal(started))

	for _, a := range []*models.ProjectWorkerAssignment{a1, a2} {
		row := reloadAssignment(t, e.db, a.ID)
		assert.Equal(t, models.AssignmentStageOnSite, row.Stage)
		require.NotNil(t, row.DeployedAt)
		assert.True(t, row.DeployedAt.Equal(started))
	}
	assert.Equal(t, models.AssignmentStageMatched, reloadAssignment(t, e.db, a3.ID).Stage)

	assert.Equal(t, models.ProfileStageOnSite, reloadProfile(t, e.db, w1.ID).CurrentStage)
	assert.Equal(t, models.ProfileStageOnSite, reloadProfile(t, e.db, w2.ID).CurrentStage)
	assert.Equal(t, models.ProfileStageMatched, reloadProfile(t, e.db, w3.ID).CurrentStage)

	select {
	case ev := <-events:
		assert.Equal(t, EventProjectStageChanged, ev.Type)
		assert.Equal(t, string(models.ProjectStageShared), ev.From)
		assert.Equal(t, string(models.ProjectStageOnsite), ev.To)
	default:
		t.Fatal("expected a stage event after commit")
	}
}

func TestHoldAndResume_MoveOnSiteProfiles(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, e.db, testutil.WithStage(models.ProjectStageOnsite))
	worker := testutil.CreateWorker(t, e.db, testutil.WithProfileStage(models.ProfileStageOnSite))
	a := testutil.CreateAssignment(t, e.db, project, worker, models.AssignmentStageOnSite)

	held, err := e.stages.Hold(ctx, project.ID, &TransitionRequest{
		ChangeReason:   "permits",
		AttributableTo: models.HoldAttributionEmployer,
		ActorID:        testActor,
	})
	require.NoError(t, err)
	require.NotNil(t, held.OnHoldAttributableTo)
	assert.Equal(t, models.HoldAttributionEmployer, *held.OnHoldAttributableTo)
	assert.Equal(t, models.ProfileStageOnHold, reloadProfile(t, e.db, worker.ID).CurrentStage)
	assert.Equal(t, models.AssignmentStageOnSite, reloadAssignment(t, e.db, a.ID).Stage)

	_, err = e.stages.Resume(ctx, project.ID, reason(""))
	require.NoError(t, err)
	assert.Equal(t, models.ProfileStageOnSite, reloadProfile(t, e.db, worker.ID).CurrentStage)
	assert.Nil(t, reloadProject(t, e.db, project.ID).OnHoldAttributableTo)
}

func TestComplete_ReleasesEveryWorker(t *testing.T) {
	e := newTestEngine(t)
	project := testutil.CreateProject(t, e.db, testutil.WithStage(models.ProjectStageOnsite))
	onsite := testutil.CreateWorker(t, e.db, testutil.WithProfileStage(models.ProfileStageOnSite))
	matched := testutil.CreateWorker(t, e.db, testutil.WithProfileStage(models.ProfileStageMatched))
	a1 := testutil.CreateAssignment(t, e.db, project, onsite, models.AssignmentStageOnSite)
	a2 := testutil.CreateAssignment(t, e.db, project, matched, models.AssignmentStageMatched)

	_, err := e.stages.Complete(context.Background(), project.ID, &TransitionRequest{ActorID: testActor})
	require.NoError(t, err)

	for _, a := range []*models.ProjectWorkerAssignment{a1, a2} {
		row := reloadAssignment(t, e.db, a.ID)
		assert.Equal(t, models.AssignmentStageRemoved, row.Stage)
		assert.NotNil(t, row.RemovedAt)
		require.NotNil(t, row.RemovalReason)
		assert.Equal(t, "Project completed", *row.RemovalReason)
		require.NotNil(t, row.RemovedByProfileID)
		assert.Equal(t, testActor, *row.RemovedByProfileID)
	}
	assert.Equal(t, models.ProfileStageBenched, reloadProfile(t, e.db, onsite.ID).CurrentStage)
	assert.Equal(t, models.ProfileStageBenched, reloadProfile(t, e.db, matched.ID).CurrentStage)

	history, err := e.stages.History(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Contains(t, string(history[0].Metadata), `"assignmentsAffected":2`)
}

func TestTerminate_UsesReasonForRemoval(t *testing.T) {
	e := newTestEngine(t)
	project := testutil.CreateProject(t, e.db, testutil.WithStage(models.ProjectStageOnsite))
	worker := testutil.CreateWorker(t, e.db, testutil.WithProfileStage(models.ProfileStageOnSite))
	a := testutil.CreateAssignment(t, e.db, project, worker, models.AssignmentStageOnSite)

	_, err := e.stages.Terminate(context.Background(), project.ID, reason("contract breach"))
	require.NoError(t, err)

	row := reloadAssignment(t, e.db, a.ID)
	require.NotNil(t, row.RemovalReason)
	assert.Equal(t, "contract breach", *row.RemovalReason)
	assert.Equal(t, models.ProjectStageTerminated, reloadProject(t, e.db, project.ID).Stage)
}

func TestRelease_KeepsWorkerBusyElsewhere(t *testing.T) {
	e := newTestEngine(t)
	active := testutil.CreateProject(t, e.db, testutil.WithStage(models.ProjectStageOnsite))
	other := testutil.CreateProject(t, e.db, testutil.WithStage(models.ProjectStagePlanning))
	worker := testutil.CreateWorker(t, e.db, testutil.WithProfileStage(models.ProfileStageOnSite))
	testutil.CreateAssignment(t, e.db, active, worker, models.AssignmentStageOnSite)
	testutil.CreateAssignment(t, e.db, other, worker, models.AssignmentStageMatched)

	_, err := e.stages.Cancel(context.Background(), other.ID, reason("scrapped"))
	require.NoError(t, err)

	assert.Equal(t, models.ProfileStageOnSite, reloadProfile(t, e.db, worker.ID).CurrentStage)
	assert.Zero(t, countRows(t, e.db, &models.ProfileStageHistory{}, "profile_id = ?", worker.ID))
}

func TestShortClose(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, e.db, testutil.WithStage(models.ProjectStageOnsite))
	require.NoError(t, e.db.Model(project).Update("actual_start_date", testutil.Date(2024, 3, 1)).Error)

	early := testutil.Date(2024, 2, 1)
	_, err := e.stages.ShortClose(ctx, project.ID, &TransitionRequest{ChangeReason: "scope cut", ActualEndDate: &early, ActorID: testActor})
	typed := requireKind(t, err, KindValidation)
	assert.Equal(t, fieldActualEndDate, typed.Field)

	end := testutil.Date(2024, 4, 15)
	got, err := e.stages.ShortClose(ctx, project.ID, &TransitionRequest{ChangeReason: "scope cut", ActualEndDate: &end, ActorID: testActor})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStageShortClosed, got.Stage)
	require.NotNil(t, got.ActualEndDate)
	assert.True(t, got.ActualEndDate.Equal(end))
}

func TestTransition_RollsBackWhenHistoryWriteFails(t *testing.T) {
	e := newTestEngine(t)
	project := testutil.CreateProject(t, e.db, testutil.WithStage(models.ProjectStageShared))
	w1 := testutil.CreateWorker(t, e.db, testutil.WithProfileStage(models.ProfileStageAssigned))
	w2 := testutil.CreateWorker(t, e.db, testutil.WithProfileStage(models.ProfileStageAssigned))
	a1 := testutil.CreateAssignment(t, e.db, project, w1, models.AssignmentStageAssigned)
	a2 := testutil.CreateAssignment(t, e.db, project, w2, models.AssignmentStageAssigned)

	testutil.FailWritesOn(t, e.db, "project_stage_histories")

	_, err := e.stages.Start(context.Background(), project.ID, reason(""))
	requireKind(t, err, KindUnexpected)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	assert.Equal(t, models.ProjectStageShared, reloadProject(t, e.db, project.ID).Stage)
	for _, a := range []*models.ProjectWorkerAssignment{a1, a2} {
		row := reloadAssignment(t, e.db, a.ID)
		assert.Equal(t, models.AssignmentStageAssigned, row.Stage)
		assert.Nil(t, row.DeployedAt)
	}
	assert.Equal(t, models.ProfileStageAssigned, reloadProfile(t, e.db, w1.ID).CurrentStage)
	assert.Equal(t, models.ProfileStageAssigned, reloadProfile(t, e.db, w2.ID).CurrentStage)
	assert.Zero(t, countRows(t, e.db, &models.ProfileStageHistory{}, "1 = 1"))
}

func TestStageHistory_IsAppendOnly(t *testing.T) {
	e := newTestEngine(t)
	project := testutil.CreateProject(t, e.db)
	_, err := e.stages.StartPlanning(context.Background(), project.ID, reason("go"))
	require.NoError(t, err)

	history, err := e.stages.History(context.Background(), project.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	row := history[0]
	err = e.db.Model(&row).Update("reason", "rewritten").Error
	assert.ErrorIs(t, err, models.ErrHistoryImmutable)
	err = e.db.Delete(&row).Error
	assert.ErrorIs(t, err, models.ErrHistoryImmutable)

	history, err = e.stages.History(context.Background(), project.ID)
	require.NoError(t, err)
	assert.Equal(t, "go", history[0].Reason)
}

func TestParseTransition(t *testing.T) {
	for _, tr := range Transitions() {
		got, ok := ParseTransition(string(tr))
		assert.True(t, ok)
		assert.Equal(t, tr, got)
	}
	_, ok := ParseTransition("explode")
	assert.False(t, ok)

	assert.True(t, TransitionHold.AcceptsDocuments())
	assert.False(t, TransitionComplete.AcceptsDocuments())
	assert.Equal(t, models.ProjectStageOnsite, TransitionStart.Target())
	assert.Equal(t, models.ProjectStageShared, TransitionStart.Source())
}

// stallingClock hands out increasing times. The first reader stalls after
// taking its reading so a competing transition can try to overtake it.
type stallingClock struct {
	mu    sync.Mutex
	base  time.Time
	calls int
	first chan struct{}
	stall time.Duration
}

func (c *stallingClock) now() time.Time {
	c.mu.Lock()
	n := c.calls
	c.calls++
	c.mu.Unlock()

	t := c.base.Add(time.Duration(n) * time.Second)
	if n == 0 {
		close(c.first)
		time.Sleep(c.stall)
	}
	return t
}

func TestTransition_HistoryFollowsCommitOrder(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	project := testutil.CreateProject(t, e.db, testutil.WithStage(models.ProjectStageOnsite))

	clock := &stallingClock{
		base:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		first: make(chan struct{}),
		stall: 300 * time.Millisecond,
	}
	e.stages.now = clock.now

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = e.stages.Transition(ctx, project.ID, TransitionCancel, reason("client withdrew"))
	}()
	<-clock.first
	go func() {
		defer wg.Done()
		_, _ = e.stages.Transition(ctx, project.ID, TransitionHold, &TransitionRequest{
			ChangeReason:   "monsoon",
			AttributableTo: models.HoldAttributionForceMajeure,
			ActorID:        testActor,
		})
	}()
	wg.Wait()

	history, err := e.stages.History(ctx, project.ID)
	require.NoError(t, err)
	require.NotEmpty(t, history)

	// ordered by changed_at, every row must start where the previous one ended
	current := models.ProjectStageOnsite
	for i, row := range history {
		assert.Equal(t, current, row.PreviousStage, "row %d: %s -> %s", i, row.PreviousStage, row.NewStage)
		current = row.NewStage
	}
	assert.Equal(t, reloadProject(t, e.db, project.ID).Stage, current)
}
