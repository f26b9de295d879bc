package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sudo-adi/bs-server-sub001/internal/models"
	"gorm.io/gorm"
)

// Window is the span during which an assignment occupies its worker.
// A nil Start is unbounded in the past; a nil End is open-ended.
type Window struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// EffectiveWindow derives the occupied span of an assignment on project p.
// Start is the deployment date, else the project start date. End is the
// actual end date, else the planned end date. A nil assignment gives the
// window a new assignment on p would occupy.
func EffectiveWindow(a *models.ProjectWorkerAssignment, p *models.Project) Window {
	var w Window
	if a != nil && a.DeployedAt != nil {
		w.Start = a.DeployedAt
	} else if p.StartDate != nil {
		w.Start = p.StartDate
	}
	if p.ActualEndDate != nil {
		w.End = p.ActualEndDate
	} else if p.EndDate != nil {
		w.End = p.EndDate
	}
	return w
}

// NewWindow builds a closed window from two dates.
func NewWindow(start, end time.Time) Window {
	return Window{Start: &start, End: &end}
}

// Intersects applies closed-interval overlap on calendar days in loc, so two
// windows touching on the same day intersect.
func (w Window) Intersects(o Window, loc *time.Location) bool {
	if w.Start != nil && o.End != nil && civilDay(*w.Start, loc) > civilDay(*o.End, loc) {
		return false
	}
	if w.End != nil && o.Start != nil && civilDay(*w.End, loc) < civilDay(*o.Start, loc) {
		return false
	}
	return true
}

// clip returns the part of w inside the bounded window q.
func (w Window) clip(q Window, loc *time.Location) (time.Time, time.Time) {
	start, end := *q.Start, *q.End
	if w.Start != nil && civilDay(*w.Start, loc) > civilDay(start, loc) {
		start = *w.Start
	}
	if w.End != nil && civilDay(*w.End, loc) < civilDay(end, loc) {
		end = *w.End
	}
	return start, end
}

func civilDay(t time.Time, loc *time.Location) int {
	y, m, d := t.In(loc).Date()
	return y*10000 + int(m)*100 + d
}

// BlockingAssignment explains why a worker is not free in a window.
type BlockingAssignment struct {
	AssignmentID    string                 `json:"assignmentId"`
	ProjectID       string                 `json:"projectId"`
	ProjectCode     string                 `json:"projectCode"`
	ProjectName     string                 `json:"projectName"`
	ProjectStage    models.ProjectStage    `json:"projectStage"`
	AssignmentStage models.AssignmentStage `json:"assignmentStage"`
	EffectiveStart  *time.Time             `json:"effectiveStart"`
	// EffectiveEnd is nil for open-ended projects.
	EffectiveEnd       *time.Time `json:"effectiveEnd"`
	OverlapWorkingDays int        `json:"overlapWorkingDays"`
}

// AvailabilityResult answers a single-worker availability query.
type AvailabilityResult struct {
	ProfileID string               `json:"profileId"`
	Available bool                 `json:"available"`
	Conflicts []BlockingAssignment `json:"conflicts"`
}

type AvailabilityService struct {
	db       *gorm.DB
	calendar *WorkdayCalendar
	searcher ProfileSearcher
	loc      *time.Location
}

func NewAvailabilityService(db *gorm.DB, calendar *WorkdayCalendar, searcher ProfileSearcher, loc *time.Location) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{db: db, calendar: calendar, searcher: searcher, loc: loc}
}

// IsAvailable reports whether the worker has no live assignment intersecting
// [start, end], ignoring assignments on excludeProjectID.
func (s *AvailabilityService) IsAvailable(ctx context.Context, profileID string, start, end time.Time, excludeProjectID string) (bool, error) {
	result, err := s.Check(ctx, profileID, start, end, excludeProjectID)
	if err != nil {
		return false, err
	}
	return result.Available, nil
}

// Check returns availability together with every blocking assignment.
func (s *AvailabilityService) Check(ctx context.Context, profileID string, start, end time.Time, excludeProjectID string) (*AvailabilityResult, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var count int64
	if err := db.Model(&models.Profile{}).Where("id = ?", profileID).Count(&count).Error; err != nil {
		return nil, NewUnexpectedError("check availability", err)
	}
	if count == 0 {
		return nil, NewNotFoundError("profile", profileID)
	}

	conflicts, err := s.conflicts(db, profileID, NewWindow(start, end), excludeProjectID)
	if err != nil {
		return nil, NewUnexpectedError("check availability", err)
	}
	return &AvailabilityResult{
		ProfileID: profileID,
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}, nil
}

// conflicts lists the worker's live assignments intersecting q. Callers pass
// a transaction handle when the answer gates a write.
func (s *AvailabilityService) conflicts(db *gorm.DB, profileID string, q Window, excludeProjectID string) ([]BlockingAssignment, error) {
	rows, err := loadActiveAssignments(db, []string{profileID}, excludeProjectID)
	if err != nil {
		return nil, err
	}
	return s.blocking(rows, q), nil
}

func (s *AvailabilityService) blocking(rows []models.ProjectWorkerAssignment, q Window) []BlockingAssignment {
	out := make([]BlockingAssignment, 0)
	for i := range rows {
		a := &rows[i]
		if a.Project == nil {
			continue
		}
		w := EffectiveWindow(a, a.Project)
		if !w.Intersects(q, s.loc) {
			continue
		}
		b := BlockingAssignment{
			AssignmentID:    a.ID,
			ProjectID:       a.ProjectID,
			ProjectCode:     a.Project.ProjectCode,
			ProjectName:     a.Project.Name,
			ProjectStage:    a.Project.Stage,
			AssignmentStage: a.Stage,
			EffectiveStart:  w.Start,
			EffectiveEnd:    w.End,
		}
		if q.Start != nil && q.End != nil && s.calendar != nil {
			from, to := w.clip(q, s.loc)
			b.OverlapWorkingDays = s.calendar.WorkdaysBetween(from, to)
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return timeOrZero(out[i].EffectiveStart).Before(timeOrZero(out[j].EffectiveStart))
	})
	return out
}

// loadActiveAssignments reads live assignments on live projects with their
// project preloaded. An empty profileIDs slice means every worker.
func loadActiveAssignments(db *gorm.DB, profileIDs []string, excludeProjectID string) ([]models.ProjectWorkerAssignment, error) {
	q := db.Model(&models.ProjectWorkerAssignment{}).
		Preload("Project").
		Joins("JOIN projects ON projects.id = project_worker_assignments.project_id AND projects.deleted_at IS NULL").
		Where("project_worker_assignments.removed_at IS NULL")
	if len(profileIDs) > 0 {
		q = q.Where("project_worker_assignments.profile_id IN ?", profileIDs)
	}
	if excludeProjectID != "" {
		q = q.Where("project_worker_assignments.project_id <> ?", excludeProjectID)
	}

	var rows []models.ProjectWorkerAssignment
	if err := q.Order("project_worker_assignments.assigned_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UnavailableWorkersRequest filters the unavailable-workers listing.
type UnavailableWorkersRequest struct {
	StartDate time.Time
	EndDate   time.Time
	Search    string
	Page      int
	Limit     int
}

type UnavailableWorker struct {
	Worker              *models.Profile      `json:"worker"`
	BlockingAssignments []BlockingAssignment `json:"blockingAssignments"`
}

type UnavailableWorkersResponse struct {
	Items      []UnavailableWorker `json:"items"`
	Pagination Pagination          `json:"pagination"`
}

// ListUnavailable returns every worker blocked in the range, each with all of
// its blocking assignments.
func (s *AvailabilityService) ListUnavailable(ctx context.Context, req *UnavailableWorkersRequest) (*UnavailableWorkersResponse, error) {
	if err := validateRange(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var profileIDs []string
	if strings.TrimSpace(req.Search) != "" {
		q := applyProfileSearch(ctx, db.Model(&models.Profile{}), s.searcher, req.Search)
		if err := q.Pluck("profiles.id", &profileIDs).Error; err != nil {
			return nil, NewUnexpectedError("list unavailable workers", err)
		}
		if len(profileIDs) == 0 {
			page, limit := normalizePage(req.Page, req.Limit)
			return &UnavailableWorkersResponse{Items: []UnavailableWorker{}, Pagination: newPagination(0, page, limit)}, nil
		}
	}

	rows, err := loadActiveAssignments(db, profileIDs, "")
	if err != nil {
		return nil, NewUnexpectedError("list unavailable workers", err)
	}

	byProfile := make(map[string][]models.ProjectWorkerAssignment)
	for _, row := range rows {
		byProfile[row.ProfileID] = append(byProfile[row.ProfileID], row)
	}

	q := NewWindow(req.StartDate, req.EndDate)
	blocked := make(map[string][]BlockingAssignment)
	ids := make([]string, 0)
	for profileID, assignments := range byProfile {
		if b := s.blocking(assignments, q); len(b) > 0 {
			blocked[profileID] = b
			ids = append(ids, profileID)
		}
	}

	var profiles []models.Profile
	if len(ids) > 0 {
		if err := db.Where("id IN ?", ids).
			Order("worker_code").Order("first_name").
			Find(&profiles).Error; err != nil {
			return nil, NewUnexpectedError("list unavailable workers", err)
		}
	}

	items := make([]UnavailableWorker, 0, len(profiles))
	for i := range profiles {
		items = append(items, UnavailableWorker{
			Worker:              &profiles[i],
			BlockingAssignments: blocked[profiles[i].ID],
		})
	}

	page, pagination := paginate(items, req.Page, req.Limit)
	return &UnavailableWorkersResponse{Items: page, Pagination: pagination}, nil
}

// AvailableWorkersRequest filters the available-workers listing of a project.
type AvailableWorkersRequest struct {
	Search            string
	Page              int
	Limit             int
	RequireBlueWorker bool
}

type AvailableWorkersResponse struct {
	Items      []models.Profile `json:"items"`
	Pagination Pagination       `json:"pagination"`
}

// ListAvailableForProject lists eligible workers free for the project's
// whole window, ignoring their assignments on the project itself.
func (s *AvailabilityService) ListAvailableForProject(ctx context.Context, projectID string, req *AvailableWorkersRequest) (*AvailableWorkersResponse, error) {
	db := s.db.WithContext(ctx)

	var project models.Project
	if err := db.Where("id = ?", projectID).First(&project).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, NewNotFoundError("project", projectID)
		}
		return nil, NewUnexpectedError("list available workers", err)
	}
	if project.StartDate == nil {
		return nil, NewValidationError("startDate", "project has no start date; availability cannot be computed")
	}
	if project.EndDate == nil && project.ActualEndDate == nil {
		return nil, NewValidationError("endDate", "project has no end date; availability cannot be computed")
	}
	window := EffectiveWindow(nil, &project)

	q := eligibleProfilesQuery(db.Model(&models.Profile{}), req.RequireBlueWorker)
	q = applyProfileSearch(ctx, q, s.searcher, req.Search)

	var candidates []models.Profile
	if err := q.Order("worker_code").Order("first_name").Find(&candidates).Error; err != nil {
		return nil, NewUnexpectedError("list available workers", err)
	}
	if len(candidates) == 0 {
		page, limit := normalizePage(req.Page, req.Limit)
		return &AvailableWorkersResponse{Items: []models.Profile{}, Pagination: newPagination(0, page, limit)}, nil
	}

	ids := make([]string, len(candidates))
	for i, p := range candidates {
		ids[i] = p.ID
	}
	rows, err := loadActiveAssignments(db, ids, project.ID)
	if err != nil {
		return nil, NewUnexpectedError("list available workers", err)
	}
	busy := make(map[string]bool)
	for i := range rows {
		if busy[rows[i].ProfileID] || rows[i].Project == nil {
			continue
		}
		if EffectiveWindow(&rows[i], rows[i].Project).Intersects(window, s.loc) {
			busy[rows[i].ProfileID] = true
		}
	}

	available := make([]models.Profile, 0, len(candidates))
	for _, p := range candidates {
		if !busy[p.ID] {
			available = append(available, p)
		}
	}

	page, pagination := paginate(available, req.Page, req.Limit)
	return &AvailableWorkersResponse{Items: page, Pagination: pagination}, nil
}

func validateRange(start, end time.Time) error {
	if start.IsZero() {
		return NewRequiredFieldError("startDate")
	}
	if end.IsZero() {
		return NewRequiredFieldError("endDate")
	}
	if end.Before(start) {
		return NewValidationError("endDate", "endDate must not be before startDate")
	}
	return nil
}

// describeConflicts renders blocking assignments for an error message.
func describeConflicts(conflicts []BlockingAssignment) string {
	parts := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		end := "open-ended"
		if c.EffectiveEnd != nil {
			end = c.EffectiveEnd.Format("2006-01-02")
		}
		start := "unscheduled"
		if c.EffectiveStart != nil {
			start = c.EffectiveStart.Format("2006-01-02")
		}
		label := c.ProjectName
		if c.ProjectCode != "" {
			label = c.ProjectCode + " " + label
		}
		parts = append(parts, fmt.Sprintf("%s (%s - %s)", label, start, end))
	}
	return strings.Join(parts, "; ")
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
