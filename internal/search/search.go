// Package search finds assignments across many courses.
//
// Each course is fetched and filtered on its own and yields an outcome that
// is either a set of matches or a failure. Failed courses are recorded and
// skipped; only resolving the course scope itself can fail a search.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/akrisanov/canvas-mcp/internal/canvas"
	"github.com/akrisanov/canvas-mcp/internal/dates"
	"github.com/akrisanov/canvas-mcp/internal/logging"
	"github.com/akrisanov/canvas-mcp/internal/markup"
)

const defaultConcurrency = 4

// CourseAccessor is the subset of the LMS client the search needs.
type CourseAccessor interface {
	GetCourse(ctx context.Context, id string) (canvas.Course, error)
	ListCourses(ctx context.Context, state canvas.CourseState) (canvas.CoursePage, error)
	ListAssignments(ctx context.Context, courseID string, q canvas.AssignmentQuery) (canvas.AssignmentPage, error)
}

// Criteria selects assignments. When CourseID is set, IncludeCompleted is ignored.
type Criteria struct {
	Query            string `json:"query"`
	DueBefore        string `json:"dueBefore,omitempty"`
	DueAfter         string `json:"dueAfter,omitempty"`
	IncludeCompleted bool   `json:"includeCompleted,omitempty"`
	CourseID         string `json:"courseId,omitempty"`
}

// Match is an assignment that passed the filters, tagged with its course.
type Match struct {
	canvas.Assignment
	CourseName string `json:"courseName"`
	CourseID   string `json:"courseId"`
}

// CourseFailure records a course that was skipped. Reason never carries
// upstream response bodies.
type CourseFailure struct {
	CourseID   string `json:"courseId"`
	CourseName string `json:"courseName"`
	Reason     string `json:"reason"`
}

type Result struct {
	Matches         []Match         `json:"matches"`
	CoursesSearched int             `json:"coursesSearched"`
	Skipped         []CourseFailure `json:"skipped,omitempty"`
	NoCourses       bool            `json:"noCourses,omitempty"`
}

type Options struct {
	PageSize    int
	Concurrency int
	// BucketHints forwards a due-date bucket to the LMS when exactly one of
	// DueBefore/DueAfter is set, and then skips the local date filter.
	BucketHints bool
	Logger      *slog.Logger
}

type Searcher struct {
	accessor    CourseAccessor
	pageSize    int
	concurrency int
	bucketHints bool
	logger      *slog.Logger
}

func NewSearcher(accessor CourseAccessor, opts Options) *Searcher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Searcher{
		accessor:    accessor,
		pageSize:    opts.PageSize,
		concurrency: opts.Concurrency,
		bucketHints: opts.BucketHints,
		logger:      opts.Logger,
	}
}

// courseOutcome is the per-course result: matches on success, err otherwise.
type courseOutcome struct {
	course  canvas.Course
	matches []Match
	err     error
}

// Search runs criteria across the resolved course scope. When ctx is canceled
// it returns ctx.Err() along with the courses that finished before it.
func (s *Searcher) Search(ctx context.Context, criteria Criteria) (Result, error) {
	logger := s.logger.With("search_id", uuid.NewString())
	start := time.Now()

	courses, err := s.resolveScope(ctx, criteria)
	if err != nil {
		return Result{}, err
	}
	if len(courses) == 0 {
		logger.Info("search scope is empty", "course_id", criteria.CourseID, "include_completed", criteria.IncludeCompleted)
		return Result{NoCourses: true}, nil
	}

	terms := queryTerms(criteria.Query)
	bucket := s.bucketFor(criteria)

	outcomes := make([]courseOutcome, len(courses))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, course := range courses {
		i, course := i, course
		g.Go(func() error {
			outcomes[i] = s.searchCourse(ctx, course, criteria, terms, bucket)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{CoursesSearched: len(courses)}
	for _, out := range outcomes {
		if out.err != nil {
			logger.Warn("skipping course", "course_id", out.course.ID, "error", out.err)
			result.Skipped = append(result.Skipped, CourseFailure{
				CourseID:   out.course.ID,
				CourseName: out.course.Name,
				Reason:     failureReason(out.err),
			})
			continue
		}
		result.Matches = append(result.Matches, out.matches...)
	}
	SortByDueDate(result.Matches)

	if err := ctx.Err(); err != nil {
		logger.Info("search canceled", "completed", len(courses)-len(result.Skipped), "courses", len(courses))
		return result, err
	}

	logger.Info("search finished",
		"courses", len(courses),
		"skipped", len(result.Skipped),
		"matches", len(result.Matches),
		"bucket", string(bucket),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (s *Searcher) resolveScope(ctx context.Context, criteria Criteria) ([]canvas.Course, error) {
	if id := strings.TrimSpace(criteria.CourseID); id != "" {
		course, err := s.accessor.GetCourse(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch course %s: %w", id, err)
		}
		return []canvas.Course{course}, nil
	}

	state := canvas.StateActive
	if criteria.IncludeCompleted {
		state = canvas.StateAll
	}
	page, err := s.accessor.ListCourses(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("list %s courses: %w", state, err)
	}
	return page.Courses, nil
}

func (s *Searcher) searchCourse(ctx context.Context, course canvas.Course, criteria Criteria, terms []string, bucket canvas.Bucket) courseOutcome {
	out := courseOutcome{course: course}
	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}

	page, err := s.accessor.ListAssignments(ctx, course.ID, canvas.AssignmentQuery{PageSize: s.pageSize, Bucket: bucket})
	if err != nil {
		out.err = err
		return out
	}

	for _, a := range page.Assignments {
		if !matchesQuery(a, terms) {
			continue
		}
		if bucket == canvas.BucketNone && !dates.IsWithinRange(a.DueAt, criteria.DueBefore, criteria.DueAfter) {
			continue
		}
		out.matches = append(out.matches, Match{Assignment: a, CourseName: course.Name, CourseID: course.ID})
	}
	return out
}

// bucketFor maps a one-sided date range onto the LMS bucket parameter.
// The bucket is relative to now, not to the supplied date.
func (s *Searcher) bucketFor(criteria Criteria) canvas.Bucket {
	if !s.bucketHints {
		return canvas.BucketNone
	}
	before := strings.TrimSpace(criteria.DueBefore) != ""
	after := strings.TrimSpace(criteria.DueAfter) != ""
	switch {
	case before && !after:
		return canvas.BucketPast
	case after && !before:
		return canvas.BucketFuture
	default:
		return canvas.BucketNone
	}
}

// failureReason summarizes err without upstream bodies or URLs.
func failureReason(err error) string {
	var remote *canvas.RemoteError
	switch {
	case errors.As(err, &remote):
		return remote.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	default:
		return "request failed"
	}
}

func queryTerms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// matchesQuery reports whether any term occurs in the title or in the
// plain-text description. No terms matches everything.
func matchesQuery(a canvas.Assignment, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	title := strings.ToLower(a.Name)
	description := ""
	if a.Description != "" {
		description = strings.ToLower(markup.StripToPlainText(a.Description))
	}
	for _, term := range terms {
		if strings.Contains(title, term) {
			return true
		}
		if description != "" && strings.Contains(description, term) {
			return true
		}
	}
	return false
}

// SortByDueDate orders matches by due instant, earliest first. Matches without
// a parsable due date go last and keep their relative order.
func SortByDueDate(matches []Match) {
	type sortKey struct {
		at  time.Time
		ok  bool
		idx int
	}
	keys := make([]sortKey, len(matches))
	for i := range matches {
		t, ok := dates.Parse(matches[i].DueAt)
		keys[i] = sortKey{at: t, ok: ok, idx: i}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch {
		case a.ok && b.ok:
			return a.at.Before(b.at)
		case a.ok:
			return true
		default:
			return false
		}
	})
	sorted := make([]Match, len(matches))
	for i, k := range keys {
		sorted[i] = matches[k.idx]
	}
	copy(matches, sorted)
}
