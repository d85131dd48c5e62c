// Package tools is the operation surface shared by every transport: list
// courses, search assignments, and fetch one assignment's detail or content.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/akrisanov/canvas-mcp/internal/canvas"
	"github.com/akrisanov/canvas-mcp/internal/dates"
	"github.com/akrisanov/canvas-mcp/internal/logging"
	"github.com/akrisanov/canvas-mcp/internal/render"
	"github.com/akrisanov/canvas-mcp/internal/search"
)

// Accessor is the LMS client surface used by the tools.
type Accessor interface {
	search.CourseAccessor
	GetAssignment(ctx context.Context, courseID, assignmentID string) (canvas.Assignment, error)
}

// Presentation is a tool result: human-readable text plus the data behind it.
type Presentation struct {
	Text string
	Data any
}

// ValidationError is malformed caller input. It is returned before any
// request reaches the LMS.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

// OpError ties a failure to the operation it interrupted. Op only names
// identifiers, so it is safe to show to callers.
type OpError struct {
	Op  string
	Err error
}

func (e *OpError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *OpError) Unwrap() error { return e.Err }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

type Service struct {
	accessor Accessor
	searcher *search.Searcher
	logger   *slog.Logger
}

func NewService(accessor Accessor, searcher *search.Searcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	if searcher == nil {
		searcher = search.NewSearcher(accessor, search.Options{Logger: logger})
	}
	return &Service{accessor: accessor, searcher: searcher, logger: logger}
}

func (s *Service) ListCourses(ctx context.Context, state string) (Presentation, error) {
	st := canvas.CourseState(strings.ToLower(strings.TrimSpace(state)))
	if st == "" {
		st = canvas.StateActive
	}
	if !st.Valid() {
		return Presentation{}, invalid("state", "must be one of active, completed, all")
	}
	page, err := s.accessor.ListCourses(ctx, st)
	if err != nil {
		return Presentation{}, &OpError{Op: fmt.Sprintf("list %s courses", st), Err: err}
	}
	return Presentation{Text: render.CourseList(page, st), Data: page}, nil
}

func (s *Service) SearchAssignments(ctx context.Context, criteria search.Criteria) (Presentation, error) {
	criteria.CourseID = strings.TrimSpace(criteria.CourseID)
	criteria.DueBefore = strings.TrimSpace(criteria.DueBefore)
	criteria.DueAfter = strings.TrimSpace(criteria.DueAfter)
	if criteria.DueBefore != "" {
		if _, err := dates.ParseStrict(criteria.DueBefore); err != nil {
			return Presentation{}, invalid("dueBefore", "must be YYYY-MM-DD or an ISO 8601 timestamp")
		}
	}
	if criteria.DueAfter != "" {
		if _, err := dates.ParseStrict(criteria.DueAfter); err != nil {
			return Presentation{}, invalid("dueAfter", "must be YYYY-MM-DD or an ISO 8601 timestamp")
		}
	}

	res, err := s.searcher.Search(ctx, criteria)
	if err != nil {
		return Presentation{}, &OpError{Op: "search assignments", Err: err}
	}
	return Presentation{Text: render.SearchResults(criteria, res), Data: res}, nil
}

func (s *Service) GetAssignmentDetail(ctx context.Context, courseID, assignmentID, format string) (Presentation, error) {
	f := render.Format(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = render.FormatFull
	}
	if !f.Valid() {
		return Presentation{}, invalid("formatType", "must be one of full, plain, markdown")
	}
	a, err := s.fetchAssignment(ctx, courseID, assignmentID)
	if err != nil {
		return Presentation{}, err
	}
	return Presentation{Text: render.AssignmentDetail(a, f), Data: a}, nil
}

func (s *Service) GetAssignmentContent(ctx context.Context, courseID, assignmentID string) (Presentation, error) {
	a, err := s.fetchAssignment(ctx, courseID, assignmentID)
	if err != nil {
		return Presentation{}, err
	}
	content := render.NewContent(a)
	return Presentation{Text: render.AssignmentContent(content), Data: content}, nil
}

func (s *Service) fetchAssignment(ctx context.Context, courseID, assignmentID string) (canvas.Assignment, error) {
	courseID = strings.TrimSpace(courseID)
	assignmentID = strings.TrimSpace(assignmentID)
	if courseID == "" {
		return canvas.Assignment{}, invalid("courseId", "is required")
	}
	if assignmentID == "" {
		return canvas.Assignment{}, invalid("assignmentId", "is required")
	}
	a, err := s.accessor.GetAssignment(ctx, courseID, assignmentID)
	if err != nil {
		return canvas.Assignment{}, &OpError{Op: fmt.Sprintf("fetch assignment %s in course %s", assignmentID, courseID), Err: err}
	}
	return a, nil
}

// IsValidation reports whether err is caller input error.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Failure is the caller-facing summary of an error. It never includes
// upstream bodies, URLs, or credentials.
type Failure struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

func Describe(err error) Failure {
	if err == nil {
		return Failure{Code: "upstream_error", Message: "unknown error"}
	}

	var v *ValidationError
	if errors.As(err, &v) {
		return Failure{Code: "invalid_input", Message: v.Error()}
	}

	op := "complete the request"
	var opErr *OpError
	if errors.As(err, &opErr) {
		op = opErr.Op
	}

	var remote *canvas.RemoteError
	if errors.As(err, &remote) {
		code := "upstream_error"
		switch remote.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			code = "unauthorized"
		case http.StatusNotFound:
			code = "not_found"
		case http.StatusTooManyRequests:
			code = "rate_limited"
		}
		return Failure{
			Code:       code,
			Message:    fmt.Sprintf("Failed to %s: the LMS returned status %d.", op, remote.StatusCode),
			HTTPStatus: remote.StatusCode,
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Failure{Code: "timeout", Message: fmt.Sprintf("Failed to %s: the LMS did not respond in time.", op)}
	case errors.Is(err, context.Canceled):
		return Failure{Code: "canceled", Message: fmt.Sprintf("Failed to %s: the request was canceled.", op)}
	default:
		return Failure{Code: "upstream_error", Message: fmt.Sprintf("Failed to %s.", op)}
	}
}
