package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tomnomnom/linkheader"

	"github.com/akrisanov/canvas-mcp/internal/config"
	"github.com/akrisanov/canvas-mcp/internal/logging"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

const (
	maxRetries       = 3
	retryWaitTime    = 200 * time.Millisecond
	retryMaxWaitTime = 2 * time.Second
)

type Client struct {
	http     *resty.Client
	pageSize int
	logger   *slog.Logger
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	rc := resty.NewWithClient(config.NewHTTPClient(cfg)).
		SetBaseURL(strings.TrimRight(cfg.APIBaseURL, "/")).
		SetAuthToken(cfg.APIToken).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(maxRetries).
		SetRetryWaitTime(retryWaitTime).
		SetRetryMaxWaitTime(retryMaxWaitTime).
		AddRetryCondition(retryable).
		SetLogger(restyLogger{logger: logger})
	return &Client{
		http:     rc,
		pageSize: cfg.PageSize,
		logger:   logger,
	}
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func (c *Client) GetCourse(ctx context.Context, id string) (Course, error) {
	if strings.TrimSpace(id) == "" {
		return Course{}, errors.New("course id is required")
	}
	params := url.Values{}
	params.Add("include[]", "term")

	body, _, err := c.get(ctx, "/courses/"+url.PathEscape(id), params)
	if err != nil {
		return Course{}, err
	}
	obj, err := decodeObject(body)
	if err != nil {
		return Course{}, fmt.Errorf("decode course: %w", err)
	}
	course := mapCourse(obj)
	if course.ID == "" {
		course.ID = id
	}
	return course, nil
}

func (c *Client) ListCourses(ctx context.Context, state CourseState) (CoursePage, error) {
	if state == "" {
		state = StateActive
	}
	if !state.Valid() {
		return CoursePage{}, fmt.Errorf("unknown course state %q", state)
	}

	params := url.Values{}
	params.Set("per_page", strconv.Itoa(c.pageSize))
	params.Add("include[]", "term")
	if state != StateAll {
		params.Set("enrollment_state", string(state))
	}

	body, header, err := c.get(ctx, "/courses", params)
	if err != nil {
		return CoursePage{}, err
	}
	items, err := decodeItems(body)
	if err != nil {
		return CoursePage{}, fmt.Errorf("decode courses: %w", err)
	}
	page := CoursePage{Courses: mapCourses(items), HasMore: hasNextPage(header)}
	if page.HasMore {
		c.logger.Info("course listing truncated", "state", state, "page_size", c.pageSize)
	}
	return page, nil
}

func (c *Client) ListAssignments(ctx context.Context, courseID string, q AssignmentQuery) (AssignmentPage, error) {
	if strings.TrimSpace(courseID) == "" {
		return AssignmentPage{}, errors.New("course id is required")
	}
	pageSize := q.PageSize
	if pageSize <= 0 || pageSize > c.pageSize {
		pageSize = c.pageSize
	}

	params := url.Values{}
	params.Set("per_page", strconv.Itoa(pageSize))
	params.Set("order_by", "due_at")
	if q.Bucket != BucketNone {
		params.Set("bucket", string(q.Bucket))
	}

	body, header, err := c.get(ctx, "/courses/"+url.PathEscape(courseID)+"/assignments", params)
	if err != nil {
		return AssignmentPage{}, err
	}
	items, err := decodeItems(body)
	if err != nil {
		return AssignmentPage{}, fmt.Errorf("decode assignments: %w", err)
	}
	page := AssignmentPage{Assignments: mapAssignments(items, courseID), HasMore: hasNextPage(header)}
	if page.HasMore {
		c.logger.Info("assignment listing truncated", "course_id", courseID, "page_size", pageSize)
	}
	return page, nil
}

func (c *Client) GetAssignment(ctx context.Context, courseID, assignmentID string) (Assignment, error) {
	if strings.TrimSpace(courseID) == "" {
		return Assignment{}, errors.New("course id is required")
	}
	if strings.TrimSpace(assignmentID) == "" {
		return Assignment{}, errors.New("assignment id is required")
	}

	endpoint := "/courses/" + url.PathEscape(courseID) + "/assignments/" + url.PathEscape(assignmentID)
	body, _, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return Assignment{}, err
	}
	obj, err := decodeObject(body)
	if err != nil {
		return Assignment{}, fmt.Errorf("decode assignment: %w", err)
	}
	a := mapAssignment(obj)
	if a.ID == "" {
		a.ID = assignmentID
	}
	if a.CourseID == "" {
		a.CourseID = courseID
	}
	return a, nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values) ([]byte, http.Header, error) {
	endpoint = "/" + strings.TrimLeft(endpoint, "/")
	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}

	start := time.Now()
	resp, err := req.Get(endpoint)
	if err != nil {
		c.logRequest(ctx, endpoint, resp, time.Since(start))
		return nil, nil, fmt.Errorf("request %s: %w", endpoint, err)
	}
	c.logRequest(ctx, endpoint, resp, time.Since(start))

	if resp.StatusCode() >= 400 {
		remote := &RemoteError{
			StatusCode: resp.StatusCode(),
			Endpoint:   endpoint,
			RequestID:  firstNonEmpty(resp.Header().Get("X-Request-Context-Id"), resp.Header().Get("X-Request-Id")),
			Body:       string(resp.Body()),
		}
		c.logger.Debug("upstream error body", "endpoint", endpoint, "status", remote.StatusCode, "body", remote.Body)
		return nil, nil, remote
	}
	return resp.Body(), resp.Header(), nil
}

func (c *Client) logRequest(ctx context.Context, endpoint string, resp *resty.Response, latency time.Duration) {
	requestID, _ := ctx.Value(requestIDKey).(string)
	status, size, retries := 0, 0, 0
	if resp != nil {
		status = resp.StatusCode()
		size = len(resp.Body())
		if resp.Request != nil && resp.Request.Attempt > 0 {
			retries = resp.Request.Attempt - 1
		}
	}
	c.logger.Debug("canvas request",
		"request_id", requestID,
		"method", http.MethodGet,
		"endpoint", endpoint,
		"status", status,
		"latency_ms", latency.Milliseconds(),
		"retries", retries,
		"bytes", size,
	)
}

// retryable repeats rate-limited and server-error responses. Transport errors
// and cancellations are returned as-is.
func retryable(resp *resty.Response, err error) bool {
	if err != nil || resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

// restyLogger sends resty's own retry and failure messages through slog.
type restyLogger struct {
	logger *slog.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.logger.Error(restyMessage(format, v...), "component", "resty")
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.logger.Warn(restyMessage(format, v...), "component", "resty")
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug(restyMessage(format, v...), "component", "resty")
}

func restyMessage(format string, v ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, v...))
}

func hasNextPage(header http.Header) bool {
	if header == nil {
		return false
	}
	links := linkheader.ParseMultiple(header.Values("Link"))
	return len(links.FilterByRel("next")) > 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
