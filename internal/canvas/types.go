package canvas

import "fmt"

// CourseState selects courses by enrollment status.
type CourseState string

const (
	StateActive    CourseState = "active"
	StateCompleted CourseState = "completed"
	StateAll       CourseState = "all"
)

// Valid reports whether s is one of the known states.
func (s CourseState) Valid() bool {
	switch s {
	case StateActive, StateCompleted, StateAll:
		return true
	default:
		return false
	}
}

// Bucket is a server-side due-date pre-filter for assignment listings.
type Bucket string

const (
	BucketNone   Bucket = ""
	BucketPast   Bucket = "past"
	BucketFuture Bucket = "future"
)

type Term struct {
	Name string `json:"name"`
}

// Course IDs arrive as JSON numbers or strings and are kept as strings.
type Course struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code,omitempty"`
	Term       *Term  `json:"term,omitempty"`
}

// Assignment mirrors the LMS assignment object. An empty DueAt means no due
// date and an empty Description means none was set.
type Assignment struct {
	ID              string   `json:"id"`
	CourseID        string   `json:"course_id,omitempty"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	DueAt           string   `json:"due_at,omitempty"`
	PointsPossible  *float64 `json:"points_possible,omitempty"`
	SubmissionTypes []string `json:"submission_types,omitempty"`
	HTMLURL         string   `json:"html_url,omitempty"`
}

type CoursePage struct {
	Courses []Course `json:"courses"`
	HasMore bool     `json:"has_more,omitempty"`
}

type AssignmentPage struct {
	Assignments []Assignment `json:"assignments"`
	HasMore     bool         `json:"has_more,omitempty"`
}

// AssignmentQuery controls a single assignment listing request.
type AssignmentQuery struct {
	PageSize int
	Bucket   Bucket
}

// RemoteError is a non-success response from the LMS. Body is kept for
// logging at debug level only; Error never includes it.
type RemoteError struct {
	StatusCode int
	Endpoint   string
	RequestID  string
	Body       string
}

func (e *RemoteError) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode == 0 {
		return "upstream request failed"
	}
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}
