package render

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/akrisanov/canvas-mcp/internal/canvas"
	"github.com/akrisanov/canvas-mcp/internal/markup"
	"github.com/akrisanov/canvas-mcp/internal/search"
)

func float(v float64) *float64 { return &v }

func TestCourseList(t *testing.T) {
	t.Parallel()

	page := canvas.CoursePage{
		Courses: []canvas.Course{
			{ID: "1", Name: "Biology", CourseCode: "BIO101", Term: &canvas.Term{Name: "Fall 2024"}},
			{ID: "2", Name: "Chemistry"},
		},
		HasMore: true,
	}
	want := `Found 2 active courses:

1. Biology (ID: 1)
   Code: BIO101
   Term: Fall 2024

2. Chemistry (ID: 2)
   Code: Not specified
   Term: Not specified

Showing the first 2 courses; more are available.
`
	if diff := cmp.Diff(want, CourseList(page, canvas.StateActive)); diff != "" {
		t.Fatalf("CourseList mismatch (-want +got):\n%s", diff)
	}
}

func TestCourseListEmpty(t *testing.T) {
	t.Parallel()

	cases := map[canvas.CourseState]string{
		canvas.StateActive:    "No active courses found.",
		canvas.StateCompleted: "No completed courses found.",
		canvas.StateAll:       "No courses found.",
	}
	for state, want := range cases {
		if got := CourseList(canvas.CoursePage{}, state); got != want {
			t.Fatalf("CourseList(%s) = %q, want %q", state, got, want)
		}
	}
}

func TestSearchResults(t *testing.T) {
	t.Parallel()

	res := search.Result{
		Matches: []search.Match{
			{
				Assignment: canvas.Assignment{ID: "11", Name: "Lab Report", DueAt: "2024-06-10T12:00:00", PointsPossible: float(10), SubmissionTypes: []string{"online_upload"}},
				CourseName: "Biology", CourseID: "1",
			},
			{
				Assignment: canvas.Assignment{ID: "12", Name: "Lab Safety"},
				CourseName: "Chemistry", CourseID: "2",
			},
		},
		CoursesSearched: 3,
		Skipped:         []search.CourseFailure{{CourseID: "3", Reason: "upstream returned status 500"}},
	}
	criteria := search.Criteria{Query: "lab", DueAfter: "2024-06-01"}
	want := `Found 2 assignments matching "lab" due after 2024-06-01:

1. Lab Report
   Course: Biology (ID: 1)
   Assignment ID: 11
   Due: Mon, Jun 10, 2024 12:00 PM
   Points: 10
   Submission types: online_upload

2. Lab Safety
   Course: Chemistry (ID: 2)
   Assignment ID: 12
   Due: No due date
   Points: Not specified
   Submission types: Not specified

Skipped 1 course that could not be searched.
`
	if diff := cmp.Diff(want, SearchResults(criteria, res)); diff != "" {
		t.Fatalf("SearchResults mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchResultsEmpty(t *testing.T) {
	t.Parallel()

	got := SearchResults(search.Criteria{Query: "essay", DueBefore: "2024-06-01"}, search.Result{CoursesSearched: 2})
	if got != `No assignments found matching "essay" due before 2024-06-01.` {
		t.Fatalf("unexpected message %q", got)
	}
	if got := SearchResults(search.Criteria{}, search.Result{}); got != "No assignments found." {
		t.Fatalf("unexpected message %q", got)
	}
	got = SearchResults(search.Criteria{}, search.Result{Skipped: []search.CourseFailure{{CourseID: "1"}, {CourseID: "2"}}})
	if got != "No assignments found.\nSkipped 2 courses that could not be searched.\n" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestSearchResultsNoCourses(t *testing.T) {
	t.Parallel()

	got := SearchResults(search.Criteria{}, search.Result{NoCourses: true})
	if !strings.HasPrefix(got, "No active courses found to search.") {
		t.Fatalf("unexpected message %q", got)
	}
	got = SearchResults(search.Criteria{IncludeCompleted: true}, search.Result{NoCourses: true})
	if got != "No courses found to search." {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestAssignmentDetailFormats(t *testing.T) {
	t.Parallel()

	a := canvas.Assignment{
		ID: "7", CourseID: "42", Name: "Essay",
		Description:     "<h2>Task</h2><p>Write <b>500</b>&nbsp;words</p>",
		PointsPossible:  float(12.5),
		SubmissionTypes: []string{"online_upload", "online_text_entry"},
		HTMLURL:         "https://c.example/courses/42/assignments/7",
	}
	header := `# Essay

Course ID: 42
Assignment ID: 7
Due: No due date
Points possible: 12.5
Submission types: online_upload, online_text_entry
URL: https://c.example/courses/42/assignments/7

## Description

`
	cases := map[Format]string{
		FormatFull:     "<h2>Task</h2><p>Write <b>500</b>&nbsp;words</p>\n",
		FormatPlain:    "TaskWrite 500 words\n",
		FormatMarkdown: "## Task\nWrite **500**&nbsp;words\n",
	}
	for format, body := range cases {
		if diff := cmp.Diff(header+body, AssignmentDetail(a, format)); diff != "" {
			t.Fatalf("AssignmentDetail(%s) mismatch (-want +got):\n%s", format, diff)
		}
	}
}

func TestAssignmentDetailWithoutDescription(t *testing.T) {
	t.Parallel()

	got := AssignmentDetail(canvas.Assignment{ID: "1", CourseID: "2", Name: "Quiz", Description: "<p> </p>"}, FormatPlain)
	if !strings.HasSuffix(got, "## Description\n\nNo description available\n") {
		t.Fatalf("unexpected detail %q", got)
	}
	if strings.Contains(got, "URL:") {
		t.Fatalf("URL line must be omitted when empty: %q", got)
	}
}

func TestAssignmentContent(t *testing.T) {
	t.Parallel()

	c := NewContent(canvas.Assignment{
		ID: "7", CourseID: "42", Name: "Essay",
		Description: `<p>Read <a href="https://x.example/ch1">chapter 1</a></p>`,
	})
	if c.Due != "No date set" || !c.HasDescription {
		t.Fatalf("unexpected content %+v", c)
	}
	if diff := cmp.Diff([]markup.Link{{Text: "chapter 1", Href: "https://x.example/ch1"}}, c.Links); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
	want := `# Essay

Due: No date set

## Content

Read chapter 1

## Links

- [chapter 1](https://x.example/ch1)
`
	if diff := cmp.Diff(want, AssignmentContent(c)); diff != "" {
		t.Fatalf("AssignmentContent mismatch (-want +got):\n%s", diff)
	}
}

func TestAssignmentContentEmpty(t *testing.T) {
	t.Parallel()

	c := NewContent(canvas.Assignment{ID: "1", CourseID: "2", Name: "Quiz"})
	want := "# Quiz\n\nDue: No date set\n\n## Content\n\nNo description available\n\n## Links\n\nNo links found\n"
	if diff := cmp.Diff(want, AssignmentContent(c)); diff != "" {
		t.Fatalf("AssignmentContent mismatch (-want +got):\n%s", diff)
	}
	if c.Links == nil {
		t.Fatal("links should be an empty list, not nil")
	}
}

func TestFormatValid(t *testing.T) {
	t.Parallel()

	for _, f := range []Format{FormatFull, FormatPlain, FormatMarkdown} {
		if !f.Valid() {
			t.Fatalf("%s should be valid", f)
		}
	}
	if Format("html").Valid() {
		t.Fatal("html should be invalid")
	}
}
