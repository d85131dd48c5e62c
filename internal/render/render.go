package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akrisanov/canvas-mcp/internal/canvas"
	"github.com/akrisanov/canvas-mcp/internal/dates"
	"github.com/akrisanov/canvas-mcp/internal/markup"
	"github.com/akrisanov/canvas-mcp/internal/search"
)

const (
	NoDescription = "No description available"
	NotSpecified  = "Not specified"
	NoLinks       = "No links found"
)

// Format selects how an assignment description is rendered.
type Format string

const (
	FormatFull     Format = "full"
	FormatPlain    Format = "plain"
	FormatMarkdown Format = "markdown"
)

func (f Format) Valid() bool {
	switch f {
	case FormatFull, FormatPlain, FormatMarkdown:
		return true
	default:
		return false
	}
}

// Content is the uniform view of one assignment's body.
type Content struct {
	CourseID       string        `json:"courseId"`
	AssignmentID   string        `json:"assignmentId"`
	Title          string        `json:"title"`
	DueAt          string        `json:"dueAt,omitempty"`
	Due            string        `json:"due"`
	Markdown       string        `json:"markdown"`
	PlainText      string        `json:"plainText"`
	Links          []markup.Link `json:"links"`
	HasDescription bool          `json:"hasDescription"`
}

func CourseList(page canvas.CoursePage, state canvas.CourseState) string {
	label := stateLabel(state)
	if len(page.Courses) == 0 {
		return fmt.Sprintf("No %scourses found.", label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s%s:\n", len(page.Courses), label, plural(len(page.Courses), "course", "courses"))
	for i, c := range page.Courses {
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%d. %s (ID: %s)\n", i+1, c.Name, c.ID)
		fmt.Fprintf(&b, "   Code: %s\n", orNotSpecified(c.CourseCode))
		term := ""
		if c.Term != nil {
			term = c.Term.Name
		}
		fmt.Fprintf(&b, "   Term: %s\n", orNotSpecified(term))
	}
	if page.HasMore {
		fmt.Fprintf(&b, "\nShowing the first %d courses; more are available.\n", len(page.Courses))
	}
	return b.String()
}

// SearchResults renders a search outcome, including the empty cases.
func SearchResults(criteria search.Criteria, res search.Result) string {
	if res.NoCourses {
		return NoCourses(criteria)
	}
	if len(res.Matches) == 0 {
		return NoResults(criteria) + skippedNote(res)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d %s%s%s:\n",
		len(res.Matches),
		plural(len(res.Matches), "assignment", "assignments"),
		queryPhrase(criteria.Query),
		dates.RangePhrase(criteria.DueBefore, criteria.DueAfter),
	)
	for i, m := range res.Matches {
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.Name)
		fmt.Fprintf(&b, "   Course: %s (ID: %s)\n", m.CourseName, m.CourseID)
		fmt.Fprintf(&b, "   Assignment ID: %s\n", m.ID)
		fmt.Fprintf(&b, "   Due: %s\n", dates.FormatForDisplay(m.DueAt))
		fmt.Fprintf(&b, "   Points: %s\n", points(m.PointsPossible))
		fmt.Fprintf(&b, "   Submission types: %s\n", submissionTypes(m.SubmissionTypes))
	}
	b.WriteString(skippedNote(res))
	return b.String()
}

func NoCourses(criteria search.Criteria) string {
	if criteria.IncludeCompleted {
		return "No courses found to search."
	}
	return "No active courses found to search. Set includeCompleted to search completed courses as well."
}

func NoResults(criteria search.Criteria) string {
	return fmt.Sprintf("No assignments found%s%s.",
		queryPhrase(criteria.Query),
		dates.RangePhrase(criteria.DueBefore, criteria.DueAfter),
	)
}

// AssignmentDetail renders metadata followed by the description in the given format.
func AssignmentDetail(a canvas.Assignment, format Format) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Name)
	fmt.Fprintf(&b, "Course ID: %s\n", a.CourseID)
	fmt.Fprintf(&b, "Assignment ID: %s\n", a.ID)
	fmt.Fprintf(&b, "Due: %s\n", dates.FormatForDisplay(a.DueAt))
	fmt.Fprintf(&b, "Points possible: %s\n", points(a.PointsPossible))
	fmt.Fprintf(&b, "Submission types: %s\n", submissionTypes(a.SubmissionTypes))
	if a.HTMLURL != "" {
		fmt.Fprintf(&b, "URL: %s\n", a.HTMLURL)
	}
	b.WriteString("\n## Description\n\n")
	b.WriteString(description(a.Description, format))
	b.WriteByte('\n')
	return b.String()
}

func NewContent(a canvas.Assignment) Content {
	c := Content{
		CourseID:       a.CourseID,
		AssignmentID:   a.ID,
		Title:          a.Name,
		DueAt:          a.DueAt,
		Due:            dates.FormatOr(a.DueAt, dates.NoDateSet),
		Links:          []markup.Link{},
		HasDescription: strings.TrimSpace(a.Description) != "",
	}
	if c.HasDescription {
		c.Markdown = strings.TrimSpace(markup.ToMarkdown(a.Description))
		c.PlainText = strings.TrimSpace(markup.StripToPlainText(a.Description))
		c.Links = markup.ExtractLinks(a.Description)
	}
	return c
}

func AssignmentContent(c Content) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", c.Title)
	fmt.Fprintf(&b, "Due: %s\n", c.Due)
	b.WriteString("\n## Content\n\n")
	b.WriteString(orDefault(c.Markdown, NoDescription))
	b.WriteString("\n\n## Links\n\n")
	if len(c.Links) == 0 {
		b.WriteString(NoLinks)
		b.WriteByte('\n')
		return b.String()
	}
	for _, l := range c.Links {
		fmt.Fprintf(&b, "- [%s](%s)\n", l.Text, l.Href)
	}
	return b.String()
}

func description(raw string, format Format) string {
	if strings.TrimSpace(raw) == "" {
		return NoDescription
	}
	var out string
	switch format {
	case FormatPlain:
		out = markup.StripToPlainText(raw)
	case FormatMarkdown:
		out = markup.ToMarkdown(raw)
	default:
		out = raw
	}
	return orDefault(strings.TrimSpace(out), NoDescription)
}

func skippedNote(res search.Result) string {
	if len(res.Skipped) == 0 {
		return ""
	}
	return fmt.Sprintf("\nSkipped %d %s that could not be searched.\n", len(res.Skipped), plural(len(res.Skipped), "course", "courses"))
}

func queryPhrase(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}
	return fmt.Sprintf(" matching %q", query)
}

func stateLabel(state canvas.CourseState) string {
	switch state {
	case canvas.StateActive, "":
		return "active "
	case canvas.StateCompleted:
		return "completed "
	default:
		return ""
	}
}

func points(p *float64) string {
	if p == nil {
		return NotSpecified
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func submissionTypes(types []string) string {
	if len(types) == 0 {
		return NotSpecified
	}
	return strings.Join(types, ", ")
}

func orNotSpecified(v string) string {
	return orDefault(v, NotSpecified)
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
