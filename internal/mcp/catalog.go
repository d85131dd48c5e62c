package mcp

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	ToolListCourses          = "canvas.list_courses"
	ToolSearchAssignments    = "canvas.search_assignments"
	ToolGetAssignment        = "canvas.get_assignment"
	ToolGetAssignmentContent = "canvas.get_assignment_content"

	PromptWeeklyPlan        = "canvas.prompt.weekly_plan"
	PromptExplainAssignment = "canvas.prompt.explain_assignment"
)

const (
	defaultPlanDays = 7
	maxPlanDays     = 60
)

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolCatalog lists the tools in the order they are advertised.
func ToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolListCourses,
			Description: "List your courses, filtered by enrollment state.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"state": map[string]any{
						"type":        "string",
						"enum":        []string{"active", "completed", "all"},
						"description": "Enrollment state to list. Defaults to active.",
					},
				},
			},
		},
		{
			Name:        ToolSearchAssignments,
			Description: "Search assignments across courses by keywords in the title or description, optionally limited to a due-date range.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Whitespace-separated keywords. An assignment matches when any keyword appears in its title or description. Empty matches everything.",
					},
					"dueBefore": map[string]any{
						"type":        "string",
						"description": "Only assignments due on or before this date (YYYY-MM-DD or ISO 8601).",
					},
					"dueAfter": map[string]any{
						"type":        "string",
						"description": "Only assignments due on or after this date (YYYY-MM-DD or ISO 8601).",
					},
					"includeCompleted": map[string]any{
						"type":        "boolean",
						"description": "Search completed courses as well as active ones.",
					},
					"courseId": map[string]any{
						"type":        "string",
						"description": "Search a single course.",
					},
				},
			},
		},
		{
			Name:        ToolGetAssignment,
			Description: "Fetch one assignment with its description as raw HTML, plain text, or markdown.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []string{"courseId", "assignmentId"},
				"properties": map[string]any{
					"courseId":     map[string]any{"type": "string"},
					"assignmentId": map[string]any{"type": "string"},
					"formatType": map[string]any{
						"type": "string",
						"enum": []string{"full", "plain", "markdown"},
					},
				},
			},
		},
		{
			Name:        ToolGetAssignmentContent,
			Description: "Fetch an assignment's content as markdown and plain text, with the links it contains.",
			InputSchema: map[string]any{
				"type":     "object",
				"required": []string{"courseId", "assignmentId"},
				"properties": map[string]any{
					"courseId":     map[string]any{"type": "string"},
					"assignmentId": map[string]any{"type": "string"},
				},
			},
		},
	}
}

func resourceTemplates() []map[string]any {
	return []map[string]any{
		{"uriTemplate": "canvas://course/{courseId}/assignment/{assignmentId}", "name": "Assignment metadata", "mimeType": "application/json"},
		{"uriTemplate": "canvas://course/{courseId}/assignment/{assignmentId}/content.md", "name": "Assignment content markdown", "mimeType": "text/markdown"},
		{"uriTemplate": "canvas://course/{courseId}/assignment/{assignmentId}/content.txt", "name": "Assignment content text", "mimeType": "text/plain"},
	}
}

func promptCatalog() []map[string]any {
	return []map[string]any{
		{
			"name":        PromptWeeklyPlan,
			"description": "Plan coursework for the coming days from upcoming assignments.",
			"arguments": []map[string]any{
				{"name": "days", "description": "How many days ahead to plan (default 7).", "required": false},
			},
		},
		{
			"name":        PromptExplainAssignment,
			"description": "Explain what an assignment asks for and how to approach it.",
			"arguments": []map[string]any{
				{"name": "course_id", "required": true},
				{"name": "assignment_id", "required": true},
			},
		},
	}
}

func weeklyPlanPrompt(now time.Time, days int) map[string]any {
	from := now.Format("2006-01-02")
	to := now.AddDate(0, 0, days).Format("2006-01-02")
	text := fmt.Sprintf(
		"Help me plan my coursework for the next %d days (%s to %s). "+
			"Call %s with dueAfter=%s and dueBefore=%s, then group the assignments by day, "+
			"estimate the effort for each, and suggest when to start them.",
		days, from, to, ToolSearchAssignments, from, to,
	)
	return promptResult("Weekly coursework plan", text)
}

func explainAssignmentPrompt(courseID, assignmentID string) map[string]any {
	text := fmt.Sprintf(
		"Explain this assignment in plain language: what is being asked, what I need to hand in, "+
			"and how it will be graded. Read:\n- %s",
		assignmentURI(courseID, assignmentID, kindContentMarkdown),
	)
	return promptResult("Explain assignment", text)
}

func promptResult(description, text string) map[string]any {
	return map[string]any{
		"description": description,
		"messages": []map[string]any{
			{"role": "user", "content": textContent(text)},
		},
	}
}

const (
	kindMetadata        = "metadata"
	kindContentMarkdown = "content.md"
	kindContentText     = "content.txt"
)

type resourceRef struct {
	CourseID     string
	AssignmentID string
	Kind         string
}

func assignmentURI(courseID, assignmentID, kind string) string {
	uri := fmt.Sprintf("canvas://course/%s/assignment/%s", url.PathEscape(courseID), url.PathEscape(assignmentID))
	if kind != kindMetadata {
		uri += "/" + kind
	}
	return uri
}

// parseResourceURI accepts canvas://course/{courseId}/assignment/{assignmentId}
// with an optional /content.md or /content.txt suffix.
func parseResourceURI(raw string) (resourceRef, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return resourceRef{}, err
	}
	if u.Scheme != "canvas" || u.Host != "course" {
		return resourceRef{}, errors.New("unsupported uri")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || parts[1] != "assignment" || parts[0] == "" || parts[2] == "" {
		return resourceRef{}, errors.New("expected course/{courseId}/assignment/{assignmentId}")
	}
	ref := resourceRef{CourseID: parts[0], AssignmentID: parts[2], Kind: kindMetadata}
	switch len(parts) {
	case 3:
		return ref, nil
	case 4:
		if parts[3] != kindContentMarkdown && parts[3] != kindContentText {
			return resourceRef{}, errors.New("unsupported kind")
		}
		ref.Kind = parts[3]
		return ref, nil
	default:
		return resourceRef{}, errors.New("unsupported uri")
	}
}
