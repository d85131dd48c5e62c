package canvas

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

func mapCourse(obj map[string]any) Course {
	course := Course{
		ID:         firstNonEmptyString(obj, "id"),
		Name:       firstNonEmptyString(obj, "name", "course_code"),
		CourseCode: firstNonEmptyString(obj, "course_code"),
	}
	if term, ok := objValue(obj, "term").(map[string]any); ok {
		if name := firstNonEmptyString(term, "name"); name != "" {
			course.Term = &Term{Name: name}
		}
	}
	return course
}

func mapAssignment(obj map[string]any) Assignment {
	return Assignment{
		ID:              firstNonEmptyString(obj, "id"),
		CourseID:        firstNonEmptyString(obj, "course_id"),
		Name:            firstNonEmptyString(obj, "name", "title"),
		Description:     firstNonEmptyString(obj, "description"),
		DueAt:           normalizeTimeField(obj, "due_at"),
		PointsPossible:  firstNumber(obj, "points_possible"),
		SubmissionTypes: stringList(obj, "submission_types"),
		HTMLURL:         firstNonEmptyString(obj, "html_url"),
	}
}

func mapCourses(items []map[string]any) []Course {
	out := make([]Course, 0, len(items))
	for _, raw := range items {
		c := mapCourse(raw)
		if c.ID == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

func mapAssignments(items []map[string]any, courseID string) []Assignment {
	out := make([]Assignment, 0, len(items))
	for _, raw := range items {
		a := mapAssignment(raw)
		if a.ID == "" {
			continue
		}
		if a.CourseID == "" {
			a.CourseID = courseID
		}
		out = append(out, a)
	}
	return out
}

// decodeItems accepts a top-level array or an object and returns its entries.
func decodeItems(body []byte) ([]map[string]any, error) {
	value, err := decodeJSON(body)
	if err != nil {
		return nil, err
	}
	switch v := value.(type) {
	case []any:
		return toMaps(v), nil
	case map[string]any:
		return []map[string]any{v}, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported JSON shape %T", value)
	}
}

func decodeObject(body []byte) (map[string]any, error) {
	value, err := decodeJSON(body)
	if err != nil {
		return nil, err
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unsupported JSON shape %T", value)
	}
	return obj, nil
}

// decodeJSON keeps numbers as json.Number so large identifiers survive intact.
func decodeJSON(body []byte) (any, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(body)))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

func toMaps(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func firstNonEmptyString(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			return strconv.Itoa(v)
		}
	}
	return ""
}

func firstNumber(obj map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		switch v := objValue(obj, key).(type) {
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return &f
			}
		case float64:
			return &v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func stringList(obj map[string]any, key string) []string {
	arr, ok := objValue(obj, key).([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeTimeField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := objValue(obj, key).(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func objValue(obj map[string]any, key string) any {
	if obj == nil {
		return nil
	}
	return obj[key]
}
