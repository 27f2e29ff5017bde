package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
)

type ToolParam struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// ToolDefinition is the provider-neutral description of a capability offered to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Params      []ToolParam
}

// ToolOutput is what a capability hands back: text for the model and the sources it drew on.
type ToolOutput struct {
	Content string
	Sources []Source
}

type Tool interface {
	Definition() ToolDefinition
	Execute(ctx context.Context, args map[string]any) (ToolOutput, error)
}

// ToolRegistry holds the capabilities by name. Definitions come back in registration order.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewToolRegistry(tools ...Tool) (*ToolRegistry, error) {
	r := &ToolRegistry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *ToolRegistry) Register(t Tool) error {
	name := t.Definition().Name
	if name == "" {
		return fmt.Errorf("tool definition has no name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

func (r *ToolRegistry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]any) (ToolOutput, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return ToolOutput{}, fmt.Errorf("%w: tool '%s' not found", ErrUnknownCapability, name)
	}
	return t.Execute(ctx, args)
}

// SearchTool searches lesson content, optionally narrowed to a course and lesson.
type SearchTool struct {
	engine *RetrievalEngine
}

func NewSearchTool(engine *RetrievalEngine) *SearchTool {
	return &SearchTool{engine: engine}
}

func (t *SearchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		Params: []ToolParam{
			{Name: "query", Type: ParamString, Required: true, Description: "What to search for in the course content"},
			{Name: "course_name", Type: ParamString, Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')"},
			{Name: "lesson_number", Type: ParamInteger, Description: "Specific lesson number to search within (e.g. 1, 2, 3)"},
		},
	}
}

func (t *SearchTool) Execute(ctx context.Context, args map[string]any) (ToolOutput, error) {
	query, err := stringArg(args, "query")
	if err != nil || query == nil {
		return ToolOutput{}, fmt.Errorf("%w: query must be a string", ErrInvalidFilter)
	}
	course, err := stringArg(args, "course_name")
	if err != nil {
		return ToolOutput{}, fmt.Errorf("%w: course_name must be a string", ErrNoCourseFound)
	}
	lesson, err := intArg(args, "lesson_number")
	if err != nil {
		return ToolOutput{}, err
	}

	result, err := t.engine.Search(ctx, SearchParams{Query: *query, CourseHint: course, LessonHint: lesson})
	if err != nil {
		return ToolOutput{}, err
	}
	if result.IsEmpty() {
		return ToolOutput{Content: emptyResultMessage(result)}, nil
	}

	var sb strings.Builder
	out := ToolOutput{}
	for i, hit := range result.Hits {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s]\n%s", hit.Source.Text, hit.Chunk.Text)
		out.Sources = append(out.Sources, hit.Source)
	}
	out.Content = sb.String()
	return out, nil
}

func emptyResultMessage(r *SearchResult) string {
	msg := "No relevant content found"
	if r.CourseTitle != "" {
		msg += fmt.Sprintf(" in course '%s'", r.CourseTitle)
	}
	if r.LessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *r.LessonNumber)
	}
	return msg + "."
}

// OutlineTool returns a course's title, link, instructor and lesson list.
type OutlineTool struct {
	engine *RetrievalEngine
}

func NewOutlineTool(engine *RetrievalEngine) *OutlineTool {
	return &OutlineTool{engine: engine}
}

func (t *OutlineTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "get_course_outline",
		Description: "Get a course outline: title, link, instructor and the numbered list of lessons",
		Params: []ToolParam{
			{Name: "course_name", Type: ParamString, Required: true, Description: "Course title (partial matches work)"},
		},
	}
}

func (t *OutlineTool) Execute(ctx context.Context, args map[string]any) (ToolOutput, error) {
	hint, err := stringArg(args, "course_name")
	if err != nil || hint == nil {
		return ToolOutput{}, fmt.Errorf("%w: course_name must be a string", ErrNoCourseFound)
	}
	course, err := t.engine.ResolveCourse(ctx, *hint)
	if err != nil {
		return ToolOutput{}, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Course Title: %s\n", course.Title)
	if course.Link != "" {
		fmt.Fprintf(&sb, "Course Link: %s\n", course.Link)
	}
	if course.Instructor != "" {
		fmt.Fprintf(&sb, "Course Instructor: %s\n", course.Instructor)
	}
	fmt.Fprintf(&sb, "Lessons (%d):", len(course.Lessons))
	for _, l := range course.Lessons {
		fmt.Fprintf(&sb, "\nLesson %d: %s", l.Number, l.Title)
		if l.Link != "" {
			fmt.Fprintf(&sb, " (%s)", l.Link)
		}
	}

	return ToolOutput{
		Content: sb.String(),
		Sources: []Source{{Text: course.Title + " - Course Outline", Link: course.Link}},
	}, nil
}

// stringArg returns nil when the argument is absent, null or blank.
func stringArg(args map[string]any, name string) (*string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("argument %s is %T, not a string", name, v)
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return &s, nil
}

// intArg accepts JSON numbers with no fractional part and numeric strings.
func intArg(args map[string]any, name string) (*int, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int32:
		n = int(x)
	case int64:
		n = int(x)
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: %s %v is not an integer", ErrInvalidFilter, name, x)
		}
		n = int(x)
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q is not an integer", ErrInvalidFilter, name, x)
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q is not an integer", ErrInvalidFilter, name, x)
		}
		n = i
	default:
		return nil, fmt.Errorf("%w: %s is %T, not an integer", ErrInvalidFilter, name, v)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: %s %d is negative", ErrInvalidFilter, name, n)
	}
	return &n, nil
}

// sortedArgNames is used for stable log lines.
func sortedArgNames(args map[string]any) []string {
	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
