package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrIngestParse marks a source file whose name or content does not fit the expected
// layout. Such files are skipped; ingestion carries on with the rest.
var ErrIngestParse = errors.New("ingest parse error")

var (
	// {course}_script_lesson_{n}, also {course}_lesson_{n} and {course}_lesson{n}.
	lessonFilePattern = regexp.MustCompile(`(?i)^(.+?)(?:_script)?_lesson_?(\d+)$`)
	headerPattern     = regexp.MustCompile(`(?i)^(course title|course link|course instructor|lesson title|lesson link):\s*(.*)$`)
	lessonLinePattern = regexp.MustCompile(`(?i)^lesson\s+(\d+):\s*(.*)$`)

	supportedExtensions = map[string]bool{".txt": true, ".md": true}
)

// Transcript is one parsed source file: a single lesson of a course.
type Transcript struct {
	CourseTitle  string
	CourseLink   string
	Instructor   string
	LessonNumber int
	LessonTitle  string
	LessonLink   string
	Body         string
}

// ParseTranscript derives course and lesson identity from the file name, lets optional
// header lines at the top of content override it, and returns the remaining body.
func ParseTranscript(path, content string) (Transcript, error) {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))
	if !supportedExtensions[ext] {
		return Transcript{}, fmt.Errorf("%w: %s: unsupported extension %q", ErrIngestParse, base, ext)
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	t := Transcript{LessonLink: path}
	courseID := stem
	if m := lessonFilePattern.FindStringSubmatch(stem); m != nil {
		courseID = m[1]
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return Transcript{}, fmt.Errorf("%w: %s: lesson number %q: %v", ErrIngestParse, base, m[2], err)
		}
		t.LessonNumber = n
	}
	t.CourseTitle = titleFromID(courseID)
	if t.CourseTitle == "" {
		return Transcript{}, fmt.Errorf("%w: %s: no course identifier in file name", ErrIngestParse, base)
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			value := strings.TrimSpace(m[2])
			if value == "" {
				return Transcript{}, fmt.Errorf("%w: %s: empty %q header", ErrIngestParse, base, m[1])
			}
			switch strings.ToLower(m[1]) {
			case "course title":
				t.CourseTitle = value
			case "course link":
				t.CourseLink = value
			case "course instructor":
				t.Instructor = value
			case "lesson title":
				t.LessonTitle = value
			case "lesson link":
				t.LessonLink = value
			}
			continue
		}
		if m := lessonLinePattern.FindStringSubmatch(line); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return Transcript{}, fmt.Errorf("%w: %s: lesson number %q: %v", ErrIngestParse, base, m[1], err)
			}
			t.LessonNumber = n
			if title := strings.TrimSpace(m[2]); title != "" {
				t.LessonTitle = title
			}
			continue
		}
		break
	}

	t.Body = strings.TrimSpace(strings.Join(lines[i:], "\n"))
	if t.Body == "" {
		return Transcript{}, fmt.Errorf("%w: %s: no lesson text", ErrIngestParse, base)
	}
	if t.LessonTitle == "" {
		t.LessonTitle = fmt.Sprintf("Lesson %d", t.LessonNumber)
	}
	return t, nil
}

func titleFromID(id string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(id)), " ")
}
