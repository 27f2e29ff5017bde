package store

import (
	"fmt"
	"sort"
)

type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"` // originating URL or file locator
}

// Course is keyed by its exact, case-sensitive Title.
type Course struct {
	Title      string   `json:"title"`
	Instructor string   `json:"instructor,omitempty"`
	Link       string   `json:"course_link,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

func (c Course) Lesson(number int) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.Number == number {
			return l, true
		}
	}
	return Lesson{}, false
}

// PutLesson inserts or replaces the lesson with the same number, keeping Lessons ordered.
// It always builds a new slice, so copies of c taken from a store are never written through.
func (c *Course) PutLesson(lesson Lesson) {
	lessons := make([]Lesson, 0, len(c.Lessons)+1)
	for _, l := range c.Lessons {
		if l.Number != lesson.Number {
			lessons = append(lessons, l)
		}
	}
	lessons = append(lessons, lesson)
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Number < lessons[j].Number })
	c.Lessons = lessons
}

type Chunk struct {
	ID           string    `json:"id"`
	Text         string    `json:"content"`
	CourseTitle  string    `json:"course_title"`
	LessonNumber *int      `json:"lesson_number"` // nil when lesson-agnostic
	Index        int       `json:"chunk_index"`
	Embedding    []float32 `json:"-"`
}

// ChunkID is stable across re-ingestion of the same lesson.
func ChunkID(courseTitle string, lessonNumber *int, index int) string {
	if lessonNumber == nil {
		return fmt.Sprintf("%s|-|%d", courseTitle, index)
	}
	return fmt.Sprintf("%s|%d|%d", courseTitle, *lessonNumber, index)
}

// Filter is an exact-match metadata filter; zero fields do not constrain.
type Filter struct {
	CourseTitle  string
	LessonNumber *int
}

func (f Filter) Matches(c Chunk) bool {
	if f.CourseTitle != "" && c.CourseTitle != f.CourseTitle {
		return false
	}
	if f.LessonNumber != nil && (c.LessonNumber == nil || *c.LessonNumber != *f.LessonNumber) {
		return false
	}
	return true
}

type ChunkMatch struct {
	Chunk    Chunk
	Distance float64
}

type CourseMatch struct {
	Course   Course
	Distance float64
}

// IntPtr is a small helper for optional lesson numbers.
func IntPtr(n int) *int { return &n }
