package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteStore_CoursesRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	course := Course{
		Title:      "Intro",
		Instructor: "Ada",
		Link:       "https://example.com/intro",
		Lessons:    []Lesson{{Number: 0, Title: "Welcome"}, {Number: 1, Title: "Basics", Link: "https://example.com/intro/1"}},
	}
	if err := db.UpsertCourse(ctx, course, []float32{0.5, 0.5}); err != nil {
		t.Fatal(err)
	}
	course.Instructor = "Grace"
	if err := db.UpsertCourse(ctx, course, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}

	records, err := db.LoadCourses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 course after re-upsert, got %d", len(records))
	}
	got := records[0]
	if got.Course.Instructor != "Grace" || len(got.Course.Lessons) != 2 || got.Course.Lessons[1].Link != "https://example.com/intro/1" {
		t.Errorf("unexpected course: %+v", got.Course)
	}
	if len(got.Embedding) != 2 || got.Embedding[0] != 1 {
		t.Errorf("unexpected embedding: %v", got.Embedding)
	}
}

func TestSQLiteStore_ReplaceLessonChunks(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mk := func(lesson, index int, text string) Chunk {
		return Chunk{ID: ChunkID("Intro", IntPtr(lesson), index), Text: text, CourseTitle: "Intro", LessonNumber: IntPtr(lesson), Index: index, Embedding: []float32{1, 0}}
	}
	if err := db.ReplaceLessonChunks(ctx, "Intro", 1, []Chunk{mk(1, 0, "a"), mk(1, 1, "b")}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceLessonChunks(ctx, "Intro", 2, []Chunk{mk(2, 0, "c")}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceLessonChunks(ctx, "Intro", 1, []Chunk{mk(1, 0, "a2")}); err != nil {
		t.Fatal(err)
	}

	chunks, err := db.LoadChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	texts := map[string]bool{}
	for _, c := range chunks {
		texts[c.Text] = true
		if c.LessonNumber == nil {
			t.Errorf("chunk %s lost its lesson number", c.ID)
		}
	}
	if !texts["a2"] || !texts["c"] || texts["b"] {
		t.Errorf("unexpected chunk texts: %v", texts)
	}
}

func TestStores_ReloadFromDatabase(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	catalog := NewCatalogStore(db)
	chunks := NewChunkStore(db)
	if err := catalog.Upsert(ctx, Course{Title: "Intro"}, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	chunk := Chunk{ID: ChunkID("Intro", IntPtr(1), 0), Text: "hello", CourseTitle: "Intro", LessonNumber: IntPtr(1), Embedding: []float32{1, 0}}
	if err := chunks.ReplaceLesson(ctx, "Intro", 1, []Chunk{chunk}); err != nil {
		t.Fatal(err)
	}

	reloadedCatalog := NewCatalogStore(db)
	reloadedChunks := NewChunkStore(db)
	if err := reloadedCatalog.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if err := reloadedChunks.Load(ctx); err != nil {
		t.Fatal(err)
	}
	if reloadedCatalog.Count() != 1 || reloadedChunks.Count() != 1 {
		t.Fatalf("reloaded counts = %d courses, %d chunks; want 1, 1", reloadedCatalog.Count(), reloadedChunks.Count())
	}
	if titles := reloadedCatalog.Titles(); titles[0] != "Intro" {
		t.Errorf("titles = %v", titles)
	}
}

func TestStores_LoadRejectsMixedDimensions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.UpsertCourse(ctx, Course{Title: "Gemini"}, []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertCourse(ctx, Course{Title: "Local"}, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := NewCatalogStore(db).Load(ctx); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("catalog load: expected ErrDimensionMismatch, got %v", err)
	}

	mixed := []Chunk{
		{ID: ChunkID("Gemini", IntPtr(1), 0), CourseTitle: "Gemini", LessonNumber: IntPtr(1), Index: 0, Text: "a", Embedding: []float32{1, 0, 0}},
		{ID: ChunkID("Gemini", IntPtr(1), 1), CourseTitle: "Gemini", LessonNumber: IntPtr(1), Index: 1, Text: "b", Embedding: []float32{1, 0}},
	}
	if err := db.ReplaceLessonChunks(ctx, "Gemini", 1, mixed); err != nil {
		t.Fatal(err)
	}
	if err := NewChunkStore(db).Load(ctx); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("chunk load: expected ErrDimensionMismatch, got %v", err)
	}
}

func TestChunkStore_ReplaceLessonRejectsOtherDimensionBeforeWriting(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := NewChunkStore(db)

	first := []Chunk{{ID: ChunkID("Intro", IntPtr(1), 0), CourseTitle: "Intro", LessonNumber: IntPtr(1), Text: "a", Embedding: []float32{1, 0, 0}}}
	if err := s.ReplaceLesson(ctx, "Intro", 1, first); err != nil {
		t.Fatal(err)
	}
	other := []Chunk{{ID: ChunkID("Intro", IntPtr(2), 0), CourseTitle: "Intro", LessonNumber: IntPtr(2), Text: "b", Embedding: []float32{1, 0}}}
	if err := s.ReplaceLesson(ctx, "Intro", 2, other); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}

	rows, err := db.LoadChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || s.Count() != 1 || s.Dimension() != 3 {
		t.Errorf("rejected lesson was written: %d rows, %d indexed, dimension %d", len(rows), s.Count(), s.Dimension())
	}
}
