package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore is the durable backing of the catalog and content collections. Vectors are
// kept as JSON arrays and searched in memory after Load.
type SQLiteStore struct {
	db *sql.DB
}

// CourseRecord is a catalog row with its title embedding.
type CourseRecord struct {
	Course    Course
	Embedding []float32
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS courses (
        title TEXT PRIMARY KEY,
        instructor TEXT,
        course_link TEXT,
        lessons_json TEXT NOT NULL DEFAULT '[]',
        embedding_json TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS chunks (
        id TEXT PRIMARY KEY, -- course|lesson|index
        course_title TEXT NOT NULL,
        lesson_number INTEGER, -- NULL when lesson-agnostic
        chunk_index INTEGER NOT NULL,
        content TEXT NOT NULL,
        embedding_json TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_chunks_course_lesson ON chunks(course_title, lesson_number);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Course methods
func (s *SQLiteStore) UpsertCourse(ctx context.Context, course Course, embedding []float32) error {
	lessonsJSON, err := json.Marshal(course.Lessons)
	if err != nil {
		return fmt.Errorf("failed to marshal lessons: %w", err)
	}
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO courses (title, instructor, course_link, lessons_json, embedding_json)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(title) DO UPDATE SET
            instructor = excluded.instructor,
            course_link = excluded.course_link,
            lessons_json = excluded.lessons_json,
            embedding_json = excluded.embedding_json`,
		course.Title, course.Instructor, course.Link, string(lessonsJSON), string(embeddingJSON))
	if err != nil {
		return fmt.Errorf("failed to upsert course %q: %w", course.Title, err)
	}
	return nil
}

func (s *SQLiteStore) LoadCourses(ctx context.Context) ([]CourseRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT title, instructor, course_link, lessons_json, embedding_json FROM courses ORDER BY title")
	if err != nil {
		return nil, fmt.Errorf("failed to query courses: %w", err)
	}
	defer rows.Close()

	var records []CourseRecord
	for rows.Next() {
		var rec CourseRecord
		var instructor, link sql.NullString
		var lessonsJSON, embeddingJSON string
		if err := rows.Scan(&rec.Course.Title, &instructor, &link, &lessonsJSON, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan course row: %w", err)
		}
		rec.Course.Instructor = instructor.String
		rec.Course.Link = link.String
		if err := json.Unmarshal([]byte(lessonsJSON), &rec.Course.Lessons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lessons for %q: %w", rec.Course.Title, err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &rec.Embedding); err != nil {
			log.Printf("Warning: failed to unmarshal embedding for course %q: %v. Skipping.", rec.Course.Title, err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Chunk methods

// ReplaceLessonChunks swaps every chunk of one lesson for chunks in a single transaction.
func (s *SQLiteStore) ReplaceLessonChunks(ctx context.Context, courseTitle string, lessonNumber int, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE course_title = ? AND lesson_number = ?", courseTitle, lessonNumber); err != nil {
		return fmt.Errorf("failed to delete chunks for %q lesson %d: %w", courseTitle, lessonNumber, err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO chunks (id, course_title, lesson_number, chunk_index, content, embedding_json) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embeddingJSON, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding for chunk %s: %w", chunk.ID, err)
		}
		var lesson sql.NullInt64
		if chunk.LessonNumber != nil {
			lesson = sql.NullInt64{Int64: int64(*chunk.LessonNumber), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.CourseTitle, lesson, chunk.Index, chunk.Text, string(embeddingJSON)); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadChunks(ctx context.Context) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, course_title, lesson_number, chunk_index, content, embedding_json FROM chunks")
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var lesson sql.NullInt64
		var embeddingJSON string
		if err := rows.Scan(&chunk.ID, &chunk.CourseTitle, &lesson, &chunk.Index, &chunk.Text, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		if lesson.Valid {
			chunk.LessonNumber = IntPtr(int(lesson.Int64))
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &chunk.Embedding); err != nil || len(chunk.Embedding) == 0 {
			log.Printf("Warning: unusable embedding for chunk %s: %v. Skipping.", chunk.ID, err)
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
