// Package ingest turns transcript files into courses, lessons and embedded chunks.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/embedding"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/metrics"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/store"
)

type Options struct {
	Chunk ChunkOptions
	// EmbedInterval spaces embedding requests to stay under provider rate limits.
	EmbedInterval time.Duration
}

type Ingestor struct {
	catalog  *store.CatalogStore
	chunks   *store.ChunkStore
	embedder embedding.Embedder
	opts     Options

	mu sync.Mutex // ingestion is an exclusive maintenance operation
}

// Summary reports the outcome of a directory ingestion.
type Summary struct {
	Files   int      `json:"files"`
	Courses []string `json:"courses"`
	Chunks  int      `json:"chunks"`
	Skipped []string `json:"skipped,omitempty"`
}

func NewIngestor(catalog *store.CatalogStore, chunks *store.ChunkStore, embedder embedding.Embedder, opts Options) *Ingestor {
	return &Ingestor{catalog: catalog, chunks: chunks, embedder: embedder, opts: opts}
}

// IngestFile parses one transcript and stores its lesson. Re-ingesting a file replaces the
// chunks of that lesson and the course's catalog entry; other lessons are kept.
func (i *Ingestor) IngestFile(ctx context.Context, path string) (store.Course, int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ingestFile(ctx, path)
}

func (i *Ingestor) ingestFile(ctx context.Context, path string) (store.Course, int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return store.Course{}, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	t, err := ParseTranscript(path, string(content))
	if err != nil {
		return store.Course{}, 0, err
	}

	course, ok := i.catalog.Get(t.CourseTitle)
	if !ok {
		course = store.Course{Title: t.CourseTitle}
	}
	if t.Instructor != "" {
		course.Instructor = t.Instructor
	}
	if t.CourseLink != "" {
		course.Link = t.CourseLink
	}
	course.PutLesson(store.Lesson{Number: t.LessonNumber, Title: t.LessonTitle, Link: t.LessonLink})

	// Every embedding is computed before either store is written, so a failing file
	// leaves the stores as they were.
	chunks, err := i.embedLesson(ctx, course.Title, t.LessonNumber, SplitText(t.Body, i.opts.Chunk))
	if err != nil {
		return store.Course{}, 0, err
	}
	titleEmbedding, err := i.embedder.Embed(ctx, course.Title)
	if err != nil {
		return store.Course{}, 0, fmt.Errorf("failed to embed course title %q: %w", course.Title, err)
	}

	if err := i.chunks.ReplaceLesson(ctx, course.Title, t.LessonNumber, chunks); err != nil {
		return store.Course{}, 0, fmt.Errorf("failed to store chunks for %q lesson %d: %w", course.Title, t.LessonNumber, err)
	}
	if err := i.catalog.Upsert(ctx, course, titleEmbedding); err != nil {
		return store.Course{}, 0, fmt.Errorf("failed to store catalog entry %q: %w", course.Title, err)
	}

	metrics.IngestedChunksTotal.Add(float64(len(chunks)))
	return course, len(chunks), nil
}

func (i *Ingestor) embedLesson(ctx context.Context, courseTitle string, lessonNumber int, texts []string) ([]store.Chunk, error) {
	var ticker *time.Ticker
	if i.opts.EmbedInterval > 0 {
		ticker = time.NewTicker(i.opts.EmbedInterval)
		defer ticker.Stop()
	}

	chunks := make([]store.Chunk, 0, len(texts))
	for idx, text := range texts {
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		// The prefix only shapes the embedding; stored text stays verbatim.
		vec, err := i.embedder.Embed(ctx, fmt.Sprintf("Course %s Lesson %d content: %s", courseTitle, lessonNumber, text))
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %d of %q lesson %d: %w", idx, courseTitle, lessonNumber, err)
		}
		lesson := store.IntPtr(lessonNumber)
		chunks = append(chunks, store.Chunk{
			ID:           store.ChunkID(courseTitle, lesson, idx),
			Text:         text,
			CourseTitle:  courseTitle,
			LessonNumber: lesson,
			Index:        idx,
			Embedding:    vec,
		})
	}
	return chunks, nil
}

// IngestDir ingests every regular file in dir in name order. Files that fail are logged
// and skipped; only an unreadable directory is an error.
func (i *Ingestor) IngestDir(ctx context.Context, dir string) (Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name() < entries[b].Name() })

	i.mu.Lock()
	defer i.mu.Unlock()

	var summary Summary
	seen := map[string]bool{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		path := filepath.Join(dir, entry.Name())
		summary.Files++

		course, n, err := i.ingestFile(ctx, path)
		if err != nil {
			if errors.Is(err, ErrIngestParse) {
				log.Printf("Skipping %s: %v", path, err)
			} else {
				log.Printf("Failed to ingest %s: %v. Skipping.", path, err)
			}
			metrics.SkippedFilesTotal.Inc()
			summary.Skipped = append(summary.Skipped, path)
			continue
		}
		if !seen[course.Title] {
			seen[course.Title] = true
			summary.Courses = append(summary.Courses, course.Title)
		}
		summary.Chunks += n
		log.Printf("Ingested %s: %q, %d chunks", path, course.Title, n)
	}
	log.Printf("Ingestion complete: %d files, %d courses, %d chunks, %d skipped.", summary.Files, len(summary.Courses), summary.Chunks, len(summary.Skipped))
	return summary, nil
}
