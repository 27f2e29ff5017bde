package store

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ChunkStore holds embedded lesson fragments. A nil SQLiteStore keeps it memory-only.
type ChunkStore struct {
	db    *SQLiteStore
	index *Collection[Chunk]
}

func NewChunkStore(db *SQLiteStore) *ChunkStore {
	return &ChunkStore{db: db, index: NewCollection[Chunk]()}
}

// Load fills the in-memory index from the database.
func (s *ChunkStore) Load(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	chunks, err := s.db.LoadChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}
	for _, chunk := range chunks {
		if err := s.index.Upsert(chunk.ID, chunk.Embedding, chunk); err != nil {
			if errors.Is(err, ErrDimensionMismatch) {
				return fmt.Errorf("chunks in the database were embedded with different models: %w; re-ingest into a fresh database", err)
			}
			log.Printf("Skipping chunk %s: %v", chunk.ID, err)
		}
	}
	log.Printf("Chunk store loaded with %d chunks.", s.index.Len())
	return nil
}

// ReplaceLesson drops every chunk of (courseTitle, lessonNumber) and stores chunks instead.
func (s *ChunkStore) ReplaceLesson(ctx context.Context, courseTitle string, lessonNumber int, chunks []Chunk) error {
	for _, chunk := range chunks {
		if chunk.CourseTitle != courseTitle || chunk.LessonNumber == nil || *chunk.LessonNumber != lessonNumber {
			return fmt.Errorf("chunk %s does not belong to %q lesson %d", chunk.ID, courseTitle, lessonNumber)
		}
		if err := s.index.CheckDimension(len(chunk.Embedding)); err != nil {
			return fmt.Errorf("chunk %s: %w", chunk.ID, err)
		}
	}
	if s.db != nil {
		if err := s.db.ReplaceLessonChunks(ctx, courseTitle, lessonNumber, chunks); err != nil {
			return err
		}
	}

	filter := Filter{CourseTitle: courseTitle, LessonNumber: IntPtr(lessonNumber)}
	s.index.DeleteFunc(filter.Matches)
	for _, chunk := range chunks {
		if err := s.index.Upsert(chunk.ID, chunk.Embedding, chunk); err != nil {
			return err
		}
	}
	return nil
}

// Search returns up to k chunks passing filter, closest first, ties by chunk index.
func (s *ChunkStore) Search(ctx context.Context, vector []float32, filter Filter, k int) ([]ChunkMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := s.index.Query(vector, k, filter.Matches, func(a, b Chunk) bool { return a.Index < b.Index })
	if err != nil {
		return nil, fmt.Errorf("chunk search failed: %w", err)
	}
	out := make([]ChunkMatch, len(matches))
	for i, m := range matches {
		out[i] = ChunkMatch{Chunk: m.Item, Distance: m.Distance}
	}
	return out, nil
}

func (s *ChunkStore) Dimension() int {
	return s.index.Dimension()
}

func (s *ChunkStore) Count() int {
	return s.index.Len()
}
