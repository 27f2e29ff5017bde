package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// CatalogStore holds one embedded entry per course, used only to resolve fuzzy course
// references to a canonical title.
type CatalogStore struct {
	db    *SQLiteStore
	index *Collection[Course]
}

func NewCatalogStore(db *SQLiteStore) *CatalogStore {
	return &CatalogStore{db: db, index: NewCollection[Course]()}
}

func (s *CatalogStore) Load(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	records, err := s.db.LoadCourses(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	for _, rec := range records {
		if err := s.index.Upsert(rec.Course.Title, rec.Embedding, rec.Course); err != nil {
			if errors.Is(err, ErrDimensionMismatch) {
				return fmt.Errorf("catalog entries in the database were embedded with different models: %w; re-ingest into a fresh database", err)
			}
			return fmt.Errorf("failed to load catalog entry %q: %w", rec.Course.Title, err)
		}
	}
	return nil
}

// Upsert stores course under its title, replacing any previous entry.
func (s *CatalogStore) Upsert(ctx context.Context, course Course, embedding []float32) error {
	if course.Title == "" {
		return fmt.Errorf("course title is required")
	}
	if err := s.index.CheckDimension(len(embedding)); err != nil {
		return fmt.Errorf("course %q: %w", course.Title, err)
	}
	if s.db != nil {
		if err := s.db.UpsertCourse(ctx, course, embedding); err != nil {
			return err
		}
	}
	return s.index.Upsert(course.Title, embedding, course)
}

// Nearest returns the closest course however distant it is; ok is false only when the
// catalog is empty.
func (s *CatalogStore) Nearest(ctx context.Context, vector []float32) (CourseMatch, bool, error) {
	if err := ctx.Err(); err != nil {
		return CourseMatch{}, false, err
	}
	matches, err := s.index.Query(vector, 1, nil, nil)
	if err != nil {
		return CourseMatch{}, false, fmt.Errorf("catalog search failed: %w", err)
	}
	if len(matches) == 0 {
		return CourseMatch{}, false, nil
	}
	return CourseMatch{Course: matches[0].Item, Distance: matches[0].Distance}, true, nil
}

func (s *CatalogStore) Get(title string) (Course, bool) {
	return s.index.Get(title)
}

func (s *CatalogStore) Titles() []string {
	courses := s.index.Items()
	titles := make([]string, len(courses))
	for i, c := range courses {
		titles[i] = c.Title
	}
	sort.Strings(titles)
	return titles
}

func (s *CatalogStore) Dimension() int {
	return s.index.Dimension()
}

func (s *CatalogStore) Count() int {
	return s.index.Len()
}
