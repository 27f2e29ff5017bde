package core

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/embedding"
	"github.com/najimovi/starting-ragchatbot-codebase/internal/store"
)

const DefaultSearchLimit = 5

type CourseResolver interface {
	Nearest(ctx context.Context, vector []float32) (store.CourseMatch, bool, error)
	Get(title string) (store.Course, bool)
}

type ChunkSearcher interface {
	Search(ctx context.Context, vector []float32, filter store.Filter, k int) ([]store.ChunkMatch, error)
}

// Source attributes an answer to a course lesson (or outline). Text doubles as the
// de-duplication key: it is derived from (course title, lesson number) alone.
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

type SearchParams struct {
	Query      string
	CourseHint *string
	LessonHint *int
	Limit      int // 0 means DefaultSearchLimit
}

type Hit struct {
	Chunk    store.Chunk
	Distance float64
	Source   Source
}

// SearchResult is either a list of hits or an explicit empty outcome; failures are
// reported as errors instead.
type SearchResult struct {
	CourseTitle  string // canonical title when a hint was resolved
	LessonNumber *int
	Hits         []Hit
}

func (r *SearchResult) IsEmpty() bool {
	return r == nil || len(r.Hits) == 0
}

type RetrievalOptions struct {
	DefaultLimit int
	// MaxCourseDistance rejects course matches farther than this cosine distance.
	// Zero accepts the nearest course no matter how far it is.
	MaxCourseDistance float64
}

// RetrievalEngine resolves fuzzy course references through the catalog and then searches
// lesson content restricted by course and lesson.
type RetrievalEngine struct {
	catalog  CourseResolver
	chunks   ChunkSearcher
	embedder embedding.Embedder
	opts     RetrievalOptions
}

func NewRetrievalEngine(catalog CourseResolver, chunks ChunkSearcher, embedder embedding.Embedder, opts RetrievalOptions) *RetrievalEngine {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultSearchLimit
	}
	return &RetrievalEngine{catalog: catalog, chunks: chunks, embedder: embedder, opts: opts}
}

// ResolveCourse maps a free-text hint to the nearest catalog course.
func (e *RetrievalEngine) ResolveCourse(ctx context.Context, hint string) (store.Course, error) {
	vec, err := e.embedder.Embed(ctx, hint)
	if err != nil {
		return store.Course{}, fmt.Errorf("%w matching '%s': embedding failed: %v", ErrNoCourseFound, hint, err)
	}
	match, ok, err := e.catalog.Nearest(ctx, vec)
	if err != nil {
		return store.Course{}, fmt.Errorf("%w matching '%s': %v", ErrNoCourseFound, hint, err)
	}
	if !ok {
		return store.Course{}, fmt.Errorf("%w matching '%s'", ErrNoCourseFound, hint)
	}
	if e.opts.MaxCourseDistance > 0 && match.Distance > e.opts.MaxCourseDistance {
		return store.Course{}, fmt.Errorf("%w matching '%s' (nearest %q is %.3f away)", ErrNoCourseFound, hint, match.Course.Title, match.Distance)
	}
	if match.Course.Title != hint {
		log.Printf("Resolved course hint %q to %q (distance %.3f)", hint, match.Course.Title, match.Distance)
	}
	return match.Course, nil
}

func (e *RetrievalEngine) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidFilter)
	}
	if p.LessonHint != nil && *p.LessonHint < 0 {
		return nil, fmt.Errorf("%w: lesson number %d is negative", ErrInvalidFilter, *p.LessonHint)
	}
	if p.Limit < 0 {
		return nil, fmt.Errorf("%w: limit %d is negative", ErrInvalidFilter, p.Limit)
	}
	limit := p.Limit
	if limit == 0 {
		limit = e.opts.DefaultLimit
	}

	result := &SearchResult{LessonNumber: p.LessonHint}
	filter := store.Filter{LessonNumber: p.LessonHint}
	if p.CourseHint != nil {
		course, err := e.ResolveCourse(ctx, *p.CourseHint)
		if err != nil {
			return nil, err
		}
		result.CourseTitle = course.Title
		filter.CourseTitle = course.Title
	}

	vec, err := e.embedder.Embed(ctx, p.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrSearchFailed, err)
	}
	matches, err := e.chunks.Search(ctx, vec, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	for _, m := range matches {
		result.Hits = append(result.Hits, Hit{Chunk: m.Chunk, Distance: m.Distance, Source: e.sourceFor(m.Chunk)})
	}
	return result, nil
}

func (e *RetrievalEngine) sourceFor(chunk store.Chunk) Source {
	if chunk.LessonNumber == nil {
		src := Source{Text: chunk.CourseTitle}
		if course, ok := e.catalog.Get(chunk.CourseTitle); ok {
			src.Link = course.Link
		}
		return src
	}
	src := Source{Text: fmt.Sprintf("%s - Lesson %d", chunk.CourseTitle, *chunk.LessonNumber)}
	if course, ok := e.catalog.Get(chunk.CourseTitle); ok {
		if lesson, ok := course.Lesson(*chunk.LessonNumber); ok {
			src.Link = lesson.Link
		}
	}
	return src
}
