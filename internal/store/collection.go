package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/utils"
)

// ErrDimensionMismatch: a vector's length differs from the vectors already stored, typically
// after switching embedding providers on an existing database.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Collection is an in-memory nearest-neighbor index over items of type T. Search is
// brute force by cosine distance and safe for concurrent readers.
type Collection[T any] struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]record[T]
}

type record[T any] struct {
	vector []float32
	item   T
}

type Match[T any] struct {
	ID       string
	Item     T
	Distance float64
}

func NewCollection[T any]() *Collection[T] {
	return &Collection[T]{records: make(map[string]record[T])}
}

func (c *Collection[T]) Upsert(id string, vector []float32, item T) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty vector for %q", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.records) == 0 {
		c.dimension = len(vector)
	} else if len(vector) != c.dimension {
		return fmt.Errorf("%w for %q: got %d, collection has %d", ErrDimensionMismatch, id, len(vector), c.dimension)
	}
	c.records[id] = record[T]{vector: vector, item: item}
	return nil
}

// Dimension is the vector length of the stored items, 0 when empty.
func (c *Collection[T]) Dimension() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.records) == 0 {
		return 0
	}
	return c.dimension
}

// CheckDimension reports whether vectors of length n could be stored next to the current items.
func (c *Collection[T]) CheckDimension(n int) error {
	if d := c.Dimension(); d != 0 && d != n {
		return fmt.Errorf("%w: got %d, collection has %d", ErrDimensionMismatch, n, d)
	}
	return nil
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.records[id]
	return r.item, ok
}

// DeleteFunc removes every item for which del returns true and reports how many went.
func (c *Collection[T]) DeleteFunc(del func(T) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id, r := range c.records {
		if del(r.item) {
			delete(c.records, id)
			n++
		}
	}
	return n
}

func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	items := make([]T, 0, len(c.records))
	for _, r := range c.records {
		items = append(items, r.item)
	}
	return items
}

// Query returns up to k items accepted by keep, closest first. Equal distances are ordered
// by tieLess when given, otherwise by id.
func (c *Collection[T]) Query(vector []float32, k int, keep func(T) bool, tieLess func(a, b T) bool) ([]Match[T], error) {
	if k <= 0 {
		return nil, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := make([]Match[T], 0, len(c.records))
	for id, r := range c.records {
		if keep != nil && !keep(r.item) {
			continue
		}
		dist, err := utils.CosineDistance(vector, r.vector)
		if err != nil {
			return nil, fmt.Errorf("distance to %q: %w", id, err)
		}
		matches = append(matches, Match[T]{ID: id, Item: r.item, Distance: dist})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		if tieLess != nil {
			if tieLess(matches[i].Item, matches[j].Item) {
				return true
			}
			if tieLess(matches[j].Item, matches[i].Item) {
				return false
			}
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
