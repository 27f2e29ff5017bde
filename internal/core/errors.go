package core

import "errors"

var (
	// ErrNoCourseFound: a course hint did not resolve to a catalog entry.
	ErrNoCourseFound = errors.New("no course found")
	// ErrInvalidFilter: a lesson, limit or query argument is malformed.
	ErrInvalidFilter = errors.New("invalid search filter")
	// ErrSearchFailed: embedding or index access failed during a content search.
	ErrSearchFailed = errors.New("search failed")
	// ErrUnknownCapability: the model named a capability that is not registered.
	ErrUnknownCapability = errors.New("unknown capability")
	// ErrGenerationFailed is the only error surfaced to callers as a failed query.
	ErrGenerationFailed = errors.New("generation failed")
)
