// Package store provides the index service layer: named vector
// collections with alias indirection, a BM25 lexical index, and the
// hybrid index that combines them. Collections are physical index
// generations; aliases are the stable names queries bind to, repointed
// atomically during rebuilds.
package store

import (
	"context"
	"fmt"
	"strconv"
)

// Metadata keys carried on every chunk payload.
const (
	MetaDocumentID = "document_id"
	MetaSource     = "source"
	MetaPage       = "page"
)

// Payload is the stored content and metadata of one chunk.
type Payload struct {
	Text       string            `json:"text"`
	DocumentID string            `json:"document_id"`
	Page       int               `json:"page"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Point is one entry in a collection: stable numeric ID, embedding
// vector, and payload.
type Point struct {
	ID      uint64    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// ScoredPoint is a point with a retrieval score attached.
type ScoredPoint struct {
	Point
	Score float64 `json:"score"`
}

// Filter restricts search results by exact metadata match. A nil filter
// matches everything.
type Filter struct {
	// Must maps metadata keys to required values. The reserved key
	// "document_id" matches the payload's document ID.
	Must map[string]string
}

// Matches reports whether the payload satisfies every filter condition.
func (f *Filter) Matches(p Payload) bool {
	if f == nil || len(f.Must) == 0 {
		return true
	}
	for key, want := range f.Must {
		switch key {
		case MetaDocumentID:
			if p.DocumentID != want {
				return false
			}
		case MetaPage:
			if strconv.Itoa(p.Page) != want {
				return false
			}
		default:
			if p.Metadata[key] != want {
				return false
			}
		}
	}
	return true
}

// AliasAction is the kind of alias operation in a batch update.
type AliasAction string

const (
	AliasCreate AliasAction = "create"
	AliasDelete AliasAction = "delete"
)

// AliasOp is a single alias operation. Create repoints the alias if it
// already exists.
type AliasOp struct {
	Action     AliasAction
	Alias      string
	Collection string
}

// CollectionInfo describes one collection.
type CollectionInfo struct {
	Name       string
	Dimensions int
	Points     int
}

// Sentinel errors for the index service.
var (
	ErrCollectionNotFound = fmt.Errorf("collection not found")
	ErrCollectionExists   = fmt.Errorf("collection already exists")
	ErrAliasNotFound      = fmt.Errorf("alias not found")
	ErrCollectionAliased  = fmt.Errorf("collection is referenced by an alias")
)

// IndexWriteError reports a partially applied upsert. Committed counts
// the points durably written before the failure.
type IndexWriteError struct {
	Committed int
	Err       error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index write failed after %d points: %v", e.Committed, e.Err)
}

func (e *IndexWriteError) Unwrap() error { return e.Err }

// IndexService is the collection and alias management surface. Names
// passed to data operations may be collection names or aliases; aliases
// resolve transparently on every call.
type IndexService interface {
	// CreateCollection creates an empty collection with the given
	// embedding dimension.
	CreateCollection(ctx context.Context, name string, dims int) error

	// DeleteCollection removes a collection and its data. Deleting a
	// collection still referenced by an alias fails with
	// ErrCollectionAliased.
	DeleteCollection(ctx context.Context, name string) error

	// ListCollections returns info for all collections.
	ListCollections(ctx context.Context) ([]CollectionInfo, error)

	// Count returns the number of live points in a collection.
	Count(ctx context.Context, name string) (int, error)

	// Upsert writes points, replacing any with matching IDs.
	Upsert(ctx context.Context, name string, points []Point) error

	// SearchVectors returns up to limit points nearest to the query
	// vector, filtered by the optional metadata filter.
	SearchVectors(ctx context.Context, name string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error)

	// Scroll pages through a collection in ID order. It returns the
	// next offset, or 0 when exhausted.
	Scroll(ctx context.Context, name string, offset uint64, limit int) ([]Point, uint64, error)

	// UpdateAliases applies alias operations as a batch: either every
	// operation takes effect or none does.
	UpdateAliases(ctx context.Context, ops []AliasOp) error

	// ResolveAlias returns the collection an alias points to.
	ResolveAlias(ctx context.Context, alias string) (string, error)

	// ListAliases returns the full alias table (alias -> collection).
	ListAliases(ctx context.Context) (map[string]string, error)
}
