package search

import (
	"context"
	"strings"

	"github.com/arkohut/screenmemory/internal/catalog"
	"github.com/arkohut/screenmemory/internal/gateway"
)

// DefaultLimit is the default result-set size.
const DefaultLimit = 200

// Searcher runs hybrid lexical+vector queries over the catalog.
type Searcher struct {
	store    *catalog.Store
	embedder gateway.Embedder
}

// New builds a Searcher over store, embedding queries via embedder.
func New(store *catalog.Store, embedder gateway.Embedder) *Searcher {
	return &Searcher{store: store, embedder: embedder}
}

// Hybrid runs lexical and vector retrieval, fuses results with reciprocal
// rank fusion, and hydrates the fused ids into full entity records,
// preserving fused order. An empty query, or an empty query embedding,
// yields an empty slice; entities that fail to hydrate are silently dropped.
func (s *Searcher) Hybrid(ctx context.Context, query string, f catalog.Filters, limit int) ([]catalog.Entity, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	ftsResults, err := s.store.FullTextSearch(ctx, query, f, limit)
	if err != nil {
		return nil, err
	}

	var vecIDs []int64
	queryVec, err := s.embedder.EmbedQuery(ctx, query)
	if err == nil && len(queryVec) == 0 {
		return nil, nil
	}
	if err == nil && len(queryVec) > 0 {
		vecResults, vErr := s.store.VectorSearch(ctx, queryVec, f, limit)
		if vErr == nil {
			vecIDs = make([]int64, len(vecResults))
			for i, r := range vecResults {
				vecIDs[i] = r.EntityID
			}
		}
	}

	ftsIDs := make([]int64, len(ftsResults))
	for i, r := range ftsResults {
		ftsIDs[i] = r.EntityID
	}

	fused := fuse(ftsIDs, vecIDs)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	entities := make([]catalog.Entity, 0, len(fused))
	for _, id := range fused {
		e, err := s.store.GetEntity(ctx, id)
		if err != nil {
			continue
		}
		entities = append(entities, *e)
	}
	return entities, nil
}
