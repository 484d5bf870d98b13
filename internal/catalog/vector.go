package catalog

import (
	"context"
	"fmt"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// IndexVec writes an entity's embedding into entities_vec, replacing any
// prior vector for the same entity.
func (s *Store) IndexVec(ctx context.Context, entityID int64, embedding []float32) error {
	if len(embedding) != s.vecDim {
		return fmt.Errorf("%w: embedding has %d dims, store configured for %d", ErrValidation, len(embedding), s.vecDim)
	}
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return fmt.Errorf("serialize embedding: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entities_vec WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("clear vec row: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO entities_vec (entity_id, embedding) VALUES (?, ?)`, entityID, blob); err != nil {
		return fmt.Errorf("index vec: %w", err)
	}
	return s.MarkVecIndexed(ctx, entityID, time.Now())
}

// VecResult is one ranked hit from VectorSearch.
type VecResult struct {
	EntityID int64
	Distance float64 // cosine distance: lower is more similar
}

// VectorSearch runs a k-NN query over entities_vec restricted to entities
// satisfying filters.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, f Filters, limit int) ([]VecResult, error) {
	if len(embedding) != s.vecDim {
		return nil, fmt.Errorf("%w: query embedding has %d dims, store configured for %d", ErrValidation, len(embedding), s.vecDim)
	}
	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	where, args := buildFilterClause(f)
	query := fmt.Sprintf(`
		SELECT e.id, v.distance
		FROM entities_vec v
		JOIN entities e ON e.id = v.entity_id
		%s AND e.file_type_group = 'image' AND v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`, where)
	queryArgs := append([]any{}, args...)
	queryArgs = append(queryArgs, blob, limit)

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var results []VecResult
	for rows.Next() {
		var r VecResult
		if err := rows.Scan(&r.EntityID, &r.Distance); err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
