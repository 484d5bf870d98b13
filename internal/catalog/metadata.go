package catalog

import (
	"context"
	"fmt"
	"strings"
)

// UpsertMetadata merges entries into an entity's metadata set by key: an
// existing key's value and source are overwritten, new keys are
// inserted: metadata is merged by key, never appended.
func (s *Store) UpsertMetadata(ctx context.Context, entityID int64, entries []EntityMetadata) error {
	for _, m := range entries {
		if m.Key == "" {
			return fmt.Errorf("%w: metadata key required", ErrValidation)
		}
		dataType := m.DataType
		if dataType == "" {
			dataType = DataTypeText
		}
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO entity_metadata (entity_id, key, value, source, data_type)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(entity_id, key) DO UPDATE SET
				value = excluded.value,
				source = excluded.source,
				data_type = excluded.data_type`,
			entityID, m.Key, m.Value, m.Source, string(dataType))
		if err != nil {
			return fmt.Errorf("upsert metadata %q: %w", m.Key, err)
		}
	}
	return nil
}

// ListMetadata returns every metadata entry attached to an entity.
func (s *Store) ListMetadata(ctx context.Context, entityID int64) ([]EntityMetadata, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, key, value, source, data_type
		FROM entity_metadata WHERE entity_id = ? ORDER BY key`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()

	var out []EntityMetadata
	for rows.Next() {
		var m EntityMetadata
		var dataType string
		if err := rows.Scan(&m.EntityID, &m.Key, &m.Value, &m.Source, &dataType); err != nil {
			return nil, fmt.Errorf("list metadata: %w", err)
		}
		m.DataType = MetadataDataType(dataType)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMetadataKey removes a single metadata key from an entity.
func (s *Store) DeleteMetadataKey(ctx context.Context, entityID int64, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entity_metadata WHERE entity_id = ? AND key = ?`, entityID, key)
	if err != nil {
		return fmt.Errorf("delete metadata key: %w", err)
	}
	return nil
}

// MetadataText projects an entity's metadata into the flattened text blob
// written to entities_fts: the concatenation of "key\nvalue" pairs,
// excluding the ocr_result key: it is large and already folds its
// content into other keys via the caption pipeline.
func MetadataText(entries []EntityMetadata) string {
	var b strings.Builder
	for _, m := range entries {
		if m.Key == "ocr_result" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(m.Key)
		b.WriteByte('\n')
		b.WriteString(m.Value)
	}
	return b.String()
}
