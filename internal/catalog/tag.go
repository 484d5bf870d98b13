package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddTag attaches a tag (creating it if necessary) to an entity.
func (s *Store) AddTag(ctx context.Context, entityID int64, name string, source MetadataSource) error {
	if name == "" {
		return fmt.Errorf("%w: tag name required", ErrValidation)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var tagID int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID)
		if errors.Is(err, sql.ErrNoRows) {
			res, err := tx.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, name)
			if err != nil {
				return fmt.Errorf("insert tag: %w", err)
			}
			tagID, err = res.LastInsertId()
			if err != nil {
				return err
			}
		} else if err != nil {
			return fmt.Errorf("lookup tag: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO entity_tags (entity_id, tag_id, source) VALUES (?, ?, ?)
			ON CONFLICT(entity_id, tag_id) DO UPDATE SET source = excluded.source`,
			entityID, tagID, string(source))
		if err != nil {
			return fmt.Errorf("bind tag: %w", err)
		}
		return nil
	})
}

// RemoveTag detaches a tag from an entity.
func (s *Store) RemoveTag(ctx context.Context, entityID int64, name string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM entity_tags WHERE entity_id = ? AND tag_id = (SELECT id FROM tags WHERE name = ?)`,
		entityID, name)
	if err != nil {
		return fmt.Errorf("remove tag: %w", err)
	}
	return nil
}

// ListTags returns every tag in the catalog.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("list tags: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *Store) tagsForEntity(ctx context.Context, entityID int64) ([]Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name FROM tags t
		JOIN entity_tags et ON et.tag_id = t.id
		WHERE et.entity_id = ? ORDER BY t.name`, entityID)
	if err != nil {
		return nil, fmt.Errorf("list entity tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("list entity tags: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
