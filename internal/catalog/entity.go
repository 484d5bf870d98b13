package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UpsertEntity inserts a new entity or updates the mutable fields of an
// existing one keyed by filepath, the natural key for a scanned file.
// Returns the resulting row's ID.
func (s *Store) UpsertEntity(ctx context.Context, e *Entity) (int64, error) {
	if e.Filepath == "" {
		return 0, fmt.Errorf("%w: entity filepath required", ErrValidation)
	}
	now := time.Now().Unix()

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `SELECT id FROM entities WHERE filepath = ?`, e.Filepath).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, `
				INSERT INTO entities (
					library_id, folder_id, filepath, filename, size, file_type,
					file_type_group, file_created_at, file_last_modified_at, created_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.LibraryID, e.FolderID, e.Filepath, e.Filename, e.Size, e.FileType,
				string(e.FileTypeGroup), e.FileCreatedAt.Unix(), e.FileLastModifiedAt.Unix(), now)
			if err != nil {
				return fmt.Errorf("insert entity: %w", err)
			}
			id, err = res.LastInsertId()
			return err
		case err != nil:
			return fmt.Errorf("lookup entity: %w", err)
		default:
			_, err = tx.ExecContext(ctx, `
				UPDATE entities SET
					library_id = ?, folder_id = ?, filename = ?, size = ?, file_type = ?,
					file_type_group = ?, file_created_at = ?, file_last_modified_at = ?
				WHERE id = ?`,
				e.LibraryID, e.FolderID, e.Filename, e.Size, e.FileType,
				string(e.FileTypeGroup), e.FileCreatedAt.Unix(), e.FileLastModifiedAt.Unix(), id)
			if err != nil {
				return fmt.Errorf("update entity: %w", err)
			}
			return nil
		}
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Touch records that an entity was observed during the most recent scan
// pass by setting its last_scan_at. Pruning of vanished files is done by
// DeleteByFilepathNotIn from its keep list; it does not read last_scan_at.
func (s *Store) Touch(ctx context.Context, entityID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE entities SET last_scan_at = ? WHERE id = ?`, at.Unix(), entityID)
	if err != nil {
		return fmt.Errorf("touch entity: %w", err)
	}
	return nil
}

// MarkFTSIndexed records the time an entity's metadata_text projection was
// last written to entities_fts.
func (s *Store) MarkFTSIndexed(ctx context.Context, entityID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE entities SET fts_indexed_at = ? WHERE id = ?`, at.Unix(), entityID)
	return err
}

// MarkVecIndexed records the time an entity's embedding was last written to
// entities_vec.
func (s *Store) MarkVecIndexed(ctx context.Context, entityID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE entities SET vec_indexed_at = ? WHERE id = ?`, at.Unix(), entityID)
	return err
}

// GetEntity fetches a single entity by ID, with its tags and metadata.
func (s *Store) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	e, err := s.scanEntity(ctx, s.db.QueryRowContext(ctx, entitySelect+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetEntityByFilepath fetches a single entity by its filesystem path.
func (s *Store) GetEntityByFilepath(ctx context.Context, path string) (*Entity, error) {
	e, err := s.scanEntity(ctx, s.db.QueryRowContext(ctx, entitySelect+` WHERE filepath = ?`, path))
	if err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetEntitiesByFilepaths batch-looks-up entities by filepath in a single
// query, keyed by filepath, for callers (the batch scanner) that would
// otherwise issue one GetEntityByFilepath call per file. Unlike
// GetEntityByFilepath it does not hydrate tags or metadata: callers that
// only need the stat fields to detect whether a file changed shouldn't pay
// for that join.
func (s *Store) GetEntitiesByFilepaths(ctx context.Context, paths []string) (map[string]*Entity, error) {
	result := make(map[string]*Entity, len(paths))
	if len(paths) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(paths)), ",")
	args := make([]any, len(paths))
	for i, p := range paths {
		args[i] = p
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("%s WHERE filepath IN (%s)", entitySelect, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("batch lookup entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntityRow(rows)
		if err != nil {
			return nil, err
		}
		result[e.Filepath] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListEntities returns entities matching filters, newest first.
func (s *Store) ListEntities(ctx context.Context, f Filters, limit, offset int) ([]Entity, error) {
	where, args := buildFilterClause(f)
	query := fmt.Sprintf("%s %s ORDER BY id DESC LIMIT ? OFFSET ?", entitySelect, where)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntityRow(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range entities {
		if err := s.hydrate(ctx, &entities[i]); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// DeleteEntity removes an entity and its metadata/tag bindings, along with
// its entries in entities_fts and entities_vec.
func (s *Store) DeleteEntity(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities_fts WHERE rowid = ?`, id); err != nil {
			return fmt.Errorf("delete fts row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM entities_vec WHERE entity_id = ?`, id); err != nil {
			return fmt.Errorf("delete vec row: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete entity: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// DeleteByFilepathNotIn removes every entity under folderID whose filepath
// is not present in keep, supporting the batch-scan prune step: files
// that vanished from disk since the last scan are dropped from the
// catalog along with their index rows.
func (s *Store) DeleteByFilepathNotIn(ctx context.Context, folderID int64, keep []string) (int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, filepath FROM entities WHERE folder_id = ?`, folderID)
	if err != nil {
		return 0, fmt.Errorf("scan folder entities: %w", err)
	}
	keepSet := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		keepSet[k] = struct{}{}
	}

	var stale []int64
	for rows.Next() {
		var id int64
		var fp string
		if err := rows.Scan(&id, &fp); err != nil {
			rows.Close()
			return 0, err
		}
		if _, ok := keepSet[fp]; !ok {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		if err := s.DeleteEntity(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return 0, err
		}
	}
	return int64(len(stale)), nil
}

const entitySelect = `
	SELECT id, library_id, folder_id, filepath, filename, size, file_type,
		file_type_group, file_created_at, file_last_modified_at, last_scan_at,
		fts_indexed_at, vec_indexed_at
	FROM entities`

func (s *Store) scanEntity(ctx context.Context, row *sql.Row) (*Entity, error) {
	e := &Entity{}
	var fileType, fileTypeGroup string
	var fileCreated, fileMod int64
	var lastScan, ftsIndexed, vecIndexed sql.NullInt64

	err := row.Scan(&e.ID, &e.LibraryID, &e.FolderID, &e.Filepath, &e.Filename, &e.Size,
		&fileType, &fileTypeGroup, &fileCreated, &fileMod, &lastScan, &ftsIndexed, &vecIndexed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entity: %w", err)
	}
	populateEntityTimes(e, fileType, fileTypeGroup, fileCreated, fileMod, lastScan, ftsIndexed, vecIndexed)
	return e, nil
}

func scanEntityRow(rows *sql.Rows) (*Entity, error) {
	e := &Entity{}
	var fileType, fileTypeGroup string
	var fileCreated, fileMod int64
	var lastScan, ftsIndexed, vecIndexed sql.NullInt64

	err := rows.Scan(&e.ID, &e.LibraryID, &e.FolderID, &e.Filepath, &e.Filename, &e.Size,
		&fileType, &fileTypeGroup, &fileCreated, &fileMod, &lastScan, &ftsIndexed, &vecIndexed)
	if err != nil {
		return nil, fmt.Errorf("scan entity row: %w", err)
	}
	populateEntityTimes(e, fileType, fileTypeGroup, fileCreated, fileMod, lastScan, ftsIndexed, vecIndexed)
	return e, nil
}

func populateEntityTimes(e *Entity, fileType, fileTypeGroup string, fileCreated, fileMod int64, lastScan, ftsIndexed, vecIndexed sql.NullInt64) {
	e.FileType = fileType
	e.FileTypeGroup = FileTypeGroup(fileTypeGroup)
	e.FileCreatedAt = time.Unix(fileCreated, 0)
	e.FileLastModifiedAt = time.Unix(fileMod, 0)
	if lastScan.Valid {
		t := time.Unix(lastScan.Int64, 0)
		e.LastScanAt = &t
	}
	if ftsIndexed.Valid {
		t := time.Unix(ftsIndexed.Int64, 0)
		e.FTSIndexedAt = &t
	}
	if vecIndexed.Valid {
		t := time.Unix(vecIndexed.Int64, 0)
		e.VecIndexedAt = &t
	}
}

func (s *Store) hydrate(ctx context.Context, e *Entity) error {
	tags, err := s.tagsForEntity(ctx, e.ID)
	if err != nil {
		return err
	}
	e.Tags = tags

	metadata, err := s.ListMetadata(ctx, e.ID)
	if err != nil {
		return err
	}
	e.Metadata = metadata
	return nil
}

func buildFilterClause(f Filters) (string, []any) {
	where := "WHERE 1=1"
	var args []any
	if len(f.LibraryIDs) > 0 {
		placeholders := ""
		for i, id := range f.LibraryIDs {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, id)
		}
		where += fmt.Sprintf(" AND library_id IN (%s)", placeholders)
	}
	if f.StartUnix != nil {
		where += " AND file_created_at >= ?"
		args = append(args, *f.StartUnix)
	}
	if f.EndUnix != nil {
		where += " AND file_created_at <= ?"
		args = append(args, *f.EndUnix)
	}
	return where, args
}
