package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// CreateLibrary inserts a new library, returning ErrConflict if the name
// is already taken.
func (s *Store) CreateLibrary(ctx context.Context, name string) (*Library, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: library name required", ErrValidation)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO libraries (name) VALUES (?)`, name)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("%w: library %q already exists", ErrConflict, name)
		}
		return nil, fmt.Errorf("create library: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create library: %w", err)
	}
	return &Library{ID: id, Name: name}, nil
}

// GetLibrary fetches a library by ID along with its folders and plugins.
func (s *Store) GetLibrary(ctx context.Context, id int64) (*Library, error) {
	lib := &Library{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM libraries WHERE id = ?`, id).
		Scan(&lib.ID, &lib.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get library: %w", err)
	}

	folders, err := s.foldersForLibrary(ctx, id)
	if err != nil {
		return nil, err
	}
	lib.Folders = folders

	plugins, err := s.pluginsForLibrary(ctx, id)
	if err != nil {
		return nil, err
	}
	lib.Plugins = plugins

	return lib, nil
}

// ListLibraries returns every library, with folders and plugins populated.
func (s *Store) ListLibraries(ctx context.Context) ([]Library, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM libraries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	var libs []Library
	for rows.Next() {
		var lib Library
		if err := rows.Scan(&lib.ID, &lib.Name); err != nil {
			return nil, fmt.Errorf("list libraries: %w", err)
		}
		libs = append(libs, lib)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range libs {
		folders, err := s.foldersForLibrary(ctx, libs[i].ID)
		if err != nil {
			return nil, err
		}
		libs[i].Folders = folders

		plugins, err := s.pluginsForLibrary(ctx, libs[i].ID)
		if err != nil {
			return nil, err
		}
		libs[i].Plugins = plugins
	}
	return libs, nil
}

// DeleteLibrary removes a library and cascades to its folders, entities,
// metadata and tag bindings.
func (s *Store) DeleteLibrary(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM libraries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete library: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddFolder registers path as a watched root of library id.
func (s *Store) AddFolder(ctx context.Context, libraryID int64, path, folderType string) (*Folder, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: folder path required", ErrValidation)
	}
	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO folders (library_id, path, last_modified_at, type) VALUES (?, ?, ?, ?)`,
		libraryID, path, now.Unix(), folderType)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("%w: folder %q already registered", ErrConflict, path)
		}
		return nil, fmt.Errorf("add folder: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Folder{ID: id, LibraryID: libraryID, Path: path, LastModifiedAt: now, Type: folderType}, nil
}

// RemoveFolder unregisters a folder, cascading to its entities.
func (s *Store) RemoveFolder(ctx context.Context, folderID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, folderID)
	if err != nil {
		return fmt.Errorf("remove folder: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchFolder updates a folder's last_modified_at after a scan pass.
func (s *Store) TouchFolder(ctx context.Context, folderID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE folders SET last_modified_at = ? WHERE id = ?`, at.Unix(), folderID)
	if err != nil {
		return fmt.Errorf("touch folder: %w", err)
	}
	return nil
}

func (s *Store) foldersForLibrary(ctx context.Context, libraryID int64) ([]Folder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, library_id, path, last_modified_at, type FROM folders WHERE library_id = ? ORDER BY id`,
		libraryID)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		var f Folder
		var lastMod int64
		if err := rows.Scan(&f.ID, &f.LibraryID, &f.Path, &lastMod, &f.Type); err != nil {
			return nil, fmt.Errorf("list folders: %w", err)
		}
		f.LastModifiedAt = time.Unix(lastMod, 0)
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

func (s *Store) pluginsForLibrary(ctx context.Context, libraryID int64) ([]Plugin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.webhook_url
		FROM plugins p
		JOIN library_plugins lp ON lp.plugin_id = p.id
		WHERE lp.library_id = ?
		ORDER BY p.id`, libraryID)
	if err != nil {
		return nil, fmt.Errorf("list library plugins: %w", err)
	}
	defer rows.Close()

	var plugins []Plugin
	for rows.Next() {
		var p Plugin
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.WebhookURL); err != nil {
			return nil, fmt.Errorf("list library plugins: %w", err)
		}
		plugins = append(plugins, p)
	}
	return plugins, rows.Err()
}
