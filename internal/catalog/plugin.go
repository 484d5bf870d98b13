package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// RegisterPlugin inserts a plugin definition, returning ErrConflict if the
// name is already registered.
func (s *Store) RegisterPlugin(ctx context.Context, p Plugin) (*Plugin, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("%w: plugin name required", ErrValidation)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO plugins (name, description, webhook_url) VALUES (?, ?, ?)`,
		p.Name, p.Description, p.WebhookURL)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return nil, fmt.Errorf("%w: plugin %q already registered", ErrConflict, p.Name)
		}
		return nil, fmt.Errorf("register plugin: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

// ActivatePlugin binds a plugin to a library so that ingestion dispatches
// entity-ready events to it.
func (s *Store) ActivatePlugin(ctx context.Context, libraryID, pluginID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO library_plugins (library_id, plugin_id) VALUES (?, ?)
		ON CONFLICT(library_id, plugin_id) DO NOTHING`, libraryID, pluginID)
	if err != nil {
		return fmt.Errorf("activate plugin: %w", err)
	}
	return nil
}

// DeactivatePlugin unbinds a plugin from a library.
func (s *Store) DeactivatePlugin(ctx context.Context, libraryID, pluginID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM library_plugins WHERE library_id = ? AND plugin_id = ?`, libraryID, pluginID)
	if err != nil {
		return fmt.Errorf("deactivate plugin: %w", err)
	}
	return nil
}

// ListPlugins returns every registered plugin.
func (s *Store) ListPlugins(ctx context.Context) ([]Plugin, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, webhook_url FROM plugins ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	defer rows.Close()

	var plugins []Plugin
	for rows.Next() {
		var p Plugin
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.WebhookURL); err != nil {
			return nil, fmt.Errorf("list plugins: %w", err)
		}
		plugins = append(plugins, p)
	}
	return plugins, rows.Err()
}
