package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"telemetry-broker/internal/model"
)

// GetSource looks a source up by id. The boolean is false when no row
// matches; err is only set for infrastructure failures.
func (s *Store) GetSource(ctx context.Context, id string) (model.Source, bool, error) {
	var (
		src model.Source
		cfg sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT src_id, cfg, active FROM sources WHERE src_id = ?",
		id,
	).Scan(&src.ID, &cfg, &src.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Source{}, false, nil
	}
	if err != nil {
		return model.Source{}, false, fmt.Errorf("failed to get source: %w", err)
	}
	if cfg.Valid {
		src.Config = &cfg.String
	}
	return src, true, nil
}

// ListSources returns all sources ordered by id.
func (s *Store) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT src_id, cfg, active FROM sources ORDER BY src_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var (
			src model.Source
			cfg sql.NullString
		)
		if err := rows.Scan(&src.ID, &cfg, &src.Active); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		if cfg.Valid {
			value := cfg.String
			src.Config = &value
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return sources, nil
}

// AddSource registers a new source.
func (s *Store) AddSource(ctx context.Context, src model.Source) error {
	if src.ID == "" {
		return errors.New("source id must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO sources (src_id, cfg, active) VALUES (?, ?, ?)",
		src.ID, nullString(src.Config), src.Active,
	); err != nil {
		return fmt.Errorf("failed to add source: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit source: %w", err)
	}
	return nil
}

// UpdateSource replaces the configuration and active flag of a source.
func (s *Store) UpdateSource(ctx context.Context, src model.Source) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sources SET cfg = ?, active = ? WHERE src_id = ?",
		nullString(src.Config), src.Active, src.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	return expectAffected(result, "source", src.ID)
}

// SetSourceActive enables or disables a source without touching its
// configuration.
func (s *Store) SetSourceActive(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx, "UPDATE sources SET active = ? WHERE src_id = ?", active, id)
	if err != nil {
		return fmt.Errorf("failed to update source: %w", err)
	}
	return expectAffected(result, "source", id)
}

// DeleteSource removes a source; its records go with it (ON DELETE CASCADE).
func (s *Store) DeleteSource(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE src_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}
	return expectAffected(result, "source", id)
}

func nullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func expectAffected(result sql.Result, kind, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
