package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"telemetry-broker/internal/model"
)

// AddRecord appends one unsent record in its own transaction and returns the
// id assigned by the database. The id is only returned after the commit, so
// a successful return means the record survives a restart.
func (s *Store) AddRecord(ctx context.Context, sourceID string, data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, ErrEmptyData
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := insertRecord(ctx, tx, model.Record{SourceID: sourceID, Data: data})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit record: %w", err)
	}
	return id, nil
}

// AddRecords appends several records in a single transaction. Either all of
// them are stored or none; ids are returned in input order.
func (s *Store) AddRecords(ctx context.Context, records []model.Record) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}
	for _, r := range records {
		if len(r.Data) == 0 {
			return nil, ErrEmptyData
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(records))
	for _, r := range records {
		id, err := insertRecord(ctx, tx, r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit records: %w", err)
	}
	return ids, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, r model.Record) (int64, error) {
	result, err := tx.ExecContext(ctx,
		"INSERT INTO records (src_id, data, sent) VALUES (?, ?, ?)",
		r.SourceID, r.Data, r.Sent,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add record: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read record id: %w", err)
	}
	return id, nil
}

// LastUnsent returns up to limit unsent records, newest first.
func (s *Store) LastUnsent(ctx context.Context, limit int) ([]model.Record, error) {
	return s.queryRecords(ctx,
		"SELECT id, src_id, data, sent FROM records WHERE sent = 0 ORDER BY id DESC LIMIT ?",
		limit,
	)
}

// UnsentBySource returns up to limit unsent records of one source, newest
// first.
func (s *Store) UnsentBySource(ctx context.Context, sourceID string, limit int) ([]model.Record, error) {
	return s.queryRecords(ctx,
		"SELECT id, src_id, data, sent FROM records WHERE src_id = ? AND sent = 0 ORDER BY id DESC LIMIT ?",
		sourceID, limit,
	)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		var r model.Record
		if err := rows.Scan(&r.ID, &r.SourceID, &r.Data, &r.Sent); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}

// UpdateRecords rewrites source, data and sent flag of the given records in
// one transaction.
func (s *Store) UpdateRecords(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if _, err := tx.ExecContext(ctx,
			"UPDATE records SET src_id = ?, data = ?, sent = ? WHERE id = ?",
			r.SourceID, r.Data, r.Sent, r.ID,
		); err != nil {
			return fmt.Errorf("failed to update record %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// DeleteRecords removes the records with the given ids.
func (s *Store) DeleteRecords(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id IN ("+placeholders+")", args...); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// DeleteSent removes every record already forwarded to the hub and reports
// how many rows went away.
func (s *Store) DeleteSent(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE sent = 1")
	if err != nil {
		return 0, fmt.Errorf("failed to delete sent records: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// CountRecords returns the number of queued records, sent or not.
func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}
