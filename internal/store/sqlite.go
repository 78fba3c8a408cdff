package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"dispatchd/internal/model"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const createRequestsTable = `
CREATE TABLE IF NOT EXISTS requests (
    request_id TEXT PRIMARY KEY,
    payload    TEXT NOT NULL,
    worker_id  INTEGER NOT NULL,
    result     TEXT,
    created_at DATETIME NOT NULL
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite. Payload and result are stored
// as JSON text blobs opaque to the schema.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps writers from tripping SQLITE_BUSY and makes
	// ":memory:" databases safe to share across goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createRequestsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create requests table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRequest inserts a new request record. Returns ErrDuplicateID when a
// record with the same identifier already exists.
func (s *SQLiteStore) CreateRequest(ctx context.Context, r *model.Request) error {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO requests (request_id, payload, worker_id, created_at) VALUES (?, ?, ?, ?)",
		r.ID, string(payload), r.WorkerID, r.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateID
	}
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// GetRequest retrieves a request by identifier. Status is derived from the
// stored result.
func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	var (
		r       model.Request
		payload string
		result  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT request_id, payload, worker_id, result, created_at FROM requests WHERE request_id = ?", id,
	).Scan(&r.ID, &payload, &r.WorkerID, &result, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}

	if err := hydrate(&r, payload, result); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRequests returns a paginated list of requests ordered by created_at
// DESC, along with the total count.
func (s *SQLiteStore) ListRequests(ctx context.Context, limit, offset int) ([]*model.Request, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM requests").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT request_id, payload, worker_id, result, created_at FROM requests ORDER BY created_at DESC, request_id LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var requests []*model.Request
	for rows.Next() {
		var (
			r       model.Request
			payload string
			result  sql.NullString
		)
		if err := rows.Scan(&r.ID, &payload, &r.WorkerID, &result, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan request: %w", err)
		}
		if err := hydrate(&r, payload, result); err != nil {
			return nil, 0, err
		}
		requests = append(requests, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate requests: %w", err)
	}

	return requests, total, nil
}

// SetResult writes the terminal result for a request. The guarded UPDATE
// enforces the at-most-once result write: a record that already has a result
// is left untouched and ErrResultExists is returned.
func (s *SQLiteStore) SetResult(ctx context.Context, id string, res *model.Result) error {
	result, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	out, err := s.db.ExecContext(ctx,
		"UPDATE requests SET result = ? WHERE request_id = ? AND result IS NULL",
		string(result), id,
	)
	if err != nil {
		return fmt.Errorf("update result: %w", err)
	}

	affected, err := out.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM requests WHERE request_id = ?", id,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check request exists: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrResultExists
	}
	return nil
}

// GetRequestStats returns aggregate counts by derived status plus the mean
// duration of completed requests.
func (s *SQLiteStore) GetRequestStats(ctx context.Context) (*RequestStats, error) {
	stats := &RequestStats{CountByStatus: make(map[string]int)}

	var created, completed, failed int
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN result IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN result IS NOT NULL AND json_extract(result, '$.error') IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN json_extract(result, '$.error') IS NOT NULL THEN 1 ELSE 0 END), 0),
			AVG(CASE WHEN result IS NOT NULL AND json_extract(result, '$.error') IS NULL
				THEN json_extract(result, '$.duration_ms') END)
		FROM requests`,
	).Scan(&stats.Total, &created, &completed, &failed, &avg)
	if err != nil {
		return nil, fmt.Errorf("get request stats: %w", err)
	}

	if created > 0 {
		stats.CountByStatus[model.StatusCreated] = created
	}
	if completed > 0 {
		stats.CountByStatus[model.StatusCompleted] = completed
	}
	if failed > 0 {
		stats.CountByStatus[model.StatusFailed] = failed
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}
	return stats, nil
}

// hydrate decodes the serialized payload and result columns and derives the
// record's status.
func hydrate(r *model.Request, payload string, result sql.NullString) error {
	if err := json.Unmarshal([]byte(payload), &r.Payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if result.Valid {
		res := &model.Result{}
		if err := json.Unmarshal([]byte(result.String), res); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
		r.Result = res
	}
	r.Status = model.DeriveStatus(r.Result)
	return nil
}

// isUniqueViolation reports whether err is a SQLite primary-key or unique
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}
