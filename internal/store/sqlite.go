package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// sqliteKV is the SQLite-backed KV implementation. Keys live in a single
// table with a BLOB primary key; SQLite orders BLOBs by memcmp, which gives
// the byte-lexicographic iteration order the engine requires.
type sqliteKV struct {
	db       *sql.DB
	lock     *fileLock
	readOnly bool

	tx *sql.Tx
}

// OpenSQLite opens (creating if necessary) a SQLite database.
func OpenSQLite(opts Options) (KV, error) {
	lock := newFileLock(opts.Path)
	if err := lock.acquire(opts.ReadOnly); err != nil {
		return nil, err
	}

	dsn := opts.Path
	if opts.ReadOnly {
		dsn += "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.release()
		return nil, fmt.Errorf("store: open sqlite database %s: %w", opts.Path, err)
	}

	// WAL mode must be set via PRAGMA for modernc.org/sqlite; DSN params
	// may be ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil && !opts.ReadOnly {
			_ = db.Close()
			_ = lock.release()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if !opts.ReadOnly {
		_, err = db.Exec(`CREATE TABLE IF NOT EXISTS records (
			k BLOB PRIMARY KEY,
			v BLOB NOT NULL
		) WITHOUT ROWID`)
		if err != nil {
			_ = db.Close()
			_ = lock.release()
			return nil, fmt.Errorf("store: create records table: %w", err)
		}
	}

	return &sqliteKV{db: db, lock: lock, readOnly: opts.ReadOnly}, nil
}

// execer abstracts *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

func (s *sqliteKV) h() execer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *sqliteKV) Get(key []byte) ([]byte, error) {
	var v []byte
	err := s.h().QueryRow("SELECT v FROM records WHERE k = ?", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get: %w", err)
	}
	return v, nil
}

func (s *sqliteKV) Put(key, value []byte, flag PutFlag) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if flag == Insert {
		_, err := s.h().Exec("INSERT INTO records (k, v) VALUES (?, ?)", key, value)
		if err != nil {
			if isConstraintErr(err) {
				return ErrExists
			}
			return fmt.Errorf("store: insert: %w", err)
		}
		return nil
	}
	_, err := s.h().Exec(
		"INSERT INTO records (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v",
		key, value)
	if err != nil {
		return fmt.Errorf("store: put: %w", err)
	}
	return nil
}

func (s *sqliteKV) Delete(key []byte) error {
	if s.readOnly {
		return ErrReadOnly
	}
	res, err := s.h().Exec("DELETE FROM records WHERE k = ?", key)
	if err != nil {
		return fmt.Errorf("store: delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteKV) Iterate(fn Visitor) error {
	rows, err := s.h().Query("SELECT k, v FROM records ORDER BY k")
	if err != nil {
		return fmt.Errorf("store: iterate: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("store: iterate scan: %w", err)
		}
		if err := fn(k, v); err != nil {
			if errors.Is(err, StopIteration) {
				return nil
			}
			return err
		}
	}
	return rows.Err()
}

func (s *sqliteKV) UpdateKey(oldKey, newKey, value []byte) error {
	if s.readOnly {
		return ErrReadOnly
	}
	var exists int
	if err := s.h().QueryRow("SELECT 1 FROM records WHERE k = ?", newKey).Scan(&exists); err == nil {
		if string(oldKey) != string(newKey) {
			return ErrExists
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: update key: %w", err)
	}

	res, err := s.h().Exec("DELETE FROM records WHERE k = ?", oldKey)
	if err != nil {
		return fmt.Errorf("store: update key delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return s.Put(newKey, value, Replace)
}

func (s *sqliteKV) Begin() error {
	if s.readOnly {
		return ErrReadOnly
	}
	if s.tx != nil {
		return ErrInTransaction
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

func (s *sqliteKV) Commit() error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

func (s *sqliteKV) Cancel() error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("store: cancel transaction: %w", err)
	}
	return nil
}

func (s *sqliteKV) InTransaction() bool {
	return s.tx != nil
}

func (s *sqliteKV) ReadOnly() bool {
	return s.readOnly
}

func (s *sqliteKV) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	err := s.db.Close()
	if lerr := s.lock.release(); err == nil {
		err = lerr
	}
	return err
}

// isConstraintErr detects a primary-key conflict from the driver.
func isConstraintErr(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "constraint failed"))
}
