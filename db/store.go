package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"

	"mmfeed/pmap"
)

const queryTimeout = 30 * time.Second

// Store is a pmap.Store kept in SQLite. Insertion order is the autoincrement
// seq column; a put deletes the old row so the key gets a fresh seq.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open migrates the database at path and returns a store on top of it
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := Migrate(path); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	conn, err := connection(path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return &Store{db: conn}, nil
}

func build(b sqlbuilder.Builder) (string, []interface{}) {
	return b.BuildWithFlavor(sqlbuilder.SQLite)
}

func (s *Store) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, pmap.ErrClosed
	}
	return s.db, nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.conn()
	if err != nil {
		return "", false
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("v").From("items").Where(sb.Equal("k", key))
	query, args := build(sb)

	var value string
	err = conn.QueryRow(query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		log.WithFields(log.Fields{
			"key":   key,
			"error": err,
		}).Error("Error reading item")
		return "", false
	}
	return value, true
}

func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := map[string]string{}
	conn, err := s.conn()
	if err != nil {
		return snapshot
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("k", "v").From("items").OrderBy("seq").Asc()
	query, args := build(sb)

	rows, err := conn.Query(query, args...)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Error reading items")
		return snapshot
	}
	defer rows.Close()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			continue // Skip this row
		}
		snapshot[k] = v
	}
	return snapshot
}

// Keys returns the keys from oldest to newest put
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.conn()
	if err != nil {
		return nil
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("k").From("items").OrderBy("seq").Asc()
	query, args := build(sb)

	rows, err := conn.Query(query, args...)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Error reading item keys")
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.conn()
	if err != nil {
		return 0
	}

	count, err := countItems(conn)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("Error counting items")
		return 0
	}
	return count
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func countItems(q execer) (int, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("count(*)").From("items")
	query, args := build(sb)

	var count int
	if err := q.QueryRowContext(context.Background(), query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) Put(key, value string) error {
	_, err := s.put(key, value, 0)
	return err
}

func (s *Store) PutWithLimit(key, value string, maxEntries int) ([]string, error) {
	if maxEntries <= 0 {
		return nil, pmap.ErrInvalidLimit
	}
	return s.put(key, value, maxEntries)
}

// put stores the item in a single transaction; maxEntries of zero disables
// eviction.
func (s *Store) put(key, value string, maxEntries int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.conn()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin error: %w", err)
	}
	defer tx.Rollback()

	if err := deleteKey(ctx, tx, key); err != nil {
		return nil, err
	}

	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("items").Cols("k", "v", "created_at").Values(key, value, time.Now().Unix())
	query, args := build(ib)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("insert error: %w", err)
	}

	var evicted []string
	if maxEntries > 0 {
		evicted, err = evictOldest(ctx, tx, maxEntries)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit error: %w", err)
	}

	log.WithFields(log.Fields{
		"key":     key,
		"evicted": len(evicted),
	}).Debug("Stored item")

	return evicted, nil
}

func evictOldest(ctx context.Context, tx *sql.Tx, maxEntries int) ([]string, error) {
	count, err := countItems(tx)
	if err != nil {
		return nil, fmt.Errorf("count error: %w", err)
	}
	if count <= maxEntries {
		return nil, nil
	}

	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("k").From("items").OrderBy("seq").Asc().Limit(count - maxEntries)
	query, args := build(sb)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}

	var oldest []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan error: %w", err)
		}
		oldest = append(oldest, k)
	}
	rows.Close()

	for _, k := range oldest {
		if err := deleteKey(ctx, tx, k); err != nil {
			return nil, err
		}
	}
	return oldest, nil
}

func deleteKey(ctx context.Context, q execer, key string) error {
	del := sqlbuilder.NewDeleteBuilder()
	del.DeleteFrom("items").Where(del.Equal("k", key))
	query, args := build(del)
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	return nil
}

func (s *Store) Remove(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.conn()
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	del := sqlbuilder.NewDeleteBuilder()
	del.DeleteFrom("items").Where(del.Equal("k", key))
	query, args := build(del)

	res, err := conn.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete error: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete error: %w", err)
	}
	return affected > 0, nil
}

// Compact reclaims the space left by deleted rows
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.conn()
	if err != nil {
		return err
	}

	log.Info("Vacuuming database")
	if _, err := conn.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum error: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

var _ pmap.Store = (*Store)(nil)
