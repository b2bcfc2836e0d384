// Copyright 2024 LazyQuery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage provides backing stores for lazy views.
//
// Store is a SQLite file opened through libsql and queried with bun. Item
// property values are kept as a JSON document per row, so sorting is done
// with json_extract. Writers serialize on a sidecar flock file.
//
// MemoryStore keeps rows in process and is meant for tests and small data.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "github.com/tursodatabase/go-libsql"

	"lazyquery/internal/common"
	"lazyquery/internal/util"
)

// KeyPropertyID is the read-only property carrying the row id of a stored item.
const KeyPropertyID = "id"

// Store represents a SQLite-backed item store
type Store struct {
	path  string
	db    *sql.DB
	bunDB *BunDB
	lock  *flock.Flock
}

// execPragma runs a PRAGMA statement using Query (not Exec) because libsql
// returns rows for PRAGMA statements. The result rows are drained and closed.
func execPragma(db *sql.DB, pragma string) error {
	rows, err := db.Query(pragma)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

// applyPragmas sets essential PRAGMAs after opening a libsql connection.
// libsql ignores DSN-based _pragma=value parameters, so all PRAGMAs must be
// set explicitly via SQL statements after the connection is opened.
func applyPragmas(db *sql.DB) error {
	// Busy timeout first so that the journal mode switch waits for locks.
	if err := execPragma(db, fmt.Sprintf("PRAGMA busy_timeout = %d", GetBusyTimeout())); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if err := execPragma(db, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}
	if err := execPragma(db, "PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous=NORMAL: %w", err)
	}
	if err := execPragma(db, "PRAGMA cache_size = -8000"); err != nil {
		return fmt.Errorf("failed to set cache_size: %w", err)
	}
	return nil
}

// Create creates a new store file at path.
func Create(path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("file already exists: %s: %w", path, common.ErrExists)
	}

	db, err := sql.Open("libsql", BuildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		os.Remove(path)
		return nil, err
	}
	if err := execStatements(db, storeSchema); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := execStatements(db, initStore, SchemaVersion, StoreType); err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to initialize schema info: %w", err)
	}

	log.Debugf("[Storage] created store %s", path)
	return newStore(path, db), nil
}

// Open opens an existing store file.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s: %w", path, common.ErrNotFound)
	}

	db, err := sql.Open("libsql", BuildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	s := newStore(path, db)
	storeType, err := s.bunDB.GetSchemaInfo(context.Background(), "type")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read schema info: %w", err)
	}
	if storeType != StoreType {
		db.Close()
		return nil, fmt.Errorf("not a lazyquery store (type=%s)", storeType)
	}
	return s, nil
}

func newStore(path string, db *sql.DB) *Store {
	return &Store{
		path:  path,
		db:    db,
		bunDB: NewBunDB(db),
		lock:  flock.New(path + ".lock"),
	}
}

// Close closes the store
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the store file path
func (s *Store) Path() string {
	return s.path
}

// DB returns the underlying database connection
func (s *Store) DB() *sql.DB {
	return s.db
}

// BunDB returns the Bun query builder over the store connection
func (s *Store) BunDB() *BunDB {
	return s.bunDB
}

// Count returns the number of stored items.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.bunDB.CountItems(ctx)
}

// Get returns the stored values of the item with the given id.
func (s *Store) Get(ctx context.Context, id string) (map[string]any, error) {
	row, err := s.bunDB.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeValues(row.Data)
}

// Insert stores new rows and returns their ids in order.
func (s *Store) Insert(ctx context.Context, values ...map[string]any) ([]string, error) {
	now := time.Now().UnixNano()
	rows := make([]ItemModel, 0, len(values))
	ids := make([]string, 0, len(values))
	for i, v := range values {
		data, err := encodeValues(v)
		if err != nil {
			return nil, err
		}
		id := uuid.NewString()
		ts := now + int64(i)
		rows = append(rows, ItemModel{ID: id, Data: data, CreatedAt: ts, UpdatedAt: ts})
		ids = append(ids, id)
	}
	err := s.withWriteLock(ctx, func() error {
		return util.Retry(ctx, func() error {
			return s.bunDB.InsertItems(ctx, rows)
		}, util.DatabaseRetryOptions(ctx)...)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// withWriteLock runs fn while holding the store's writer lock. A lock held
// by another process is retried with backoff.
func (s *Store) withWriteLock(ctx context.Context, fn func() error) error {
	err := util.Retry(ctx, func() error {
		locked, err := s.lock.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire write lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("%s: %w", s.lock.Path(), common.ErrLocked)
		}
		return nil
	}, util.WriteLockRetryOptions(ctx)...)
	if err != nil {
		return err
	}
	defer s.lock.Unlock()
	return fn()
}

func encodeValues(values map[string]any) (string, error) {
	if values == nil {
		return "{}", nil
	}
	// Keys stay verbatim so that json_extract labels match them.
	var buf strings.Builder
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(values); err != nil {
		return "", fmt.Errorf("failed to encode item: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func decodeValues(data string) (map[string]any, error) {
	values := make(map[string]any)
	if data == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("failed to decode item: %w", err)
	}
	return values, nil
}
