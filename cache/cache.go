// Package cache keeps precompiled emote metadata in SQLite database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"bpm/emote"
	"bpm/resolve"
)

const schema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE emotes (
	name   TEXT PRIMARY KEY,
	class  TEXT NOT NULL,
	nsfw   INTEGER NOT NULL DEFAULT 0,
	source TEXT NOT NULL DEFAULT ''
);
`

const lookupQuery = `SELECT name, class, nsfw, source FROM emotes WHERE name IN (SELECT value FROM json_each(:names));`

// DB is read-only emote cache safe for concurrent use.
type DB struct {
	pool *sqlitex.Pool
	log  *zap.Logger
}

// Open opens existing cache database.
func Open(path string, size int, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("unable to access emote cache: %w", err)
	}
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		Flags:    sqlite.OpenReadOnly,
		PoolSize: size,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open emote cache (%s): %w", path, err)
	}
	db := &DB{pool: pool, log: log.Named("cache")}
	db.log.Debug("Emote cache opened", zap.String("path", path))
	return db, nil
}

// Close releases all connections.
func (db *DB) Close() error {
	return db.pool.Close()
}

// Lookup implements resolve.Lookup with single query for all names. Rows
// which cannot be used are reported as per-name failures.
func (db *DB) Lookup(ctx context.Context, names []emote.Name) (map[emote.Name]emote.Record, error) {
	conn, err := db.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to get cache connection: %w", err)
	}
	defer db.pool.Put(conn)

	arg, err := json.Marshal(names)
	if err != nil {
		return nil, err
	}

	var (
		records = make(map[emote.Name]emote.Record, len(names))
		failed  error
	)
	err = sqlitex.Execute(conn, lookupQuery, &sqlitex.ExecOptions{
		Named: map[string]any{":names": string(arg)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rec := emote.Record{
				Name:   emote.Name(stmt.ColumnText(0)),
				Class:  stmt.ColumnText(1),
				NSFW:   stmt.ColumnInt(2) != 0,
				Source: stmt.ColumnText(3),
			}
			if err := rec.Validate(); err != nil {
				failed = multierr.Append(failed, &resolve.NameError{Name: rec.Name, Err: err})
				return nil
			}
			records[rec.Name] = rec
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("cache query failed: %w", err)
	}
	return records, failed
}

// Write creates new cache database at path from records. Existing file is
// replaced.
func Write(path string, records []emote.Record) (err error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("unable to remove old cache: %w", err)
	}

	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return fmt.Errorf("unable to create cache (%s): %w", path, err)
	}
	defer func() {
		err = multierr.Append(err, conn.Close())
	}()

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("unable to create cache schema: %w", err)
	}
	return fill(conn, records)
}

func fill(conn *sqlite.Conn, records []emote.Record) (err error) {
	defer sqlitex.Save(conn)(&err)

	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b emote.Record) int {
		switch {
		case a.Name == b.Name:
			return 0
		case natural.Less(string(a.Name), string(b.Name)):
			return -1
		default:
			return 1
		}
	})

	for _, r := range sorted {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("emote %s: %w", r.Name, err)
		}
		nsfw := 0
		if r.NSFW {
			nsfw = 1
		}
		if err := sqlitex.Execute(conn, `INSERT INTO emotes (name, class, nsfw, source) VALUES (?, ?, ?, ?);`,
			&sqlitex.ExecOptions{Args: []any{string(r.Name), r.Class, nsfw, r.Source}}); err != nil {
			return fmt.Errorf("unable to store emote %s: %w", r.Name, err)
		}
	}
	return sqlitex.Execute(conn, `INSERT INTO meta (key, value) VALUES ('generated', ?), ('emotes', ?);`,
		&sqlitex.ExecOptions{Args: []any{time.Now().UTC().Format(time.RFC3339), len(sorted)}})
}
