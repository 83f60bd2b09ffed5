package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the statements used by the entries store.
type Queries struct {
	db DBTX
}

// New binds the queries to a connection, pool or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Entry is a row of the entries table.
type Entry struct {
	Key       string
	Value     string
	CreatedAt int64
}

const entryGet = `SELECT value FROM entries WHERE key = ?`

// EntryGet returns the value stored for key or sql.ErrNoRows.
func (q *Queries) EntryGet(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, entryGet, key).Scan(&value)
	return value, err
}

const entryInsert = `INSERT INTO entries (key, value, created_at) VALUES (?, ?, ?)`

// EntryInsertParams are the bound parameters of EntryInsert.
type EntryInsertParams struct {
	Key       string
	Value     string
	CreatedAt int64
}

// EntryInsert adds a row. It fails on a duplicate key.
func (q *Queries) EntryInsert(ctx context.Context, arg EntryInsertParams) error {
	_, err := q.db.ExecContext(ctx, entryInsert, arg.Key, arg.Value, arg.CreatedAt)
	return err
}

const entryDelete = `DELETE FROM entries WHERE key = ?`

// EntryDelete removes the row for key, if any.
func (q *Queries) EntryDelete(ctx context.Context, key string) error {
	_, err := q.db.ExecContext(ctx, entryDelete, key)
	return err
}

const entryCount = `SELECT COUNT(*) FROM entries`

// EntryCount returns the number of rows.
func (q *Queries) EntryCount(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, entryCount).Scan(&count)
	return count, err
}

const entryEvict = `
DELETE FROM entries
WHERE key NOT IN (
    SELECT key
    FROM entries
    ORDER BY created_at DESC, key DESC
    LIMIT ?
)`

// EntryEvict deletes every row outside the retain newest and returns the
// number of deleted rows.
func (q *Queries) EntryEvict(ctx context.Context, retain int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, entryEvict, retain)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const entryList = `SELECT key, value, created_at FROM entries ORDER BY created_at DESC, key DESC`

// EntryList returns every row, newest first.
func (q *Queries) EntryList(ctx context.Context) ([]Entry, error) {
	rows, err := q.db.QueryContext(ctx, entryList)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}
