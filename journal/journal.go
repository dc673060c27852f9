// Copyright (c) 2023 The KBase Project and its Contributors
// Copyright (c) 2023 Cohere Consulting, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies
// of the Software, and to permit persons to whom the Software is furnished to do
// so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package journal is the tacc-sync audit journal: a durable, queryable
// log of every WorkUnit that left the pipeline, whether reaped after a
// successful transfer or quarantined along the way. It is backed by an
// embedded SQLite database so operators can query it with ordinary SQL
// tooling in addition to cmd/journalctl.
package journal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Status is the terminal disposition of a WorkUnit recorded in the
// journal.
type Status string

const (
	StatusReaped      Status = "reaped"
	StatusQuarantined Status = "quarantined"
)

// Entry is one row of the journal: a WorkUnit's terminal disposition.
type Entry struct {
	WorkId    uuid.UUID
	RequestId uuid.UUID
	Tape      string
	Size      int64
	NumFiles  int
	Status    Status
	// RecordedAt is set by Record if zero.
	RecordedAt time.Time
}

// Journal is a handle to the audit database. It is not safe for
// concurrent use by multiple goroutines -- each stage daemon is a single
// sequential process, so a single *sqlite.Conn is sufficient.
type Journal struct {
	conn *sqlite.Conn
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Journal, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("couldn't open journal database %s: %w", path, err)
	}
	j := &Journal{conn: conn}
	if err := j.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.conn.Close()
}

func (j *Journal) migrate() error {
	return sqlitex.Execute(j.conn, `
		CREATE TABLE IF NOT EXISTS work_units (
			work_id     TEXT PRIMARY KEY,
			request_id  TEXT NOT NULL,
			tape        TEXT NOT NULL,
			size        INTEGER NOT NULL,
			num_files   INTEGER NOT NULL,
			status      TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		)`, nil)
}

// Record inserts or replaces an Entry, keyed by WorkId -- a stage that
// re-records the same unit (e.g. after a restart) overwrites its prior
// entry rather than duplicating it.
func (j *Journal) Record(e Entry) error {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	return sqlitex.Execute(j.conn, `
		INSERT OR REPLACE INTO work_units
			(work_id, request_id, tape, size, num_files, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				e.WorkId.String(),
				e.RequestId.String(),
				e.Tape,
				e.Size,
				e.NumFiles,
				string(e.Status),
				e.RecordedAt.Format(time.RFC3339),
			},
		})
}

// Entries returns every journal entry recorded between start and stop
// (inclusive), ordered by recording time, for operator inspection via
// cmd/journalctl.
func (j *Journal) Entries(start, stop time.Time) ([]Entry, error) {
	var entries []Entry
	err := sqlitex.Execute(j.conn, `
		SELECT work_id, request_id, tape, size, num_files, status, recorded_at
		FROM work_units
		WHERE recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at ASC`,
		&sqlitex.ExecOptions{
			Args: []any{start.UTC().Format(time.RFC3339), stop.UTC().Format(time.RFC3339)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				workId, err := uuid.Parse(stmt.GetText("work_id"))
				if err != nil {
					return fmt.Errorf("corrupt journal row: bad work_id: %w", err)
				}
				requestId, err := uuid.Parse(stmt.GetText("request_id"))
				if err != nil {
					return fmt.Errorf("corrupt journal row: bad request_id: %w", err)
				}
				recordedAt, err := time.Parse(time.RFC3339, stmt.GetText("recorded_at"))
				if err != nil {
					return fmt.Errorf("corrupt journal row: bad recorded_at: %w", err)
				}
				entries = append(entries, Entry{
					WorkId:     workId,
					RequestId:  requestId,
					Tape:       stmt.GetText("tape"),
					Size:       stmt.GetInt64("size"),
					NumFiles:   int(stmt.GetInt64("num_files")),
					Status:     Status(stmt.GetText("status")),
					RecordedAt: recordedAt,
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("couldn't query journal entries: %w", err)
	}
	return entries, nil
}
