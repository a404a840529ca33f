// Package bookmarks keeps reading positions in a SQLite database. Positions
// are stored as offsets into the markup stream, so they survive reformatting
// with different page geometry.
package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"reflow/layout"
)

// ErrNotFound is returned when bookmark does not exist.
var ErrNotFound = errors.New("bookmark not found")

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	book    TEXT NOT NULL,
	name    TEXT NOT NULL,
	reparse INTEGER NOT NULL,
	note    TEXT NOT NULL DEFAULT '',
	updated INTEGER NOT NULL,
	PRIMARY KEY (book, name)
);
`

// Bookmark is a named position in a book.
type Bookmark struct {
	Book    string // book id
	Name    string
	Reparse int // offset of the bookmarked content in markup stream
	Note    string
	Updated time.Time
}

// Page returns page of the formatted document bookmark points to.
func (b *Bookmark) Page(doc *layout.Document) int {
	return doc.PageForReparse(b.Reparse)
}

// At creates bookmark for the beginning of page n.
func At(doc *layout.Document, book, name string, n int) Bookmark {
	return Bookmark{Book: book, Name: name, Reparse: doc.Page(n).Reparse}
}

// Store is a bookmark database. Single connection is shared, access is
// serialized.
type Store struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	log  *zap.Logger
}

// Open opens (creating when necessary) database at path. ":memory:" gives
// private in-memory database.
func Open(path string, log *zap.Logger) (*Store, error) {
	flags := []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenCreate}
	if path == ":memory:" {
		flags = append(flags, sqlite.OpenMemory)
	} else {
		flags = append(flags, sqlite.OpenWAL)
	}
	conn, err := sqlite.OpenConn(path, flags...)
	if err != nil {
		return nil, fmt.Errorf("unable to open bookmarks database: %w", err)
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare bookmarks database: %w", err)
	}
	log.Debug("Bookmarks database opened", zap.String("path", path))
	return &Store{conn: conn, log: log}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// lock serializes access and makes long queries interruptible by ctx.
func (s *Store) lock(ctx context.Context) (*sqlite.Conn, func(), error) {
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return nil, nil, errors.New("bookmarks database is closed")
	}
	if err := ctx.Err(); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	s.conn.SetInterrupt(ctx.Done())
	return s.conn, func() {
		s.conn.SetInterrupt(nil)
		s.mu.Unlock()
	}, nil
}

// Save creates or replaces bookmark.
func (s *Store) Save(ctx context.Context, b Bookmark) error {
	if len(b.Book) == 0 || len(b.Name) == 0 {
		return errors.New("bookmark needs book and name")
	}
	if b.Reparse < 0 {
		return fmt.Errorf("bad bookmark offset %d", b.Reparse)
	}
	conn, unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if b.Updated.IsZero() {
		b.Updated = time.Now()
	}
	err = sqlitex.Execute(conn,
		`INSERT INTO bookmarks (book, name, reparse, note, updated) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (book, name) DO UPDATE SET reparse = excluded.reparse, note = excluded.note, updated = excluded.updated`,
		&sqlitex.ExecOptions{Args: []any{b.Book, b.Name, b.Reparse, b.Note, b.Updated.UnixMilli()}})
	if err != nil {
		return fmt.Errorf("unable to save bookmark %q: %w", b.Name, err)
	}
	s.log.Debug("Bookmark saved", zap.String("book", b.Book), zap.String("name", b.Name), zap.Int("reparse", b.Reparse))
	return nil
}

func scan(stmt *sqlite.Stmt) Bookmark {
	return Bookmark{
		Book:    stmt.ColumnText(0),
		Name:    stmt.ColumnText(1),
		Reparse: int(stmt.ColumnInt64(2)),
		Note:    stmt.ColumnText(3),
		Updated: time.UnixMilli(stmt.ColumnInt64(4)),
	}
}

// Get returns bookmark by name, ErrNotFound when there is none.
func (s *Store) Get(ctx context.Context, book, name string) (Bookmark, error) {
	conn, unlock, err := s.lock(ctx)
	if err != nil {
		return Bookmark{}, err
	}
	defer unlock()

	var (
		found bool
		b     Bookmark
	)
	err = sqlitex.Execute(conn,
		`SELECT book, name, reparse, note, updated FROM bookmarks WHERE book = ? AND name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{book, name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				b, found = scan(stmt), true
				return nil
			},
		})
	if err != nil {
		return Bookmark{}, fmt.Errorf("unable to read bookmark %q: %w", name, err)
	}
	if !found {
		return Bookmark{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return b, nil
}

// List returns bookmarks of the book ordered by position.
func (s *Store) List(ctx context.Context, book string) ([]Bookmark, error) {
	conn, unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var list []Bookmark
	err = sqlitex.Execute(conn,
		`SELECT book, name, reparse, note, updated FROM bookmarks WHERE book = ? ORDER BY reparse, name`,
		&sqlitex.ExecOptions{
			Args: []any{book},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				list = append(list, scan(stmt))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("unable to list bookmarks: %w", err)
	}
	return list, nil
}

// Delete removes bookmark, ErrNotFound when there was none.
func (s *Store) Delete(ctx context.Context, book, name string) error {
	conn, unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	err = sqlitex.Execute(conn, `DELETE FROM bookmarks WHERE book = ? AND name = ?`,
		&sqlitex.ExecOptions{Args: []any{book, name}})
	if err != nil {
		return fmt.Errorf("unable to delete bookmark %q: %w", name, err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}
