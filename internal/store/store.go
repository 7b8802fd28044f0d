// Package store keeps the revision history of documents in SQLite.
//
// Each document is a named sequence of revisions. A revision stores the
// compact syntax form of a graph together with its BLAKE3 fingerprint;
// saving a graph identical to the latest revision is a no-op.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/Rectify/core/errors"
	"github.com/FocuswithJustin/Rectify/core/graph"
	"github.com/FocuswithJustin/Rectify/core/syntax"
	"github.com/FocuswithJustin/Rectify/internal/logging"
	"github.com/FocuswithJustin/Rectify/internal/sqlite"
	"github.com/FocuswithJustin/Rectify/internal/validation"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS revisions (
	doc_id     INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	hash       TEXT NOT NULL,
	op         TEXT NOT NULL,
	graph      TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (doc_id, seq)
);
`

// Revision is one saved state of a document.
type Revision struct {
	Document  string      `json:"document"`
	Seq       int         `json:"seq"`
	Hash      string      `json:"hash"`
	Op        string      `json:"op"`
	CreatedAt time.Time   `json:"created_at"`
	Graph     graph.Graph `json:"-"`
}

// Store is a revision store backed by one SQLite database. It is safe for
// concurrent use.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Hash returns the hex BLAKE3 fingerprint of g's compact form.
func Hash(g graph.Graph) string {
	return fingerprint(syntax.Format(g))
}

func fingerprint(text string) string {
	h := blake3.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// Open opens or creates the store at path. Use ":memory:" for a
// throwaway store.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.NewIO("initialize schema", path, err)
	}
	return &Store{db: db, path: path, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save records g as the next revision of doc, creating the document on
// first use. It returns the latest revision and whether a new one was
// written; when g matches the latest revision nothing is written.
func (s *Store) Save(ctx context.Context, doc, op string, g graph.Graph) (Revision, bool, error) {
	if err := validation.DocumentName(doc); err != nil {
		return Revision{}, false, err
	}
	text := syntax.Format(g)
	hash := fingerprint(text)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Revision{}, false, errors.NewIO("begin", s.path, err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		doc, now.UnixNano()); err != nil {
		return Revision{}, false, errors.NewIO("create document", doc, err)
	}

	var docID int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM documents WHERE name = ?`, doc).Scan(&docID); err != nil {
		return Revision{}, false, errors.NewIO("read document", doc, err)
	}
	var seq int
	var last string
	err = tx.QueryRowContext(ctx,
		`SELECT seq, hash FROM revisions WHERE doc_id = ? ORDER BY seq DESC LIMIT 1`, docID).Scan(&seq, &last)
	if err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return Revision{}, false, errors.NewIO("read revisions", doc, err)
	}

	if last == hash {
		rev, err := s.revision(ctx, tx, doc, docID, seq)
		return rev, false, err
	}

	rev := Revision{Document: doc, Seq: seq + 1, Hash: hash, Op: op, CreatedAt: now, Graph: g}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO revisions (doc_id, seq, hash, op, graph, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		docID, rev.Seq, hash, op, text, now.UnixNano()); err != nil {
		return Revision{}, false, errors.NewIO("write revision", doc, err)
	}
	if err := tx.Commit(); err != nil {
		return Revision{}, false, errors.NewIO("commit", s.path, err)
	}
	logging.StoreEvent("save", doc, "seq", rev.Seq, "op", op)
	return rev, true, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) revision(ctx context.Context, q queryer, doc string, docID int64, seq int) (Revision, error) {
	rev := Revision{Document: doc, Seq: seq}
	var text string
	var created int64
	err := q.QueryRowContext(ctx,
		`SELECT hash, op, graph, created_at FROM revisions WHERE doc_id = ? AND seq = ?`,
		docID, seq).Scan(&rev.Hash, &rev.Op, &text, &created)
	if stderrors.Is(err, sql.ErrNoRows) {
		return Revision{}, errors.NewNotFound("revision", fmt.Sprintf("%s@%d", doc, seq))
	}
	if err != nil {
		return Revision{}, errors.NewIO("read revision", doc, err)
	}
	rev.CreatedAt = time.Unix(0, created).UTC()
	if rev.Graph, err = syntax.ParseUnchecked(text); err != nil {
		return Revision{}, errors.Wrapf(err, "revision %s@%d", doc, seq)
	}
	return rev, nil
}

func (s *Store) docID(ctx context.Context, doc string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE name = ?`, doc).Scan(&id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, errors.NewNotFound("document", doc)
	}
	if err != nil {
		return 0, errors.NewIO("read document", doc, err)
	}
	return id, nil
}

// Revision loads revision seq of doc.
func (s *Store) Revision(ctx context.Context, doc string, seq int) (Revision, error) {
	id, err := s.docID(ctx, doc)
	if err != nil {
		return Revision{}, err
	}
	return s.revision(ctx, s.db, doc, id, seq)
}

// Latest loads the newest revision of doc.
func (s *Store) Latest(ctx context.Context, doc string) (Revision, error) {
	id, err := s.docID(ctx, doc)
	if err != nil {
		return Revision{}, err
	}
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM revisions WHERE doc_id = ?`, id).Scan(&seq); err != nil {
		return Revision{}, errors.NewIO("read revisions", doc, err)
	}
	if !seq.Valid {
		return Revision{}, errors.NewNotFound("revision", doc)
	}
	return s.revision(ctx, s.db, doc, id, int(seq.Int64))
}

// History lists the revisions of doc, oldest first, without their graphs.
func (s *Store) History(ctx context.Context, doc string) ([]Revision, error) {
	id, err := s.docID(ctx, doc)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, hash, op, created_at FROM revisions WHERE doc_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, errors.NewIO("read revisions", doc, err)
	}
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		rev := Revision{Document: doc}
		var created int64
		if err := rows.Scan(&rev.Seq, &rev.Hash, &rev.Op, &created); err != nil {
			return nil, errors.NewIO("scan revision", doc, err)
		}
		rev.CreatedAt = time.Unix(0, created).UTC()
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("read revisions", doc, err)
	}
	return revs, nil
}

// Documents lists every document name in alphabetical order.
func (s *Store) Documents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM documents ORDER BY name`)
	if err != nil {
		return nil, errors.NewIO("list documents", s.path, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.NewIO("scan document", s.path, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewIO("list documents", s.path, err)
	}
	return names, nil
}

// Delete removes doc and all its revisions.
func (s *Store) Delete(ctx context.Context, doc string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE name = ?`, doc)
	if err != nil {
		return errors.NewIO("delete document", doc, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewNotFound("document", doc)
	}
	logging.StoreEvent("delete", doc)
	return nil
}
