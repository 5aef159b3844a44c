// Package store keeps termdoc documents and their revision history in
// SQLite.
//
// Markup is canonicalized (parsed and re-serialized) before it is stored,
// so two edits that produce the same tree hash equally and an Update that
// changes nothing does not add a revision.
package store

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/FocuswithJustin/termdoc/core/content"
	"github.com/FocuswithJustin/termdoc/core/errors"
	"github.com/FocuswithJustin/termdoc/core/markup"
	"github.com/FocuswithJustin/termdoc/core/sqlite"
	"github.com/FocuswithJustin/termdoc/internal/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS revisions (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	number      INTEGER NOT NULL,
	markup      TEXT NOT NULL,
	sha256      TEXT NOT NULL,
	blake3      TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (document_id, number)
);
`

// Fixed width so text columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Document is the latest state of a stored document.
type Document struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Markup    string             `json:"markup"`
	Revision  int                `json:"revision"`
	Hashes    content.HashResult `json:"hashes"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Revision is one entry of a document's history.
type Revision struct {
	DocumentID string             `json:"document_id"`
	Number     int                `json:"number"`
	Markup     string             `json:"markup"`
	Hashes     content.HashResult `json:"hashes"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Store is a SQLite-backed document repository.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if err := sqlite.Configure(ctx, db); err != nil {
		db.Close()
		return nil, errors.NewIO("configure", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.NewIO("migrate", path, err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// OpenReadOnly opens an existing store without write access. The schema is
// not applied: a missing file, or one without the termdoc tables, is
// reported as not found.
func OpenReadOnly(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("database", path)
		}
		return nil, errors.NewIO("open", path, err)
	}
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	if err := sqlite.Configure(ctx, db); err != nil {
		db.Close()
		return nil, errors.NewIO("configure", path, err)
	}
	var tables int
	err = db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('documents', 'revisions')`).Scan(&tables)
	if err != nil {
		db.Close()
		return nil, errors.NewIO("inspect", path, err)
	}
	if tables != 2 {
		db.Close()
		return nil, errors.NewNotFound("database", path)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Canonical returns the stored form of markup.
func Canonical(m string) string {
	return markup.Serialize(markup.Parse(m))
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.NewNotFound("document", id)
	}
	return nil
}

// Create stores a new document as revision 1.
func (s *Store) Create(ctx context.Context, title, m string) (*Document, error) {
	if title == "" {
		return nil, errors.NewValidation("title", "must not be empty")
	}
	canon := Canonical(m)
	now := s.now()
	doc := &Document{
		ID:        uuid.NewString(),
		Title:     title,
		Markup:    canon,
		Revision:  1,
		Hashes:    content.Hash(canon),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stamp := now.Format(timeLayout)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			doc.ID, title, stamp, stamp); err != nil {
			return err
		}
		return insertRevision(ctx, tx, doc.ID, 1, canon, doc.Hashes, stamp)
	})
	if err != nil {
		return nil, errors.Wrap(err, "create document")
	}
	logging.StoreEvent(ctx, "create", doc.ID, 1)
	return doc, nil
}

// Get returns the latest revision of a document.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.title, d.created_at, d.updated_at, r.number, r.markup, r.sha256, r.blake3
		FROM documents d
		JOIN revisions r ON r.document_id = d.id
		WHERE d.id = ?
		ORDER BY r.number DESC
		LIMIT 1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("document", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get document %s", id)
	}
	return doc, nil
}

// List returns the latest state of every document, most recently updated
// first.
func (s *Store) List(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.title, d.created_at, d.updated_at, r.number, r.markup, r.sha256, r.blake3
		FROM documents d
		JOIN revisions r ON r.document_id = d.id
		WHERE r.number = (SELECT MAX(number) FROM revisions WHERE document_id = d.id)
		ORDER BY d.updated_at DESC, d.id`)
	if err != nil {
		return nil, errors.Wrap(err, "list documents")
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, errors.Wrap(err, "list documents")
		}
		docs = append(docs, doc)
	}
	return docs, errors.Wrap(rows.Err(), "list documents")
}

// Update replaces a document's markup. A new revision is appended only
// when the canonical hash differs from the latest one; changed reports
// whether that happened.
func (s *Store) Update(ctx context.Context, id, m string) (doc *Document, changed bool, err error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	canon := Canonical(m)
	hashes := content.Hash(canon)
	if hashes == current.Hashes {
		return current, false, nil
	}

	now := s.now()
	next := current.Revision + 1
	err = s.inTx(ctx, func(tx *sql.Tx) error {
		stamp := now.Format(timeLayout)
		if err := insertRevision(ctx, tx, id, next, canon, hashes, stamp); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE documents SET updated_at = ? WHERE id = ?`, stamp, id)
		return err
	})
	if err != nil {
		return nil, false, errors.Wrapf(err, "update document %s", id)
	}

	current.Markup = canon
	current.Hashes = hashes
	current.Revision = next
	current.UpdatedAt = now
	logging.StoreEvent(ctx, "update", id, next)
	return current, true, nil
}

// History returns every revision of a document, oldest first.
func (s *Store) History(ctx context.Context, id string) ([]Revision, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT number, markup, sha256, blake3, created_at
		FROM revisions WHERE document_id = ? ORDER BY number`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "history %s", id)
	}
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		rev := Revision{DocumentID: id}
		var created string
		if err := rows.Scan(&rev.Number, &rev.Markup, &rev.Hashes.SHA256, &rev.Hashes.BLAKE3, &created); err != nil {
			return nil, errors.Wrapf(err, "history %s", id)
		}
		if rev.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, errors.Wrapf(err, "history %s", id)
		}
		revs = append(revs, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "history %s", id)
	}
	if len(revs) == 0 {
		return nil, errors.NewNotFound("document", id)
	}
	return revs, nil
}

// Delete removes a document and its history.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete document %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFound("document", id)
	}
	logging.StoreEvent(ctx, "delete", id, 0)
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertRevision(ctx context.Context, tx *sql.Tx, id string, n int, m string, h content.HashResult, stamp string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO revisions (document_id, number, markup, sha256, blake3, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, n, m, h.SHA256, h.BLAKE3, stamp)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*Document, error) {
	var doc Document
	var created, updated string
	if err := row.Scan(&doc.ID, &doc.Title, &created, &updated, &doc.Revision, &doc.Markup,
		&doc.Hashes.SHA256, &doc.Hashes.BLAKE3); err != nil {
		return nil, err
	}
	var err error
	if doc.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return nil, err
	}
	if doc.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, err
	}
	return &doc, nil
}
