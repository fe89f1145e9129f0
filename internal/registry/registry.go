package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/talentsift/talentsift/internal/apperr"
	"github.com/talentsift/talentsift/internal/docstore"
)

// Document is one registered upload.
type Document struct {
	ID       string
	Kind     docstore.Kind
	Filename string
	// AssociatedJD is the JD a CV was uploaded against; empty for JDs.
	AssociatedJD string
	// Structured holds the JSON extracted from the document (parsed CV
	// fields, JD keywords); empty until extraction succeeds.
	Structured string
	UploadedAt time.Time
}

// Store provides registry operations on top of the database.
type Store struct {
	db *DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *DB) *Store {
	return &Store{db: database}
}

// Register inserts a new document record.
func (s *Store) Register(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return apperr.New(apperr.KindInput, "document ID is required")
	}
	if !doc.Kind.Valid() {
		return apperr.New(apperr.KindInput, "unknown document kind %q", doc.Kind)
	}

	var associated sql.NullString
	if doc.AssociatedJD != "" {
		associated = sql.NullString{String: doc.AssociatedJD, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (doc_id, kind, filename, associated_jd_id)
		VALUES (?, ?, ?, ?)`,
		doc.ID, string(doc.Kind), doc.Filename, associated,
	)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "registering document %s", doc.ID)
	}
	return nil
}

// SetStructured stores the extracted structured JSON for a document.
func (s *Store) SetStructured(ctx context.Context, docID, structured string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET structured = ? WHERE doc_id = ?`, structured, docID)
	if err != nil {
		return apperr.Wrap(apperr.KindPersistence, err, "updating structured data for %s", docID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.New(apperr.KindNotFound, "document %s is not registered", docID)
	}
	return nil
}

// Get retrieves a single document record.
func (s *Store) Get(ctx context.Context, docID string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT doc_id, kind, filename, associated_jd_id, structured, uploaded_at
		FROM documents WHERE doc_id = ?`, docID)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "document %s is not registered", docID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "loading document %s", docID)
	}
	return doc, nil
}

// CVsForJD lists every CV uploaded against the given JD, oldest first.
func (s *Store) CVsForJD(ctx context.Context, jdID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, kind, filename, associated_jd_id, structured, uploaded_at
		FROM documents WHERE kind = 'cv' AND associated_jd_id = ?
		ORDER BY uploaded_at, doc_id`, jdID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "listing CVs for JD %s", jdID)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// ListByKind lists registered documents of one kind, oldest first.
func (s *Store) ListByKind(ctx context.Context, kind docstore.Kind) ([]Document, error) {
	if !kind.Valid() {
		return nil, apperr.New(apperr.KindInput, "unknown document kind %q", kind)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, kind, filename, associated_jd_id, structured, uploaded_at
		FROM documents WHERE kind = ? ORDER BY uploaded_at, doc_id`, string(kind))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "listing %s documents", kind)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func collectDocuments(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindPersistence, err, "scanning document row")
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "iterating document rows")
	}
	return docs, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (*Document, error) {
	var (
		doc        Document
		kind       string
		associated sql.NullString
		structured sql.NullString
		uploaded   string
	)
	if err := row.Scan(&doc.ID, &kind, &doc.Filename, &associated, &structured, &uploaded); err != nil {
		return nil, err
	}

	doc.Kind = docstore.Kind(kind)
	doc.AssociatedJD = associated.String
	doc.Structured = structured.String

	t, err := time.Parse("2006-01-02 15:04:05", uploaded)
	if err != nil {
		return nil, fmt.Errorf("parsing uploaded_at %q: %w", uploaded, err)
	}
	doc.UploadedAt = t

	return &doc, nil
}
