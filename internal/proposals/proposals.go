// Package proposals keeps one database record per logical service
// description: where its artifacts live and when it was last generated.
package proposals

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Schema creates the records table. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS service_documents (
	id                UUID PRIMARY KEY,
	document_key      TEXT NOT NULL UNIQUE,
	service_name      TEXT NOT NULL,
	owner             TEXT NOT NULL DEFAULT '',
	sponsor           TEXT NOT NULL DEFAULT '',
	framework_version TEXT NOT NULL DEFAULT '',
	lot               TEXT NOT NULL DEFAULT '',
	folder            TEXT NOT NULL,
	word_key          TEXT NOT NULL,
	pdf_key           TEXT NOT NULL DEFAULT '',
	draft             BOOLEAN NOT NULL DEFAULT FALSE,
	warnings          TEXT[] NOT NULL DEFAULT '{}',
	generated_at      TIMESTAMPTZ NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
)`

// Record is one logical document. DocumentKey is the storage key of the
// final Word document, shared by its draft.
type Record struct {
	ID               string
	DocumentKey      string
	ServiceName      string
	Owner            string
	Sponsor          string
	FrameworkVersion string
	Lot              string
	Folder           string
	WordKey          string
	PDFKey           string
	Draft            bool
	Warnings         []string
	GeneratedAt      time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ErrNotFound is returned by Get for an unknown document key.
var ErrNotFound = stderrors.New("service document not found")

type Repository struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

func NewRepository(db *sql.DB, log logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "proposals"}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create service_documents: %w", err)
	}
	return nil
}

// Upsert stores rec keyed by DocumentKey. It reports whether the record
// is new; owner and sponsor of an existing record are kept when rec leaves
// them empty.
func (r *Repository) Upsert(ctx context.Context, rec *Record) (bool, error) {
	now := r.now()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.GeneratedAt.IsZero() {
		rec.GeneratedAt = now
	}
	warnings := rec.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	var inserted bool
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO service_documents (
			id, document_key, service_name, owner, sponsor, framework_version, lot,
			folder, word_key, pdf_key, draft, warnings, generated_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		ON CONFLICT (document_key) DO UPDATE SET
			service_name      = EXCLUDED.service_name,
			owner             = COALESCE(NULLIF(EXCLUDED.owner, ''), service_documents.owner),
			sponsor           = COALESCE(NULLIF(EXCLUDED.sponsor, ''), service_documents.sponsor),
			framework_version = EXCLUDED.framework_version,
			lot               = EXCLUDED.lot,
			folder            = EXCLUDED.folder,
			word_key          = EXCLUDED.word_key,
			pdf_key           = EXCLUDED.pdf_key,
			draft             = EXCLUDED.draft,
			warnings          = EXCLUDED.warnings,
			generated_at      = EXCLUDED.generated_at,
			updated_at        = EXCLUDED.updated_at
		RETURNING id, created_at, (xmax = 0) AS inserted`,
		rec.ID, rec.DocumentKey, rec.ServiceName, rec.Owner, rec.Sponsor, rec.FrameworkVersion, rec.Lot,
		rec.Folder, rec.WordKey, rec.PDFKey, rec.Draft, pq.Array(warnings), rec.GeneratedAt, now,
	).Scan(&rec.ID, &rec.CreatedAt, &inserted)
	if err != nil {
		return false, errors.NewRecordPersistFailedError(err)
	}
	rec.UpdatedAt = now

	r.logger.Debug("Service document recorded", map[string]interface{}{
		"documentKey": rec.DocumentKey,
		"inserted":    inserted,
		"draft":       rec.Draft,
	})
	return inserted, nil
}

// Get loads the record for documentKey.
func (r *Repository) Get(ctx context.Context, documentKey string) (*Record, error) {
	rec := &Record{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, document_key, service_name, owner, sponsor, framework_version, lot,
			folder, word_key, pdf_key, draft, warnings, generated_at, created_at, updated_at
		FROM service_documents
		WHERE document_key = $1`, documentKey,
	).Scan(
		&rec.ID, &rec.DocumentKey, &rec.ServiceName, &rec.Owner, &rec.Sponsor, &rec.FrameworkVersion, &rec.Lot,
		&rec.Folder, &rec.WordKey, &rec.PDFKey, &rec.Draft, pq.Array(&rec.Warnings), &rec.GeneratedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load service document: %w", err)
	}
	return rec, nil
}
