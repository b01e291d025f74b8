package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/docintel/internal/core/domain"
)

var columnNames = []string{
	"id", "filename", "mime_type", "size_bytes", "storage_key", "status", "extracted_text", "summary", "keywords",
	"category", "confidence", "language", "sentiment", "extracted_fields", "embeddings", "metadata", "created_at", "updated_at",
}

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	repo := NewDocumentRepository(db)
	repo.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return repo, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, filename, mime_type, size_bytes").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansNullableAndJSONColumns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows(columnNames).AddRow(
		"doc-1", "a.pdf", "application/pdf", int64(42), "doc-1_a.pdf", "failed",
		"text", nil, []byte(`["alpha"]`), "invoice", 0.75, nil, nil,
		[]byte(`{"emails":["a@b.com"]}`), []byte(`[]`), []byte(`{"error":"boom"}`), created, created,
	)
	mock.ExpectQuery("SELECT id, filename").WithArgs("doc-1").WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.Status != domain.StatusFailed || doc.ErrorMessage() != "boom" {
		t.Fatalf("unexpected status/metadata %s %v", doc.Status, doc.Metadata)
	}
	if doc.Summary != nil || doc.Language != nil || doc.Sentiment != nil {
		t.Fatalf("expected NULL columns to stay nil")
	}
	if doc.Category == nil || *doc.Category != domain.CategoryInvoice || doc.Confidence == nil || *doc.Confidence != 0.75 {
		t.Fatalf("unexpected classification %v %v", doc.Category, doc.Confidence)
	}
	if len(doc.Keywords) != 1 || doc.ExtractedFields[domain.FieldEmails][0] != "a@b.com" {
		t.Fatalf("unexpected json columns %v %v", doc.Keywords, doc.ExtractedFields)
	}
	if doc.Embeddings == nil {
		t.Fatalf("expected empty embeddings slice")
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatusProcessing), []byte(`{}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusProcessing, nil)
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusMergesMetadata(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta("metadata = metadata || $3::jsonb")).
		WithArgs("doc-1", string(domain.StatusFailed), []byte(`{"error":"boom","failed_stage":"extraction"}`), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "doc-1", domain.StatusFailed, map[string]any{
		domain.MetadataError:       "boom",
		domain.MetadataFailedStage: "extraction",
	})
	if err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	repo, _, done := newRepoWithMock(t)
	defer done()

	if err := repo.UpdateStatus(context.Background(), "doc-1", domain.DocumentStatus("ready"), nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateFieldsWritesOnlyProvidedColumns(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	text := "extracted"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET extracted_text = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("doc-1", "extracted", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateFields(context.Background(), "doc-1", domain.DocumentUpdate{ExtractedText: &text}); err != nil {
		t.Fatalf("UpdateFields() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateFieldsProcessedClearsFailureMetadata(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	ann := domain.Annotation{Summary: "s", Category: domain.CategoryForm, Confidence: 0.6, Language: "pl", Sentiment: -0.2}
	mock.ExpectExec(regexp.QuoteMeta("metadata = metadata - 'error' - 'failed_stage' - 'stale_annotations', updated_at = $11 WHERE id = $1")).
		WithArgs(
			"doc-1", "processed", "s", []byte(`[]`), "form", 0.6, "pl", -0.2,
			[]byte(`{}`), []byte(`[]`), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateFields(context.Background(), "doc-1", domain.AnnotationUpdate(ann, nil)); err != nil {
		t.Fatalf("UpdateFields() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListProcessedAppliesFilters(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	category := domain.CategoryInvoice
	minConfidence := 0.5
	mock.ExpectQuery(`WHERE status = \$1 AND category = \$2 AND language = \$3 AND confidence >= \$4\s+ORDER BY created_at DESC\s+LIMIT \$5`).
		WithArgs("processed", "invoice", "en", 0.5, 20).
		WillReturnRows(sqlmock.NewRows(columnNames))

	docs, err := repo.ListProcessed(context.Background(), domain.SearchFilter{
		Category:      &category,
		Language:      " EN ",
		MinConfidence: &minConfidence,
	}, 20)
	if err != nil {
		t.Fatalf("ListProcessed() error = %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("DELETE FROM documents").WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(context.Background(), "missing"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}
