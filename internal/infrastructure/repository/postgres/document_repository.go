package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docintel/internal/core/domain"
)

const documentColumns = `id, filename, mime_type, size_bytes, storage_key, status, extracted_text, summary, keywords,
	category, confidence, language, sentiment, extracted_fields, embeddings, metadata, created_at, updated_at`

type DocumentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	keywords, err := marshalJSON(nonNilStrings(doc.Keywords), "keywords")
	if err != nil {
		return err
	}
	fields, err := marshalJSON(nonNilFields(doc.ExtractedFields), "extracted_fields")
	if err != nil {
		return err
	}
	embeddings, err := marshalJSON(nonNilVector(doc.Embeddings), "embeddings")
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(nonNilMetadata(doc.Metadata), "metadata")
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (`+documentColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.SizeBytes, doc.StorageKey, string(doc.Status),
		doc.ExtractedText, doc.Summary, keywords, categoryArg(doc.Category), doc.Confidence, doc.Language,
		doc.Sentiment, fields, embeddings, metadata, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, err
	}
	return doc, nil
}

// UpdateFields writes only the non-nil fields of update. Reaching processed
// also drops the failure keys from metadata.
func (r *DocumentRepository) UpdateFields(ctx context.Context, id string, update domain.DocumentUpdate) error {
	var (
		sets []string
		args = []any{id}
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", string(*update.Status))
	}
	if update.ExtractedText != nil {
		add("extracted_text", *update.ExtractedText)
	}
	if update.Summary != nil {
		add("summary", *update.Summary)
	}
	if update.Keywords != nil {
		raw, err := marshalJSON(update.Keywords, "keywords")
		if err != nil {
			return err
		}
		add("keywords", raw)
	}
	if update.Category != nil {
		add("category", string(*update.Category))
	}
	if update.Confidence != nil {
		add("confidence", *update.Confidence)
	}
	if update.Language != nil {
		add("language", *update.Language)
	}
	if update.Sentiment != nil {
		add("sentiment", *update.Sentiment)
	}
	if update.ExtractedFields != nil {
		raw, err := marshalJSON(update.ExtractedFields, "extracted_fields")
		if err != nil {
			return err
		}
		add("extracted_fields", raw)
	}
	if update.Embeddings != nil {
		raw, err := marshalJSON(update.Embeddings, "embeddings")
		if err != nil {
			return err
		}
		add("embeddings", raw)
	}
	if len(sets) == 0 {
		return nil
	}
	if update.Status != nil && *update.Status == domain.StatusProcessed {
		sets = append(sets, "metadata = metadata"+failureKeysExpr())
	}
	add("updated_at", r.now())

	query := "UPDATE documents SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	return r.execOne(ctx, "update document fields", id, query, args...)
}

// UpdateStatus merges extraMetadata into the stored metadata.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, extraMetadata map[string]any) error {
	if !status.Valid() {
		return domain.WrapError(domain.ErrInvalidInput, "update document status", fmt.Errorf("status %q", status))
	}
	metadata, err := marshalJSON(nonNilMetadata(extraMetadata), "metadata")
	if err != nil {
		return err
	}
	return r.execOne(ctx, "update document status", id, `
UPDATE documents
SET status = $2, metadata = metadata || $3::jsonb, updated_at = $4
WHERE id = $1
`, id, string(status), metadata, r.now())
}

func (r *DocumentRepository) ListProcessed(ctx context.Context, filter domain.SearchFilter, limit int) ([]domain.Document, error) {
	where := []string{"status = $1"}
	args := []any{string(domain.StatusProcessed)}
	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if lang := strings.TrimSpace(filter.Language); lang != "" {
		args = append(args, strings.ToLower(lang))
		where = append(where, fmt.Sprintf("language = $%d", len(args)))
	}
	if filter.MinConfidence != nil {
		args = append(args, *filter.MinConfidence)
		where = append(where, fmt.Sprintf("confidence >= $%d", len(args)))
	}
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
SELECT %s
FROM documents
WHERE %s
ORDER BY created_at DESC
LIMIT $%d
`, documentColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list processed documents: %w", err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0, limit)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processed documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	return r.execOne(ctx, "delete document", id, `DELETE FROM documents WHERE id = $1`, id)
}

func (r *DocumentRepository) execOne(ctx context.Context, operation, id, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc           domain.Document
		status        string
		extractedText sql.NullString
		summary       sql.NullString
		category      sql.NullString
		confidence    sql.NullFloat64
		language      sql.NullString
		sentiment     sql.NullFloat64
		keywordsRaw   []byte
		fieldsRaw     []byte
		embeddingsRaw []byte
		metadataRaw   []byte
	)
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.SizeBytes, &doc.StorageKey, &status,
		&extractedText, &summary, &keywordsRaw, &category, &confidence, &language, &sentiment,
		&fieldsRaw, &embeddingsRaw, &metadataRaw, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	parsedStatus, err := domain.ParseDocumentStatus(status)
	if err != nil {
		return nil, fmt.Errorf("scan document %s: %w", doc.ID, err)
	}
	doc.Status = parsedStatus
	if extractedText.Valid {
		doc.ExtractedText = &extractedText.String
	}
	if summary.Valid {
		doc.Summary = &summary.String
	}
	if category.Valid {
		c := domain.NormalizeCategory(category.String)
		doc.Category = &c
	}
	if confidence.Valid {
		doc.Confidence = &confidence.Float64
	}
	if language.Valid {
		doc.Language = &language.String
	}
	if sentiment.Valid {
		doc.Sentiment = &sentiment.Float64
	}

	if err := unmarshalJSON(keywordsRaw, &doc.Keywords, "keywords"); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(fieldsRaw, &doc.ExtractedFields, "extracted_fields"); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(embeddingsRaw, &doc.Embeddings, "embeddings"); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(metadataRaw, &doc.Metadata, "metadata"); err != nil {
		return nil, err
	}
	doc.Keywords = nonNilStrings(doc.Keywords)
	doc.ExtractedFields = nonNilFields(doc.ExtractedFields)
	doc.Embeddings = nonNilVector(doc.Embeddings)
	doc.Metadata = nonNilMetadata(doc.Metadata)
	return &doc, nil
}

func failureKeysExpr() string {
	var b strings.Builder
	for _, key := range domain.FailureMetadataKeys {
		b.WriteString(" - '")
		b.WriteString(key)
		b.WriteString("'")
	}
	return b.String()
}

func categoryArg(c *domain.Category) any {
	if c == nil {
		return nil
	}
	return string(*c)
}

func marshalJSON(v any, field string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", field, err)
	}
	return raw, nil
}

func unmarshalJSON(raw []byte, dst any, field string) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return nil
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nonNilFields(v map[domain.FieldKind][]string) map[domain.FieldKind][]string {
	if v == nil {
		return map[domain.FieldKind][]string{}
	}
	return v
}

func nonNilVector(v []float32) []float32 {
	if v == nil {
		return []float32{}
	}
	return v
}

func nonNilMetadata(v map[string]any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v
}
