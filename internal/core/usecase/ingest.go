package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docintel/internal/core/domain"
	"github.com/kirillkom/docintel/internal/core/ports"
)

const (
	DefaultMaxUploadBytes = 25 << 20
	octetStream           = "application/octet-stream"
)

type IngestDocumentUseCase struct {
	repo           ports.DocumentRepository
	storage        ports.ObjectStorage
	queue          ports.JobQueue
	extractor      ports.TextExtractor
	maxUploadBytes int64
	now            func() time.Time
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.JobQueue,
	extractor ports.TextExtractor,
	maxUploadBytes int64,
) *IngestDocumentUseCase {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &IngestDocumentUseCase{
		repo:           repo,
		storage:        storage,
		queue:          queue,
		extractor:      extractor,
		maxUploadBytes: maxUploadBytes,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Upload validates and stores the payload, records it as uploaded and
// schedules processing. The returned snapshot predates processing.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("filename is required"))
	}
	mediaType := ResolveMediaType(filename, mimeType)
	if !uc.extractor.Supports(mediaType) {
		return nil, domain.WrapError(domain.ErrUnsupportedMediaType, "upload", fmt.Errorf("media type %q", mediaType))
	}

	data, err := io.ReadAll(io.LimitReader(body, uc.maxUploadBytes+1))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("read body: %w", err))
	}
	if int64(len(data)) > uc.maxUploadBytes {
		return nil, domain.WrapError(domain.ErrPayloadTooLarge, "upload", fmt.Errorf("limit is %d bytes", uc.maxUploadBytes))
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("empty file"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := uc.now()

	if err := uc.storage.Save(ctx, storageKey, mediaType, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:              id,
		Filename:        filename,
		MimeType:        mediaType,
		SizeBytes:       int64(len(data)),
		StorageKey:      storageKey,
		Status:          domain.StatusUploaded,
		Keywords:        []string{},
		ExtractedFields: map[domain.FieldKind][]string{},
		Embeddings:      []float32{},
		Metadata:        map[string]any{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		err = fmt.Errorf("create document metadata: %w", err)
		return nil, uc.rollbackUpload(ctx, doc, false, err)
	}

	if err := uc.queue.Enqueue(ctx, domain.ProcessJob{DocumentID: doc.ID, EnqueuedAt: now}); err != nil {
		err = fmt.Errorf("enqueue processing job: %w", err)
		return nil, uc.rollbackUpload(ctx, doc, true, err)
	}

	return doc, nil
}

// rollbackUpload removes what a failed upload left behind so that no record
// stays in uploaded without a job. Cleanup errors are joined to cause.
func (uc *IngestDocumentUseCase) rollbackUpload(ctx context.Context, doc *domain.Document, recordCreated bool, cause error) error {
	cleanupCtx, cancel := detachedContext(ctx)
	defer cancel()

	errs := []error{cause}
	if recordCreated {
		if err := uc.repo.Delete(cleanupCtx, doc.ID); err != nil && !domain.IsKind(err, domain.ErrDocumentNotFound) {
			errs = append(errs, fmt.Errorf("rollback document metadata: %w", err))
		}
	}
	if err := uc.storage.Delete(cleanupCtx, doc.StorageKey); err != nil {
		errs = append(errs, fmt.Errorf("rollback object storage: %w", err))
	}
	return errors.Join(errs...)
}

// Reprocess schedules another pipeline run, optionally with a custom summary instruction.
func (uc *IngestDocumentUseCase) Reprocess(ctx context.Context, documentID, customPrompt string) (*domain.Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reprocess", errors.New("document id is required"))
	}
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	job := domain.ProcessJob{
		DocumentID:   doc.ID,
		CustomPrompt: strings.TrimSpace(customPrompt),
		EnqueuedAt:   uc.now(),
	}
	if err := uc.queue.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue processing job: %w", err)
	}
	return doc, nil
}

// Delete removes the stored source and the record.
func (uc *IngestDocumentUseCase) Delete(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}
	if err := uc.storage.Delete(ctx, doc.StorageKey); err != nil {
		return fmt.Errorf("delete from object storage: %w", err)
	}
	return nil
}

// ResolveMediaType prefers the declared type and falls back to the file
// extension when the client sent nothing useful.
func ResolveMediaType(filename, declared string) string {
	mediaType := strings.ToLower(strings.TrimSpace(declared))
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	if mediaType != "" && mediaType != octetStream {
		return mediaType
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		if parsed, _, err := mime.ParseMediaType(byExt); err == nil {
			return parsed
		}
	}
	switch ext {
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".md", ".markdown":
		return "text/markdown"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if mediaType == "" {
		return octetStream
	}
	return mediaType
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
