package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kirillkom/docintel/internal/core/domain"
	"github.com/kirillkom/docintel/internal/core/ports"
)

// Pipeline stages recorded in metadata.failed_stage.
const (
	StageStorage    = "storage"
	StageExtraction = "extraction"
	StageAnnotation = "annotation"
	StageEmbedding  = "embedding"
	StagePersist    = "persist"
)

// failureWriteTimeout bounds the failed-status write, which runs after the
// job context may already be cancelled or past its deadline.
const failureWriteTimeout = 5 * time.Second

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	annotator ports.Annotator
	embedder  ports.Embedder
	logger    *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	annotator ports.Annotator,
	embedder ports.Embedder,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:      repo,
		storage:   storage,
		extractor: extractor,
		annotator: annotator,
		embedder:  embedder,
		logger:    logger,
	}
}

// Process drives one document from processing to processed or failed.
// A document that no longer exists is skipped without error.
func (uc *ProcessDocumentUseCase) Process(ctx context.Context, job domain.ProcessJob) error {
	logger := uc.logger.With("document_id", job.DocumentID)

	if err := uc.repo.UpdateStatus(ctx, job.DocumentID, domain.StatusProcessing, nil); err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			logger.Info("document_process_skipped", "reason", "not_found")
			return nil
		}
		return fmt.Errorf("set status=processing: %w", err)
	}

	doc, err := uc.repo.GetByID(ctx, job.DocumentID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			logger.Info("document_process_skipped", "reason", "deleted_during_processing")
			return nil
		}
		return fmt.Errorf("fetch document by id: %w", err)
	}

	stage, err := uc.run(ctx, doc, job.CustomPrompt)
	if domain.IsKind(err, domain.ErrDocumentNotFound) {
		logger.Info("document_process_skipped", "reason", "deleted_during_processing", "stage", stage)
		return nil
	}
	if err != nil {
		logger.Error("document_process_failed", "stage", stage, "error", err)
		if failErr := uc.markFailed(ctx, doc, stage, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	logger.Info("document_processed", "mime_type", doc.MimeType)
	return nil
}

func (uc *ProcessDocumentUseCase) run(ctx context.Context, doc *domain.Document, customPrompt string) (string, error) {
	data, err := uc.readSource(ctx, doc.StorageKey)
	if err != nil {
		return StageStorage, err
	}

	text, err := uc.extractor.Extract(ctx, data, doc.MimeType)
	if err != nil {
		return StageExtraction, fmt.Errorf("extract text: %w", err)
	}
	if err := uc.repo.UpdateFields(ctx, doc.ID, domain.DocumentUpdate{ExtractedText: &text}); err != nil {
		return StagePersist, fmt.Errorf("save extracted text: %w", err)
	}

	annotation, err := uc.annotator.Annotate(ctx, text, customPrompt)
	if err != nil {
		return StageAnnotation, fmt.Errorf("annotate document: %w", err)
	}

	embeddings, err := uc.embedder.EmbedDocument(ctx, text)
	if err != nil {
		return StageEmbedding, fmt.Errorf("embed document: %w", err)
	}

	if err := uc.repo.UpdateFields(ctx, doc.ID, domain.AnnotationUpdate(annotation, embeddings)); err != nil {
		return StagePersist, fmt.Errorf("save annotation: %w", err)
	}
	return "", nil
}

func (uc *ProcessDocumentUseCase) readSource(ctx context.Context, key string) ([]byte, error) {
	rc, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorageUnavailable, "open source", err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, domain.WrapError(domain.ErrStorageUnavailable, "read source", err)
	}
	return buf.Bytes(), nil
}

// markFailed keeps whatever was persisted before the failure; earlier
// annotations stay readable and are flagged as stale.
func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, doc *domain.Document, stage string, processErr error) error {
	if processErr == nil {
		return nil
	}
	metadata := map[string]any{
		domain.MetadataError:       processErr.Error(),
		domain.MetadataFailedStage: stage,
	}
	if doc.HasAnnotations() {
		metadata[domain.MetadataStaleAnnotations] = true
	}
	writeCtx, cancel := detachedContext(ctx)
	defer cancel()
	err := uc.repo.UpdateStatus(writeCtx, doc.ID, domain.StatusFailed, metadata)
	if domain.IsKind(err, domain.ErrDocumentNotFound) {
		return nil
	}
	return err
}

// detachedContext keeps the values of ctx but not its cancellation.
func detachedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
}

// NoopEmbedder returns an empty vector.
type NoopEmbedder struct{}

func (NoopEmbedder) EmbedDocument(context.Context, string) ([]float32, error) {
	return []float32{}, nil
}
