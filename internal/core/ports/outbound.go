package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docintel/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateFields(ctx context.Context, id string, update domain.DocumentUpdate) error
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, extraMetadata map[string]any) error
	ListProcessed(ctx context.Context, filter domain.SearchFilter, limit int) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
}

// ObjectStorage stores source documents under unique keys.
type ObjectStorage interface {
	Save(ctx context.Context, key, contentType string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// JobQueue hands processing jobs to background workers.
type JobQueue interface {
	Enqueue(ctx context.Context, job domain.ProcessJob) error
}

// TextExtractor converts raw bytes of a declared media type into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mediaType string) (string, error)
	Supports(mediaType string) bool
}

// CompletionClient is the single text-completion call of the annotation backend.
type CompletionClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Annotator derives all annotation fields from extracted text.
type Annotator interface {
	Annotate(ctx context.Context, text, customPrompt string) (domain.Annotation, error)
}

// Embedder builds a document vector. Reserved; the default implementation returns an empty vector.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}
