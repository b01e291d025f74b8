package ports

import (
	"context"
	"io"

	"github.com/kirillkom/docintel/internal/core/domain"
)

// DocumentIngestor is the inbound contract for upload, reprocess and delete.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
	Reprocess(ctx context.Context, documentID, customPrompt string) (*domain.Document, error)
	Delete(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	Process(ctx context.Context, job domain.ProcessJob) error
}

// DocumentSearcher ranks processed documents against a free-text query.
type DocumentSearcher interface {
	Search(ctx context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error)
}
