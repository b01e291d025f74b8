package extractor

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/kirillkom/docintel/internal/core/domain"
	"github.com/kirillkom/docintel/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/docintel/internal/infrastructure/extractor/ocr"
	"github.com/kirillkom/docintel/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/docintel/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/docintel/internal/infrastructure/extractor/spreadsheet"
)

// Backend extracts text from one family of formats.
type Backend interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

var (
	PDFTypes         = []string{"application/pdf", "application/x-pdf"}
	// Legacy binary .doc (application/msword) is not OOXML and stays unsupported.
	WordTypes        = []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"}
	TextTypes        = []string{"text/plain", "text/markdown", "text/csv"}
	ImageTypes       = []string{"image/png", "image/jpeg", "image/tiff", "image/bmp", "image/gif"}
	SpreadsheetTypes = []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"}
)

// Router dispatches on the declared media type.
type Router struct {
	backends map[string]Backend
}

func NewRouter() *Router {
	return &Router{backends: make(map[string]Backend)}
}

// NewDefault registers every built-in family. A nil engine leaves images unsupported.
func NewDefault(engine ocr.Engine) *Router {
	r := NewRouter()
	r.Register(pdf.NewExtractor(), PDFTypes...)
	r.Register(docx.NewExtractor(), WordTypes...)
	r.Register(plaintext.NewExtractor(), TextTypes...)
	r.Register(spreadsheet.NewExtractor(), SpreadsheetTypes...)
	if engine != nil {
		r.Register(ocr.NewExtractor(engine), ImageTypes...)
	}
	return r
}

func (r *Router) Register(backend Backend, mediaTypes ...string) {
	for _, mt := range mediaTypes {
		r.backends[NormalizeMediaType(mt)] = backend
	}
}

func (r *Router) Supports(mediaType string) bool {
	_, ok := r.backends[NormalizeMediaType(mediaType)]
	return ok
}

func (r *Router) Extract(ctx context.Context, data []byte, mediaType string) (text string, err error) {
	normalized := NormalizeMediaType(mediaType)
	backend, ok := r.backends[normalized]
	if !ok {
		return "", domain.WrapError(domain.ErrUnsupportedMediaType, "extract", fmt.Errorf("media type %q", mediaType))
	}

	defer func() {
		if rec := recover(); rec != nil {
			text = ""
			err = domain.WrapError(domain.ErrExtractionFailed, "extract", fmt.Errorf("%s extractor panic: %v", normalized, rec))
		}
	}()

	text, err = backend.Extract(ctx, data)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtractionFailed, "extract", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrExtractionFailed, "extract", errors.New("no text extracted"))
	}
	return text, nil
}

// NormalizeMediaType strips parameters and lower-cases the type.
func NormalizeMediaType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		base, _, _ := strings.Cut(raw, ";")
		return strings.ToLower(strings.TrimSpace(base))
	}
	return parsed
}
