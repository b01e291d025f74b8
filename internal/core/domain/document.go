package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusProcessed  DocumentStatus = "processed"
	StatusFailed     DocumentStatus = "failed"
)

// ParseDocumentStatus accepts only the exact lower-case status names.
func ParseDocumentStatus(raw string) (DocumentStatus, error) {
	status := DocumentStatus(raw)
	if !status.Valid() {
		return "", WrapError(ErrInvalidInput, "parse status", fmt.Errorf("unknown status %q", raw))
	}
	return status, nil
}

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusProcessed, StatusFailed:
		return true
	default:
		return false
	}
}

func (s *DocumentStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseDocumentStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

type Category string

const (
	CategoryInvoice  Category = "invoice"
	CategoryContract Category = "contract"
	CategoryReport   Category = "report"
	CategoryReceipt  Category = "receipt"
	CategoryForm     Category = "form"
	CategoryOther    Category = "other"
)

// ParseCategory is strict: used for user-supplied filters.
func ParseCategory(raw string) (Category, error) {
	category := Category(raw)
	if !category.Valid() {
		return "", WrapError(ErrInvalidInput, "parse category", fmt.Errorf("unknown category %q", raw))
	}
	return category, nil
}

// NormalizeCategory is lenient: used for model output, unknown labels become other.
func NormalizeCategory(raw string) Category {
	category := Category(strings.ToLower(strings.TrimSpace(raw)))
	if !category.Valid() {
		return CategoryOther
	}
	return category
}

func (c Category) Valid() bool {
	switch c {
	case CategoryInvoice, CategoryContract, CategoryReport, CategoryReceipt, CategoryForm, CategoryOther:
		return true
	default:
		return false
	}
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseCategory(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type FieldKind string

const (
	FieldDates   FieldKind = "dates"
	FieldAmounts FieldKind = "amounts"
	FieldEmails  FieldKind = "emails"
	FieldPhones  FieldKind = "phones"
)

// Metadata keys written by the processing pipeline.
const (
	MetadataError            = "error"
	MetadataFailedStage      = "failed_stage"
	MetadataStaleAnnotations = "stale_annotations"
)

// FailureMetadataKeys are dropped once a document reaches processed again.
var FailureMetadataKeys = []string{MetadataError, MetadataFailedStage, MetadataStaleAnnotations}

type Document struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
	SizeBytes  int64  `json:"size_bytes"`
	StorageKey string `json:"storage_key"`

	Status          DocumentStatus         `json:"status"`
	ExtractedText   *string                `json:"extracted_text,omitempty"`
	Summary         *string                `json:"summary,omitempty"`
	Keywords        []string               `json:"keywords"`
	Category        *Category              `json:"category,omitempty"`
	Confidence      *float64               `json:"confidence,omitempty"`
	Language        *string                `json:"language,omitempty"`
	Sentiment       *float64               `json:"sentiment,omitempty"`
	ExtractedFields map[FieldKind][]string `json:"extracted_fields"`
	Embeddings      []float32              `json:"embeddings"`
	Metadata        map[string]any         `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAnnotations reports whether any annotation field was ever written.
func (d *Document) HasAnnotations() bool {
	return d.Summary != nil || d.Category != nil || d.Confidence != nil ||
		d.Language != nil || d.Sentiment != nil || len(d.Keywords) > 0
}

// ErrorMessage returns metadata.error or an empty string.
func (d *Document) ErrorMessage() string {
	if d.Metadata == nil {
		return ""
	}
	msg, _ := d.Metadata[MetadataError].(string)
	return msg
}

// Validate checks the status-dependent field invariants.
func (d *Document) Validate() error {
	if !d.Status.Valid() {
		return WrapError(ErrInvalidInput, "validate document", fmt.Errorf("invalid status %q", d.Status))
	}
	switch d.Status {
	case StatusProcessed:
		var missing []string
		if d.ExtractedText == nil {
			missing = append(missing, "extracted_text")
		}
		if d.Summary == nil {
			missing = append(missing, "summary")
		}
		if d.Category == nil {
			missing = append(missing, "category")
		}
		if d.Confidence == nil {
			missing = append(missing, "confidence")
		}
		if d.Language == nil {
			missing = append(missing, "language")
		}
		if d.Sentiment == nil {
			missing = append(missing, "sentiment")
		}
		if len(missing) > 0 {
			return WrapError(ErrInvalidInput, "validate document", fmt.Errorf("processed document missing %s", strings.Join(missing, ", ")))
		}
	case StatusFailed:
		if d.ErrorMessage() == "" {
			return WrapError(ErrInvalidInput, "validate document", errors.New("failed document without metadata.error"))
		}
	}
	return nil
}

type Annotation struct {
	Summary         string                 `json:"summary"`
	Category        Category               `json:"category"`
	Confidence      float64                `json:"confidence"`
	Keywords        []string               `json:"keywords"`
	Sentiment       float64                `json:"sentiment"`
	Language        string                 `json:"language"`
	ExtractedFields map[FieldKind][]string `json:"extracted_fields"`
}

// DocumentUpdate is a partial update; nil fields are left untouched.
type DocumentUpdate struct {
	Status          *DocumentStatus
	ExtractedText   *string
	Summary         *string
	Keywords        []string
	Category        *Category
	Confidence      *float64
	Language        *string
	Sentiment       *float64
	ExtractedFields map[FieldKind][]string
	Embeddings      []float32
}

// AnnotationUpdate builds the final update that moves a document to processed.
func AnnotationUpdate(ann Annotation, embeddings []float32) DocumentUpdate {
	status := StatusProcessed
	keywords := ann.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	fields := ann.ExtractedFields
	if fields == nil {
		fields = map[FieldKind][]string{}
	}
	if embeddings == nil {
		embeddings = []float32{}
	}
	return DocumentUpdate{
		Status:          &status,
		Summary:         &ann.Summary,
		Keywords:        keywords,
		Category:        &ann.Category,
		Confidence:      &ann.Confidence,
		Language:        &ann.Language,
		Sentiment:       &ann.Sentiment,
		ExtractedFields: fields,
		Embeddings:      embeddings,
	}
}

// ProcessJob is one unit of background processing.
type ProcessJob struct {
	DocumentID   string    `json:"document_id"`
	CustomPrompt string    `json:"custom_prompt,omitempty"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}
