package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/docintel/internal/core/domain"
)

type queueFake struct {
	jobs []domain.ProcessJob
	err  error
}

func (f *queueFake) Enqueue(_ context.Context, job domain.ProcessJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

// cancellingQueueFake cancels the request context and then fails.
type cancellingQueueFake struct {
	cancel context.CancelFunc
}

func (f *cancellingQueueFake) Enqueue(ctx context.Context, _ domain.ProcessJob) error {
	f.cancel()
	return ctx.Err()
}

func TestIngestUploadSuccess(t *testing.T) {
	repo := newMemoryRepo()
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue, &extractorFake{}, 1024)

	doc, err := uc.Upload(context.Background(), "my report.pdf", "application/pdf", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected uploaded snapshot, got %s", doc.Status)
	}
	if doc.SizeBytes != 5 {
		t.Fatalf("expected size 5, got %d", doc.SizeBytes)
	}
	if !strings.HasSuffix(doc.StorageKey, "_my_report.pdf") {
		t.Fatalf("unexpected storage key %q", doc.StorageKey)
	}
	if storage.saved[doc.StorageKey] != "hello" {
		t.Fatalf("unexpected stored body %q", storage.saved[doc.StorageKey])
	}
	if storage.types[doc.StorageKey] != "application/pdf" {
		t.Fatalf("unexpected stored content type %q", storage.types[doc.StorageKey])
	}
	if repo.created == nil || repo.created.ID != doc.ID {
		t.Fatalf("expected record to be created")
	}
	if len(queue.jobs) != 1 || queue.jobs[0].DocumentID != doc.ID {
		t.Fatalf("expected one job for %s, got %+v", doc.ID, queue.jobs)
	}
}

func TestIngestUploadRejectsUnsupportedBeforeStoring(t *testing.T) {
	storage := newStorageFake()
	extractor := &extractorFake{supported: map[string]bool{"application/pdf": true}}
	uc := NewIngestDocumentUseCase(newMemoryRepo(), storage, &queueFake{}, extractor, 1024)

	_, err := uc.Upload(context.Background(), "archive.zip", "application/zip", strings.NewReader("PK"))
	if !domain.IsKind(err, domain.ErrUnsupportedMediaType) {
		t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
	}
	if len(storage.saved) != 0 {
		t.Fatalf("nothing may be stored for rejected uploads")
	}
}

func TestIngestUploadRejectsOversize(t *testing.T) {
	storage := newStorageFake()
	uc := NewIngestDocumentUseCase(newMemoryRepo(), storage, &queueFake{}, &extractorFake{}, 4)

	_, err := uc.Upload(context.Background(), "a.txt", "text/plain", bytes.NewReader([]byte("12345")))
	if !domain.IsKind(err, domain.ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	if len(storage.saved) != 0 {
		t.Fatalf("nothing may be stored for rejected uploads")
	}
}

func TestIngestUploadRejectsEmptyFile(t *testing.T) {
	uc := NewIngestDocumentUseCase(newMemoryRepo(), newStorageFake(), &queueFake{}, &extractorFake{}, 4)
	if _, err := uc.Upload(context.Background(), "a.txt", "text/plain", strings.NewReader("")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIngestUploadQueueFailure(t *testing.T) {
	repo := newMemoryRepo()
	storage := newStorageFake()
	queue := &queueFake{err: domain.WrapError(domain.ErrTemporary, "enqueue", errors.New("pool full"))}
	uc := NewIngestDocumentUseCase(repo, storage, queue, &extractorFake{}, 1024)

	_, err := uc.Upload(context.Background(), "a.txt", "text/plain", strings.NewReader("x"))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
	if len(repo.docs) != 0 {
		t.Fatalf("failed upload left %d records", len(repo.docs))
	}
	if len(storage.saved) != 0 || len(storage.deleted) != 1 {
		t.Fatalf("failed upload left objects saved=%v deleted=%v", storage.saved, storage.deleted)
	}
}

func TestIngestUploadQueueFailureRollsBackAfterCancellation(t *testing.T) {
	repo := newMemoryRepo()
	storage := newStorageFake()
	ctx, cancel := context.WithCancel(context.Background())
	queue := &cancellingQueueFake{cancel: cancel}
	uc := NewIngestDocumentUseCase(ctxRepoFake{repo}, storage, queue, &extractorFake{}, 1024)

	if _, err := uc.Upload(ctx, "a.txt", "text/plain", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if len(repo.docs) != 0 || len(storage.saved) != 0 {
		t.Fatalf("cancelled upload left records=%d objects=%d", len(repo.docs), len(storage.saved))
	}
}

func TestIngestUploadCreateFailureRemovesObject(t *testing.T) {
	repo := newMemoryRepo()
	repo.createErr = errors.New("db down")
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue, &extractorFake{}, 1024)

	if _, err := uc.Upload(context.Background(), "a.txt", "text/plain", strings.NewReader("x")); err == nil {
		t.Fatalf("expected create error")
	}
	if len(storage.saved) != 0 || len(storage.deleted) != 1 {
		t.Fatalf("expected stored object to be removed, saved=%v deleted=%v", storage.saved, storage.deleted)
	}
	if len(repo.deleted) != 0 {
		t.Fatalf("no record delete expected when create failed, got %v", repo.deleted)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("no job may be enqueued when create failed")
	}
}

func TestIngestReprocessEnqueuesCustomPrompt(t *testing.T) {
	doc := uploadedDoc()
	doc.Status = domain.StatusProcessed
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(newMemoryRepo(doc), newStorageFake(), queue, &extractorFake{}, 1024)

	snapshot, err := uc.Reprocess(context.Background(), "doc-1", "  focus on totals ")
	if err != nil {
		t.Fatalf("Reprocess() error = %v", err)
	}
	if snapshot.Status != domain.StatusProcessed {
		t.Fatalf("expected pre-processing snapshot, got %s", snapshot.Status)
	}
	if len(queue.jobs) != 1 || queue.jobs[0].CustomPrompt != "focus on totals" {
		t.Fatalf("unexpected jobs %+v", queue.jobs)
	}
}

func TestIngestReprocessUnknownDocument(t *testing.T) {
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(newMemoryRepo(), newStorageFake(), queue, &extractorFake{}, 1024)

	if _, err := uc.Reprocess(context.Background(), "missing", ""); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if len(queue.jobs) != 0 {
		t.Fatalf("no job may be enqueued for unknown documents")
	}
}

func TestIngestDeleteRemovesRecordAndObject(t *testing.T) {
	repo := newMemoryRepo(uploadedDoc())
	storage := newStorageFake()
	uc := NewIngestDocumentUseCase(repo, storage, &queueFake{}, &extractorFake{}, 1024)

	if err := uc.Delete(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(repo.deleted) != 1 || len(storage.deleted) != 1 || storage.deleted[0] != "doc-1_invoice.txt" {
		t.Fatalf("unexpected deletes repo=%v storage=%v", repo.deleted, storage.deleted)
	}
	if err := uc.Delete(context.Background(), "doc-1"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound on second delete, got %v", err)
	}
}

func TestResolveMediaType(t *testing.T) {
	cases := []struct {
		filename string
		declared string
		want     string
	}{
		{"a.pdf", "application/PDF; name=a.pdf", "application/pdf"},
		{"a.pdf", "", "application/pdf"},
		{"scan.png", "application/octet-stream", "image/png"},
		{"notes.txt", "", "text/plain"},
		{"sheet.xlsx", "", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{"blob", "", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := ResolveMediaType(tc.filename, tc.declared); got != tc.want {
			t.Fatalf("ResolveMediaType(%q, %q) = %q, want %q", tc.filename, tc.declared, got, tc.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("../../etc/pass wd!.txt"); got != "pass_wd_.txt" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
	if got := sanitizeFilename(""); got != "document.bin" {
		t.Fatalf("unexpected sanitized name %q", got)
	}
}
