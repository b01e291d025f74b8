package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/docintel/internal/core/domain"
)

type fakeBackend struct {
	text   string
	err    error
	panics bool
	calls  int
}

func (f *fakeBackend) Extract(_ context.Context, _ []byte) (string, error) {
	f.calls++
	if f.panics {
		panic("boom")
	}
	return f.text, f.err
}

func TestRouterDispatchesOnNormalizedType(t *testing.T) {
	backend := &fakeBackend{text: "hello"}
	r := NewRouter()
	r.Register(backend, "text/plain")

	text, err := r.Extract(context.Background(), []byte("x"), "Text/Plain; charset=utf-8")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "hello" || backend.calls != 1 {
		t.Fatalf("unexpected result text=%q calls=%d", text, backend.calls)
	}
}

func TestRouterUnsupportedNeverInvokesBackend(t *testing.T) {
	backend := &fakeBackend{text: "hello"}
	r := NewRouter()
	r.Register(backend, "text/plain")

	for _, mt := range []string{"application/zip", "", "video/mp4"} {
		if _, err := r.Extract(context.Background(), []byte("x"), mt); !domain.IsKind(err, domain.ErrUnsupportedMediaType) {
			t.Fatalf("%q: expected ErrUnsupportedMediaType, got %v", mt, err)
		}
	}
	if backend.calls != 0 {
		t.Fatalf("backend must not be called, got %d calls", backend.calls)
	}
	if r.Supports("application/zip") {
		t.Fatalf("Supports() must be false for unregistered type")
	}
}

func TestRouterMapsFailuresToExtractionFailed(t *testing.T) {
	cases := map[string]*fakeBackend{
		"error": {err: errors.New("corrupt")},
		"empty": {text: "  \n "},
		"panic": {panics: true},
	}
	for name, backend := range cases {
		r := NewRouter()
		r.Register(backend, "application/pdf")
		text, err := r.Extract(context.Background(), []byte("x"), "application/pdf")
		if !domain.IsKind(err, domain.ErrExtractionFailed) {
			t.Fatalf("%s: expected ErrExtractionFailed, got %v", name, err)
		}
		if text != "" {
			t.Fatalf("%s: expected no partial text, got %q", name, text)
		}
	}
}

func TestNewDefaultImagesRequireEngine(t *testing.T) {
	if NewDefault(nil).Supports("image/png") {
		t.Fatalf("images must be unsupported without an OCR engine")
	}
	r := NewDefault(nil)
	for _, mt := range []string{"application/pdf", "text/markdown", SpreadsheetTypes[0], WordTypes[0]} {
		if !r.Supports(mt) {
			t.Fatalf("expected %q to be supported", mt)
		}
	}
}

func TestNewDefaultRejectsLegacyWord(t *testing.T) {
	if NewDefault(nil).Supports("application/msword") {
		t.Fatalf("legacy binary Word documents must be rejected at upload")
	}
}

func TestNewDefaultPlainTextEndToEnd(t *testing.T) {
	text, err := NewDefault(nil).Extract(context.Background(), []byte("Invoice 42"), "text/plain")
	if err != nil || text != "Invoice 42" {
		t.Fatalf("unexpected result text=%q err=%v", text, err)
	}
}
