package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

type fakeEngine struct {
	text   string
	err    error
	called int
	got    []byte
}

func (f *fakeEngine) Recognize(_ context.Context, data []byte) (string, error) {
	f.called++
	f.got = data
	return f.text, f.err
}

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: 200, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func TestExtractPreprocessesAndRecognizes(t *testing.T) {
	engine := &fakeEngine{text: "  Receipt total 12.00  \n"}
	text, err := NewExtractor(engine).Extract(context.Background(), samplePNG(t, 50, 20))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "Receipt total 12.00" {
		t.Fatalf("unexpected text %q", text)
	}
	if engine.called != 1 {
		t.Fatalf("expected one engine call, got %d", engine.called)
	}
	decoded, err := png.Decode(bytes.NewReader(engine.got))
	if err != nil {
		t.Fatalf("engine input is not png: %v", err)
	}
	if decoded.Bounds().Dx() != defaultMinWidth {
		t.Fatalf("expected upscale to %d, got %d", defaultMinWidth, decoded.Bounds().Dx())
	}
}

func TestExtractRejectsUndecodableImage(t *testing.T) {
	engine := &fakeEngine{text: "x"}
	if _, err := NewExtractor(engine).Extract(context.Background(), []byte("not an image")); err == nil {
		t.Fatalf("expected decode error")
	}
	if engine.called != 0 {
		t.Fatalf("engine must not be called for undecodable input")
	}
}

func TestExtractPropagatesEngineError(t *testing.T) {
	engine := &fakeEngine{err: errors.New("tesseract crashed")}
	if _, err := NewExtractor(engine).Extract(context.Background(), samplePNG(t, 10, 10)); err == nil {
		t.Fatalf("expected engine error")
	}
}

func TestExtractWithoutEngine(t *testing.T) {
	if _, err := NewExtractor(nil).Extract(context.Background(), samplePNG(t, 10, 10)); err == nil {
		t.Fatalf("expected error without engine")
	}
}
