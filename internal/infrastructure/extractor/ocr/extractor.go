package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
)

// Engine recognizes text in a preprocessed PNG image.
type Engine interface {
	Recognize(ctx context.Context, png []byte) (string, error)
}

const (
	defaultMinWidth = 1000
	defaultContrast = 20
	defaultSharpen  = 1.0
)

type Extractor struct {
	engine   Engine
	minWidth int
}

func NewExtractor(engine Engine) *Extractor {
	return &Extractor{engine: engine, minWidth: defaultMinWidth}
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (string, error) {
	if e.engine == nil {
		return "", errors.New("ocr engine is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	prepared, err := e.preprocess(data)
	if err != nil {
		return "", err
	}
	text, err := e.engine.Recognize(ctx, prepared)
	if err != nil {
		return "", fmt.Errorf("recognize: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// preprocess normalizes orientation, drops color, boosts contrast and
// upscales narrow scans before handing them to the engine.
func (e *Extractor) preprocess(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	img = imaging.Grayscale(img)
	img = imaging.AdjustContrast(img, defaultContrast)
	img = imaging.Sharpen(img, defaultSharpen)
	if w := img.Bounds().Dx(); w > 0 && w < e.minWidth {
		img = imaging.Resize(img, e.minWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
