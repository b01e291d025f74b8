// Package annotation derives summary, category, keywords, sentiment, language
// and structured fields from extracted document text.
package annotation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/docintel/internal/core/domain"
	"github.com/kirillkom/docintel/internal/core/ports"
)

// ErrEmptySummary is returned when the backend answers the summary prompt
// with nothing. It is a content failure and is not retried.
var ErrEmptySummary = errors.New("empty summary")

type Provider struct {
	client    ports.CompletionClient
	templates Templates
}

func NewProvider(client ports.CompletionClient, templates Templates) *Provider {
	return &Provider{
		client:    client,
		templates: templates,
	}
}

// Annotate issues the four backend prompts concurrently and joins them.
// The first failure cancels the remaining calls and no partial annotation is returned.
func (p *Provider) Annotate(ctx context.Context, text, customPrompt string) (domain.Annotation, error) {
	var (
		summary      string
		rawCategory  string
		rawKeywords  string
		rawSentiment string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := p.complete(gctx, "summary", p.templates.summaryPrompt(text, customPrompt))
		if err != nil {
			return err
		}
		if out == "" {
			return fmt.Errorf("summary: %w", ErrEmptySummary)
		}
		summary = out
		return nil
	})
	g.Go(func() error {
		out, err := p.complete(gctx, "classification", p.templates.classificationPrompt(text))
		if err != nil {
			return err
		}
		rawCategory = out
		return nil
	})
	g.Go(func() error {
		out, err := p.complete(gctx, "keywords", p.templates.keywordsPrompt(text))
		if err != nil {
			return err
		}
		rawKeywords = out
		return nil
	})
	g.Go(func() error {
		out, err := p.complete(gctx, "sentiment", p.templates.sentimentPrompt(text))
		if err != nil {
			return err
		}
		rawSentiment = out
		return nil
	})

	if err := g.Wait(); err != nil {
		return domain.Annotation{}, domain.WrapError(domain.ErrAnnotationFailed, "annotate", err)
	}

	category, confidence := parseClassification(rawCategory)
	return domain.Annotation{
		Summary:         summary,
		Category:        category,
		Confidence:      confidence,
		Keywords:        parseKeywords(rawKeywords),
		Sentiment:       parseSentiment(rawSentiment),
		Language:        DetectLanguage(text),
		ExtractedFields: ExtractFields(text),
	}, nil
}

func (p *Provider) complete(ctx context.Context, name, prompt string) (string, error) {
	out, err := p.client.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", name, err)
	}
	return strings.TrimSpace(out), nil
}
