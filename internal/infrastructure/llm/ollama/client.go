package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/docintel/internal/infrastructure/chunking"
	"github.com/kirillkom/docintel/internal/infrastructure/resilience"
)

const defaultHTTPTimeout = 120 * time.Second

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	HTTPTimeout        time.Duration
	ResilienceExecutor *resilience.Executor
}

func NewWithOptions(baseURL, genModel, embedModel string, options Options) *Client {
	timeout := options.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// Complete sends one non-streaming generate request and returns the trimmed response.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, "ollama.generate", "/api/generate", reqBody, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// Embedder builds one document vector as the mean of its chunk embeddings.
type Embedder struct {
	client   *Client
	splitter *chunking.Splitter
}

// NewEmbedder embeds the whole text in one input when splitter is nil.
func NewEmbedder(client *Client, splitter *chunking.Splitter) *Embedder {
	return &Embedder{client: client, splitter: splitter}
}

func (e *Embedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	inputs := []string{text}
	if e.splitter != nil {
		if chunks := e.splitter.Split(text); len(chunks) > 0 {
			inputs = chunks
		}
	}
	request := map[string]any{
		"model": e.client.embedModel,
		"input": inputs,
	}
	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "ollama.embed", "/api/embed", request, &response); err != nil {
		return nil, err
	}
	return meanVector(response.Embeddings)
}

func meanVector(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("empty embedding result")
	}
	dim := len(vectors[0])
	out := make([]float32, dim)
	for _, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("embedding dimension mismatch: %d != %d", len(vec), dim)
		}
		for i, v := range vec {
			out[i] += v
		}
	}
	n := float32(len(vectors))
	for i := range out {
		out[i] /= n
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, operation, call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(operation, fmt.Errorf("%s: %w", operation, err))
	}
	return nil
}
