package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/docintel/internal/core/domain"
)

type readerFake struct {
	err error
}

func (f readerFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: id, Filename: "invoice.pdf", Status: domain.StatusProcessed}, nil
}

type searcherFake struct {
	err       error
	gotQuery  string
	gotLimit  int
	gotFilter domain.SearchFilter
}

func (f *searcherFake) Search(_ context.Context, query string, limit int, filter domain.SearchFilter) ([]domain.SearchResult, error) {
	f.gotQuery = query
	f.gotLimit = limit
	f.gotFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return []domain.SearchResult{{Document: domain.Document{ID: "doc-1"}, Score: 0.9, Highlights: []string{"total due"}}}, nil
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatalf("expected tool result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestSearchDocumentsTool(t *testing.T) {
	searcher := &searcherFake{}
	tools := NewTools(readerFake{}, searcher, nil)

	result, err := tools.searchDocuments(context.Background(), callRequest(ToolSearchDocuments, map[string]any{
		"query":          "total due",
		"limit":          float64(3),
		"category":       "invoice",
		"min_confidence": 0.4,
	}))
	if err != nil {
		t.Fatalf("searchDocuments() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, result))
	}
	if searcher.gotQuery != "total due" || searcher.gotLimit != 3 {
		t.Fatalf("unexpected query=%q limit=%d", searcher.gotQuery, searcher.gotLimit)
	}
	if searcher.gotFilter.Category == nil || *searcher.gotFilter.Category != domain.CategoryInvoice {
		t.Fatalf("expected invoice filter, got %+v", searcher.gotFilter)
	}
	if searcher.gotFilter.MinConfidence == nil || *searcher.gotFilter.MinConfidence != 0.4 {
		t.Fatalf("expected min_confidence filter, got %+v", searcher.gotFilter)
	}

	var payload struct {
		Results []domain.SearchResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &payload); err != nil {
		t.Fatalf("decode tool payload: %v", err)
	}
	if len(payload.Results) != 1 || payload.Results[0].Document.ID != "doc-1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestSearchDocumentsRequiresQuery(t *testing.T) {
	tools := NewTools(readerFake{}, &searcherFake{}, nil)

	result, err := tools.searchDocuments(context.Background(), callRequest(ToolSearchDocuments, map[string]any{}))
	if err != nil {
		t.Fatalf("searchDocuments() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing query")
	}
}

func TestSearchDocumentsHidesInternalErrors(t *testing.T) {
	tools := NewTools(readerFake{}, &searcherFake{err: errors.New("connection refused to 10.0.0.5")}, nil)

	result, err := tools.searchDocuments(context.Background(), callRequest(ToolSearchDocuments, map[string]any{"query": "x"}))
	if err != nil {
		t.Fatalf("searchDocuments() error = %v", err)
	}
	if !result.IsError || strings.Contains(resultText(t, result), "10.0.0.5") {
		t.Fatalf("expected generic tool error, got %q", resultText(t, result))
	}
}

func TestGetDocumentTool(t *testing.T) {
	tools := NewTools(readerFake{}, &searcherFake{}, nil)

	result, err := tools.getDocument(context.Background(), callRequest(ToolGetDocument, map[string]any{"document_id": "doc-5"}))
	if err != nil {
		t.Fatalf("getDocument() error = %v", err)
	}
	var doc domain.Document
	if err := json.Unmarshal([]byte(resultText(t, result)), &doc); err != nil {
		t.Fatalf("decode tool payload: %v", err)
	}
	if doc.ID != "doc-5" || doc.Status != domain.StatusProcessed {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	tools := NewTools(readerFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id=x"))}, &searcherFake{}, nil)

	result, err := tools.getDocument(context.Background(), callRequest(ToolGetDocument, map[string]any{"document_id": "x"}))
	if err != nil {
		t.Fatalf("getDocument() error = %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "document not found") {
		t.Fatalf("expected not found tool error, got %q", resultText(t, result))
	}
}
