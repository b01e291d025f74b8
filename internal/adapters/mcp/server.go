package mcpadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/docintel/internal/core/domain"
	"github.com/kirillkom/docintel/internal/core/ports"
)

const (
	ServerName    = "docintel"
	ServerVersion = "1.0.0"

	ToolSearchDocuments = "search_documents"
	ToolGetDocument     = "get_document"
)

// Tools exposes the read side of the document store to MCP clients.
type Tools struct {
	reader   ports.DocumentReader
	searcher ports.DocumentSearcher
	logger   *slog.Logger
}

func NewTools(reader ports.DocumentReader, searcher ports.DocumentSearcher, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{reader: reader, searcher: searcher, logger: logger}
}

// NewServer registers both tools on a fresh MCP server.
func (t *Tools) NewServer() *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(ToolSearchDocuments,
		mcp.WithDescription("Rank processed documents against a free-text query using summary, keywords and extracted text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text query")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10, max 50)")),
		mcp.WithString("category", mcp.Description("Restrict to one category"),
			mcp.Enum("invoice", "contract", "report", "receipt", "form", "other")),
		mcp.WithString("language", mcp.Description("Restrict to a language code such as en or pl")),
		mcp.WithNumber("min_confidence", mcp.Description("Minimum classification confidence in [0,1]")),
	), t.searchDocuments)

	s.AddTool(mcp.NewTool(ToolGetDocument,
		mcp.WithDescription("Return the stored record of one document, including status and annotations."),
		mcp.WithString("document_id", mcp.Required(), mcp.Description("Document identifier")),
	), t.getDocument)

	return s
}

func (t *Tools) searchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filter := domain.SearchFilter{
		Language: strings.TrimSpace(request.GetString("language", "")),
	}
	if raw := strings.TrimSpace(request.GetString("category", "")); raw != "" {
		category, err := domain.ParseCategory(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.Category = &category
	}
	if _, ok := request.GetArguments()["min_confidence"]; ok {
		minConfidence := request.GetFloat("min_confidence", 0)
		filter.MinConfidence = &minConfidence
	}

	results, err := t.searcher.Search(ctx, query, request.GetInt("limit", 0), filter)
	if err != nil {
		return t.toolError(ToolSearchDocuments, err), nil
	}
	if results == nil {
		results = []domain.SearchResult{}
	}
	return jsonResult(map[string]any{"results": results})
}

func (t *Tools) getDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("document_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := t.reader.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return t.toolError(ToolGetDocument, err), nil
	}
	return jsonResult(doc)
}

// toolError reports client-facing failures in the result and hides the rest.
func (t *Tools) toolError(tool string, err error) *mcp.CallToolResult {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput), domain.IsKind(err, domain.ErrDocumentNotFound):
		return mcp.NewToolResultError(err.Error())
	default:
		t.logger.Error("mcp_tool_failed", "tool", tool, "error", err)
		return mcp.NewToolResultError("internal error")
	}
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}
