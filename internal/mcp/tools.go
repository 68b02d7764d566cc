package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const (
	defaultLimit = 5
	maxLimit     = 50
	previewLen   = 200
)

type searchInput struct {
	Query       string   `json:"query" jsonschema:"Semantic search query"`
	Collections []string `json:"collections,omitempty" jsonschema:"Collections to search (empty = all)"`
	Limit       int      `json:"limit,omitempty" jsonschema:"Maximum passages to return (default: 5)"`
}

// passage flattens retrieval.Passage for tool output schemas.
type passage struct {
	Text       string  `json:"text"`
	Collection string  `json:"collection"`
	ID         string  `json:"id"`
	FilePath   string  `json:"file_path"`
	ChunkIndex int     `json:"chunk_index"`
	Distance   float64 `json:"distance"`
}

type searchOutput struct {
	Query    string    `json:"query" jsonschema:"Search query used"`
	Passages []passage `json:"passages" jsonschema:"Passages ordered by distance, closest first"`
	Count    int       `json:"count" jsonschema:"Number of passages"`
}

type askInput struct {
	Question    string   `json:"question" jsonschema:"Question to answer from the ingested documents"`
	Collections []string `json:"collections,omitempty" jsonschema:"Collections to search (empty = all)"`
	Limit       int      `json:"limit,omitempty" jsonschema:"Maximum passages used as context (default: 5)"`
}

type askOutput struct {
	Answer   string    `json:"answer" jsonschema:"Generated answer, or the refusal text"`
	Refused  bool      `json:"refused" jsonschema:"True when no passage supported an answer"`
	Passages []passage `json:"passages" jsonschema:"Passages the answer was grounded on"`
}

type listInput struct{}

type listOutput struct {
	Collections []vectorstore.CollectionInfo `json:"collections" jsonschema:"Collections sorted by name with document counts"`
	Count       int                          `json:"count" jsonschema:"Number of collections"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_documents",
		Description: "Search ingested documents across collections. Returns deduplicated passages ordered by distance.",
	}, instrument(s, "search_documents", s.handleSearch))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ask_documents",
		Description: "Answer a question from the ingested documents. The answer cites its source first and refuses when the passages do not support an answer.",
	}, instrument(s, "ask_documents", s.handleAsk))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_collections",
		Description: "List document collections with their document counts.",
	}, instrument(s, "list_collections", s.handleList))
}

func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, args searchInput) (*mcp.CallToolResult, searchOutput, error) {
	if strings.TrimSpace(args.Query) == "" {
		return nil, searchOutput{}, fmt.Errorf("query is required")
	}

	passages, err := s.registry.Answers().Search(ctx, args.Query, args.Collections, clampLimit(args.Limit))
	if err != nil {
		return nil, searchOutput{}, fmt.Errorf("search failed: %w", err)
	}

	out := searchOutput{Query: args.Query, Passages: toPassages(passages), Count: len(passages)}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: formatPassages(passages)}},
	}, out, nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcp.CallToolRequest, args askInput) (*mcp.CallToolResult, askOutput, error) {
	if strings.TrimSpace(args.Question) == "" {
		return nil, askOutput{}, fmt.Errorf("question is required")
	}

	ans, err := s.registry.Answers().Ask(ctx, args.Question, args.Collections, clampLimit(args.Limit))
	if err != nil {
		return nil, askOutput{}, fmt.Errorf("ask failed: %w", err)
	}

	out := askOutput{Answer: ans.Answer, Refused: ans.Refused, Passages: toPassages(ans.Passages)}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: ans.Answer}},
	}, out, nil
}

func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, _ listInput) (*mcp.CallToolResult, listOutput, error) {
	infos, err := s.registry.VectorStore().ListCollections(ctx)
	if err != nil {
		return nil, listOutput{}, fmt.Errorf("listing collections failed: %w", err)
	}
	if infos == nil {
		infos = []vectorstore.CollectionInfo{}
	}

	var b strings.Builder
	if len(infos) == 0 {
		b.WriteString("No collections. Ingest a directory first.")
	}
	for _, info := range infos {
		fmt.Fprintf(&b, "%s | %d\n", info.Name, info.Count)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: strings.TrimRight(b.String(), "\n")}},
	}, listOutput{Collections: infos, Count: len(infos)}, nil
}

// instrument records invocation metrics and logs failures.
func instrument[In, Out any](s *Server, name string, h mcp.ToolHandlerFor[In, Out]) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		s.metrics.IncrementActive(ctx, name)
		defer s.metrics.DecrementActive(ctx, name)

		start := time.Now()
		res, out, err := h(ctx, req, in)
		s.metrics.RecordInvocation(ctx, name, time.Since(start), err)
		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", name), zap.Error(err))
		}
		return res, out, err
	}
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	default:
		return n
	}
}

func toPassages(in []retrieval.Passage) []passage {
	out := make([]passage, len(in))
	for i, p := range in {
		out[i] = passage{
			Text:       p.Text,
			Collection: p.Collection,
			ID:         p.ID,
			FilePath:   p.Metadata.File.Path,
			ChunkIndex: p.Metadata.Chunk.Index,
			Distance:   float64(p.Distance),
		}
	}
	return out
}

func formatPassages(passages []retrieval.Passage) string {
	if len(passages) == 0 {
		return "No matching passages."
	}
	var b strings.Builder
	for i, p := range passages {
		text := strings.ReplaceAll(p.Text, "\n", " ")
		if r := []rune(text); len(r) > previewLen {
			text = string(r[:previewLen]) + "..."
		}
		fmt.Fprintf(&b, "[%d] %s (%s, distance %.3f)\n%s\n", i+1, p.Metadata.File.Path, p.Collection, p.Distance, text)
	}
	return strings.TrimRight(b.String(), "\n")
}
