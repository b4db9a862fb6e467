package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/loreseek/loreseek/internal/lifecycle"
	"github.com/loreseek/loreseek/internal/search"
	"github.com/loreseek/loreseek/internal/store"
	"github.com/loreseek/loreseek/internal/structure"
	"github.com/loreseek/loreseek/internal/telemetry"
	"github.com/loreseek/loreseek/pkg/version"
)

// Server bridges AI clients with loreseek's hybrid retrieval. Each
// configured base collection gets its own query engine bound to the
// base's live alias.
type Server struct {
	mcp     *mcp.Server
	engines map[string]*search.Engine
	manager *lifecycle.Manager
	metrics *telemetry.QueryMetrics
	logger  *slog.Logger

	defaultBase string
}

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"the search query to execute"`
	Collection string `json:"collection,omitempty" jsonschema:"base collection to search, defaults to the first configured one"`
	Limit      int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 5"`
	Source     string `json:"source,omitempty" jsonschema:"restrict results to one source document"`
}

// SearchResultOutput is a single ranked result.
type SearchResultOutput struct {
	Text         string  `json:"text" jsonschema:"matched chunk text"`
	Source       string  `json:"source,omitempty" jsonschema:"source document file name"`
	Page         int     `json:"page" jsonschema:"origin page number"`
	HeadingPath  string  `json:"heading_path,omitempty" jsonschema:"section hierarchy of the match"`
	Score        float64 `json:"score" jsonschema:"fused relevance score"`
	DenseScore   float64 `json:"dense_score,omitempty" jsonschema:"semantic similarity component"`
	SparseScore  float64 `json:"sparse_score,omitempty" jsonschema:"lexical match component"`
	KeywordScore float64 `json:"keyword_score,omitempty" jsonschema:"heading keyword boost component"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked search results"`
}

// PageLookupInput defines the input schema for the page_lookup tool.
type PageLookupInput struct {
	Source     string `json:"source" jsonschema:"source document file name, e.g. phb.pdf"`
	Page       int    `json:"page" jsonschema:"page number to fetch"`
	Collection string `json:"collection,omitempty" jsonschema:"base collection, defaults to the first configured one"`
}

// PageLookupOutput defines the output schema for the page_lookup tool.
type PageLookupOutput struct {
	Source string       `json:"source" jsonschema:"source document file name"`
	Page   int          `json:"page" jsonschema:"page number"`
	Chunks []PageChunk  `json:"chunks" jsonschema:"indexed chunks originating on this page"`
}

// PageChunk is one chunk attributed to a page.
type PageChunk struct {
	Text        string `json:"text" jsonschema:"chunk text"`
	HeadingPath string `json:"heading_path,omitempty" jsonschema:"section hierarchy"`
}

// IndexStatusInput is empty; the tool takes no arguments.
type IndexStatusInput struct{}

// CollectionStatus reports one base collection's state.
type CollectionStatus struct {
	Base   string `json:"base" jsonschema:"base collection name"`
	Chunks int    `json:"chunks" jsonschema:"indexed chunk count"`
	Ready  bool   `json:"ready" jsonschema:"whether the live index is queryable"`
}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Collections     []CollectionStatus `json:"collections" jsonschema:"state per base collection"`
	Reconciliations []string           `json:"reconciliations,omitempty" jsonschema:"bases blocked on manual reconciliation"`
}

// NewServer creates the MCP server. engines maps base collection names
// to query engines; manager may be nil if lifecycle state is not
// exposed.
func NewServer(engines map[string]*search.Engine, manager *lifecycle.Manager) (*Server, error) {
	if len(engines) == 0 {
		return nil, errors.New("at least one search engine is required")
	}

	bases := make([]string, 0, len(engines))
	for base := range engines {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	s := &Server{
		engines:     engines,
		manager:     manager,
		metrics:     telemetry.NewQueryMetrics(),
		logger:      slog.Default(),
		defaultBase: bases[0],
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "loreseek",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	s.registerResources(bases)
	return s, nil
}

// MCPServer exposes the underlying SDK server for embedding.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

func (s *Server) engineFor(collection string) (*search.Engine, error) {
	if collection == "" {
		collection = s.defaultBase
	}
	engine, ok := s.engines[collection]
	if !ok {
		return nil, NewInvalidParamsError(fmt.Sprintf("unknown collection %q", collection))
	}
	return engine, nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Search the indexed rulebooks. Combines semantic similarity, full-text matching, and heading keywords, and returns ranked passages with their page numbers and section hierarchy.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "page_lookup",
		Description: "Fetch the indexed content of one specific page of a source document. Use when the user cites a page number directly.",
	}, s.pageLookupHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Report which collections are indexed and queryable. Use before searching to verify the index is ready.",
	}, s.indexStatusHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 3))
}

func (s *Server) searchHandler(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required")
	}

	engine, err := s.engineFor(input.Collection)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	var filter *store.Filter
	if input.Source != "" {
		filter = &store.Filter{Must: map[string]string{store.MetaSource: input.Source}}
	}

	started := time.Now()
	results, err := engine.Search(ctx, input.Query, input.Limit, filter)
	if err != nil {
		s.logger.Error("search tool failed", "query", input.Query, "error", err)
		return nil, SearchOutput{}, MapError(err)
	}
	s.metrics.Record(telemetry.QueryEvent{
		Query:       input.Query,
		Collection:  input.Collection,
		ResultCount: len(results),
		Duration:    time.Since(started),
		Timestamp:   started,
	})

	out := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, res := range results {
		out.Results = append(out.Results, SearchResultOutput{
			Text:         res.Payload.Text,
			Source:       res.Payload.Metadata[store.MetaSource],
			Page:         res.Payload.Page,
			HeadingPath:  res.Payload.Metadata[structure.MetaHeadingPath],
			Score:        res.Score,
			DenseScore:   res.DenseScore,
			SparseScore:  res.SparseScore,
			KeywordScore: res.KeywordScore,
		})
	}
	return nil, out, nil
}

func (s *Server) pageLookupHandler(ctx context.Context, _ *mcp.CallToolRequest, input PageLookupInput) (
	*mcp.CallToolResult,
	PageLookupOutput,
	error,
) {
	if input.Source == "" {
		return nil, PageLookupOutput{}, NewInvalidParamsError("source parameter is required")
	}
	if input.Page < 1 {
		return nil, PageLookupOutput{}, NewInvalidParamsError("page must be a positive page number")
	}

	engine, err := s.engineFor(input.Collection)
	if err != nil {
		return nil, PageLookupOutput{}, err
	}

	pages, err := engine.GetBySourceAndPage(ctx, input.Source, input.Page)
	if errors.Is(err, search.ErrPageNotFound) {
		return nil, PageLookupOutput{}, &Error{
			Code:    ErrCodePageNotFound,
			Message: fmt.Sprintf("No indexed content for %s page %d.", input.Source, input.Page),
		}
	}
	if err != nil {
		return nil, PageLookupOutput{}, MapError(err)
	}

	out := PageLookupOutput{Source: input.Source, Page: input.Page}
	for _, page := range pages {
		out.Chunks = append(out.Chunks, PageChunk{
			Text:        page.Text,
			HeadingPath: page.Metadata[structure.MetaHeadingPath],
		})
	}
	return nil, out, nil
}

func (s *Server) indexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	IndexStatusOutput,
	error,
) {
	var out IndexStatusOutput

	bases := make([]string, 0, len(s.engines))
	for base := range s.engines {
		bases = append(bases, base)
	}
	sort.Strings(bases)

	for _, base := range bases {
		status := CollectionStatus{Base: base}
		if count, err := s.engines[base].Count(ctx); err == nil {
			status.Chunks = count
			status.Ready = count > 0
		}
		out.Collections = append(out.Collections, status)
	}

	if s.manager != nil {
		if bases, err := s.manager.Reconciliations(ctx); err == nil {
			out.Reconciliations = bases
		}
	}
	return nil, out, nil
}

// CallSearch executes the search tool directly, bypassing the
// transport. Used by embedders and end-to-end tests.
func (s *Server) CallSearch(ctx context.Context, input SearchInput) (SearchOutput, error) {
	_, out, err := s.searchHandler(ctx, nil, input)
	return out, err
}

// CallPageLookup executes the page_lookup tool directly.
func (s *Server) CallPageLookup(ctx context.Context, input PageLookupInput) (PageLookupOutput, error) {
	_, out, err := s.pageLookupHandler(ctx, nil, input)
	return out, err
}

// CallIndexStatus executes the index_status tool directly.
func (s *Server) CallIndexStatus(ctx context.Context) (IndexStatusOutput, error) {
	_, out, err := s.indexStatusHandler(ctx, nil, IndexStatusInput{})
	return out, err
}

// Serve runs the server over the given transport until the context is
// cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("starting MCP server", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
