package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	statusResourceURI  = "loreseek://index/status"
	metricsResourceURI = "loreseek://query_metrics"
)

// registerResources exposes index state as MCP resources so clients
// can inspect it without a tool call.
func (s *Server) registerResources(bases []string) {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "index_status",
			URI:         statusResourceURI,
			Description: fmt.Sprintf("Indexing state of the %d configured collections", len(bases)),
			MIMEType:    "application/json",
		},
		s.makeStatusHandler(),
	)

	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         metricsResourceURI,
			Description: "Session query telemetry: volumes, top terms, zero-result queries",
			MIMEType:    "application/json",
		},
		s.makeMetricsHandler(),
	)
}

func (s *Server) makeMetricsHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		content, err := json.MarshalIndent(s.metrics.Snapshot(), "", "  ")
		if err != nil {
			return nil, NewInternalError(fmt.Sprintf("failed to encode metrics: %v", err))
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      metricsResourceURI,
					MIMEType: "application/json",
					Text:     string(content),
				},
			},
		}, nil
	}
}

func (s *Server) makeStatusHandler() mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		_, out, err := s.indexStatusHandler(ctx, nil, IndexStatusInput{})
		if err != nil {
			return nil, MapError(err)
		}

		content, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, NewInternalError(fmt.Sprintf("failed to encode status: %v", err))
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      statusResourceURI,
					MIMEType: "application/json",
					Text:     string(content),
				},
			},
		}, nil
	}
}
