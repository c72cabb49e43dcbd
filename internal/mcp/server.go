// Package mcp exposes the narrative engine as MCP tools over stdio.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/dealdesk/internal/model"
)

// Engine is the narrative engine surface the tools call
type Engine interface {
	BuildNarrativePlan(ctx context.Context, narrative string) model.NarrativePlan
	ExecuteNarrativePlan(ctx context.Context, plan model.NarrativePlan) model.ExecutionReport
}

// EntityMatcher looks up existing records by name
type EntityMatcher interface {
	FetchEntityMatches(ctx context.Context, entityType model.EntityType, name string) ([]model.EntityMatch, error)
}

type Server struct {
	engine  Engine
	matcher EntityMatcher
	mcp     *sdk.Server
}

func NewServer(engine Engine, matcher EntityMatcher, version string) *Server {
	s := &Server{
		engine:  engine,
		matcher: matcher,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "dealdesk",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
