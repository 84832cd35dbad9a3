// Package tools provides MCP tool implementations for crosswalk-engine.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/crosswalk-data/crosswalk-engine/pkg/apperrors"
	"github.com/crosswalk-data/crosswalk-engine/pkg/middleware"
	"github.com/crosswalk-data/crosswalk-engine/pkg/models"
	"github.com/crosswalk-data/crosswalk-engine/pkg/services"
)

// ResolveToolDeps defines dependencies for the resolution MCP tools.
type ResolveToolDeps struct {
	ResolutionService services.ResolutionService
	LearningService   services.LearningService
	Logger            *zap.Logger
}

// RegisterResolveTools registers resolve_values and confirm_match with the
// MCP server.
func RegisterResolveTools(mcpServer *server.MCPServer, deps *ResolveToolDeps) {
	registerResolveValuesTool(mcpServer, deps)
	registerConfirmMatchTool(mcpServer, deps)
}

func registerResolveValuesTool(mcpServer *server.MCPServer, deps *ResolveToolDeps) {
	tool := mcp.NewTool(
		"resolve_values",
		mcp.WithDescription(`Resolve free-text terms to canonical rows in the configured value stores.
Each query names a term and the entity types to resolve it against; candidates
come back ranked by scope priority and match score. Use confirm_match to teach
the engine a mapping it missed.`),
		mcp.WithString("domain",
			mcp.Description("Restrict resolution to stores in this domain")),
		mcp.WithString("queries",
			mcp.Required(),
			mcp.Description(`JSON array of queries, e.g.
[{"term":"Nike","entity_types":["Vendor"],"exclude_values":[]}]`)),
		mcp.WithNumber("max_candidates",
			mcp.Description("Maximum candidates per entity type (default from server config)")),
		mcp.WithNumber("min_score",
			mcp.Description("Minimum composite score between 0 and 1 (default from server config)")),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)

		queriesJSON, ok := args["queries"].(string)
		if !ok || queriesJSON == "" {
			return NewErrorResult("invalid_parameters", "queries is required"), nil
		}

		var queries []models.ResolveQuery
		if err := json.Unmarshal([]byte(queriesJSON), &queries); err != nil {
			return NewErrorResultWithDetails("invalid_parameters",
				"queries is not a valid JSON array",
				map[string]any{"parse_error": err.Error()}), nil
		}

		req := &models.ResolveRequest{Queries: queries}
		if domain, ok := args["domain"].(string); ok {
			req.Domain = domain
		}
		if maxCandidates, ok := args["max_candidates"].(float64); ok {
			req.MaxCandidates = int(maxCandidates)
		}
		if minScore, ok := args["min_score"].(float64); ok {
			req.MinScore = minScore
		}

		identity := middleware.IdentityFromContext(ctx)

		resp, err := deps.ResolutionService.Resolve(ctx, identity, req)
		if err != nil {
			if errors.Is(err, apperrors.ErrTooManyQueries) {
				return NewErrorResult("too_many_queries", err.Error()), nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return NewErrorResult("timeout", err.Error()), nil
			}
			deps.Logger.Error("resolve_values failed", zap.Error(err))
			return nil, fmt.Errorf("resolution failed: %w", err)
		}

		jsonBytes, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to encode response: %w", err)
		}
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}

	mcpServer.AddTool(tool, handler)
}

func registerConfirmMatchTool(mcpServer *server.MCPServer, deps *ResolveToolDeps) {
	tool := mcp.NewTool(
		"confirm_match",
		mcp.WithDescription(`Confirm that a free-text term maps to a specific canonical row.
The mapping is recorded as a learned search term in the caller's scope and
counts toward consensus promotion to system scope.`),
		mcp.WithString("store_name",
			mcp.Required(),
			mcp.Description("Value store holding the row")),
		mcp.WithString("term",
			mcp.Required(),
			mcp.Description("The free-text term that matched")),
		mcp.WithNumber("value_row_id",
			mcp.Required(),
			mcp.Description("Row id the term maps to")),
		mcp.WithString("scope",
			mcp.Description(`Scope to record under: "user:<id>" (default: caller) or "team:<id>"`)),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)

		req := &models.ConfirmRequest{}
		if storeName, ok := args["store_name"].(string); ok {
			req.StoreName = storeName
		}
		if term, ok := args["term"].(string); ok {
			req.Term = term
		}
		if rowID, ok := args["value_row_id"].(float64); ok {
			req.ValueRowID = int64(rowID)
		}
		if scope, ok := args["scope"].(string); ok {
			req.Scope = scope
		}

		identity := middleware.IdentityFromContext(ctx)

		if err := deps.LearningService.Confirm(ctx, identity, req); err != nil {
			switch {
			case errors.Is(err, apperrors.ErrNotFound):
				return NewErrorResult("not_found", err.Error()), nil
			case errors.Is(err, apperrors.ErrInvalidScope):
				return NewErrorResult("invalid_scope", err.Error()), nil
			default:
				return NewErrorResult("invalid_parameters", err.Error()), nil
			}
		}

		jsonBytes, _ := json.Marshal(models.ConfirmResponse{Status: "confirmed"})
		return mcp.NewToolResultText(string(jsonBytes)), nil
	}

	mcpServer.AddTool(tool, handler)
}
