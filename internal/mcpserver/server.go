// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes cardnav tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/skoglund/cardnav/internal/cardservice"
	"github.com/skoglund/cardnav/internal/preset"
	"github.com/skoglund/cardnav/internal/storage"
)

// Server wraps the MCP server with cardnav tools.
type Server struct {
	mcp    *server.MCPServer
	store  storage.Provider
	engine *preset.Engine
	cards  *cardservice.Service
}

// New creates a new MCP server with all cardnav tools registered.
func New(store storage.Provider, engine *preset.Engine, cards *cardservice.Service) *Server {
	s := &Server{store: store, engine: engine, cards: cards}

	s.mcp = server.NewMCPServer(
		"Cardnav",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_presets",
		mcp.WithDescription("List all presets with their mapping rules and the fallback preset id."),
	), s.listPresets)

	s.mcp.AddTool(mcp.NewTool("get_preset",
		mcp.WithDescription("Get a single preset including its configuration bundle and mappings."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Preset id")),
	), s.getPreset)

	s.mcp.AddTool(mcp.NewTool("resolve_preset",
		mcp.WithDescription("Resolve which preset applies to a note without changing the live configuration."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative note path (e.g. folder/note.md)")),
	), s.resolvePreset)

	s.mcp.AddTool(mcp.NewTool("explain_resolution",
		mcp.WithDescription("Explain a resolution: every mapping that matched the note, their specificity, and why the winner won."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative note path")),
	), s.explainResolution)

	s.mcp.AddTool(mcp.NewTool("apply_preset",
		mcp.WithDescription("Apply a preset's configuration bundle as the live card-view configuration."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Preset id")),
	), s.applyPreset)

	s.mcp.AddTool(mcp.NewTool("export_presets",
		mcp.WithDescription("Export the full preset collection as a portable JSON document. "+
			"The document follows the mapping contract; read it via the "+
			"get_mapping_contract tool or the cardnav://mapping-format resource."),
	), s.exportPresets)

	s.mcp.AddTool(mcp.NewTool("get_mapping_contract",
		mcp.WithDescription("Returns the canonical preset mapping contract. "+
			"Call this before proposing preset or mapping changes to ensure correct structure."),
	), s.getMappingContract)

	s.mcp.AddTool(mcp.NewTool("list_cards",
		mcp.WithDescription("List note cards in a folder, optionally recursive."),
		mcp.WithString("folder", mcp.Description("Folder path starting with / (empty for the vault root)")),
		mcp.WithBoolean("recursive", mcp.Description("Include subfolders")),
	), s.listCards)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Text search through note content, titles, and tags."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	// Resource: mapping format contract.
	s.mcp.AddResource(
		mcp.NewResource("cardnav://mapping-format", "Preset Mapping Contract",
			mcp.WithResourceDescription("Canonical preset document shape and mapping rule semantics."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readMappingFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) listPresets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store := s.engine.Store()
	out, _ := json.MarshalIndent(map[string]any{
		"presets":         store.GetAllPresets(),
		"defaultPresetId": store.DefaultPresetID(),
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPreset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.engine.Store().GetPreset(id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	}
	out, _ := json.MarshalIndent(p, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) resolvePreset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := s.cards.Resolve(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(id), nil
}

func (s *Server) explainResolution(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dec, err := s.cards.Explain(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "winner: %s\nreason: %s\nmatches:\n", dec.PresetID, dec.Reason)
	for _, m := range dec.Matches {
		raw, _ := json.Marshal(m.Mapping)
		fmt.Fprintf(&b, "  specificity=%d %s\n", m.Specificity, raw)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) applyPreset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.engine.Apply(id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("applied: %s", id)), nil
}

func (s *Server) exportPresets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := s.engine.Store().Export()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func (s *Server) getMappingContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MappingFormatContract), nil
}

func (s *Server) readMappingFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "cardnav://mapping-format",
			MIMEType: "text/markdown",
			Text:     MappingFormatContract,
		},
	}, nil
}

func (s *Server) listCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := ""
	if f, err := req.RequireString("folder"); err == nil {
		folder = f
	}
	recursive := req.GetBool("recursive", false)

	cards, total, err := s.cards.ListCards(ctx, folder, recursive, "", "path", 200, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{"cards": cards, "total": total}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.cards.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
