package mcp

import (
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/protocol/internal/config"
	"github.com/hpungsan/protocol/internal/engine"
	"github.com/hpungsan/protocol/internal/export"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"field_set": {
		def:     fieldSetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFieldSet },
	},
	"field_get": {
		def:     fieldGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleFieldGet },
	},
	"session_state": {
		def:     sessionStateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionState },
	},
	"session_mode": {
		def:     sessionModeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionMode },
	},
	"session_reset": {
		def:     sessionResetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSessionReset },
	},
	"reminder_configure": {
		def:     reminderConfigureToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleReminderConfigure },
	},
	"export_render": {
		def:     exportRenderToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleExportRender },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates an MCP server exposing the session.
// Tools listed in cfg.DisabledTools are not registered.
func NewServer(session *engine.Session, cfg *config.Config, sink export.Sink, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"protocol",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(session, cfg, sink)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for _, name := range AllToolNames() {
		if disabled[name] {
			continue
		}
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run serves the session over stdio until stdin closes.
func Run(session *engine.Session, cfg *config.Config, sink export.Sink, version string) error {
	s := NewServer(session, cfg, sink, version)
	return server.ServeStdio(s)
}
