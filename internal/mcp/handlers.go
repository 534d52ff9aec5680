package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/protocol/internal/config"
	"github.com/hpungsan/protocol/internal/engine"
	"github.com/hpungsan/protocol/internal/errors"
	"github.com/hpungsan/protocol/internal/export"
	"github.com/hpungsan/protocol/internal/reminder"
	"github.com/hpungsan/protocol/internal/synthesis"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	session *engine.Session
	cfg     *config.Config
	sink    export.Sink
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(session *engine.Session, cfg *config.Config, sink export.Sink) *Handlers {
	return &Handlers{session: session, cfg: cfg, sink: sink}
}

// FieldSetRequest represents the arguments for field_set.
type FieldSetRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FieldGetRequest represents the arguments for field_get.
type FieldGetRequest struct {
	Key string `json:"key"`
}

// SessionStateRequest represents the arguments for session_state.
type SessionStateRequest struct {
	IncludeFields *bool `json:"include_fields,omitempty"`
}

// SessionModeRequest represents the arguments for session_mode.
type SessionModeRequest struct {
	Mode  string `json:"mode,omitempty"`
	Theme string `json:"theme,omitempty"`
}

// SessionResetRequest represents the arguments for session_reset.
type SessionResetRequest struct {
	Confirm bool `json:"confirm"`
}

// ReminderConfigureRequest represents the arguments for reminder_configure.
type ReminderConfigureRequest struct {
	Slot     *int    `json:"slot,omitempty"`
	Time     *string `json:"time,omitempty"`
	Activate bool    `json:"activate,omitempty"`
}

// ExportRenderRequest represents the arguments for export_render.
type ExportRenderRequest struct {
	Format string `json:"format,omitempty"`
	Save   bool   `json:"save,omitempty"`
	Path   string `json:"path,omitempty"`
}

// FieldResult is returned by field_set and field_get.
type FieldResult struct {
	Key      string          `json:"key"`
	Label    string          `json:"label"`
	Value    string          `json:"value"`
	Words    int             `json:"words"`
	Revealed bool            `json:"revealed"`
	Effects  []engine.Effect `json:"effects,omitempty"`
}

// HandleFieldSet handles the field_set tool call.
func (h *Handlers) HandleFieldSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FieldSetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Key == "" {
		return errorResult(errors.NewInvalidRequest("key is required")), nil
	}

	effects, err := h.session.Set(input.Key, input.Value)
	if err != nil {
		return errorResult(err), nil
	}

	var view []engine.Effect
	for _, e := range effects {
		if e.IsView() {
			view = append(view, e)
		}
	}
	result := h.field(input.Key)
	result.Effects = view
	return successResult(result)
}

// HandleFieldGet handles the field_get tool call.
func (h *Handlers) HandleFieldGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FieldGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if _, ok := h.session.Graph().Field(input.Key); !ok {
		return errorResult(errors.NewUnknownField(input.Key)), nil
	}
	return successResult(h.field(input.Key))
}

func (h *Handlers) field(key string) FieldResult {
	f, _ := h.session.Graph().Field(key)
	return FieldResult{
		Key:      key,
		Label:    f.Label,
		Value:    h.session.Get(key),
		Words:    h.session.WordCount(key),
		Revealed: h.session.Revealed(f.Block),
	}
}

// HandleSessionState handles the session_state tool call.
func (h *Handlers) HandleSessionState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionStateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	snap := h.session.Snapshot()
	if input.IncludeFields != nil && !*input.IncludeFields {
		snap.Fields = nil
	}
	return successResult(snap)
}

// HandleSessionMode handles the session_mode tool call.
func (h *Handlers) HandleSessionMode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionModeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Mode == "" && input.Theme == "" {
		return errorResult(errors.NewInvalidRequest("mode or theme is required")), nil
	}

	if input.Mode != "" {
		mode, ok := synthesis.ParseMode(input.Mode)
		if !ok {
			return errorResult(errors.NewInvalidRequest(fmt.Sprintf("unknown mode %q", input.Mode))), nil
		}
		if _, err := h.session.SwitchMode(ctx, mode); err != nil {
			return errorResult(err), nil
		}
	}
	if input.Theme != "" {
		theme, ok := engine.ParseTheme(input.Theme)
		if !ok {
			return errorResult(errors.NewInvalidRequest(fmt.Sprintf("unknown theme %q", input.Theme))), nil
		}
		if _, err := h.session.SwitchTheme(ctx, theme); err != nil {
			return errorResult(err), nil
		}
	}

	snap := h.session.Snapshot()
	return successResult(map[string]any{
		"mode":            snap.Mode,
		"theme":           snap.Theme,
		"summary_visible": snap.SummaryVisible,
	})
}

// HandleSessionReset handles the session_reset tool call.
func (h *Handlers) HandleSessionReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionResetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if !input.Confirm {
		return errorResult(errors.NewInvalidRequest("confirm must be true to erase all answers")), nil
	}
	if _, err := h.session.ResetAll(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.session.Snapshot())
}

// ReminderResult is returned by reminder_configure.
type ReminderResult struct {
	Reminders  []engine.ReminderSlot `json:"reminders"`
	Activation *reminder.Result      `json:"activation,omitempty"`
	Message    string                `json:"message,omitempty"`
}

// HandleReminderConfigure handles the reminder_configure tool call.
func (h *Handlers) HandleReminderConfigure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReminderConfigureRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Slot == nil && !input.Activate {
		return errorResult(errors.NewInvalidRequest("slot or activate is required")), nil
	}

	if input.Slot != nil {
		if input.Time == nil {
			return errorResult(errors.NewInvalidRequest("time is required with slot")), nil
		}
		if _, err := h.session.ConfigureReminder(*input.Slot-1, *input.Time); err != nil {
			return errorResult(err), nil
		}
	}

	var out ReminderResult
	if input.Activate {
		res, err := h.session.ActivateReminders(ctx)
		if err != nil {
			return errorResult(err), nil
		}
		out.Activation = &res
		out.Message = res.Message()
	}
	out.Reminders = h.session.Reminders()
	return successResult(out)
}

// ExportResult is returned by export_render.
type ExportResult struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Answered int    `json:"answered"`
	Content  string `json:"content,omitempty"`
	Path     string `json:"path,omitempty"`
}

// HandleExportRender handles the export_render tool call.
func (h *Handlers) HandleExportRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRenderRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	format, err := export.ParseFormat(input.Format)
	if err != nil {
		return errorResult(err), nil
	}

	r, err := h.session.Export(format)
	if err != nil {
		return errorResult(err), nil
	}
	out := ExportResult{Filename: r.Filename, Format: string(format), Answered: r.Document.Answered()}

	switch {
	case input.Path != "":
		fs, ok := h.sink.(*export.FileSink)
		if !ok {
			return errorResult(errors.NewInvalidRequest("explicit paths are not supported by this server")), nil
		}
		if out.Path, err = fs.WriteTo(ctx, input.Path, r.Content); err != nil {
			return errorResult(err), nil
		}
	case input.Save:
		if h.sink == nil {
			return errorResult(errors.NewInvalidRequest("saving is not supported by this server")), nil
		}
		if out.Path, err = h.sink.Offer(ctx, r.Filename, r.Content); err != nil {
			return errorResult(err), nil
		}
	default:
		out.Content = string(r.Content)
	}
	return successResult(out)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if pErr, ok := err.(*errors.ProtocolError); ok {
		errorObj := map[string]any{
			"code":    pErr.Code,
			"message": pErr.Message,
			"status":  pErr.Status,
		}
		if pErr.Code != errors.ErrInternal && pErr.Details != nil {
			errorObj["details"] = pErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
