package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/protocol/internal/clock"
	"github.com/hpungsan/protocol/internal/config"
	"github.com/hpungsan/protocol/internal/engine"
	"github.com/hpungsan/protocol/internal/errors"
	"github.com/hpungsan/protocol/internal/export"
)

// testSetup creates an in-memory session, config and export sink for testing.
func testSetup(t *testing.T) (*engine.Session, *config.Config, *export.FileSink) {
	t.Helper()

	cfg := config.DefaultConfig()
	clk := clock.NewFake(time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local))
	sess := engine.New(engine.Options{Clock: clk, Config: cfg})
	require.NoError(t, sess.Load(context.Background()))

	sink := &export.FileSink{Dir: t.TempDir(), Config: cfg}
	return sess, cfg, sink
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func TestHandleFieldSet(t *testing.T) {
	sess, cfg, sink := testSetup(t)
	h := NewHandlers(sess, cfg, sink)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		errorCode string
	}{
		{
			name: "answer below threshold",
			args: map[string]any{"key": "q1", "value": "too short"},
		},
		{
			name: "answer reveals successor",
			args: map[string]any{"key": "q1", "value": "a dull ache every morning"},
		},
		{
			name:      "missing key",
			args:      map[string]any{"value": "anything"},
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unknown key",
			args:      map[string]any{"key": "q99", "value": "anything at all"},
			errorCode: "UNKNOWN_FIELD",
		},
		{
			name:      "wrong argument type",
			args:      map[string]any{"key": 7},
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleFieldSet(ctx, makeRequest(tt.args))
			require.NoError(t, err)
			if tt.errorCode != "" {
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			require.False(t, result.IsError, extractErrorMessage(result))
		})
	}

	require.True(t, sess.Revealed("block-q2"))
	require.Equal(t, "a dull ache every morning", sess.Get("q1"))
}

func TestHandleFieldSet_ReturnsViewEffects(t *testing.T) {
	sess, cfg, sink := testSetup(t)
	h := NewHandlers(sess, cfg, sink)

	result, err := h.HandleFieldSet(context.Background(), makeRequest(map[string]any{
		"key": "q1", "value": "a dull ache every morning",
	}))
	require.NoError(t, err)

	out := parseOutput(t, result)
	require.Equal(t, "q1", out["key"])
	require.EqualValues(t, 5, out["words"])

	effects := out["effects"].([]any)
	require.Len(t, effects, 1)
	e := effects[0].(map[string]any)
	require.Equal(t, "reveal", e["kind"])
	require.Equal(t, "block-q2", e["id"])
}

func TestHandleFieldGet(t *testing.T) {
	sess, cfg, sink := testSetup(t)
	h := NewHandlers(sess, cfg, sink)
	ctx := context.Background()

	_, err := sess.Set("q5", "every Tuesday looks the same")
	require.NoError(t, err)

	result, err := h.HandleFieldGet(ctx, makeRequest(map[string]any{"key": "q5"}))
	require.NoError(t, err)
	out := parseOutput(t, result)
	require.Equal(t, "every Tuesday looks the same", out["value"])
	require.Equal(t, true, out["revealed"])
	require.Contains(t, out["label"], "average Tuesday")

	result, err = h.HandleFieldGet(ctx, makeRequest(map[string]any{"key": "nope"}))
	require.NoError(t, err)
	assertErrorCode(t, result, "UNKNOWN_FIELD")
}

func TestHandleSessionState(t *testing.T) {
	sess, cfg, sink := testSetup(t)
	h := NewHandlers(sess, cfg, sink)
	ctx := context.Background()

	_, err := sess.Set("q1", "a dull ache every morning")
	require.NoError(t, err)

	result, err := h.HandleSessionState(ctx, makeRequest(nil))
	require.NoError(t, err)
	out := parseOutput(t, result)
	require.Equal(t, "protocol", out["flow"])
	require.Equal(t, "learn", out["mode"])
	require.Contains(t, out["revealed_blocks"], "block-q2")
	require.NotNil(t, out["fields"])

	result, err = h.HandleSessionState(ctx, makeRequest(map[string]any{"include_fields": false}))
	require.NoError(t, err)
	out = parseOutput(t, result)
	require.Nil(t, out["fields"])
}

func TestHandleSessionMode(t *testing.T) {
	sess, cfg, sink := testSetup(t)
	h := NewHandlers(sess, cfg, sink)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		errorCode string
	}{
		{name: "mode only", args: map[string]any{"mode": "execute"}},
		{name: "theme only", args: map[string]any{"theme": "light"}},
		{name: "both", args: map[string]any{"mode": "learn", "theme": "dark"}},
		{name: "neither", args: map[string]any{}, errorCode: "INVALID_REQUEST"},
		{name: "unknown mode", args: map[string]any{"mode": "turbo"}, errorCode: "INVALID_REQUEST"},
		{name: "unknown theme", args: map[string]any{"theme": "sepia"}, errorCode: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSessionMode(ctx, makeRequest(tt.args))
			require.NoError(t, err)
			if tt.errorCode != "" {
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			out := parseOutput(t, result)
			if m, ok := tt.args["mode"]; ok {
				require.Equal(t, m, out["mode"])
			}
			if th, ok := tt.args["theme"]; ok {
				require.Equal(t, th, out["theme"])
			}
		})
	}
}

func TestHandleSessionMode_SummaryVisibleInExecute(t *testing.T) {
	sess, cfg, sink := testSetup(t)
	h := NewHandlers(sess, cfg, sink)
	ctx := context.Background()

	_, err := sess.Set("antivision-statement", "I refuse to drift another decade")
	require.NoError(t, err)

	result, err := h.HandleSessionMode(ctx, makeRequest(map[string]any{"mode": "execute"}))
	require.NoError(t, err)
	require.Equal(t, true, parseOutput(t, result)["summary_visible"])

	result, err = h.HandleSessionMode(ctx, makeRequest(map[string]any{"mode": "learn"}))
	require.NoError(t, err)
	require.Equal(t, false, parseOutput(t, result)["summary_visible"])
}

func TestHandleSessionReset(t *testing.T) {
	sess, cfg, sink := testSetup(t)
	h := NewHandlers(sess, cfg, sink)
	ctx := context.Background()

	_, err := sess.Set("q1", "a dull ache every morning")
	require.NoError(t, err)

	result, err := h.HandleSessionReset(ctx, makeRequest(map[string]any{}))
	require.NoError(t, err)
	assertErrorCode(t, result, "INVALID_REQUEST")
	require.Equal(t, "a dull ache every morning", sess.Get("q1"))

	result, err = h.HandleSessionReset(ctx, makeRequest(map[string]any{"confirm": true}))
	require.NoError(t, err)
	require.False(t, result.IsError, extractErrorMessage(result))
	require.Empty(t, sess.Get("q1"))
	require.False(t, sess.Revealed("block-q2"))
}

func TestHandleReminderConfigure(t *testing.T) {
	sess, cfg, sink := testSetup(t)
	h := NewHandlers(sess, cfg, sink)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		errorCode string
	}{
		{name: "valid slot", args: map[string]any{"slot": 1, "time": "09:30"}},
		{name: "phrase", args: map[string]any{"slot": 2, "time": "9pm"}},
		{name: "malformed kept", args: map[string]any{"slot": 3, "time": "banana"}},
		{name: "slot out of range", args: map[string]any{"slot": 7, "time": "10:00"}, errorCode: "INVALID_REQUEST"},
		{name: "slot zero", args: map[string]any{"slot": 0, "time": "10:00"}, errorCode: "INVALID_REQUEST"},
		{name: "slot without time", args: map[string]any{"slot": 1}, errorCode: "INVALID_REQUEST"},
		{name: "nothing to do", args: map[string]any{}, errorCode: "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleReminderConfigure(ctx, makeRequest(tt.args))
			require.NoError(t, err)
			if tt.errorCode != "" {
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			require.False(t, result.IsError, extractErrorMessage(result))
		})
	}

	slots := sess.Reminders()
	require.Equal(t, "09:30", slots[0].Time)
	require.Equal(t, "21:00", slots[1].Time)
	require.False(t, slots[2].Valid)
	require.Equal(t, "banana", slots[2].Raw)
}

func TestHandleReminderConfigure_ActivateWithoutNotifier(t *testing.T) {
	sess, cfg, sink := testSetup(t)
	h := NewHandlers(sess, cfg, sink)

	result, err := h.HandleReminderConfigure(context.Background(), makeRequest(map[string]any{
		"slot": 1, "time": "09:30", "activate": true,
	}))
	require.NoError(t, err)

	out := parseOutput(t, result)
	activation := out["activation"].(map[string]any)
	require.Equal(t, "unsupported", activation["status"])
	require.Contains(t, out["message"], "not supported")
}

func TestHandleExportRender(t *testing.T) {
	sess, cfg, sink := testSetup(t)
	h := NewHandlers(sess, cfg, sink)
	ctx := context.Background()

	_, err := sess.Set("q1", "a dull ache every morning")
	require.NoError(t, err)

	t.Run("inline text", func(t *testing.T) {
		result, err := h.HandleExportRender(ctx, makeRequest(map[string]any{}))
		require.NoError(t, err)
		out := parseOutput(t, result)
		require.Equal(t, "the-protocol-2026-03-02.txt", out["filename"])
		require.Contains(t, out["content"], "a dull ache every morning")
		require.EqualValues(t, 1, out["answered"])
	})

	t.Run("save markdown", func(t *testing.T) {
		result, err := h.HandleExportRender(ctx, makeRequest(map[string]any{"format": "markdown", "save": true}))
		require.NoError(t, err)
		out := parseOutput(t, result)
		path := out["path"].(string)
		require.Equal(t, filepath.Join(sink.Dir, "the-protocol-2026-03-02.md"), path)
		require.Empty(t, out["content"])

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Contains(t, string(data), "a dull ache every morning")
	})

	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(sink.Dir, "mine.html")
		result, err := h.HandleExportRender(ctx, makeRequest(map[string]any{"format": "html", "path": path}))
		require.NoError(t, err)
		require.Equal(t, path, parseOutput(t, result)["path"])
	})

	t.Run("path outside allowed dirs", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "elsewhere.txt")
		result, err := h.HandleExportRender(ctx, makeRequest(map[string]any{"path": path}))
		require.NoError(t, err)
		assertErrorCode(t, result, "INVALID_REQUEST")
	})

	t.Run("unknown format", func(t *testing.T) {
		result, err := h.HandleExportRender(ctx, makeRequest(map[string]any{"format": "pdf"}))
		require.NoError(t, err)
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleExportRender_NoSink(t *testing.T) {
	sess, cfg, _ := testSetup(t)
	h := NewHandlers(sess, cfg, nil)

	result, err := h.HandleExportRender(context.Background(), makeRequest(map[string]any{"save": true}))
	require.NoError(t, err)
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	sess, cfg, sink := testSetup(t)

	s := NewServer(sess, cfg, sink, "test")
	tools := s.ListTools()
	require.Len(t, tools, len(toolRegistry))

	for _, name := range []string{
		"field_set", "field_get", "session_state", "session_mode",
		"session_reset", "reminder_configure", "export_render",
	} {
		require.Contains(t, tools, name)
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	sess, cfg, sink := testSetup(t)

	cfg.DisabledTools = []string{"session_reset", "session_reset", "export_render"}
	s := NewServer(sess, cfg, sink, "test")
	tools := s.ListTools()

	require.Len(t, tools, len(toolRegistry)-2)
	require.NotContains(t, tools, "session_reset")
	require.NotContains(t, tools, "export_render")
	require.Contains(t, tools, "field_set")
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	sess, cfg, sink := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	s := NewServer(sess, cfg, sink, "test")
	require.Empty(t, s.ListTools())
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"session_reset", "export_render"}, 0},
		{"one unknown", []string{"session_reset", "fake_tool"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Len(t, ValidateDisabledTools(tt.input), tt.wantLen)
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	require.Len(t, names, 7)
	require.Empty(t, ValidateDisabledTools(names))
	require.IsIncreasing(t, names)
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("open /tmp/secret.db: permission denied")))
	require.True(t, r.IsError)

	errObj := errorObject(t, r)
	require.Equal(t, string(errors.ErrInternal), errObj["code"])
	require.NotContains(t, errObj, "details")
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewMalformedTime(2, "banana"))
	require.True(t, r.IsError)

	errObj := errorObject(t, r)
	require.Equal(t, string(errors.ErrMalformedTime), errObj["code"])
	require.Contains(t, errObj, "details")
}

func TestErrorResult_UntypedErrorIsInternal(t *testing.T) {
	r := errorResult(fmt.Errorf("boom"))
	errObj := errorObject(t, r)
	require.Equal(t, "INTERNAL", errObj["code"])
	require.Equal(t, "an internal error occurred", errObj["message"])
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.False(t, result.IsError, "expected success, got error: %s", extractErrorMessage(result))
	var output map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output))
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is not TextContent")

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	errObj, ok := payload["error"].(map[string]any)
	require.True(t, ok, "no error object in payload")
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	require.True(t, result.IsError, "expected error result, got success")
	require.Equal(t, expectedCode, errorObject(t, result)["code"])
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
