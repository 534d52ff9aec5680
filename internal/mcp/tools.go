package mcp

import "github.com/mark3labs/mcp-go/mcp"

var fieldSetToolDef = mcp.NewTool("field_set",
	mcp.WithDescription("Record the answer for a question field. Answers longer than 10 characters unlock the next question. Returns the visibility changes."),
	mcp.WithString("key", mcp.Required(), mcp.Description("Field key, e.g. q1, antivision-statement, s3")),
	mcp.WithString("value", mcp.Required(), mcp.Description("Answer text; empty clears the answer")),
)

var fieldGetToolDef = mcp.NewTool("field_get",
	mcp.WithDescription("Read the answer, label and word count of a question field."),
	mcp.WithString("key", mcp.Required(), mcp.Description("Field key")),
)

var sessionStateToolDef = mcp.NewTool("session_state",
	mcp.WithDescription("Return the session: revealed blocks, visible affordances, summary, progress and reminders."),
	mcp.WithBoolean("include_fields", mcp.Description("Include every answer (default true)")),
)

var sessionModeToolDef = mcp.NewTool("session_mode",
	mcp.WithDescription("Switch the session mode and/or theme."),
	mcp.WithString("mode", mcp.Description("learn or execute"), mcp.Enum("learn", "execute")),
	mcp.WithString("theme", mcp.Description("dark or light"), mcp.Enum("dark", "light")),
)

var sessionResetToolDef = mcp.NewTool("session_reset",
	mcp.WithDescription("Erase every answer and reminder and return to a fresh session. Mode and theme are kept."),
	mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true")),
)

var reminderConfigureToolDef = mcp.NewTool("reminder_configure",
	mcp.WithDescription("Set the time of a reflection reminder (HH:MM or a phrase like 9pm) and optionally activate all reminders."),
	mcp.WithNumber("slot", mcp.Description("Reminder number, 1-6")),
	mcp.WithString("time", mcp.Description("Time of day; empty clears the slot")),
	mcp.WithBoolean("activate", mcp.Description("Activate reminders after configuring")),
)

var exportRenderToolDef = mcp.NewTool("export_render",
	mcp.WithDescription("Render every answer into a document. Returns the content, or the written path when save is true."),
	mcp.WithString("format", mcp.Description("text, markdown or html (default text)"), mcp.Enum("text", "markdown", "html")),
	mcp.WithBoolean("save", mcp.Description("Write the document to the exports directory")),
	mcp.WithString("path", mcp.Description("Explicit destination; must be directly inside an allowed directory")),
)
