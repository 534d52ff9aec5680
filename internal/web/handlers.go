package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/protocol/internal/engine"
	"github.com/hpungsan/protocol/internal/errors"
	"github.com/hpungsan/protocol/internal/export"
	"github.com/hpungsan/protocol/internal/flow"
	"github.com/hpungsan/protocol/internal/synthesis"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	session  *engine.Session
	renderer *Renderer
}

// HandleSession handles GET / — the session page. Hidden blocks are not rendered.
func (h *Handlers) HandleSession(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, r, "session", h.pageData(""))
}

// HandleState handles GET /state — the session as JSON.
func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, h.session.Snapshot())
}

// HandleSetField handles POST /fields/{key} — record an answer.
func (h *Handlers) HandleSetField(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("field key is required"))
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	effects, err := h.session.Set(key, r.FormValue("value"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// JSON request: the view applies the effects itself
	if wantsJSON(r) {
		view := make([]engine.Effect, 0, len(effects))
		for _, e := range effects {
			if e.IsView() {
				view = append(view, e)
			}
		}
		renderJSON(w, http.StatusOK, map[string]any{
			"key":     key,
			"words":   h.session.WordCount(key),
			"effects": view,
		})
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		h.renderer.renderPage(w, r, "session", h.pageData(""))
		return
	}

	// Default: redirect
	target := "/"
	if f, ok := h.session.Graph().Field(key); ok && f.Block != "" {
		target += "#" + f.Block
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleMode handles POST /mode — switch between learn and execute.
func (h *Handlers) HandleMode(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	mode, ok := synthesis.ParseMode(r.FormValue("mode"))
	if !ok {
		h.renderer.renderError(w, r, errors.NewInvalidRequest(fmt.Sprintf("unknown mode %q", r.FormValue("mode"))))
		return
	}
	if _, err := h.session.SwitchMode(r.Context(), mode); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, "")
}

// HandleTheme handles POST /theme — set or toggle the theme.
func (h *Handlers) HandleTheme(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	raw := r.FormValue("theme")
	theme := h.session.Snapshot().Theme.Toggle()
	if raw != "" {
		var ok bool
		if theme, ok = engine.ParseTheme(raw); !ok {
			h.renderer.renderError(w, r, errors.NewInvalidRequest(fmt.Sprintf("unknown theme %q", raw)))
			return
		}
	}
	if _, err := h.session.SwitchTheme(r.Context(), theme); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, "")
}

// HandleReset handles POST /reset — erase every answer and reminder.
func (h *Handlers) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}
	if _, err := h.session.ResetAll(r.Context()); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.respond(w, r, "")
}

// HandleConfigureReminder handles POST /reminders/{slot} — set a slot's time.
func (h *Handlers) HandleConfigureReminder(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(r.PathValue("slot"))
	if err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("slot must be an integer"))
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	rs, err := h.session.ConfigureReminder(slot-1, r.FormValue("time"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, rs)
		return
	}
	h.respond(w, r, "")
}

// HandleActivateReminders handles POST /reminders/activate.
func (h *Handlers) HandleActivateReminders(w http.ResponseWriter, r *http.Request) {
	res, err := h.session.ActivateReminders(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"result":  res,
			"message": res.Message(),
		})
		return
	}

	data := h.pageData(res.Message())
	if r.Header.Get("HX-Request") == "true" {
		h.renderer.renderBlock(w, http.StatusOK, "session", "reminders", data)
		return
	}
	h.renderer.renderPage(w, r, "session", data)
}

// HandleExport handles GET /export — download the answers.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	rendered, err := h.session.Export(format)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", rendered.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rendered.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rendered.Content)
}

// respond finishes a state-changing request: JSON gets the snapshot, htmx gets
// the page content, everything else is redirected home.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, flash string) {
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, h.session.Snapshot())
		return
	}
	if r.Header.Get("HX-Request") == "true" {
		h.renderer.renderPage(w, r, "session", h.pageData(flash))
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// pageData assembles the session page from a snapshot.
func (h *Handlers) pageData(flash string) SessionPageData {
	g := h.session.Graph()
	snap := h.session.Snapshot()

	revealed := toSet(snap.Blocks)
	visible := toSet(snap.Affordances)

	data := SessionPageData{
		PageData: PageData{
			Title:   g.Title(),
			Version: h.renderer.version,
			Theme:   string(snap.Theme),
		},
		Flash:          flash,
		Mode:           snap.Mode,
		BeginVisible:   visible[flow.BeginAffordance],
		Summary:        snap.Summary,
		SummaryVisible: snap.SummaryVisible,
		Progress:       snap.Progress,
		Activation:     snap.ActivationID,
		Degraded:       snap.Degraded,
		Formats:        export.Formats,
	}

	for i, chain := range g.Chains() {
		sv := SectionView{
			Title:           chain.Title,
			Continue:        chain.Continue,
			ContinueVisible: visible[chain.Continue],
		}
		if i < len(snap.Progress.Sections) {
			sv.Answered = snap.Progress.Sections[i].Answered
			sv.Total = snap.Progress.Sections[i].Total
		}
		for _, key := range chain.Keys {
			f, _ := g.Field(key)
			if !revealed[f.Block] {
				sv.Locked++
				continue
			}
			value := snap.Fields[key]
			fv := FieldView{Key: key, Label: f.Label, Value: value, Words: engine.WordCount(value)}
			if strings.TrimSpace(value) != "" {
				fv.Rendered = renderMarkdown(value)
			}
			sv.Fields = append(sv.Fields, fv)
		}
		data.Sections = append(data.Sections, sv)
	}

	for _, rs := range snap.Reminders {
		data.Reminders = append(data.Reminders, ReminderView{
			Slot:     rs.Slot + 1,
			Question: rs.Question,
			Raw:      rs.Raw,
			Time:     rs.Time,
			Valid:    rs.Valid,
			ArmedAt:  formatArmed(rs.ArmedAt),
		})
	}
	return data
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}
