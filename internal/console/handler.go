package console

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/booking-console/internal/integrations"
	"github.com/wolfman30/booking-console/internal/platform"
	"github.com/wolfman30/booking-console/internal/session"
	"github.com/wolfman30/booking-console/internal/settings"
	"github.com/wolfman30/booking-console/internal/tenancy"
	"github.com/wolfman30/booking-console/internal/views"
	"github.com/wolfman30/booking-console/pkg/logging"
	"golang.org/x/net/websocket"
)

// Handler serves the console API for the operator account in the request context.
type Handler struct {
	registry *Registry
	logger   *logging.Logger
}

// NewHandler creates a console handler.
func NewHandler(registry *Registry, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{registry: registry, logger: logger}
}

// Routes returns a chi router with every console route.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/tenants", h.ListTenants)
	r.Post("/tenants", h.CreateTenant)
	r.Post("/tenants/reload", h.ReloadTenants)
	r.Put("/tenants/selected", h.SelectTenant)

	r.Get("/view", h.GetView)
	r.Put("/view/page", h.Navigate)
	r.Post("/view/create-flow", h.OpenCreateFlow)
	r.Delete("/view/create-flow", h.CancelCreateFlow)

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", h.GetSettings)
		r.Patch("/", h.PatchSettings)
		r.Post("/hours/{day}/intervals", h.AddInterval)
		r.Delete("/hours/{day}/intervals/{index}", h.RemoveInterval)
		r.Put("/hours/{day}/open", h.SetDayOpen)
		r.Post("/services", h.AddService)
		r.Delete("/services/{index}", h.RemoveService)
		r.Put("/immediate-constraint", h.SetImmediateConstraint)
		r.Post("/immediate-constraint/apply", h.ApplyImmediateConstraint)
		r.Delete("/active-constraints/{id}", h.RemoveActiveConstraint)
		r.Post("/reset", h.ResetSettings)
		r.Post("/save", h.SaveSettings)
	})

	r.Get("/integrations", h.GetIntegrations)
	r.Put("/integrations/{provider}", h.ToggleIntegration)

	r.Get("/banner", h.GetBanner)
	r.Delete("/banner", h.DismissBanner)
	r.Get("/events", h.Events)
	return r
}

func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) (*Workspace, bool) {
	accountID, ok := tenancy.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "account required")
		return nil, false
	}
	return h.registry.Workspace(r.Context(), accountID), true
}

type tenantsResponse struct {
	Tenants    []session.Tenant `json:"tenants"`
	SelectedID string           `json:"selectedId,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func tenantsPayload(ws *Workspace) tenantsResponse {
	resp := tenantsResponse{Tenants: ws.Session.Tenants()}
	if resp.Tenants == nil {
		resp.Tenants = []session.Tenant{}
	}
	if t, ok := ws.Session.Selected(); ok {
		resp.SelectedID = t.ID
	}
	return resp
}

// ListTenants returns the tenant list and the selected id.
// GET /console/tenants
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tenantsPayload(ws))
}

// ReloadTenants refetches the list. A list failure is reported in the body;
// the console keeps working with an empty list.
// POST /console/tenants/reload
func (h *Handler) ReloadTenants(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	err := ws.Load(r.Context())
	resp := tenantsPayload(ws)
	if err != nil {
		h.logger.Warn("tenant reload failed", "account_id", ws.AccountID, "error", err)
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type selectRequest struct {
	ID string `json:"id"`
}

// SelectTenant changes the selected tenant.
// PUT /console/tenants/selected
func (h *Handler) SelectTenant(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "id required")
		return
	}
	t, err := ws.Select(r.Context(), req.ID)
	if err != nil {
		h.fail(w, ws, "select tenant", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// CreateTenant creates a tenant and selects it.
// POST /console/tenants
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var draft session.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	draft.AccountID = ws.AccountID
	t, err := ws.Create(r.Context(), draft)
	if err != nil && t.ID == "" {
		h.fail(w, ws, "create tenant", err)
		return
	}
	if err != nil {
		h.logger.Warn("tenant created but selection not persisted", "account_id", ws.AccountID, "tenant_id", t.ID, "error", err)
	}
	writeJSON(w, http.StatusCreated, t)
}

// GetView renders the main content area.
// GET /console/view
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.View())
}

type navigateRequest struct {
	Page string `json:"page"`
}

// Navigate switches the current page.
// PUT /console/view/page
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	page, err := views.ParsePage(req.Page)
	if err != nil {
		h.fail(w, ws, "navigate", err)
		return
	}
	loc, _ := ws.Navigator.Navigate(page)
	ws.Events.Publish(EventView, loc)
	writeJSON(w, http.StatusOK, ws.View())
}

// OpenCreateFlow shows the create-business flow.
// POST /console/view/create-flow
func (h *Handler) OpenCreateFlow(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ws.Events.Publish(EventView, ws.Navigator.OpenCreateFlow())
	writeJSON(w, http.StatusOK, ws.View())
}

// CancelCreateFlow leaves the create-business flow.
// DELETE /console/view/create-flow
func (h *Handler) CancelCreateFlow(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ws.Events.Publish(EventView, ws.Navigator.CancelCreateFlow())
	writeJSON(w, http.StatusOK, ws.View())
}

// GetSettings returns the settings form of the selected tenant.
// GET /console/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	st, err := ws.Form.State()
	h.respondForm(w, ws, "get settings", st, err)
}

type patchRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// PatchSettings sets one leaf of the form.
// PATCH /console/settings
func (h *Handler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req patchRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path and value required")
		return
	}
	st, err := ws.Form.Patch(req.Path, req.Value)
	h.respondForm(w, ws, "patch settings", st, err)
}

// AddInterval adds a default interval to a day.
// POST /console/settings/hours/{day}/intervals
func (h *Handler) AddInterval(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	st, err := ws.Form.AddInterval(settings.Weekday(strings.ToLower(chi.URLParam(r, "day"))))
	h.respondForm(w, ws, "add interval", st, err)
}

// RemoveInterval removes one interval of a day.
// DELETE /console/settings/hours/{day}/intervals/{index}
func (h *Handler) RemoveInterval(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be a number")
		return
	}
	st, err := ws.Form.RemoveInterval(settings.Weekday(strings.ToLower(chi.URLParam(r, "day"))), i)
	h.respondForm(w, ws, "remove interval", st, err)
}

type dayOpenRequest struct {
	Open *bool `json:"open"`
}

// SetDayOpen opens or closes a day.
// PUT /console/settings/hours/{day}/open
func (h *Handler) SetDayOpen(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req dayOpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Open == nil {
		writeError(w, http.StatusBadRequest, "open required")
		return
	}
	st, err := ws.Form.SetDayOpen(settings.Weekday(strings.ToLower(chi.URLParam(r, "day"))), *req.Open)
	h.respondForm(w, ws, "set day open", st, err)
}

// AddService appends a service row.
// POST /console/settings/services
func (h *Handler) AddService(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	st, err := ws.Form.AddService()
	h.respondForm(w, ws, "add service", st, err)
}

// RemoveService removes a service row.
// DELETE /console/settings/services/{index}
func (h *Handler) RemoveService(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be a number")
		return
	}
	st, err := ws.Form.RemoveService(i)
	h.respondForm(w, ws, "remove service", st, err)
}

type immediateRequest struct {
	Text string `json:"text"`
}

// SetImmediateConstraint updates the staging text.
// PUT /console/settings/immediate-constraint
func (h *Handler) SetImmediateConstraint(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	var req immediateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	st, err := ws.Form.SetImmediateConstraint(req.Text)
	h.respondForm(w, ws, "set immediate constraint", st, err)
}

// ApplyImmediateConstraint turns the staging text into an active constraint.
// POST /console/settings/immediate-constraint/apply
func (h *Handler) ApplyImmediateConstraint(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	st, err := ws.Form.ApplyImmediateConstraint()
	h.respondForm(w, ws, "apply immediate constraint", st, err)
}

// RemoveActiveConstraint removes an active constraint.
// DELETE /console/settings/active-constraints/{id}
func (h *Handler) RemoveActiveConstraint(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	st, err := ws.Form.RemoveActiveConstraint(chi.URLParam(r, "id"))
	h.respondForm(w, ws, "remove active constraint", st, err)
}

// ResetSettings discards unsaved edits.
// POST /console/settings/reset
func (h *Handler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	st, err := ws.Form.Reset()
	h.respondForm(w, ws, "reset settings", st, err)
}

// SaveSettings commits the form to the platform.
// POST /console/settings/save
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	st, err := ws.Save(r.Context())
	h.respondForm(w, ws, "save settings", st, err)
}

// GetIntegrations returns both provider connections.
// GET /console/integrations
func (h *Handler) GetIntegrations(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	st, err := ws.Integrations.State()
	if err != nil {
		h.fail(w, ws, "get integrations", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type toggleRequest struct {
	Connected *bool  `json:"connected"`
	Code      string `json:"code,omitempty"`
}

// ToggleIntegration connects or disconnects a provider.
// PUT /console/integrations/{provider}
func (h *Handler) ToggleIntegration(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	provider, err := integrations.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		h.fail(w, ws, "toggle integration", err)
		return
	}
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Connected == nil {
		writeError(w, http.StatusBadRequest, "connected required")
		return
	}
	st, err := ws.Toggle(r.Context(), provider, *req.Connected, req.Code)
	if err != nil {
		h.fail(w, ws, "toggle integration", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// GetBanner returns the visible banner or 204.
// GET /console/banner
func (h *Handler) GetBanner(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	msg, visible := ws.Banner.Current()
	if !visible {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// DismissBanner hides the banner.
// DELETE /console/banner
func (h *Handler) DismissBanner(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ws.Banner.Dismiss()
	w.WriteHeader(http.StatusNoContent)
}

// Events streams workspace events over a websocket. The first message is the
// current view.
// GET /console/events
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveEvents(conn, ws)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveEvents(conn *websocket.Conn, ws *Workspace) {
	events, cancel := ws.Events.Subscribe()
	defer cancel()

	if err := websocket.JSON.Send(conn, Event{Type: EventView, Data: ws.View()}); err != nil {
		return
	}

	// The client only ever sends pings; a read error means it went away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var msg struct {
				Type string `json:"type"`
			}
			if err := websocket.JSON.Receive(conn, &msg); err != nil {
				return
			}
			if msg.Type == "ping" {
				_ = websocket.JSON.Send(conn, Event{Type: "pong"})
			}
		}
	}()

	h.logger.Debug("console: event stream opened", "account_id", ws.AccountID)
	for {
		select {
		case <-closed:
			h.logger.Debug("console: event stream closed", "account_id", ws.AccountID)
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(conn, ev); err != nil {
				return
			}
		}
	}
}

func (h *Handler) respondForm(w http.ResponseWriter, ws *Workspace, op string, st settings.State, err error) {
	if err != nil {
		h.fail(w, ws, op, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) fail(w http.ResponseWriter, ws *Workspace, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("console request failed", "account_id", ws.AccountID, "op", op, "error", err)
	} else {
		h.logger.Debug("console request rejected", "account_id", ws.AccountID, "op", op, "error", err)
	}
	writeError(w, status, err.Error())
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrTenantNotFound), errors.Is(err, settings.ErrConstraintNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidDraft),
		errors.Is(err, settings.ErrUnknownPath),
		errors.Is(err, settings.ErrInvalidValue),
		errors.Is(err, settings.ErrIndexOutOfRange),
		errors.Is(err, settings.ErrUnknownDay),
		errors.Is(err, settings.ErrBlankConstraint),
		errors.Is(err, views.ErrUnknownPage),
		errors.Is(err, integrations.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, settings.ErrNoTenant),
		errors.Is(err, settings.ErrSaveInFlight),
		errors.Is(err, settings.ErrStaleSave),
		errors.Is(err, integrations.ErrNoTenant),
		errors.Is(err, integrations.ErrToggleInFlight),
		errors.Is(err, integrations.ErrStaleToggle):
		return http.StatusConflict
	case errors.Is(err, platform.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, platform.ErrUpstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
