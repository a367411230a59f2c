package httpapi

import (
	"errors"
	"net/http"

	"adjutant.org/internal/auth"
	"adjutant.org/internal/dispatch"
	"adjutant.org/internal/jobs"
)

type textRequest struct {
	Text string `json:"text"`
}

type selectionRequest struct {
	Token  string `json:"token"`
	Handle string `json:"handle"`
}

type mailEventRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// handleRequest runs one free-text operator request through the pipeline.
func (a *API) handleRequest(w http.ResponseWriter, r *http.Request) {
	if err := a.requireRole(r, auth.RoleAdmin); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	var req textRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	operator, _ := auth.OperatorFromContext(r.Context())
	out, err := a.svc.HandleText(r.Context(), operator, req.Text)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSelection consumes a disambiguation token.
func (a *API) handleSelection(w http.ResponseWriter, r *http.Request) {
	if err := a.requireRole(r, auth.RoleAdmin); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	var req selectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" || req.Handle == "" {
		respondError(w, http.StatusBadRequest, "token and handle are required")
		return
	}

	operator, _ := auth.OperatorFromContext(r.Context())
	out, err := a.svc.HandleSelection(r.Context(), operator, req.Token, req.Handle)
	if err != nil {
		if errors.Is(err, dispatch.ErrSessionExpired) {
			respondError(w, http.StatusGone, "selection expired, repeat the request")
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleMailEvent accepts one raw HR mail from the poller. A mail that does
// not parse into an offboarding event is acknowledged and dropped.
func (a *API) handleMailEvent(w http.ResponseWriter, r *http.Request) {
	if err := a.requireRole(r, auth.RoleAdmin); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	var req mailEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, ok := a.parser.Parse(req.Subject, req.Body)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"accepted": false})
		return
	}
	out, err := a.svc.HandleOffboarding(r.Context(), *ev)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": true,
		"outcome":  out,
	})
}

// handleListJobs returns pending work: ?status=scheduled narrows to rows not
// yet claimed, the default includes in-progress ones.
func (a *API) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if err := a.requireRole(r, auth.RoleAdmin); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}

	var (
		list []jobs.Job
		err  error
	)
	switch r.URL.Query().Get("status") {
	case "", "live":
		list, err = a.jobs.ListLive(r.Context())
	case "scheduled":
		list, err = a.jobs.ListScheduled(r.Context())
	default:
		respondError(w, http.StatusBadRequest, "status must be live or scheduled")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []jobs.Job{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}
