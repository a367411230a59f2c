package httpapi

import (
	"errors"
	"net/http"
	"time"

	"adjutant.org/internal/auth"
)

type addOperatorRequest struct {
	ID string `json:"id"`
}

type issueTokenRequest struct {
	OperatorID string `json:"operator_id"`
	TTLSeconds int    `json:"ttl_seconds"`
}

const defaultTokenTTL = 24 * time.Hour

// handleListOperators lists the registered operator ids. The superadmin is
// configured out of band and never appears here.
func (a *API) handleListOperators(w http.ResponseWriter, r *http.Request) {
	if err := a.requireRole(r, auth.RoleAdmin); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	list, err := a.operators.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"operators": list})
}

func (a *API) handleAddOperator(w http.ResponseWriter, r *http.Request) {
	if err := a.requireRole(r, auth.RoleSuperadmin); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	var req addOperatorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	actor, _ := auth.OperatorFromContext(r.Context())
	if err := a.operators.Add(r.Context(), req.ID, actor); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": req.ID})
}

func (a *API) handleRemoveOperator(w http.ResponseWriter, r *http.Request) {
	if err := a.requireRole(r, auth.RoleSuperadmin); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	id := r.PathValue("id")
	if err := a.operators.Remove(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrNotOperator) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": id})
}

// handleIssueToken mints a bearer token for a registered operator. Only the
// superadmin may issue tokens; their own bootstrap token is minted out of
// band at deployment time.
func (a *API) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	if err := a.requireRole(r, auth.RoleSuperadmin); err != nil {
		respondError(w, http.StatusForbidden, err.Error())
		return
	}
	var req issueTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OperatorID == "" {
		respondError(w, http.StatusBadRequest, "operator_id is required")
		return
	}

	roles, err := auth.RolesFor(r.Context(), a.operators, a.superadmin, req.OperatorID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if len(roles) == 0 {
		respondError(w, http.StatusBadRequest, "operator is not registered")
		return
	}

	ttl := defaultTokenTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	token, err := auth.GenerateToken(req.OperatorID, roles, ttl)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_in": int(ttl.Seconds()),
	})
}
