package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/dkravets/backoffice/internal/server/roles"
)

func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := principalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"admin":  user.Email,
	})
}

type roleChangeRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *Handler) handleRoleChangeRequest(w http.ResponseWriter, r *http.Request) {
	admin, ok := principalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req roleChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	role, err := roles.Parse(req.Role)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown role"})
		return
	}

	issued, err := h.escalation.RequestChange(r.Context(), admin, req.Email, role, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}

	if !issued {
		writeJSON(w, http.StatusOK, map[string]string{"message": "user already has the requested role"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "confirmation code sent"})
}

type roleChangeConfirmRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Code  string `json:"code"`
}

func (h *Handler) handleRoleChangeConfirm(w http.ResponseWriter, r *http.Request) {
	admin, ok := principalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	var req roleChangeConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	role, err := roles.Parse(req.Role)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown role"})
		return
	}

	result, err := h.escalation.ConfirmChange(r.Context(), admin, req.Email, role, req.Code, clientInfo(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"email":    req.Email,
		"old_role": result.OldRole.String(),
		"new_role": result.NewRole.String(),
	})
}
