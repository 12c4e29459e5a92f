package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/auth"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/models"
)

// UsersHandler handles sign-in.
type UsersHandler struct {
	tokenManager *auth.TokenManager
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(tm *auth.TokenManager) *UsersHandler {
	return &UsersHandler{tokenManager: tm}
}

// Login handles POST /api/user/login.
func (h *UsersHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Failed to parse request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing email or password")
		return
	}

	user, token, err := h.tokenManager.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSONError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		slog.Error("login failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	writeJSON(w, http.StatusOK, "Login successful", models.LoginUser{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Token: token,
	})
}

// Logout handles POST /api/user/logout. It revokes the bearer token of the
// request.
func (h *UsersHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := r.Context().Value(contextKeyToken).(string)
	if err := h.tokenManager.RevokeToken(token); err != nil {
		slog.Error("logout failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to sign out")
		return
	}

	writeJSON(w, http.StatusOK, "Logout successful", nil)
}
