// Package api implements the HTTP handlers of the billing emulator.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/auth"
	"github.com/shunichi-ikebuchi/billing-portal/internal/emulator/models"
)

type contextKey string

const (
	contextKeyUserID contextKey = "user_id"
	contextKeyToken  contextKey = "token"
)

// AuthMiddleware is a middleware that validates bearer tokens.
func AuthMiddleware(tokenManager *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSONError(w, http.StatusUnauthorized, "Missing Authorization header")
				return
			}

			// Parse Bearer token.
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeJSONError(w, http.StatusUnauthorized, "Invalid Authorization header format")
				return
			}

			// Validate token.
			userID, valid, err := tokenManager.ValidateToken(parts[1])
			if err != nil {
				writeJSONError(w, http.StatusInternalServerError, "Failed to validate token")
				return
			}

			if !valid {
				writeJSONError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
			ctx = context.WithValue(ctx, contextKeyToken, parts[1])
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userID returns the authenticated user set by AuthMiddleware.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(contextKeyUserID).(string)
	return id
}

// writeJSON writes data wrapped in the standard envelope.
func writeJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.Envelope{
		Code:      status,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// writeJSONError writes an error envelope with null data.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, message, nil)
}
