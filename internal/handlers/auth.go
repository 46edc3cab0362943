package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/allotter/internal/app"
)

type AuthHandler struct {
	service *app.Service
}

func NewAuthHandler(service *app.Service) *AuthHandler {
	return &AuthHandler{service: service}
}

// loginBody accepts both our own field name and the one Google Identity
// Services posts.
type loginBody struct {
	IDToken    string `json:"idToken"`
	Credential string `json:"credential"`
}

func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body"})
		return
	}
	token := body.IDToken
	if token == "" {
		token = body.Credential
	}

	auth := h.service.Auth
	if !auth.Enabled() {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Google sign-in is disabled"})
		return
	}

	session, err := auth.LoginWithGoogle(r.Context(), token)
	if errors.Is(err, app.ErrUnauthorized) {
		logger.Debug.Printf("Google sign-in rejected: %v", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid Google ID Token"})
		return
	}
	if err != nil {
		logger.Error.Printf("Google sign-in failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to sign in"})
		return
	}

	http.SetCookie(w, auth.SessionCookie(session))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"email":     session.Email,
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Auth.Logout(r); err != nil {
		logger.Error.Printf("Logout failed: %v", err)
	}
	http.SetCookie(w, h.service.Auth.ClearCookie())
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"email": teacherEmail(r)})
}
