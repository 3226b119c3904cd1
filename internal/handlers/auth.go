package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kraman82351/Task-management/internal/auth"
	"github.com/kraman82351/Task-management/internal/services"
	"github.com/kraman82351/Task-management/types"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name     string
	Secure   bool
	SameSite http.SameSite
}

// ParseSameSite maps lax, strict and none onto http.SameSite. Anything else
// yields the browser default.
func ParseSameSite(raw string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}

// AuthHandler serves account, session and credential endpoints.
type AuthHandler struct {
	users    *services.UserService
	sessions *auth.Sessions
	authn    *Authenticator
	cookie   CookieConfig
	logger   *slog.Logger
}

func NewAuthHandler(users *services.UserService, sessions *auth.Sessions, authn *Authenticator, cookie CookieConfig, logger *slog.Logger) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "token"
	}
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		authn:    authn,
		cookie:   cookie,
		logger:   logger,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	Name  *string `json:"name"`
	Bio   *string `json:"bio"`
	Photo *string `json:"photo"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthResponse is the public user plus the issued session token.
type AuthResponse struct {
	types.User
	Token string `json:"token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	user, err := h.users.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.startSession(w, r, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.startSession(w, r, http.StatusOK, user)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, status int, user types.User) {
	session, err := h.sessions.Issue(user.ID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		MaxAge:   int(h.sessions.TTL() / time.Second),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
	writeJSON(w, status, AuthResponse{User: user, Token: session.Token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: h.cookie.SameSite,
	})
	writeMessage(w, "User logged out")
}

func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, user)
}

// UpdateUser applies name, bio and photo. Other fields in the body are ignored.
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	current, _ := UserFromContext(r.Context())

	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), current.ID, services.ProfilePatch{
		Name:  req.Name,
		Bio:   req.Bio,
		Photo: req.Photo,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// LoginStatus reports whether the request carries a usable session. It never
// answers 401.
func (h *AuthHandler) LoginStatus(w http.ResponseWriter, r *http.Request) {
	_, err := h.authn.resolve(r)
	if err != nil && !isAuthError(err) {
		respondError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, err == nil)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	if err := h.users.RequestVerification(r.Context(), user); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "Email sent")
}

func (h *AuthHandler) VerifyUser(w http.ResponseWriter, r *http.Request) {
	err := h.users.VerifyEmail(r.Context(), chi.URLParam(r, "verificationToken"))
	if errors.Is(err, services.ErrInvalidToken) {
		writeError(w, http.StatusBadRequest, "Invalid or expired verification token")
		return
	}
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "User verified")
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.users.ForgotPassword(r.Context(), req.Email); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "Email sent")
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	err := h.users.ResetPassword(r.Context(), chi.URLParam(r, "resetPasswordToken"), req.Password)
	if errors.Is(err, services.ErrInvalidToken) {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "Password reset successfully")
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	writeMessage(w, "Password changed successfully")
}
