package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/sessiontrust"
	"github.com/MrEthical07/sessiontrust/middleware"
	"github.com/MrEthical07/sessiontrust/session"
)

// AdminRole may manage accounts other than its own.
const AdminRole = "ADMIN"

const maxBodyBytes = 1 << 16

// Engine is the part of [sessiontrust.Engine] served over HTTP.
type Engine interface {
	Login(ctx context.Context, email, password string) (sessiontrust.LoginResult, error)
	VerifyTwoFactor(ctx context.Context, email, code string) (sessiontrust.LoginResult, error)
	RequestPasswordReset(ctx context.Context, email string) (sessiontrust.ResetResult, error)
	ResetPassword(ctx context.Context, token, newPassword, confirmPassword string) (sessiontrust.ResetResult, error)
	Register(ctx context.Context, req sessiontrust.RegisterRequest) (sessiontrust.Principal, error)
	ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error
	ToggleTwoFactor(ctx context.Context, accountID string) (string, error)
	SetAccountEnabled(ctx context.Context, accountID string, enabled bool) error
	DeleteAccount(ctx context.Context, accountID string) error
	ResolveSession(ctx context.Context, token string) (sessiontrust.Principal, error)
	Logout(ctx context.Context, token string) error
	Cookies() *session.CookieManager
}

// Handler serves the /auth routes.
type Handler struct {
	engine Engine
	logger logrus.FieldLogger
}

// NewHandler returns a Handler. A nil logger discards output.
func NewHandler(engine Engine, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Handler{engine: engine, logger: logger.WithField("component", "httpapi")}
}

// RegisterRoutes registers the auth routes on router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	auth := router.PathPrefix("/auth").Subrouter()
	auth.Use(h.clientIP)

	auth.HandleFunc("/login", h.login).Methods(http.MethodPost)
	auth.HandleFunc("/login/2fa/verify", h.verifyTwoFactor).Methods(http.MethodPost)
	auth.HandleFunc("/forgot-password", h.forgotPassword).Methods(http.MethodPost)
	auth.HandleFunc("/reset-password", h.resetPassword).Methods(http.MethodPost)
	auth.HandleFunc("/register", h.register).Methods(http.MethodPost)
	auth.HandleFunc("/logout", h.logout).Methods(http.MethodPost)

	guarded := auth.NewRoute().Subrouter()
	guarded.Use(middleware.RequireSession(h.engine))
	guarded.HandleFunc("/session", h.currentSession).Methods(http.MethodGet)
	guarded.HandleFunc("/user/password", h.changePassword).Methods(http.MethodPatch)
	guarded.HandleFunc("/user/2fa/change/{id}", h.toggleTwoFactor).Methods(http.MethodPatch)
	guarded.HandleFunc("/user/{id}", h.deleteAccount).Methods(http.MethodDelete)

	admin := auth.NewRoute().Subrouter()
	admin.Use(middleware.RequireSession(h.engine), middleware.RequireRole(AdminRole))
	admin.HandleFunc("/user/{id}/enabled", h.setEnabled).Methods(http.MethodPatch)
}

func (h *Handler) clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(sessiontrust.WithClientIP(r.Context(), ip)))
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	RequiresTwoFactor bool   `json:"requiresTwoFactor"`
	Message           string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !res.RequiresTwoFactor {
		h.engine.Cookies().Attach(w, res.Token)
	}
	writeJSON(w, http.StatusOK, loginResponse{RequiresTwoFactor: res.RequiresTwoFactor, Message: res.Message})
}

func (h *Handler) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeParams(r, &req, func(get func(string) string) {
		req.Email, req.Code = get("email"), get("code")
	}); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.VerifyTwoFactor(r.Context(), req.Email, req.Code)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.engine.Cookies().Attach(w, res.Token)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeParams(r, &req, func(get func(string) string) {
		req.Email = get("email")
	}); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.RequestPasswordReset(r.Context(), req.Email)
	switch {
	case errors.Is(err, sessiontrust.ErrAccountNotFound):
		writeJSON(w, http.StatusOK, messageResponse{Message: sessiontrust.MessageResetRequested})
	case err != nil:
		h.writeError(w, r, err)
	default:
		if res.DeliveryErr != nil {
			h.logger.WithError(res.DeliveryErr).Warn("reset link not delivered")
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: res.Message})
	}
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewPassword        string `json:"newPassword"`
		ConfirmNewPassword string `json:"confirmNewPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.engine.ResetPassword(r.Context(), r.URL.Query().Get("token"), req.NewPassword, req.ConfirmNewPassword)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: res.Message})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email            string `json:"email"`
		Name             string `json:"name"`
		Password         string `json:"password"`
		TwoFactorEnabled bool   `json:"twoFactorEnabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	// Roles are assigned by operators, never by the registrant.
	_, err := h.engine.Register(r.Context(), sessiontrust.RegisterRequest{
		Email:            req.Email,
		Name:             req.Name,
		Password:         req.Password,
		TwoFactorEnabled: req.TwoFactorEnabled,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.SessionToken(h.engine, r); ok {
		if err := h.engine.Logout(r.Context(), token); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	h.engine.Cookies().Clear(r, w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) currentSession(w http.ResponseWriter, r *http.Request) {
	p, _ := sessiontrust.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, _ := sessiontrust.PrincipalFromContext(r.Context())
	if err := h.engine.ChangePassword(r.Context(), p.AccountID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggleTwoFactor(w http.ResponseWriter, r *http.Request) {
	id, err := ownerOrAdmin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	msg, err := h.engine.ToggleTwoFactor(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Enabled == nil {
		h.writeError(w, r, fmt.Errorf("%w: enabled is required", errBadRequest))
		return
	}

	if err := h.engine.SetAccountEnabled(r.Context(), mux.Vars(r)["id"], *req.Enabled); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := ownerOrAdmin(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.engine.DeleteAccount(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	if p, _ := sessiontrust.PrincipalFromContext(r.Context()); p.AccountID == id {
		h.engine.Cookies().Clear(r, w)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownerOrAdmin returns the {id} path variable when the caller owns that account
// or holds AdminRole.
func ownerOrAdmin(r *http.Request) (string, error) {
	id := mux.Vars(r)["id"]
	p, ok := sessiontrust.PrincipalFromContext(r.Context())
	if !ok {
		return "", sessiontrust.ErrInvalidToken
	}
	if p.AccountID != id && !strings.EqualFold(p.Role, AdminRole) {
		return "", errForbidden
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// decodeParams reads a JSON body when the request declares one and query or
// form parameters otherwise.
func decodeParams(r *http.Request, v any, fromForm func(get func(string) string)) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return decodeJSON(r, v)
	}
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	fromForm(r.Form.Get)
	return nil
}
