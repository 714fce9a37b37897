package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"

	"examtrainer/internal/handler/views"
	appI18n "examtrainer/internal/i18n"
	"examtrainer/internal/model"
	"examtrainer/internal/store"
)

const (
	sessionCookieName = "session"
	csrfCookieName    = "csrf_token"
)

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func (h *Handler) setCSRFCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// csrfMiddleware implements double-submit cookie CSRF protection. Safe
// methods get a fresh token in a cookie and the request context; other
// methods must echo the cookie value in the csrf_token form field, after
// which the token is rotated.
func (h *Handler) csrfMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" || r.Method == "HEAD" {
			token, err := generateCSRFToken()
			if err != nil {
				slog.Error("failed to generate CSRF token", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			h.setCSRFCookie(w, token)
			ctx := model.ContextWithCSRFToken(r.Context(), token)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		cookie, err := r.Cookie(csrfCookieName)
		if err != nil || cookie.Value == "" {
			slog.Warn("CSRF cookie missing")
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		formToken := r.FormValue("csrf_token")
		if formToken == "" {
			slog.Warn("CSRF form token missing")
			http.Error(w, "csrf token missing", http.StatusForbidden)
			return
		}

		if len(formToken) != len(cookie.Value) || subtle.ConstantTimeCompare([]byte(formToken), []byte(cookie.Value)) != 1 {
			slog.Warn("CSRF token mismatch")
			http.Error(w, "invalid csrf token", http.StatusForbidden)
			return
		}

		token, err := generateCSRFToken()
		if err != nil {
			slog.Error("failed to generate CSRF token", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		h.setCSRFCookie(w, token)
		ctx := model.ContextWithCSRFToken(r.Context(), token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type tokenCtxKey struct{}

func contextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey{}, token)
}

func tokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenCtxKey{}).(string)
	return t
}

// requireAuth checks for a valid login token and stores the user and
// token in the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil || cookie.Value == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		authSess, err := h.store.GetAuthSession(cookie.Value)
		if err != nil {
			slog.Error("failed to get auth session", "error", err)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if authSess == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		user, err := h.store.GetUserByID(authSess.UserID)
		if err != nil || user == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		ctx := model.ContextWithUser(r.Context(), user)
		ctx = contextWithToken(ctx, cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, views.LoginPage(""))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		h.renderLoginError(w, r, appI18n.T(r.Context(), "EmptyFields"))
		return
	}

	user, err := h.store.AuthenticateUser(username, password)
	if err != nil {
		slog.Error("failed to authenticate user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		h.renderLoginError(w, r, appI18n.T(r.Context(), "LoginError"))
		return
	}

	token, err := h.store.CreateAuthSession(user.ID)
	if err != nil {
		slog.Error("failed to create auth session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) renderLoginError(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	if err := views.LoginPage(msg).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, views.RegisterPage("", false))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.FormValue("username")
	password := r.FormValue("password")
	level := model.Level(r.FormValue("level"))

	if username == "" || password == "" {
		h.renderRegister(w, r, appI18n.T(ctx, "EmptyFields"), false, http.StatusBadRequest)
		return
	}
	if !level.Valid() {
		h.renderRegister(w, r, appI18n.T(ctx, "InvalidLevel"), false, http.StatusBadRequest)
		return
	}

	_, err := h.store.CreateUser(username, password, level)
	switch {
	case errors.Is(err, store.ErrDuplicateUsername):
		h.renderRegister(w, r, appI18n.T(ctx, "DuplicateUsername"), false, http.StatusConflict)
	case err != nil:
		h.renderRegister(w, r, appI18n.T(ctx, "RegisterError")+": "+err.Error(), false, http.StatusInternalServerError)
	default:
		h.renderRegister(w, r, appI18n.T(ctx, "RegisterSuccess"), true, http.StatusOK)
	}
}

func (h *Handler) renderRegister(w http.ResponseWriter, r *http.Request, msg string, ok bool, code int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := views.RegisterPage(msg, ok).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		_ = h.store.DeleteAuthSession(cookie.Value)
		h.states.Delete(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
