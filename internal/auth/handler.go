// AngelaMos | 2026
// handler.go

package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/authflow/internal/config"
	"github.com/carterperez-dev/templates/authflow/internal/core"
	"github.com/carterperez-dev/templates/authflow/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
	cookies   config.SessionConfig
	logger    *slog.Logger
}

func NewHandler(
	service *Service,
	cookies config.SessionConfig,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service:   service,
		validator: core.NewValidator(),
		cookies:   cookies,
		logger:    logger,
	}
}

// RegisterRoutes mounts /auth and the account creation route. limit guards
// login and registration.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limit func(http.Handler) http.Handler,
) {
	r.With(limit).Post("/users", h.Register)

	r.Route("/auth", func(r chi.Router) {
		r.With(limit).Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/logout", h.Logout)
			r.Get("/session", h.Session)
		})
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	user, session, err := h.service.Login(r.Context(), req, core.ClientIP(r))
	if err != nil {
		if !isRejection(err) {
			h.logger.ErrorContext(r.Context(), "login failed", "error", err)
		}
		core.JSONError(w, core.InvalidCredentialsError())
		return
	}

	SetSessionCookie(w, h.cookies, session.Token, session.ExpiresAt)

	core.OK(w, LoginResponse{
		User:      ToUserResponse(user),
		Token:     session.Token,
		TokenType: "Bearer",
		ExpiresIn: h.service.SessionTTL(),
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	user, err := h.service.Register(r.Context(), req, core.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrCaptchaRequired):
			core.JSONError(w, core.CaptchaFailedError("captcha token is required"))
		case errors.Is(err, ErrCaptchaFailed):
			h.logger.WarnContext(r.Context(), "registration captcha rejected",
				"error", err,
			)
			core.JSONError(w, core.CaptchaFailedError(""))
		case errors.Is(err, ErrEmailExists):
			core.JSONError(w, core.DuplicateError(ErrEmailExists.Error()))
		case errors.Is(err, ErrUsernameExists):
			core.JSONError(w, core.DuplicateError(ErrUsernameExists.Error()))
		default:
			core.InternalServerError(w, err)
		}
		return
	}

	core.Created(w, ToUserResponse(user))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetToken(r.Context())

	if err := h.service.Logout(r.Context(), token); err != nil {
		core.InternalServerError(w, err)
		return
	}

	ClearSessionCookie(w, h.cookies)
	core.NoContent(w)
}

func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.Unauthorized(w, "")
		return
	}

	core.OK(w, claims)
}

func SetSessionCookie(
	w http.ResponseWriter,
	cfg config.SessionConfig,
	token string,
	expiresAt time.Time,
) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, cfg config.SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.CookieDomain,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func isRejection(err error) bool {
	return errors.Is(err, ErrCaptchaRequired) ||
		errors.Is(err, ErrCaptchaFailed) ||
		errors.Is(err, ErrEmailNotFound) ||
		errors.Is(err, ErrAccountInactive) ||
		errors.Is(err, ErrPasswordRequired) ||
		errors.Is(err, ErrPasswordMismatch)
}
