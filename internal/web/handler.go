// AngelaMos | 2026
// handler.go

// Package web serves the bootstrap documents the browser client renders
// the login, registration and profile pages from.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/authflow/internal/core"
	"github.com/carterperez-dev/templates/authflow/internal/middleware"
)

const (
	PageLogin    = "login"
	PageRegister = "register"
	PageProfile  = "profile"
)

type CaptchaInfo interface {
	Enabled() bool
	SiteKey() string
}

type CaptchaConfig struct {
	Enabled bool   `json:"enabled"`
	SiteKey string `json:"site_key,omitempty"`
}

type Page struct {
	Page    string                    `json:"page"`
	AppName string                    `json:"app_name"`
	Captcha CaptchaConfig             `json:"captcha"`
	User    *middleware.SessionClaims `json:"user,omitempty"`
}

type Handler struct {
	captcha CaptchaInfo
	appName string
}

func NewHandler(captcha CaptchaInfo, appName string) *Handler {
	return &Handler{captcha: captcha, appName: appName}
}

// RegisterRoutes mounts the page routes. optionalAuth must attach the
// session so the guard can redirect on it.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	optionalAuth func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(optionalAuth)
		r.Use(middleware.RouteGuard)

		r.Get(middleware.HomePath, h.page(PageLogin))
		r.Get(middleware.RegisterPath, h.page(PageRegister))
		r.Get(middleware.ProfilePath, h.page(PageProfile))
		r.Get(middleware.ProfilePath+"/*", h.page(PageProfile))
	})
}

func (h *Handler) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := Page{
			Page:    name,
			AppName: h.appName,
			Captcha: CaptchaConfig{Enabled: h.captcha.Enabled()},
		}
		if p.Captcha.Enabled {
			p.Captcha.SiteKey = h.captcha.SiteKey()
		}
		if name == PageProfile {
			p.User = middleware.GetClaims(r.Context())
		}

		w.Header().Set("Cache-Control", "no-store")
		core.OK(w, p)
	}
}
