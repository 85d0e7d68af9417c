// AngelaMos | 2026
// handler.go

package user

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/authflow/internal/auth"
	"github.com/carterperez-dev/templates/authflow/internal/config"
	"github.com/carterperez-dev/templates/authflow/internal/core"
	"github.com/carterperez-dev/templates/authflow/internal/middleware"
)

type SessionRevoker interface {
	Logout(ctx context.Context, token string) error
}

type Handler struct {
	service   *Service
	sessions  SessionRevoker
	cookies   config.SessionConfig
	validator *validator.Validate
	logger    *slog.Logger
}

func NewHandler(
	service *Service,
	sessions SessionRevoker,
	cookies config.SessionConfig,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service:   service,
		sessions:  sessions,
		cookies:   cookies,
		validator: core.NewValidator(),
		logger:    logger,
	}
}

// RegisterRoutes mounts the listing and the /profile resource. Account
// creation on POST /users belongs to the auth handler.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Get("/users", h.ListUsers)

	r.Route("/profile", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetProfile)
		r.Put("/", h.UpdateProfile)
		r.Delete("/", h.DeleteProfile)
	})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req UpdateProfileRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	req.Normalize()

	if err := h.validator.Struct(req); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

// DeleteProfile deactivates the account and ends the current session.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.service.Deactivate(r.Context(), userID); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.sessions.Logout(r.Context(), middleware.GetToken(r.Context())); err != nil {
		h.logger.WarnContext(r.Context(), "revoke session after deactivation failed",
			"user_id", userID,
			"error", err,
		)
	}

	auth.ClearSessionCookie(w, h.cookies)
	core.NoContent(w)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := ListUsersParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
	}
	params.Normalize()

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(
		w,
		ToPublicUserResponseList(users),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
