// AngelaMos | 2026
// handler.go

package recaptcha

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/authflow/internal/core"
)

type VerifyRequest struct {
	Token    string   `json:"token"`
	Action   string   `json:"action"    validate:"omitempty,max=100"`
	MinScore *float64 `json:"min_score" validate:"omitempty,gte=0,lte=1"`
}

type VerifyResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Score   *float64 `json:"score"`
}

type ConfigResponse struct {
	Enabled bool   `json:"enabled"`
	SiteKey string `json:"site_key,omitempty"`
}

type Handler struct {
	verifier  *Verifier
	validator *validator.Validate
}

func NewHandler(verifier *Verifier) *Handler {
	return &Handler{
		verifier:  verifier,
		validator: core.NewValidator(),
	}
}

// RegisterRoutes mounts the captcha endpoints. limit wraps the verify route
// only.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	limit func(http.Handler) http.Handler,
) {
	r.Route("/captcha", func(r chi.Router) {
		r.Get("/config", h.Config)
		r.With(limit).Post("/verify", h.Verify)
	})
}

func (h *Handler) Config(w http.ResponseWriter, _ *http.Request) {
	resp := ConfigResponse{Enabled: h.verifier.Enabled()}
	if resp.Enabled {
		resp.SiteKey = h.verifier.SiteKey()
	}
	core.OK(w, resp)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.ValidationFailed(w, err)
		return
	}

	if req.Token == "" {
		core.JSON(w, http.StatusBadRequest, VerifyResponse{
			Message: "reCAPTCHA token is missing",
		})
		return
	}

	action := req.Action
	if action == "" {
		action = ActionLogin
	}

	minScore := h.verifier.MinScore()
	if req.MinScore != nil {
		minScore = *req.MinScore
	}

	result, err := h.verifier.Verify(
		r.Context(),
		req.Token,
		action,
		minScore,
		core.ClientIP(r),
	)

	var score *float64
	if result != nil {
		score = &result.Score
	}

	if err != nil {
		core.JSON(w, http.StatusBadRequest, VerifyResponse{
			Message: failureMessage(err),
			Score:   score,
		})
		return
	}

	core.JSON(w, http.StatusOK, VerifyResponse{
		Success: true,
		Message: "reCAPTCHA verified",
		Score:   score,
	})
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return "reCAPTCHA not configured"
	case errors.Is(err, ErrInvalidToken):
		return "Invalid reCAPTCHA token format"
	case errors.Is(err, ErrActionMismatch):
		return "reCAPTCHA action mismatch"
	case errors.Is(err, ErrScoreTooLow):
		return "reCAPTCHA score too low"
	case errors.Is(err, ErrRejected):
		return err.Error()
	default:
		return "reCAPTCHA verification failed"
	}
}
