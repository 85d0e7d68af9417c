// AngelaMos | 2026
// verifier.go

package recaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/authflow/internal/core"
)

const (
	DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"
	DefaultMinScore  = 0.5
	DefaultTimeout   = 10 * time.Second

	ActionLogin    = "login"
	ActionRegister = "register"

	minTokenLength  = 10
	maxResponseBody = 64 << 10
)

var (
	ErrNotConfigured  = errors.New("recaptcha not configured")
	ErrInvalidToken   = errors.New("invalid recaptcha token format")
	ErrUpstream       = errors.New("recaptcha verification failed")
	ErrRejected       = errors.New("recaptcha validation failed")
	ErrActionMismatch = errors.New("recaptcha action mismatch")
	ErrScoreTooLow    = errors.New("recaptcha score too low")
)

type Config struct {
	SecretKey           string
	SiteKey             string
	VerifyURL           string
	Timeout             time.Duration
	MinScore            float64
	AllowActionMismatch bool
}

type Result struct {
	Success     bool
	Score       float64
	Action      string
	Hostname    string
	ChallengeTS string
}

type siteverifyResponse struct {
	Success     bool     `json:"success"`
	Score       float64  `json:"score"`
	Action      string   `json:"action"`
	Hostname    string   `json:"hostname"`
	ChallengeTS string   `json:"challenge_ts"`
	ErrorCodes  []string `json:"error-codes"`
}

type Verifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewVerifier(cfg Config, logger *slog.Logger) *Verifier {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultVerifyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Verifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Enabled reports whether both halves of the key pair are configured.
func (v *Verifier) Enabled() bool {
	return v.cfg.SecretKey != "" && v.cfg.SiteKey != ""
}

func (v *Verifier) SiteKey() string {
	return v.cfg.SiteKey
}

func (v *Verifier) MinScore() float64 {
	return v.cfg.MinScore
}

// Bypass reports whether a failed verification may be waved through.
// Only ever true outside production.
func (v *Verifier) Bypass() bool {
	return v.cfg.AllowActionMismatch
}

// Verify checks token against siteverify. On ErrScoreTooLow the returned
// Result is non-nil and carries the observed score.
func (v *Verifier) Verify(
	ctx context.Context,
	token, expectedAction string,
	minScore float64,
	remoteIP string,
) (*Result, error) {
	ctx, span := core.StartSpan(ctx, "recaptcha.verify",
		attribute.String("recaptcha.action", expectedAction),
	)
	defer span.End()

	if v.cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}

	if len(token) < minTokenLength {
		return nil, ErrInvalidToken
	}

	resp, err := v.call(ctx, token, remoteIP)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	if !resp.Success {
		v.logger.WarnContext(ctx, "recaptcha rejected token",
			"error_codes", resp.ErrorCodes,
		)
		if len(resp.ErrorCodes) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrRejected, strings.Join(resp.ErrorCodes, ", "))
		}
		return nil, ErrRejected
	}

	result := &Result{
		Success:     true,
		Score:       resp.Score,
		Action:      resp.Action,
		Hostname:    resp.Hostname,
		ChallengeTS: resp.ChallengeTS,
	}
	span.SetAttributes(attribute.Float64("recaptcha.score", resp.Score))

	if expectedAction != "" && resp.Action != expectedAction {
		if !v.cfg.AllowActionMismatch {
			return result, fmt.Errorf(
				"%w: expected %q, got %q",
				ErrActionMismatch,
				expectedAction,
				resp.Action,
			)
		}
		v.logger.WarnContext(ctx, "recaptcha action mismatch ignored",
			"expected", expectedAction,
			"actual", resp.Action,
		)
	}

	if resp.Score < minScore {
		return result, fmt.Errorf("%w: %.2f < %.2f", ErrScoreTooLow, resp.Score, minScore)
	}

	return result, nil
}

func (v *Verifier) call(
	ctx context.Context,
	token, remoteIP string,
) (*siteverifyResponse, error) {
	form := url.Values{}
	form.Set("secret", v.cfg.SecretKey)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		v.cfg.VerifyURL,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer func() {
		//nolint:errcheck // body already consumed
		_ = res.Body.Close()
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		v.logger.ErrorContext(ctx, "recaptcha upstream status",
			"status", res.StatusCode,
		)
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, res.StatusCode)
	}

	var out siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBody)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrUpstream, err)
	}

	return &out, nil
}
