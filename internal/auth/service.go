// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/templates/authflow/internal/core"
	"github.com/carterperez-dev/templates/authflow/internal/events"
	"github.com/carterperez-dev/templates/authflow/internal/middleware"
	"github.com/carterperez-dev/templates/authflow/internal/recaptcha"
)

var (
	ErrCaptchaRequired  = errors.New("captcha token required")
	ErrCaptchaFailed    = errors.New("captcha verification failed")
	ErrEmailNotFound    = errors.New("email not found")
	ErrAccountInactive  = errors.New("account inactive")
	ErrPasswordRequired = errors.New("password required")
	ErrPasswordMismatch = errors.New("password mismatch")

	ErrEmailExists    = errors.New("email already registered")
	ErrUsernameExists = errors.New("username already taken")
)

// verifyPassword runs bcrypt on every login path that reaches the user
// lookup, so response time does not reveal which check failed.
var verifyPassword = core.VerifyPasswordTimingSafe

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, account NewAccount) (*UserInfo, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

type CaptchaVerifier interface {
	Enabled() bool
	Verify(
		ctx context.Context,
		token, action string,
		minScore float64,
		remoteIP string,
	) (*recaptcha.Result, error)
}

type ServiceConfig struct {
	CaptchaMinScore float64
	// CaptchaBypass lets failed captcha checks through. Only ever set
	// outside production.
	CaptchaBypass bool
}

type Service struct {
	jwt          *JWTManager
	userProvider UserProvider
	captcha      CaptchaVerifier
	revocations  RevocationStore
	publisher    events.Publisher
	logger       *slog.Logger
	config       ServiceConfig
}

func NewService(
	jwt *JWTManager,
	userProvider UserProvider,
	captcha CaptchaVerifier,
	revocations RevocationStore,
	publisher events.Publisher,
	logger *slog.Logger,
	cfg ServiceConfig,
) *Service {
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CaptchaMinScore <= 0 {
		cfg.CaptchaMinScore = recaptcha.DefaultMinScore
	}

	return &Service{
		jwt:          jwt,
		userProvider: userProvider,
		captcha:      captcha,
		revocations:  revocations,
		publisher:    publisher,
		logger:       logger,
		config:       cfg,
	}
}

// Authenticate runs the credential pipeline and returns the specific
// rejection reason. Callers at the HTTP edge must collapse every error into
// one generic response.
func (s *Service) Authenticate(
	ctx context.Context,
	req LoginRequest,
	remoteIP string,
) (*UserInfo, error) {
	ctx, span := core.StartSpan(ctx, "auth.authenticate")
	defer span.End()

	if strings.TrimSpace(req.Captcha) == "" {
		return nil, ErrCaptchaRequired
	}

	if s.captcha.Enabled() {
		if err := s.checkCaptcha(ctx, req.Captcha, recaptcha.ActionLogin, remoteIP); err != nil {
			return nil, err
		}
	}

	user, err := s.userProvider.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // equalize timing with the mismatch path
			_, _ = verifyPassword(req.Password, nil)
			return nil, ErrEmailNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.IsActive {
		//nolint:errcheck // equalize timing with the mismatch path
		_, _ = verifyPassword(req.Password, nil)
		return nil, ErrAccountInactive
	}

	if req.Password == "" {
		return nil, ErrPasswordRequired
	}

	valid, err := verifyPassword(req.Password, &user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return nil, ErrPasswordMismatch
	}

	if core.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, req.Password)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	return user, nil
}

// Login authenticates and issues a session token.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	remoteIP string,
) (*UserInfo, *Session, error) {
	user, err := s.Authenticate(ctx, req, remoteIP)
	if err != nil {
		s.logger.WarnContext(ctx, "login rejected",
			"reason", err.Error(),
			"remote_ip", remoteIP,
		)
		return nil, nil, err
	}

	session, err := s.jwt.IssueSession(user.sessionClaims())
	if err != nil {
		return nil, nil, fmt.Errorf("issue session: %w", err)
	}

	s.logger.InfoContext(ctx, "login succeeded",
		"user_id", user.ID,
		"remote_ip", remoteIP,
	)

	return user, session, nil
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	remoteIP string,
) (*UserInfo, error) {
	ctx, span := core.StartSpan(ctx, "auth.register")
	defer span.End()

	if strings.TrimSpace(req.Captcha) == "" {
		return nil, ErrCaptchaRequired
	}

	if err := s.checkCaptcha(ctx, req.Captcha, recaptcha.ActionRegister, remoteIP); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)

	exists, err := s.userProvider.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailExists
	}

	exists, err = s.userProvider.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return nil, ErrUsernameExists
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, NewAccount{
		Email:        email,
		Username:     req.Username,
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(req.Name),
		Bio:          req.Bio,
		Location:     req.Location,
		Website:      req.Website,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID,
		"username", user.Username,
	)

	events.Emit(ctx, s.publisher, s.logger, events.NewEvent(
		events.TypeUserRegistered,
		user.ID,
		map[string]any{"username": user.Username},
	))

	return user, nil
}

// VerifySession validates a session token and rejects revoked ones.
func (s *Service) VerifySession(
	ctx context.Context,
	token string,
) (*middleware.SessionClaims, error) {
	claims, err := s.jwt.ParseSession(token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.JTI)
	if err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("verify session: %w", core.ErrTokenRevoked)
	}

	// A deactivated or deleted account loses its outstanding sessions.
	user, err := s.userProvider.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("verify session: account gone: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("verify session: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("verify session: account inactive: %w", core.ErrTokenRevoked)
	}

	return claims, nil
}

// Logout revokes the session until its natural expiry. Tokens that are
// already invalid are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.jwt.ParseSession(token)
	if err != nil {
		return nil
	}

	if err := s.revocations.Revoke(ctx, claims.JTI, claims.ExpiresAt); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	s.logger.InfoContext(ctx, "session revoked", "user_id", claims.UserID)
	return nil
}

func (s *Service) SessionTTL() int {
	return int(s.jwt.SessionTTL().Seconds())
}

func (s *Service) checkCaptcha(
	ctx context.Context,
	token, action, remoteIP string,
) error {
	_, err := s.captcha.Verify(ctx, token, action, s.config.CaptchaMinScore, remoteIP)
	if err == nil {
		return nil
	}

	if s.config.CaptchaBypass {
		s.logger.WarnContext(ctx, "captcha failure bypassed",
			"action", action,
			"error", err,
		)
		return nil
	}

	return fmt.Errorf("%w: %w", ErrCaptchaFailed, err)
}

func (s *Service) upgradeHash(ctx context.Context, userID, password string) {
	newHash, err := core.HashPassword(password)
	if err != nil {
		return
	}
	if err := s.userProvider.UpdatePasswordHash(ctx, userID, newHash); err != nil {
		s.logger.WarnContext(ctx, "password rehash failed",
			"user_id", userID,
			"error", err,
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
