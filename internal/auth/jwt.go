// AngelaMos | 2026
// jwt.go

package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/authflow/internal/config"
	"github.com/carterperez-dev/templates/authflow/internal/core"
	"github.com/carterperez-dev/templates/authflow/internal/middleware"
)

const sessionTokenType = "session"

// JWTManager signs and parses ES256 session tokens. The key id is derived
// from the public key thumbprint, so every replica sharing a key file
// publishes the same kid.
type JWTManager struct {
	privateKey jwk.Key
	publicKey  jwk.Key
	keyID      string
	jwksBody   []byte
	config     config.JWTConfig
	now        func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) (*JWTManager, error) {
	privateKey, err := loadSigningKey(cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	keyID, err := thumbprintKeyID(privateKey)
	if err != nil {
		return nil, err
	}

	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("derive public key: %w", err)
	}

	for _, k := range []jwk.Key{privateKey, publicKey} {
		if setErr := k.Set(jwk.AlgorithmKey, jwa.ES256()); setErr != nil {
			return nil, fmt.Errorf("set algorithm: %w", setErr)
		}
		if setErr := k.Set(jwk.KeyIDKey, keyID); setErr != nil {
			return nil, fmt.Errorf("set key id: %w", setErr)
		}
	}
	if setErr := publicKey.Set(jwk.KeyUsageKey, "sig"); setErr != nil {
		return nil, fmt.Errorf("set key usage: %w", setErr)
	}

	set := jwk.NewSet()
	if addErr := set.AddKey(publicKey); addErr != nil {
		return nil, fmt.Errorf("add key to set: %w", addErr)
	}

	body, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encode jwks: %w", err)
	}

	return &JWTManager{
		privateKey: privateKey,
		publicKey:  publicKey,
		keyID:      keyID,
		jwksBody:   body,
		config:     cfg,
		now:        time.Now,
	}, nil
}

func loadSigningKey(path string) (jwk.Key, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	key, err := jwk.ParseKey(raw, jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	if key.KeyType() != jwa.EC() {
		return nil, fmt.Errorf("private key must be an EC P-256 key, got %s", key.KeyType())
	}

	return key, nil
}

func thumbprintKeyID(key jwk.Key) (string, error) {
	sum, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("key thumbprint: %w", err)
	}
	return hex.EncodeToString(sum[:4]), nil
}

// GenerateKeyPair writes a fresh P-256 key pair as PEM files.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	jwkPrivate, err := jwk.Import(privateKey)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}

	privatePEM, err := jwk.Pem(jwkPrivate)
	if err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}

	if writeErr := os.WriteFile(privateKeyPath, privatePEM, 0o600); writeErr != nil {
		return fmt.Errorf("write private key: %w", writeErr)
	}

	jwkPublic, err := jwkPrivate.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	publicPEM, err := jwk.Pem(jwkPublic)
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}

	//nolint:gosec // G306: public key is meant to be world-readable
	if writeErr := os.WriteFile(publicKeyPath, publicPEM, 0o644); writeErr != nil {
		return fmt.Errorf("write public key: %w", writeErr)
	}

	return nil
}

func (m *JWTManager) SessionTTL() time.Duration {
	return m.config.SessionTTL
}

// IssueSession signs a session token embedding the full profile snapshot.
func (m *JWTManager) IssueSession(claims middleware.SessionClaims) (*Session, error) {
	now := m.now()
	jti := uuid.New().String()
	expiresAt := now.Add(m.config.SessionTTL)

	token, err := jwt.NewBuilder().
		JwtID(jti).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(claims.UserID).
		IssuedAt(now).
		Expiration(expiresAt).
		NotBefore(now).
		Claim("type", sessionTokenType).
		Claim("email", claims.Email).
		Claim("username", claims.Username).
		Claim("name", claims.Name).
		Claim("avatar", claims.Avatar).
		Claim("bio", claims.Bio).
		Claim("location", claims.Location).
		Claim("website", claims.Website).
		Claim("joined_at", claims.JoinedAt.UTC().Format(time.RFC3339)).
		Claim("followers", claims.Followers).
		Claim("following", claims.Following).
		Claim("posts", claims.Posts).
		Claim("is_active", claims.IsActive).
		Claim("email_verified", claims.EmailVerified).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.ES256(), m.privateKey))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Session{
		Token:     string(signed),
		JTI:       jti,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseSession checks signature, issuer, audience and lifetime. It does not
// consult the revocation list.
func (m *JWTManager) ParseSession(tokenString string) (*middleware.SessionClaims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.ES256(), m.publicKey),
		jwt.WithValidate(true),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if err != nil {
		if errors.Is(err, jwt.TokenExpiredError()) {
			return nil, fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := token.Get("type", &tokenType); err != nil ||
		tokenType != sessionTokenType {
		return nil, fmt.Errorf(
			"verify token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf(
			"verify token: missing subject: %w",
			core.ErrTokenInvalid,
		)
	}

	jti, ok := token.JwtID()
	if !ok || jti == "" {
		return nil, fmt.Errorf("verify token: missing jti: %w", core.ErrTokenInvalid)
	}

	claims := &middleware.SessionClaims{
		JTI:           jti,
		UserID:        subject,
		Email:         stringClaim(token, "email"),
		Username:      stringClaim(token, "username"),
		Name:          stringClaim(token, "name"),
		Avatar:        stringClaim(token, "avatar"),
		Bio:           stringClaim(token, "bio"),
		Location:      stringClaim(token, "location"),
		Website:       stringClaim(token, "website"),
		Followers:     intClaim(token, "followers"),
		Following:     intClaim(token, "following"),
		Posts:         intClaim(token, "posts"),
		IsActive:      boolClaim(token, "is_active"),
		EmailVerified: boolClaim(token, "email_verified"),
	}

	if joined := stringClaim(token, "joined_at"); joined != "" {
		if t, parseErr := time.Parse(time.RFC3339, joined); parseErr == nil {
			claims.JoinedAt = t
		}
	}

	if exp, ok := token.Expiration(); ok {
		claims.ExpiresAt = exp
	}

	return claims, nil
}

func stringClaim(token jwt.Token, name string) string {
	var v string
	//nolint:errcheck // absent claims read as zero
	_ = token.Get(name, &v)
	return v
}

func intClaim(token jwt.Token, name string) int {
	var v float64
	//nolint:errcheck // absent claims read as zero
	_ = token.Get(name, &v)
	return int(v)
}

func boolClaim(token jwt.Token, name string) bool {
	var v bool
	//nolint:errcheck // absent claims read as zero
	_ = token.Get(name, &v)
	return v
}

func (m *JWTManager) GetJWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		//nolint:errcheck // client went away
		_, _ = w.Write(m.jwksBody)
	}
}

func (m *JWTManager) GetKeyID() string {
	return m.keyID
}
