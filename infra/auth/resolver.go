package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/webitel/im-realtime-service/config"
	"github.com/webitel/im-realtime-service/internal/domain/model"
)

// Claims carries the caller identity inside a signed token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// Resolver extracts the caller identity from an HTTP request (handshake or REST).
// With a secret configured only signed tokens are accepted; without one the
// identity is taken as supplied by the client.
type Resolver struct {
	secret []byte
	issuer string
}

func NewResolver(cfg config.AuthConfig) *Resolver {
	return &Resolver{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
}

// Verifying reports whether tokens are required.
func (r *Resolver) Verifying() bool { return len(r.secret) > 0 }

// Identify returns the user id of the request or an error wrapping model.ErrInvalidIdentity.
func (r *Resolver) Identify(req *http.Request) (string, error) {
	if !r.Verifying() {
		return trustedIdentity(req)
	}

	raw := bearerToken(req)
	if raw == "" {
		return "", fmt.Errorf("%w: missing token", model.ErrInvalidIdentity)
	}

	userID, err := r.parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", model.ErrInvalidIdentity, err)
	}
	return userID, nil
}

// IssueToken signs a token for userID valid for ttl.
func (r *Resolver) IssueToken(userID string, ttl time.Duration) (string, error) {
	if !r.Verifying() {
		return "", errors.New("auth: no secret configured")
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    r.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	})

	return token.SignedString(r.secret)
}

func (r *Resolver) parse(raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return r.secret, nil
	}, opts...)
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token is not valid")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", errors.New("token carries no user id")
	}
	return userID, nil
}

// bearerToken reads the Authorization header first; browsers cannot set
// headers on a WebSocket handshake, so the token query parameter is accepted too.
func bearerToken(req *http.Request) string {
	if h := req.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	return req.URL.Query().Get("token")
}

func trustedIdentity(req *http.Request) (string, error) {
	userID := strings.TrimSpace(req.URL.Query().Get("userId"))
	if userID == "" {
		userID = strings.TrimSpace(req.Header.Get("X-User-ID"))
	}
	if userID == "" {
		return "", fmt.Errorf("%w: userId is required", model.ErrInvalidIdentity)
	}
	return userID, nil
}
