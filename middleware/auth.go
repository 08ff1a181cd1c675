package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// Claims carried by operator tokens
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// ErrorWriter renders a rejected request. Its signature matches
// handlers.HandleServiceError.
type ErrorWriter func(w http.ResponseWriter, err error, logger *zap.Logger)

// AuthOption configures an AuthMiddleware
type AuthOption func(*AuthMiddleware)

// WithErrorWriter replaces the default 401 writer
func WithErrorWriter(fn ErrorWriter) AuthOption {
	return func(m *AuthMiddleware) {
		m.writeError = fn
	}
}

// AuthMiddleware guards administrative routes with HS256 bearer tokens.
// With an empty secret every request passes through.
type AuthMiddleware struct {
	secret     []byte
	issuer     string
	logger     *zap.Logger
	writeError ErrorWriter
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(secret, issuer string, logger *zap.Logger, opts ...AuthOption) *AuthMiddleware {
	m := &AuthMiddleware{
		secret:     []byte(secret),
		issuer:     issuer,
		logger:     logger,
		writeError: writeUnauthorized,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enabled reports whether tokens are checked
func (m *AuthMiddleware) Enabled() bool {
	return len(m.secret) > 0
}

// RequireAuth is a middleware that requires a valid JWT token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	if !m.Enabled() {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearer(r)
		if token == "" {
			m.logger.Warn("missing token", zap.String("request_id", requestID))
			m.writeError(w, services.ErrUnauthorized, m.logger)
			return
		}

		claims, err := m.ValidateToken(token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			m.writeError(w, err, m.logger)
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Subject))

		next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
	})
}

// ValidateToken parses and verifies a signed token. Failures wrap
// services.ErrTokenExpired or services.ErrInvalidToken.
func (m *AuthMiddleware) ValidateToken(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", services.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", services.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, services.ErrInvalidToken
	}
	return claims, nil
}

// IssueToken signs claims with the configured secret
func (m *AuthMiddleware) IssueToken(claims *Claims) (string, error) {
	if !m.Enabled() {
		return "", errors.New("auth secret not configured")
	}
	if claims.Issuer == "" && m.issuer != "" {
		claims.Issuer = m.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// writeUnauthorized answers 401 with the domain message only, never the parser detail
func writeUnauthorized(w http.ResponseWriter, err error, _ *zap.Logger) {
	_ = utils.WriteUnauthorized(w, services.GetErrorMessage(err))
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
