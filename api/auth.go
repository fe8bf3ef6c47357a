package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/KanavDutta/admission/middleware"
	"github.com/KanavDutta/admission/principal"
)

// ErrorCodeUnauthorized is returned for bearer tokens that fail validation.
const ErrorCodeUnauthorized = "OFFICE_UNAUTHORIZED"

var errNotBearer = errors.New("authorization header is not a bearer token")

// Authenticate validates HS256 bearer tokens and attaches their claims to the
// request context. Requests without an Authorization header continue with no
// claims; the admission filters then let them through unthrottled.
func Authenticate(secret []byte, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := parseBearer(parser, keyFunc, header)
			if err != nil {
				logger.Debug("rejected bearer token", zap.Error(err))
				middleware.WriteProblem(w, middleware.ProblemDetails{
					Title:     "Unauthorized",
					Status:    http.StatusUnauthorized,
					Detail:    "The bearer token is missing, malformed or expired.",
					ErrorCode: ErrorCodeUnauthorized,
				})
				return
			}

			ctx := principal.NewContext(r.Context(), principal.MapClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseBearer(parser *jwt.Parser, keyFunc jwt.Keyfunc, header string) (jwt.MapClaims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errNotBearer
	}

	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, keyFunc); err != nil {
		return nil, err
	}
	return claims, nil
}
