package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/novacore-ai/gateway/internal/errors"
	"github.com/novacore-ai/gateway/internal/middleware"
)

// UserVerifier verifies end-user bearer tokens against the shared user
// secret. A previous secret, when configured, is accepted as well so keys
// can rotate without a hard cutover.
type UserVerifier struct {
	secret     []byte
	prevSecret []byte
}

// NewUserVerifier creates a verifier for the given secret and optional
// previous secret.
func NewUserVerifier(secret, previous string) *UserVerifier {
	v := &UserVerifier{secret: []byte(secret)}
	if previous != "" {
		v.prevSecret = []byte(previous)
	}
	return v
}

// Verify checks signature and expiry and decodes the identity claims.
// A missing token yields ErrUnauthenticated; anything else wrong with the
// token yields ErrInvalidToken.
func (v *UserVerifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.ErrUnauthenticated
	}

	mapClaims, err := v.parse(tokenString, v.secret)
	if err != nil && v.prevSecret != nil {
		mapClaims, err = v.parse(tokenString, v.prevSecret)
	}
	if err != nil {
		return nil, errors.ErrInvalidToken
	}

	sub, _ := mapClaims.GetSubject()
	if sub == "" {
		return nil, errors.ErrInvalidToken
	}

	claims := &Claims{UserID: sub}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	if role, ok := mapClaims["role"].(string); ok {
		claims.Role = role
	}
	if tier, ok := mapClaims["tier"].(string); ok {
		claims.Tier = tier
	}

	return claims, nil
}

func (v *UserVerifier) parse(tokenString string, key []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil {
		return nil, err
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}
	return mapClaims, nil
}

// ExtractBearer pulls the bearer token from the Authorization header.
func ExtractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}

// Middleware authenticates requests. Required routes answer 401/403 locally
// and never reach the proxy; with required=false a missing or invalid token
// simply results in no claims attached (anonymous access).
func (v *UserVerifier) Middleware(required bool) middleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := v.Verify(ExtractBearer(r))
			if err != nil {
				if required {
					gwErr := err.(*errors.GatewayError)
					if id := middleware.CorrelationID(r); id != "" {
						gwErr = gwErr.WithCorrelationID(id)
					}
					w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
					gwErr.WriteJSON(w)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
