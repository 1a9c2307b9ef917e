package proxy

import (
	"net/http"

	"github.com/novacore-ai/gateway/internal/auth"
	"github.com/novacore-ai/gateway/internal/middleware"
	"github.com/novacore-ai/gateway/internal/router"
)

// Identity header names attached to proxied requests.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
	HeaderUserTier  = "X-User-Tier"
)

// Director mutates an outbound request before dispatch. Directors are pure
// header/URL transformations composed once per request, so each one can be
// unit tested without a network.
type Director func(outbound *http.Request)

// IdentityDirector attaches the gateway's service token and, for
// authenticated routes, the caller's identity headers. The tier header is
// attached only on routes flagged for enrichment.
func IdentityDirector(route router.Route, claims *auth.Claims, serviceToken string) Director {
	return func(outbound *http.Request) {
		// Strip any caller-supplied identity headers first: these are
		// trusted by backends and must only ever come from the gateway.
		outbound.Header.Del(HeaderUserID)
		outbound.Header.Del(HeaderUserEmail)
		outbound.Header.Del(HeaderUserRole)
		outbound.Header.Del(HeaderUserTier)
		outbound.Header.Del(auth.ServiceTokenHeader)

		if serviceToken != "" {
			outbound.Header.Set(auth.ServiceTokenHeader, serviceToken)
		}

		if claims == nil {
			return
		}

		outbound.Header.Set(HeaderUserID, claims.UserID)
		if claims.Email != "" {
			outbound.Header.Set(HeaderUserEmail, claims.Email)
		}
		if claims.Role != "" {
			outbound.Header.Set(HeaderUserRole, claims.Role)
		}
		if route.EnrichTier && claims.Tier != "" {
			outbound.Header.Set(HeaderUserTier, claims.Tier)
		}
	}
}

// ForwardedDirector sets the standard X-Forwarded-* headers.
func ForwardedDirector(inbound *http.Request) Director {
	return func(outbound *http.Request) {
		if clientIP := middleware.ClientIP(inbound); clientIP != "" {
			if prior := outbound.Header.Get("X-Forwarded-For"); prior != "" {
				outbound.Header.Set("X-Forwarded-For", prior+", "+clientIP)
			} else {
				outbound.Header.Set("X-Forwarded-For", clientIP)
			}
		}

		if inbound.TLS != nil {
			outbound.Header.Set("X-Forwarded-Proto", "https")
		} else {
			outbound.Header.Set("X-Forwarded-Proto", "http")
		}

		outbound.Header.Set("X-Forwarded-Host", inbound.Host)
	}
}

// Hop-by-hop headers that must not cross the proxy boundary.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(header http.Header) {
	for _, h := range hopHeaders {
		header.Del(h)
	}
}
