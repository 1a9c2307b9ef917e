package proxy

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/novacore-ai/gateway/internal/auth"
	"github.com/novacore-ai/gateway/internal/config"
	"github.com/novacore-ai/gateway/internal/errors"
	"github.com/novacore-ai/gateway/internal/logging"
	"github.com/novacore-ai/gateway/internal/middleware"
	"github.com/novacore-ai/gateway/internal/router"
	"github.com/novacore-ai/gateway/internal/tier"
)

// Proxy forwards inbound requests to backends with the path prefix
// rewritten and identity headers injected. Backend-originated statuses pass
// through untouched; only transport-level failures are answered by the
// gateway itself.
type Proxy struct {
	transport http.RoundTripper
	minter    *auth.ServiceMinter
	resolver  *tier.Resolver
	timeout   time.Duration
	breakers  map[string]*gobreaker.CircuitBreaker[*http.Response]
}

// New creates a proxy over the given routes. One circuit breaker is kept
// per backend so a failure storm on one service turns into fast 503s
// without touching the others.
func New(cfg config.ProxyConfig, routes []router.Route, minter *auth.ServiceMinter, resolver *tier.Resolver) *Proxy {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	p := &Proxy{
		transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		minter:   minter,
		resolver: resolver,
		timeout:  timeout,
		breakers: make(map[string]*gobreaker.CircuitBreaker[*http.Response]),
	}

	if cfg.CircuitBreaker.Enabled {
		for _, rt := range routes {
			if _, ok := p.breakers[rt.Backend]; ok {
				continue
			}
			failures := cfg.CircuitBreaker.ConsecutiveFailures
			if failures == 0 {
				failures = 5
			}
			p.breakers[rt.Backend] = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
				Name:    rt.Backend,
				Timeout: cfg.CircuitBreaker.OpenTimeout,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures >= failures
				},
			})
		}
	}

	return p
}

// Handler returns the http.Handler proxying one route.
func (p *Proxy) Handler(route router.Route) http.Handler {
	target, err := url.Parse(route.BaseURL)
	if err != nil {
		// Config validation rejects unparsable URLs before this point.
		panic(fmt.Sprintf("proxy: invalid base URL for %s: %v", route.Backend, err))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		claims := auth.ClaimsFromRequest(r)
		if route.EnrichTier && p.resolver != nil {
			p.resolver.Resolve(ctx, claims, auth.ExtractBearer(r))
		}

		var serviceToken string
		if p.minter != nil {
			serviceToken = p.minter.Token()
		}

		outbound := p.buildOutbound(ctx, r, route, target)
		for _, direct := range []Director{
			IdentityDirector(route, claims, serviceToken),
			ForwardedDirector(r),
		} {
			direct(outbound)
		}

		resp, err := p.roundTrip(route.Backend, outbound)
		if err != nil {
			p.writeTransportError(w, r, route, err)
			return
		}
		defer resp.Body.Close()

		copyHeaders(w.Header(), resp.Header)
		w.WriteHeader(resp.StatusCode)
		io.Copy(w, resp.Body)
	})
}

// buildOutbound constructs the backend request. The inbound body streams
// through untouched with its Content-Type and Content-Length preserved, so
// a POSTed JSON document arrives at the backend byte for byte.
func (p *Proxy) buildOutbound(ctx context.Context, r *http.Request, route router.Route, target *url.URL) *http.Request {
	outURL := *target
	outURL.Path = route.RewritePath(r.URL.Path)
	outURL.RawQuery = r.URL.RawQuery

	outbound := (&http.Request{
		Method:        r.Method,
		URL:           &outURL,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          r.Body,
		ContentLength: r.ContentLength,
		Host:          target.Host,
	}).WithContext(ctx)

	outbound.Header = make(http.Header, len(r.Header)+4)
	for k, vv := range r.Header {
		outbound.Header[k] = vv
	}
	removeHopHeaders(outbound.Header)

	return outbound
}

// roundTrip dispatches through the backend's circuit breaker when one is
// configured. Only transport errors count as breaker failures; a backend's
// own 5xx is a delivered response, not a gateway failure.
func (p *Proxy) roundTrip(backend string, outbound *http.Request) (*http.Response, error) {
	cb, ok := p.breakers[backend]
	if !ok {
		return p.transport.RoundTrip(outbound)
	}
	return cb.Execute(func() (*http.Response, error) {
		return p.transport.RoundTrip(outbound)
	})
}

// writeTransportError maps a transport-level failure to the uniform 503
// envelope naming the failed backend. Raw errors never escape to clients.
func (p *Proxy) writeTransportError(w http.ResponseWriter, r *http.Request, route router.Route, err error) {
	logging.Warn("backend unreachable",
		zap.String("backend", route.Backend),
		zap.String("correlation_id", middleware.CorrelationID(r)),
		zap.Error(err),
	)

	detail := fmt.Sprintf("The %s service is temporarily unavailable", route.Backend)
	if stderrors.Is(err, context.DeadlineExceeded) {
		detail = fmt.Sprintf("The %s service did not respond in time", route.Backend)
	} else if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		detail = fmt.Sprintf("The %s service is temporarily unavailable (circuit open)", route.Backend)
	}

	gwErr := errors.ErrBackendUnavailable.WithDetails(detail)
	if id := middleware.CorrelationID(r); id != "" {
		gwErr = gwErr.WithCorrelationID(id)
	}
	gwErr.WriteJSON(w)
}

// copyHeaders copies response headers, dropping hop-by-hop ones.
func copyHeaders(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = append(dst[k][:0:0], vv...)
	}
	removeHopHeaders(dst)
}
