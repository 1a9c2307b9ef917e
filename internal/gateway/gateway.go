package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/novacore-ai/gateway/internal/auth"
	"github.com/novacore-ai/gateway/internal/config"
	"github.com/novacore-ai/gateway/internal/errors"
	"github.com/novacore-ai/gateway/internal/health"
	"github.com/novacore-ai/gateway/internal/logging"
	"github.com/novacore-ai/gateway/internal/metrics"
	"github.com/novacore-ai/gateway/internal/middleware"
	"github.com/novacore-ai/gateway/internal/middleware/ratelimit"
	"github.com/novacore-ai/gateway/internal/proxy"
	"github.com/novacore-ai/gateway/internal/router"
	"github.com/novacore-ai/gateway/internal/tier"
	"github.com/novacore-ai/gateway/internal/ws"
)

// Gateway wires the middleware chain, route table, proxy, health
// aggregation and WebSocket gateway into a single http.Handler.
type Gateway struct {
	cfg        *config.Config
	mc         *metrics.Collector
	limiter    *ratelimit.Limiter
	wsGateway  *ws.Gateway
	aggregator *health.Aggregator
	minter     *auth.ServiceMinter
	handler    http.Handler
}

// New assembles the gateway from configuration.
func New(cfg *config.Config) *Gateway {
	mc := metrics.NewCollector()

	userVerifier := auth.NewUserVerifier(cfg.Auth.UserSecret, cfg.Auth.UserSecretPrevious)
	serviceVerifier := auth.NewServiceVerifier(cfg.Auth.ServiceSecret, cfg.Auth.ServiceSecretPrevious)
	minter := auth.NewServiceMinter(cfg.Auth.ServiceSecret, cfg.Auth.ServiceName)

	cache := tier.NewCache(cfg.TierCache.MaxEntries, cfg.TierCache.TTL)
	resolver := tier.NewResolver(cache, cfg.Backends.Auth, cfg.TierCache.LookupTimeout)

	routes := router.Table(cfg.Backends)
	prx := proxy.New(cfg.Proxy, routes, minter, resolver)

	g := &Gateway{
		cfg:        cfg,
		mc:         mc,
		wsGateway:  ws.NewGateway(cfg.WebSocket, userVerifier, mc),
		aggregator: health.NewAggregator(healthTargets(routes), cfg.Health.ProbeTimeout),
		minter:     minter,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleOwnHealth)
	mux.Handle("/metrics", mc.Handler())
	mux.Handle("/api/status",
		middleware.NewChain(middleware.Metrics(mc, "/api/status")).ThenFunc(g.handleStatus))

	wsPath := cfg.WebSocket.Path
	if wsPath == "" {
		wsPath = "/ws/chat"
	}
	mux.Handle(wsPath, g.wsGateway)

	routeHandlers := make(map[string]http.Handler, len(routes))
	for _, rt := range routes {
		chain := middleware.NewChain(middleware.Metrics(mc, rt.Name))
		switch rt.Auth {
		case router.AuthUser:
			chain = chain.Append(userVerifier.Middleware(true))
		case router.AuthService:
			chain = chain.Append(serviceVerifier.Middleware())
		}
		routeHandlers[rt.Prefix] = chain.Then(prx.Handler(rt))
	}

	// Route matching owns prefix-boundary semantics ("/api/chatx" is not
	// "/api/chat"); the mux only narrows to the proxied subtrees.
	dispatch := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt, ok := router.Match(routes, r)
		if !ok {
			handleNotFound(w, r)
			return
		}
		routeHandlers[rt.Prefix].ServeHTTP(w, r)
	})
	mux.Handle("/api/", dispatch)
	mux.Handle("/internal/", dispatch)

	mux.HandleFunc("/", handleNotFound)

	outer := middleware.NewChain(
		middleware.Correlation(),
		middleware.AccessLog("/health", "/metrics"),
		middleware.Recovery(cfg.Environment == "production"),
		middleware.SecurityHeaders(),
		middleware.NewCORS(cfg.CORS.AllowedOriginList()).Middleware(),
	)
	if cfg.RateLimit.Enabled {
		g.limiter = ratelimit.NewLimiter(ratelimit.Config{
			MaxRequests:   cfg.RateLimit.MaxRequests,
			Window:        cfg.RateLimit.Window,
			SweepInterval: cfg.RateLimit.SweepInterval,
			PathPrefix:    cfg.RateLimit.PathPrefix,
		}, mc)
		outer = outer.Append(g.limiter.Middleware())
	}

	g.handler = outer.Then(mux)
	return g
}

// healthTargets derives the probe list from the route table, one target per
// distinct backend.
func healthTargets(routes []router.Route) []health.Target {
	seen := make(map[string]bool, len(routes))
	targets := make([]health.Target, 0, len(routes))
	for _, rt := range routes {
		if seen[rt.Backend] {
			continue
		}
		seen[rt.Backend] = true
		targets = append(targets, health.Target{Name: rt.Backend, BaseURL: rt.BaseURL})
	}
	return targets
}

// Handler returns the fully assembled root handler.
func (g *Gateway) Handler() http.Handler {
	return g.handler
}

// WarmServiceToken mints the startup service token. Failure leaves the
// gateway serving in degraded mode rather than refusing to start; a
// background retry keeps trying with backoff.
func (g *Gateway) WarmServiceToken() {
	if _, err := g.minter.Mint(); err == nil {
		return
	}
	logging.Warn("starting without a service token, retrying in background")
	go func() {
		if err := g.minter.MintWithRetry(5 * time.Minute); err != nil {
			logging.Error("service token mint retries exhausted", zap.Error(err))
		}
	}()
}

// Close releases background resources (limiter sweep, live WebSockets).
func (g *Gateway) Close() {
	if g.limiter != nil {
		g.limiter.Close()
	}
	g.wsGateway.Shutdown()
}

// handleOwnHealth answers for the gateway process itself. It does not probe
// backends; liveness checks must stay cheap and dependency-free.
func (g *Gateway) handleOwnHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": g.cfg.Auth.ServiceName,
	})
}

// handleStatus aggregates backend health on demand and refreshes the
// backend_up gauges from the same probe results.
func (g *Gateway) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := g.aggregator.Aggregate(r.Context())

	for service, st := range status.Services {
		g.mc.SetBackendHealth(service, health.MetricValue(st))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	gwErr := errors.ErrNotFound
	if id := middleware.CorrelationID(r); id != "" {
		gwErr = gwErr.WithCorrelationID(id)
	}
	gwErr.WriteJSON(w)
}
