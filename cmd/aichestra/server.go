package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aichestra/aichestra/a2a"
	"github.com/aichestra/aichestra/api/handlers"
	"github.com/aichestra/aichestra/config"
	"github.com/aichestra/aichestra/internal/cache"
	"github.com/aichestra/aichestra/internal/metrics"
	"github.com/aichestra/aichestra/internal/server"
	"github.com/aichestra/aichestra/internal/telemetry"
	"github.com/aichestra/aichestra/orchestrator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server assembles the orchestrator: the agent-protocol surface, the
// management API, the metrics listener, and the background pieces that
// keep the registry warm.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler *handlers.HealthHandler
	agentsHandler *handlers.AgentsHandler

	metricsCollector *metrics.Collector
	otelProviders    *telemetry.Providers

	cache      *cache.Manager
	registry   *orchestrator.Registry
	a2aHandler *a2a.Handler

	rateLimiterCancel context.CancelFunc
	seedCancel        context.CancelFunc
	wg                sync.WaitGroup
}

// NewServer creates a server from the loaded configuration. Nothing is
// started until Start is called.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

// Start brings up all components in dependency order.
func (s *Server) Start() error {
	// 1. Metrics collector
	s.metricsCollector = metrics.NewCollector("aichestra", s.logger)

	// 2. Registry snapshot store (optional)
	s.initCache()

	// 3. Routing pipeline and protocol surface
	s.initOrchestrator()

	// 4. Management handlers
	s.initHandlers()

	// 5. HTTP server
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 6. Metrics server
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	// 7. Seed the registry from the snapshot and the configured agents.
	// Runs in the background so slow or dead endpoints never block startup.
	seedCtx, seedCancel := context.WithCancel(context.Background())
	s.seedCancel = seedCancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.seedRegistry(seedCtx)
	}()

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// initCache connects the snapshot store when Redis is enabled. A connection
// failure downgrades to a warning; the orchestrator runs without snapshots.
func (s *Server) initCache() {
	if !s.cfg.Redis.Enabled {
		return
	}

	cacheConfig := cache.DefaultConfig()
	cacheConfig.Addr = s.cfg.Redis.Addr
	cacheConfig.Password = s.cfg.Redis.Password
	cacheConfig.DB = s.cfg.Redis.DB
	cacheConfig.PoolSize = s.cfg.Redis.PoolSize
	cacheConfig.MinIdleConns = s.cfg.Redis.MinIdleConns
	cacheConfig.DefaultTTL = s.cfg.Redis.DefaultTTL

	manager, err := cache.NewManager(cacheConfig, s.logger)
	if err != nil {
		s.logger.Warn("failed to connect snapshot store, continuing without registry snapshots",
			zap.String("addr", s.cfg.Redis.Addr),
			zap.Error(err))
		return
	}
	s.cache = manager
}

// initOrchestrator builds the routing pipeline: protocol client, registry,
// scoring engine, forwarder, router, and the executor behind the protocol
// surface. Observers feed the metrics collector so the orchestrator
// packages stay free of Prometheus.
func (s *Server) initOrchestrator() {
	clientConfig := a2a.DefaultClientConfig()
	clientConfig.Timeout = s.cfg.Forward.RequestTimeout
	clientConfig.DiscoveryTimeout = s.cfg.Forward.DiscoveryTimeout
	client := a2a.NewHTTPClient(clientConfig)

	s.registry = orchestrator.NewRegistry(client, s.logger)
	s.registry.Subscribe(func(ev orchestrator.Event) {
		s.metricsCollector.SetRegisteredAgents(s.registry.Len())
		s.metricsCollector.RecordRegistryChange(string(ev.Kind))
		s.snapshotEndpoints()
	})
	s.registry.SetRefreshObserver(func(agentID string, err error) {
		status := "ok"
		if err != nil {
			status = "failed"
		}
		s.metricsCollector.RecordAgentRefresh(status)
	})

	engine := orchestrator.NewScoringEngine(orchestrator.ScoringConfig{
		KeywordWeight: s.cfg.Routing.KeywordWeight,
		SkillWeight:   s.cfg.Routing.SkillWeight,
		Normalization: s.cfg.Routing.Normalization,
	})

	forwarder := orchestrator.NewForwarder(client, &orchestrator.ForwardConfig{
		PollInterval: s.cfg.Forward.PollInterval,
		MaxAttempts:  s.cfg.Forward.MaxAttempts,
	}, s.logger)
	forwarder.SetObserver(func(outcome string, polls int) {
		s.metricsCollector.RecordForward(outcome, polls)
	})

	router := orchestrator.NewRouter(s.registry, engine, forwarder, &orchestrator.RouterConfig{
		FallbackAgentID: s.cfg.Routing.FallbackAgent,
	}, s.logger)
	router.SetObserver(func(result *orchestrator.RoutingResult, elapsed time.Duration) {
		outcome := "routed"
		if !result.Success {
			outcome = "internal"
			if result.Err != nil {
				outcome = strings.ToLower(string(result.Err.Code))
			}
		}
		s.metricsCollector.RecordRouting(outcome, result.Confidence, elapsed)
	})

	executor := orchestrator.NewRouterExecutor(router, s.registry, s.logger)
	s.a2aHandler = a2a.NewHandler(s.buildDescriptor(), executor, s.logger)
}

// buildDescriptor assembles the descriptor the orchestrator publishes about
// itself.
func (s *Server) buildDescriptor() a2a.AgentDescriptor {
	return a2a.AgentDescriptor{
		Name:        s.cfg.Identity.Name,
		Description: s.cfg.Identity.Description,
		URL:         s.cfg.DescriptorURL(),
		Version:     s.cfg.Identity.Version,
		Skills: []a2a.AgentSkill{
			{
				Name:        "request_routing",
				Description: "Routes natural-language requests to the best matching agent",
				Tags:        []string{"routing", "orchestration"},
			},
			{
				Name:        "skill_matching",
				Description: "Matches request content against advertised agent skills",
				Tags:        []string{"matching", "analysis"},
			},
			{
				Name:        "confidence_scoring",
				Description: "Scores every routing decision with a confidence value",
				Tags:        []string{"scoring", "confidence"},
			},
			{
				Name:        "agent_selection",
				Description: "Selects among all registered downstream agents",
				Tags:        []string{"selection", "agents"},
			},
		},
	}
}

// initHandlers builds the management API handlers and their readiness
// probes.
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if s.cache != nil {
		s.healthHandler.RegisterCheck(handlers.NewCheckFunc("redis", func(ctx context.Context) error {
			return s.cache.Ping(ctx)
		}))
	}

	s.agentsHandler = handlers.NewAgentsHandler(s.registry, s.logger)

	s.logger.Info("Handlers initialized")
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// Agent protocol surface: the descriptor document plus the JSON-RPC
	// endpoint at the root. Specific routes below take precedence.
	mux.Handle("/", s.a2aHandler)
	mux.Handle(a2a.DescriptorPath, s.a2aHandler)

	// Health and version endpoints
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// Registry management API
	mux.HandleFunc("/api/v1/agents", s.agentsHandler.HandleList)
	mux.HandleFunc("/api/v1/agents/register", s.agentsHandler.HandleRegister)
	mux.HandleFunc("/api/v1/agents/unregister", s.agentsHandler.HandleUnregister)
	mux.HandleFunc("/api/v1/agents/refresh", s.agentsHandler.HandleRefresh)

	// Auth never applies to the protocol surface or the probes: peer
	// agents discover and call the orchestrator without credentials.
	skipAuthPaths := []string{
		"/", a2a.DescriptorPath,
		"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics",
	}

	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		ClientIP(),
		SecurityHeaders(),
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}
	middlewares = append(middlewares,
		MetricsMiddleware(s.metricsCollector),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.AllowedOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	)
	if len(s.cfg.Server.APIKeys) > 0 {
		middlewares = append(middlewares, APIKeyAuth(s.cfg.Server.APIKeys, skipAuthPaths, s.logger))
	}
	if s.cfg.Server.JWTSecret != "" {
		middlewares = append(middlewares, JWTAuth(s.cfg.Server.JWTSecret, s.cfg.Server.JWTIssuer, skipAuthPaths, s.logger))
	}
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            s.cfg.Server.HTTPAddr(),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	if s.cfg.Server.MetricsPort == 0 {
		s.logger.Info("Metrics server disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            s.cfg.Server.MetricsAddr(),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// seedRegistry registers the endpoints from the last snapshot and the
// configured agent list. Discovery failures are logged and skipped so one
// dead agent never blocks the rest.
func (s *Server) seedRegistry(ctx context.Context) {
	seen := make(map[string]struct{})
	var endpoints []string
	add := func(endpoint string) {
		if endpoint == "" {
			return
		}
		if _, dup := seen[endpoint]; dup {
			return
		}
		seen[endpoint] = struct{}{}
		endpoints = append(endpoints, endpoint)
	}

	if s.cache != nil {
		loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		saved, err := s.cache.LoadEndpoints(loadCtx)
		cancel()
		switch {
		case err == nil:
			s.metricsCollector.RecordCacheHit("registry_snapshot")
			s.logger.Info("restoring registry from snapshot", zap.Int("endpoints", len(saved)))
			for _, endpoint := range saved {
				add(endpoint)
			}
		case cache.IsCacheMiss(err):
			// First boot, nothing snapshotted yet.
			s.metricsCollector.RecordCacheMiss("registry_snapshot")
		default:
			s.logger.Warn("failed to load registry snapshot", zap.Error(err))
		}
	}
	for _, endpoint := range s.cfg.Agents {
		add(endpoint)
	}

	if len(endpoints) == 0 {
		return
	}

	registered := 0
	for _, endpoint := range endpoints {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.registry.RegisterEndpoint(ctx, endpoint); err != nil {
			s.logger.Warn("failed to register agent at startup",
				zap.String("endpoint", endpoint),
				zap.Error(err))
			continue
		}
		registered++
	}

	s.logger.Info("registry seeded",
		zap.Int("registered", registered),
		zap.Int("failed", len(endpoints)-registered))
}

// snapshotEndpoints persists the current registry endpoints so a restart
// can re-discover the same agents.
func (s *Server) snapshotEndpoints() {
	if s.cache == nil {
		return
	}

	snapshot := s.registry.List()
	endpoints := make([]string, 0, len(snapshot))
	for _, descriptor := range snapshot {
		endpoints = append(endpoints, descriptor.Endpoint)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.cache.SaveEndpoints(ctx, endpoints); err != nil {
		s.logger.Warn("failed to snapshot registry endpoints", zap.Error(err))
	}
}

// WaitForShutdown blocks until a termination signal arrives, then tears
// everything down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	s.Shutdown()
}

// Shutdown stops all components in reverse dependency order.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.seedCancel != nil {
		s.seedCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("Snapshot store shutdown error", zap.Error(err))
		}
	}

	if s.otelProviders != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := s.otelProviders.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
