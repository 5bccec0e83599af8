package config

import "time"

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Routing:   DefaultRoutingConfig(),
		Forward:   DefaultForwardConfig(),
		Identity:  DefaultIdentityConfig(),
		Redis:     DefaultRedisConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		HTTPPort:        8000,
		MetricsPort:     9090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultRoutingConfig returns the standard scoring weights: one point per
// keyword hit, one and a half per full-confidence skill hit, confidence
// saturating at a raw score of five.
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		KeywordWeight: 1.0,
		SkillWeight:   1.5,
		Normalization: 5.0,
	}
}

// DefaultForwardConfig returns the default forwarding bounds.
func DefaultForwardConfig() ForwardConfig {
	return ForwardConfig{
		PollInterval:     1 * time.Second,
		MaxAttempts:      30,
		RequestTimeout:   30 * time.Second,
		DiscoveryTimeout: 5 * time.Second,
	}
}

// DefaultIdentityConfig returns the descriptor identity the router
// publishes when a deployment does not set its own.
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{
		Name:        "Smart Orchestrator Agent",
		Description: "Routes natural-language requests to specialized agents over the agent protocol",
		Version:     "1.0.0",
	}
}

// DefaultRedisConfig returns the default snapshot store configuration,
// disabled until a deployment opts in.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DefaultTTL:   5 * time.Minute,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: true,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration,
// disabled until a deployment opts in.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "aichestra",
		SampleRate:   1.0,
	}
}
