package core

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable constant from spec §9, assembled through the
// framework's usual three-layer priority: defaults, then environment
// variables, then functional options (highest). Grounded on the teacher's
// Config/Option pattern (core/config.go), trimmed to the constants this
// engine actually needs — no HTTP server, CORS, or discovery fields.
type Config struct {
	Name string

	Atomicity     AtomicityConfig
	Decomposition DecompositionConfig
	Routing       RoutingConfig
	Context       ContextConfig
	Checkpoint    CheckpointConfig

	Logging LoggingConfig

	logger Logger
}

// AtomicityConfig configures the atomicity check (spec §4.10, §9).
type AtomicityConfig struct {
	MaxComplexity      float64       `json:"max_complexity"`
	MaxToolCount        int          `json:"max_tool_count"`
	MaxDurationSeconds  int          `json:"max_duration_seconds"`
}

func DefaultAtomicityConfig() AtomicityConfig {
	return AtomicityConfig{MaxComplexity: 0.5, MaxToolCount: 3, MaxDurationSeconds: 300}
}

// DecompositionConfig configures child-generation bounds (spec §4.10, §9).
type DecompositionConfig struct {
	MinChildren      int
	MaxChildren      int
	MaxDepth         int
	CompressionDepth int
}

func DefaultDecompositionConfig() DecompositionConfig {
	return DecompositionConfig{MinChildren: 2, MaxChildren: 5, MaxDepth: 5, CompressionDepth: 3}
}

// RoutingConfig configures the tiered routing controller (spec §4.6, §9).
type RoutingConfig struct {
	EscalationAfterFailures int
	DowngradeThreshold      int
	SimilarityThreshold     float64
	MaxHistoryPerHash       int
	MaxTotalHistory         int
	CostOptimizationEnabled bool
}

func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		EscalationAfterFailures: 2,
		DowngradeThreshold:      5,
		SimilarityThreshold:     0.80,
		MaxHistoryPerHash:       50,
		MaxTotalHistory:         10_000,
		CostOptimizationEnabled: false,
	}
}

// ContextConfig configures filtered-context construction and compression
// (spec §4.12, §9).
type ContextConfig struct {
	MaxTokens          int
	MaxAge             time.Duration
	RecentHistoryCount int
}

func DefaultContextConfig() ContextConfig {
	return ContextConfig{MaxTokens: 100_000, MaxAge: 6 * time.Hour, RecentHistoryCount: 3}
}

// CheckpointConfig configures the checkpoint store (spec §4.2, §9).
type CheckpointConfig struct {
	MaxRollbackDepth int
}

func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{MaxRollbackDepth: 3}
}

// Option configures a Config.
type Option func(*Config) error

// NewConfig builds a Config from defaults, then environment variables,
// then functional options, in that priority order (options win).
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		Name:          "acengine",
		Atomicity:     DefaultAtomicityConfig(),
		Decomposition: DefaultDecompositionConfig(),
		Routing:       DefaultRoutingConfig(),
		Context:       DefaultContextConfig(),
		Checkpoint:    DefaultCheckpointConfig(),
		Logging:       DefaultLoggingConfig(),
	}

	cfg.loadFromEnv()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, Newf("NewConfig", KindConfig, "applying option: %v", err)
		}
	}

	if cfg.logger == nil {
		logger := NewProductionLogger(cfg.Logging, cfg.Name)
		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("ACENGINE_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Decomposition.MaxDepth = n
		}
	}
	if v := os.Getenv("ACENGINE_COST_OPTIMIZATION"); v != "" {
		c.Routing.CostOptimizationEnabled = v == "true" || v == "1"
	}
}

// Validate checks the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Decomposition.MinChildren < 1 || c.Decomposition.MinChildren > c.Decomposition.MaxChildren {
		return Newf("Config.Validate", KindConfig, "min_children must be in [1, max_children]")
	}
	if c.Routing.SimilarityThreshold < 0 || c.Routing.SimilarityThreshold > 1 {
		return Newf("Config.Validate", KindConfig, "similarity_threshold must be in [0,1]")
	}
	if c.Checkpoint.MaxRollbackDepth < 1 {
		return Newf("Config.Validate", KindConfig, "max_rollback_depth must be >= 1")
	}
	return nil
}

// Logger returns the configured logger.
func (c *Config) Logger() Logger { return c.logger }

// WithName sets the service name used in log lines.
func WithName(name string) Option {
	return func(c *Config) error { c.Name = name; return nil }
}

// WithLogger overrides the default ProductionLogger.
func WithLogger(logger Logger) Option {
	return func(c *Config) error { c.logger = logger; return nil }
}

// WithRouting overrides routing constants.
func WithRouting(r RoutingConfig) Option {
	return func(c *Config) error { c.Routing = r; return nil }
}

// WithDecomposition overrides decomposition constants.
func WithDecomposition(d DecompositionConfig) Option {
	return func(c *Config) error { c.Decomposition = d; return nil }
}

// WithAtomicity overrides atomicity constants.
func WithAtomicity(a AtomicityConfig) Option {
	return func(c *Config) error { c.Atomicity = a; return nil }
}

// WithContextConfig overrides context-window constants.
func WithContextConfig(ctx ContextConfig) Option {
	return func(c *Config) error { c.Context = ctx; return nil }
}

// WithCheckpointConfig overrides checkpoint constants.
func WithCheckpointConfig(ck CheckpointConfig) Option {
	return func(c *Config) error { c.Checkpoint = ck; return nil }
}
