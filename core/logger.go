package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProductionLogger provides layered observability for engine operations:
// console output always works, a metrics layer activates once a
// MetricsRegistry registers itself, and trace baggage is attached to
// structured logs when available. Grounded on the teacher's
// telemetry.TelemetryLogger / core ProductionLogger split.
type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	component   string
	format      string
	output      io.Writer

	metricsEnabled bool
	errorLimiter   *RateLimiter
}

// LoggingConfig controls the ambient logger.
type LoggingConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "text" or "json"
	Output string // "stdout" or "stderr"
}

// DefaultLoggingConfig auto-detects format the way the teacher does:
// JSON under Kubernetes, text for local development.
func DefaultLoggingConfig() LoggingConfig {
	format := "text"
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		format = "json"
	}
	if env := os.Getenv("ACENGINE_LOG_FORMAT"); env != "" {
		format = env
	}
	level := os.Getenv("ACENGINE_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	return LoggingConfig{Level: strings.ToLower(level), Format: format, Output: "stdout"}
}

// NewProductionLogger creates a logger from LoggingConfig.
func NewProductionLogger(cfg LoggingConfig, serviceName string) *ProductionLogger {
	var output io.Writer = os.Stdout
	if cfg.Output == "stderr" {
		output = os.Stderr
	}
	format := cfg.Format
	if format == "" {
		format = "text"
	}

	l := &ProductionLogger{
		level:        strings.ToLower(cfg.Level),
		debug:        strings.ToLower(cfg.Level) == "debug",
		serviceName:  serviceName,
		component:    "engine",
		format:       format,
		output:       output,
		errorLimiter: NewRateLimiter(time.Second),
	}
	trackLogger(l)
	return l
}

// WithComponent returns a logger tagged with the given component, sharing
// this logger's output/format/rate-limiter state.
func (p *ProductionLogger) WithComponent(component string) Logger {
	clone := *p
	clone.component = component
	return &clone
}

// EnableMetrics is called once a telemetry provider registers itself.
func (p *ProductionLogger) EnableMetrics() { p.metricsEnabled = true }

func (p *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, nil)
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}

func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	if p.errorLimiter != nil && !p.errorLimiter.Allow() {
		return
	}
	p.logEvent("ERROR", msg, fields, nil)
}

func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.errorLimiter != nil && !p.errorLimiter.Allow() {
		return
	}
	p.logEvent("ERROR", msg, fields, ctx)
}

func (p *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, nil)
}

func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}

func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": p.component,
			"message":   msg,
		}
		if ctx != nil && p.metricsEnabled {
			for k, v := range getContextBaggage(ctx) {
				entry["trace."+k] = v
			}
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
	} else {
		traceInfo := ""
		if ctx != nil && p.metricsEnabled {
			if baggage := getContextBaggage(ctx); baggage["request_id"] != "" {
				traceInfo = fmt.Sprintf("[req=%s] ", baggage["request_id"])
			}
		}
		var fieldStr strings.Builder
		if len(fields) > 0 {
			fieldStr.WriteString(" ")
			for k, v := range fields {
				fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
			}
		}
		fmt.Fprintf(p.output, "%s [%s] [%s/%s] %s%s%s\n",
			timestamp, level, p.serviceName, p.component, traceInfo, msg, fieldStr.String())
	}

	if p.metricsEnabled {
		p.emitFrameworkMetric(level, fields, ctx)
	}
}

func (p *ProductionLogger) emitFrameworkMetric(level string, fields map[string]interface{}, ctx context.Context) {
	labels := []string{"level", level, "service", p.serviceName, "component", p.component}
	for k, v := range fields {
		switch k {
		case "operation", "status", "error_kind", "tier", "pattern_id":
			labels = append(labels, k, fmt.Sprintf("%v", v))
		}
	}
	if ctx != nil {
		emitMetricWithContext(ctx, "acengine.operations", 1.0, labels...)
	} else {
		emitMetric("acengine.operations", 1.0, labels...)
	}
}

func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}

var _ ComponentAwareLogger = (*ProductionLogger)(nil)

// RateLimiter is a minimal "at most once per interval" limiter used to
// keep error-level logs from flooding during cascading failures.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{interval: interval}
}

func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if now.Sub(r.last) < r.interval {
		return false
	}
	r.last = now
	return true
}
