// Package config holds global settings for the Rampart pipeline.
// All settings can be configured via environment variables, a YAML file,
// or programmatically.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SessionBackend selects where per-session counters live.
type SessionBackend string

const (
	BackendMemory SessionBackend = "memory" // In-process sharded store (default)
	BackendRedis  SessionBackend = "redis"  // Shared Redis store for multi-instance deployments
)

// Breakpoints maps classifier confidence onto severity bands.
type Breakpoints struct {
	Critical float64 `yaml:"critical"`
	High     float64 `yaml:"high"`
	Medium   float64 `yaml:"medium"`
}

// Config holds global settings for the Rampart gateway and library.
type Config struct {
	// === Input Handling ===
	MaxInputLength int `yaml:"max_input_length"` // Inputs longer than this raise a length-violation finding (default: 10000)

	// === Decision Thresholds (0.0 - 1.0) ===
	// Tune these to balance security vs. usability
	HighThreshold   float64 `yaml:"high_threshold"`   // Adjusted score above this = block (default: 0.90)
	MediumThreshold float64 `yaml:"medium_threshold"` // Adjusted score above this = deceive/monitor (default: 0.70)
	SafetyThreshold float64 `yaml:"safety_threshold"` // Raw score below this = is_safe (default: 0.50)
	BadActorFloor   float64 `yaml:"bad_actor_floor"`  // Known-bad actors blocked above this (default: 0.30)

	// === Feature Flags ===
	StrictMode       bool `yaml:"strict_mode"`       // Reject high/critical inputs with an error (default: true)
	EnableClassifier bool `yaml:"enable_classifier"` // Enable the adaptive classifier stage (default: true)
	EnableDeception  bool `yaml:"enable_deception"`  // Deploy honeytokens for medium-band scores (default: true)

	// === Classifier ===
	ClassifierTimeoutMs int    `yaml:"classifier_timeout_ms"` // Per-call classifier budget (default: 300)
	ModelPath           string `yaml:"model_path"`            // Local ONNX model directory; empty = auto-detect

	// === Severity Breakpoints ===
	Breakpoints Breakpoints `yaml:"breakpoints"`

	// === Escalation ===
	EscalateAfterBlocks int64 `yaml:"escalate_after_blocks"` // Prior threats before block upgrades to escalate; 0 disables (default: 3)

	// === Audit ===
	AuditLogPath string `yaml:"audit_log_path"` // Path to audit log file (default: "audit_events.jsonl")

	// === Session Backend ===
	SessionBackend SessionBackend `yaml:"session_backend"` // "memory" or "redis"
	RedisAddr      string         `yaml:"redis_addr"`      // host:port, used when SessionBackend is "redis"

	// === Gateway ===
	ListenAddr string `yaml:"listen_addr"` // HTTP bind address (default: ":8089")
}

// NewDefaultConfig creates a Config with sensible defaults.
// All settings can be overridden via environment variables.
func NewDefaultConfig() *Config {
	return &Config{
		MaxInputLength: GetEnvInt("RAMPART_MAX_INPUT_LENGTH", 10000),

		HighThreshold:   GetEnvFloat("RAMPART_HIGH_THRESHOLD", 0.90),
		MediumThreshold: GetEnvFloat("RAMPART_MEDIUM_THRESHOLD", 0.70),
		SafetyThreshold: GetEnvFloat("RAMPART_SAFETY_THRESHOLD", 0.50),
		BadActorFloor:   GetEnvFloat("RAMPART_BAD_ACTOR_FLOOR", 0.30),

		StrictMode:       GetEnvBool("RAMPART_STRICT_MODE", true),
		EnableClassifier: GetEnvBool("RAMPART_ENABLE_CLASSIFIER", true),
		EnableDeception:  GetEnvBool("RAMPART_ENABLE_DECEPTION", true),

		ClassifierTimeoutMs: GetEnvInt("RAMPART_CLASSIFIER_TIMEOUT_MS", 300),
		ModelPath:           GetEnv("RAMPART_MODEL_PATH", ""),

		Breakpoints: Breakpoints{
			Critical: GetEnvFloat("RAMPART_BREAKPOINT_CRITICAL", 0.95),
			High:     GetEnvFloat("RAMPART_BREAKPOINT_HIGH", 0.85),
			Medium:   GetEnvFloat("RAMPART_BREAKPOINT_MEDIUM", 0.70),
		},

		EscalateAfterBlocks: int64(GetEnvInt("RAMPART_ESCALATE_AFTER_BLOCKS", 3)),

		AuditLogPath: GetEnv("RAMPART_AUDIT_LOG", "audit_events.jsonl"),

		SessionBackend: SessionBackend(GetEnv("RAMPART_SESSION_BACKEND", string(BackendMemory))),
		RedisAddr:      GetEnv("RAMPART_REDIS_ADDR", "localhost:6379"),

		ListenAddr: GetEnv("RAMPART_LISTEN_ADDR", ":8089"),
	}
}

// NewHighSecurityConfig creates a Config for maximum security
// (may have more false positives).
func NewHighSecurityConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.HighThreshold = 0.80   // Lower threshold = more aggressive blocking
	cfg.MediumThreshold = 0.55 // Lower deception threshold
	cfg.SafetyThreshold = 0.35
	cfg.StrictMode = true
	cfg.EscalateAfterBlocks = 2
	return cfg
}

// NewHighUsabilityConfig creates a Config that minimizes false positives.
func NewHighUsabilityConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.HighThreshold = 0.95 // Higher threshold = fewer false positives
	cfg.MediumThreshold = 0.80
	cfg.SafetyThreshold = 0.60
	cfg.StrictMode = false
	cfg.EnableDeception = false
	return cfg
}

// Load reads a YAML config file and overlays it on the env-driven
// defaults, so a partial file only overrides what it names.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks threshold ranges and ordering.
func (c *Config) Validate() error {
	for _, t := range []struct {
		name string
		val  float64
	}{
		{"high_threshold", c.HighThreshold},
		{"medium_threshold", c.MediumThreshold},
		{"safety_threshold", c.SafetyThreshold},
		{"bad_actor_floor", c.BadActorFloor},
		{"breakpoints.critical", c.Breakpoints.Critical},
		{"breakpoints.high", c.Breakpoints.High},
		{"breakpoints.medium", c.Breakpoints.Medium},
	} {
		if t.val < 0 || t.val > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", t.name, t.val)
		}
	}
	if c.MediumThreshold > c.HighThreshold {
		return fmt.Errorf("medium_threshold %v must not exceed high_threshold %v", c.MediumThreshold, c.HighThreshold)
	}
	if c.Breakpoints.Medium > c.Breakpoints.High || c.Breakpoints.High > c.Breakpoints.Critical {
		return fmt.Errorf("breakpoints must be ordered medium <= high <= critical")
	}
	if c.MaxInputLength <= 0 {
		return fmt.Errorf("max_input_length must be positive, got %d", c.MaxInputLength)
	}
	if c.ClassifierTimeoutMs <= 0 {
		return fmt.Errorf("classifier_timeout_ms must be positive, got %d", c.ClassifierTimeoutMs)
	}
	switch c.SessionBackend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("session_backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.SessionBackend)
	}
	if c.SessionBackend == BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required when session_backend is %q", BackendRedis)
	}
	return nil
}

// Helper functions for environment variable parsing.
// These are exported for use by other packages.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the int value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
