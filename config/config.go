// Package config loads runtime configuration from an optional YAML file
// layered with REPLYPIPE_ prefixed environment variables. Environment values
// override file values; hardcoded defaults fill anything left unset.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Provider   ProviderConfig   `koanf:"provider"`
	Gateway    GatewayConfig    `koanf:"gateway"`
	Router     RouterConfig     `koanf:"router"`
	Pipeline   PipelineConfig   `koanf:"pipeline"`
	Escalation EscalationConfig `koanf:"escalation"`
	Knowledge  KnowledgeConfig  `koanf:"knowledge"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type ProviderConfig struct {
	Type   string `koanf:"type"` // openai, anthropic, mock
	Model  string `koanf:"model"`
	APIKey string `koanf:"api_key"`
}

type GatewayConfig struct {
	PoolSize         int           `koanf:"pool_size"`
	FailureThreshold int           `koanf:"failure_threshold"`
	FailureWindow    time.Duration `koanf:"failure_window"`
	CoolDown         time.Duration `koanf:"cool_down"`
	MaxCoolDown      time.Duration `koanf:"max_cool_down"`
	MaxAttempts      int           `koanf:"max_attempts"`
	CallTimeout      time.Duration `koanf:"call_timeout"`
}

type RouterConfig struct {
	GlobalRate  int           `koanf:"global_rate"`
	TopicRate   int           `koanf:"topic_rate"`
	MaxDepth    int           `koanf:"max_depth"`
	IdleTimeout time.Duration `koanf:"idle_timeout"`
}

type PipelineConfig struct {
	TurnTimeout time.Duration `koanf:"turn_timeout"`
	DedupSize   int           `koanf:"dedup_size"`
}

type EscalationConfig struct {
	// HighValueThreshold is a decimal string (e.g. "50.00"); parsed to exact
	// cents, never a float.
	HighValueThreshold string  `koanf:"high_value_threshold"`
	ConfidenceFloor    float64 `koanf:"confidence_floor"`
}

type KnowledgeConfig struct {
	CacheSize int           `koanf:"cache_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"` // debug, info, warn, error
	Format string `koanf:"format"`
}

// Load reads path (skipped when empty or missing) then the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("REPLYPIPE_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "REPLYPIPE_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	k.Set("server.port", 8080)
	k.Set("provider.type", "mock")
	k.Set("gateway.pool_size", 8)
	k.Set("gateway.failure_threshold", 5)
	k.Set("gateway.failure_window", "30s")
	k.Set("gateway.cool_down", "10s")
	k.Set("gateway.max_cool_down", "5m")
	k.Set("gateway.max_attempts", 5)
	k.Set("gateway.call_timeout", "10s")
	k.Set("router.global_rate", 100)
	k.Set("router.topic_rate", 20)
	k.Set("router.max_depth", 1000)
	k.Set("router.idle_timeout", "30m")
	k.Set("pipeline.turn_timeout", "5s")
	k.Set("pipeline.dedup_size", 4096)
	k.Set("escalation.high_value_threshold", "50.00")
	k.Set("escalation.confidence_floor", 0.6)
	k.Set("knowledge.cache_size", 1024)
	k.Set("knowledge.cache_ttl", "5m")
	k.Set("logging.level", "info")
	k.Set("logging.format", "json")
}
