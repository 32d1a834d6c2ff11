// Package config holds the authoritative service configuration: an embedded
// YAML base with environment variable overrides applied on top.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-relay/pkg/relay"
)

// Gateway kinds selectable via config.
const (
	GatewayExpo = "expo"
	GatewayFCM  = "fcm"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// GatewayConfig selects the upstream push gateway and the per-delivery
// defaults that older deployments hardcoded per call site.
type GatewayConfig struct {
	Kind        string        // "expo" (default) or "fcm"
	ExpoURL     string        // override for tests; empty means production
	SendTimeout time.Duration // per gateway call, default 10s
	Priority    string        // default "high"
	Sound       string        // default "default"
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Gateway    GatewayConfig

	// TokenFormat is derived from Gateway.Kind during validation; it is not
	// a YAML field.
	TokenFormat relay.TokenFormat

	TopicID              string
	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	// Gateway Overrides
	if val := os.Getenv("GATEWAY_KIND"); val != "" {
		logger.Debug("Overriding config value", "key", "GATEWAY_KIND", "source", "env")
		cfg.Gateway.Kind = val
	}
	if val := os.Getenv("EXPO_PUSH_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "EXPO_PUSH_URL", "source", "env")
		cfg.Gateway.ExpoURL = val
	}
	if val := os.Getenv("SEND_TIMEOUT_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil && seconds > 0 {
			logger.Debug("Overriding config value", "key", "SEND_TIMEOUT_SECONDS", "source", "env")
			cfg.Gateway.SendTimeout = time.Duration(seconds) * time.Second
		}
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Gateway.SendTimeout <= 0 {
		cfg.Gateway.SendTimeout = 10 * time.Second
	}
	if cfg.Gateway.Priority == "" {
		cfg.Gateway.Priority = "high"
	}
	if cfg.Gateway.Sound == "" {
		cfg.Gateway.Sound = "default"
	}

	switch cfg.Gateway.Kind {
	case "", GatewayExpo:
		cfg.Gateway.Kind = GatewayExpo
		cfg.TokenFormat = relay.ExpoToken
	case GatewayFCM:
		cfg.TokenFormat = relay.OpaqueToken
	default:
		return nil, fmt.Errorf("unknown gateway kind %q (want %q or %q)", cfg.Gateway.Kind, GatewayExpo, GatewayFCM)
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
