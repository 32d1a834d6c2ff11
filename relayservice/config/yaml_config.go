package config

import (
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlGatewayConfig struct {
	Kind               string `yaml:"kind"`
	ExpoURL            string `yaml:"expo_url"`
	SendTimeoutSeconds int    `yaml:"send_timeout_seconds"`
	Priority           string `yaml:"priority"`
	Sound              string `yaml:"sound"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string            `yaml:"project_id"`
	ListenAddr             string            `yaml:"listen_addr"`
	TopicID                string            `yaml:"topic_id"`
	SubscriptionID         string            `yaml:"subscription_id"`
	SubscriptionDLQTopicID string            `yaml:"subscription_dlq_topic_id"`
	CorsConfig             YamlCorsConfig    `yaml:"cors"`
	RedisConfig            YamlRedisConfig   `yaml:"redis"`
	GatewayConfig          YamlGatewayConfig `yaml:"gateway"`
	NumPipelineWorkers     int               `yaml:"num_pipeline_workers"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:      baseCfg.ProjectID,
		ListenAddr:     baseCfg.ListenAddr,
		TopicID:        baseCfg.TopicID,
		SubscriptionID: baseCfg.SubscriptionID,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		Gateway: GatewayConfig{
			Kind:        baseCfg.GatewayConfig.Kind,
			ExpoURL:     baseCfg.GatewayConfig.ExpoURL,
			SendTimeout: time.Duration(baseCfg.GatewayConfig.SendTimeoutSeconds) * time.Second,
			Priority:    baseCfg.GatewayConfig.Priority,
			Sound:       baseCfg.GatewayConfig.Sound,
		},
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"gateway", cfg.Gateway.Kind,
	)

	return cfg, nil
}
