package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the binaries read from the environment. The core
// converter only needs the collector endpoint; the rest configures the ingest
// surface and the demo worker's bindings.
type Config struct {
	Collector CollectorConfig
	Server    ServerConfig
	Logging   LogConfig
	Demo      DemoConfig
}

// CollectorConfig selects where and how converted spans are exported.
// Transport is either "http" (JSON POST to Endpoint) or "grpc" (OTLP trace
// service at GRPCTarget).
type CollectorConfig struct {
	Endpoint   string `envconfig:"COLLECTOR_ENDPOINT" default:"http://localhost:4318/v1/traces"`
	Transport  string `envconfig:"COLLECTOR_TRANSPORT" default:"http"`
	GRPCTarget string `envconfig:"COLLECTOR_GRPC_TARGET" default:"localhost:4317"`
}

type ServerConfig struct {
	ListenAddr string `envconfig:"LISTEN_ADDR" default:":8318"`
}

type LogConfig struct {
	Development bool `envconfig:"LOG_DEV" default:"false"`
}

// DemoConfig configures the demo worker's external bindings.
type DemoConfig struct {
	PostgresURL string `envconfig:"DEMO_POSTGRES_URL" default:"postgres://localhost:5432/tailspan"`
	NatsURL     string `envconfig:"DEMO_NATS_URL" default:"nats://localhost:4222"`
	WebhookURL  string `envconfig:"DEMO_WEBHOOK_URL" default:""`
	ListenAddr  string `envconfig:"DEMO_LISTEN_ADDR" default:":8080"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
