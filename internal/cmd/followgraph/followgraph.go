// Package followgraph parses service flags and composes the follow graph entrypoint.
package followgraph

import (
	"context"
	"flag"
	"fmt"
	"strings"

	entrypoint "github.com/louisbranch/followgraph/internal/platform/cmd"
	server "github.com/louisbranch/followgraph/internal/services/social/app"
)

// Config holds followgraph command configuration.
type Config struct {
	HTTPAddr        string `env:"FOLLOWGRAPH_HTTP_ADDR"        envDefault:":5001"`
	DBPath          string `env:"FOLLOWGRAPH_DB_PATH"          envDefault:"data/followgraph.db"`
	JWTSecret       string `env:"FOLLOWGRAPH_JWT_SECRET"`
	Env             string `env:"FOLLOWGRAPH_ENV"              envDefault:"development"`
	CORSOrigin      string `env:"FOLLOWGRAPH_CORS_ORIGIN"      envDefault:"http://localhost:5173"`
	LegacyBroadcast bool   `env:"FOLLOWGRAPH_LEGACY_BROADCAST" envDefault:"false"`
	RedisAddr       string `env:"FOLLOWGRAPH_REDIS_ADDR"`
	RedisChannel    string `env:"FOLLOWGRAPH_REDIS_CHANNEL"    envDefault:"followgraph:events"`
	KafkaBrokers    string `env:"FOLLOWGRAPH_KAFKA_BROKERS"`
	KafkaTopic      string `env:"FOLLOWGRAPH_KAFKA_TOPIC"      envDefault:"followgraph.relationships"`
	GRPCHealthPort  int    `env:"FOLLOWGRAPH_GRPC_HEALTH_PORT" envDefault:"0"`
}

// Production reports whether internal error details are hidden.
func (c Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.Env, "env", cfg.Env, "runtime environment (production hides internal errors)")
	fs.StringVar(&cfg.CORSOrigin, "cors-origin", cfg.CORSOrigin, "allowed browser origin")
	fs.BoolVar(&cfg.LegacyBroadcast, "legacy-broadcast", cfg.LegacyBroadcast, "broadcast follow events to every connection")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for cross-instance live events")
	fs.StringVar(&cfg.KafkaBrokers, "kafka-brokers", cfg.KafkaBrokers, "comma separated Kafka brokers for the relationship event log")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", cfg.KafkaTopic, "Kafka topic for relationship events")
	fs.IntVar(&cfg.GRPCHealthPort, "grpc-health-port", cfg.GRPCHealthPort, "gRPC health port (0 disables)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return Config{}, fmt.Errorf("FOLLOWGRAPH_JWT_SECRET is required")
	}
	if cfg.GRPCHealthPort < 0 {
		return Config{}, fmt.Errorf("grpc health port must not be negative")
	}
	return cfg, nil
}

// Run builds the followgraph app and serves until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceFollowGraph, func(ctx context.Context) error {
		if err := server.Run(ctx, serverConfig(cfg)); err != nil {
			return fmt.Errorf("serve followgraph: %w", err)
		}
		return nil
	})
}

func serverConfig(cfg Config) server.Config {
	healthAddr := ""
	if cfg.GRPCHealthPort > 0 {
		healthAddr = fmt.Sprintf(":%d", cfg.GRPCHealthPort)
	}
	return server.Config{
		HTTPAddr:        cfg.HTTPAddr,
		DBPath:          cfg.DBPath,
		JWTSecret:       cfg.JWTSecret,
		Production:      cfg.Production(),
		CORSOrigin:      cfg.CORSOrigin,
		LegacyBroadcast: cfg.LegacyBroadcast,
		RedisAddr:       cfg.RedisAddr,
		RedisChannel:    cfg.RedisChannel,
		KafkaBrokers:    cfg.KafkaBrokers,
		KafkaTopic:      cfg.KafkaTopic,
		GRPCHealthAddr:  healthAddr,
	}
}
