// Package server wires the follow graph HTTP, WebSocket and health surfaces.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/followgraph/internal/platform/auth"
	platformgrpc "github.com/louisbranch/followgraph/internal/platform/grpc"
	"github.com/louisbranch/followgraph/internal/platform/httpx"
	"github.com/louisbranch/followgraph/internal/platform/telemetry/metrics"
	"github.com/louisbranch/followgraph/internal/platform/timeouts"
	httpapi "github.com/louisbranch/followgraph/internal/services/social/api/http"
	"github.com/louisbranch/followgraph/internal/services/social/domain"
	"github.com/louisbranch/followgraph/internal/services/social/events"
	"github.com/louisbranch/followgraph/internal/services/social/realtime"
	"github.com/louisbranch/followgraph/internal/services/social/realtime/redisbridge"
	"github.com/louisbranch/followgraph/internal/services/social/storage/sqlite"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthServiceName is the gRPC health service reported when enabled.
const HealthServiceName = "followgraph.v1.FollowGraph"

// Config defines the inputs for the follow graph process.
type Config struct {
	HTTPAddr        string
	DBPath          string
	JWTSecret       string
	Production      bool
	CORSOrigin      string
	LegacyBroadcast bool

	RedisAddr    string
	RedisChannel string
	KafkaBrokers string
	KafkaTopic   string

	// GRPCHealthAddr enables the gRPC health endpoint when non-empty.
	GRPCHealthAddr string

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the follow graph process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	health          *platformgrpc.HealthServer

	store       *sqlite.Store
	redisClient *redis.Client
	bridge      *redisbridge.Bridge
	kafka       *events.KafkaPublisher
}

type handlerDeps struct {
	hub        *realtime.Hub
	service    httpapi.Service
	verifier   *auth.Verifier
	metrics    *metrics.Metrics
	errs       httpx.ErrorWriter
	corsOrigin string
}

// NewServer builds a configured server.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.DBPath) == "" {
		return nil, errors.New("database path is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	verifier, err := auth.NewVerifier(config.JWTSecret, nil)
	if err != nil {
		return nil, err
	}

	s := &Server{httpAddr: httpAddr, shutdownTimeout: config.ShutdownTimeout}
	store, err := openStore(config.DBPath)
	if err != nil {
		return nil, err
	}
	s.store = store

	m := metrics.New()
	hub := realtime.NewHub(m)

	var dispatcher domain.Dispatcher = hub
	if addr := strings.TrimSpace(config.RedisAddr); addr != "" {
		client, err := redisbridge.Open(ctx, addr)
		if err != nil {
			log.Printf("followgraph: redis unavailable, live events stay local: %v", err)
		} else {
			bridge := redisbridge.New(client, hub, config.RedisChannel, m)
			if err := bridge.Start(ctx, client); err != nil {
				log.Printf("followgraph: redis subscribe failed, live events stay local: %v", err)
				_ = client.Close()
			} else {
				s.redisClient = client
				s.bridge = bridge
				dispatcher = bridge
			}
		}
	}

	var publisher domain.EventPublisher = events.Noop{}
	if brokers := strings.TrimSpace(config.KafkaBrokers); brokers != "" {
		kafka, err := events.NewKafkaPublisher(brokers, config.KafkaTopic)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("init relationship event log: %w", err)
		}
		s.kafka = kafka
		publisher = kafka
		log.Printf("followgraph: publishing relationship events to %s", kafka.Topic())
	}

	service := domain.NewService(store, dispatcher,
		domain.WithEventPublisher(publisher),
		domain.WithTransitionObserver(m),
		domain.WithLegacyBroadcast(config.LegacyBroadcast),
	)

	if addr := strings.TrimSpace(config.GRPCHealthAddr); addr != "" {
		health, err := platformgrpc.NewHealthServer(addr, HealthServiceName)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.health = health
	}

	s.httpServer = &http.Server{
		Addr: httpAddr,
		Handler: newHandler(handlerDeps{
			hub:        hub,
			service:    service,
			verifier:   verifier,
			metrics:    m,
			errs:       httpx.ErrorWriter{Production: config.Production},
			corsOrigin: config.CORSOrigin,
		}),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	return s, nil
}

func newHandler(deps handlerDeps) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if deps.metrics != nil {
		mux.Handle("/metrics", deps.metrics.Handler())
	}
	mux.Handle("/ws", realtime.NewHandler(deps.hub, deps.verifier))
	mux.Handle("/api/", httpapi.NewHandler(deps.service, deps.verifier, deps.errs))

	handler := httpx.Chain(mux,
		httpx.RequestID(),
		httpx.RecoverPanic(),
		httpx.CORS(deps.corsOrigin),
	)
	return otelhttp.NewHandler(handler, "followgraph.http")
}

func openStore(path string) (*sqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open followgraph sqlite store: %w", err)
	}
	return store, nil
}

// Run creates and serves a server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(ctx, config)
	if err != nil {
		return fmt.Errorf("init followgraph server: %w", err)
	}
	defer server.Close()
	return server.ListenAndServe(ctx)
}

// ListenAndServe serves HTTP and the optional health endpoint until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("followgraph server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	healthErr := make(chan error, 1)
	if s.health != nil {
		go func() {
			healthErr <- s.health.Serve(healthCtx)
		}()
	} else {
		healthErr <- nil
	}

	serveErr := make(chan error, 1)
	log.Printf("followgraph: listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		if shutdownErr := s.httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			err = fmt.Errorf("shutdown http server: %w", shutdownErr)
		}
		cancel()
	case serveErrValue := <-serveErr:
		if !errors.Is(serveErrValue, http.ErrServerClosed) {
			err = fmt.Errorf("serve http: %w", serveErrValue)
		}
	}

	stopHealth()
	if healthServeErr := <-healthErr; healthServeErr != nil && err == nil {
		err = healthServeErr
	}
	return err
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Close()
	}
	if s.bridge != nil {
		if err := s.bridge.Close(); err != nil {
			log.Printf("followgraph: close redis subscription: %v", err)
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Printf("followgraph: close redis client: %v", err)
		}
	}
	if s.kafka != nil {
		if err := s.kafka.Close(); err != nil {
			log.Printf("followgraph: close kafka writer: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("followgraph: close store: %v", err)
		}
	}
}
