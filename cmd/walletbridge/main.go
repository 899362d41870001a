package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/walletbridge/adapters/events"
	"github.com/layer-3/walletbridge/adapters/nonce"
	"github.com/layer-3/walletbridge/adapters/siwe"
	"github.com/layer-3/walletbridge/adapters/store"
	"github.com/layer-3/walletbridge/adapters/tokenizer"
	"github.com/layer-3/walletbridge/config"
	"github.com/layer-3/walletbridge/logging"
	"github.com/layer-3/walletbridge/metrics"
	"github.com/layer-3/walletbridge/ports"
	"github.com/layer-3/walletbridge/service"
	transport "github.com/layer-3/walletbridge/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config; environment only when empty")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Pretty)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("walletbridge stopped")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv()
	}
	return config.Load(path)
}

// warnUncheckedDomain reports that messages signed on any site will be accepted
func warnUncheckedDomain(auth config.AuthConfig, logger zerolog.Logger) bool {
	if auth.ExpectedDomain != "" {
		return false
	}
	logger.Warn().Msg("auth.expected_domain is empty; sign-in messages are accepted for any domain")
	return true
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	var redisClient *redis.Client
	if cfg.Store.Driver == config.DriverRedis {
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
	}

	st, closeStore, err := openStore(cfg, redisClient)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := newPublisher(redisClient, logging.Component(logger, "events"))
	if err != nil {
		return err
	}
	defer publisher.Close()
	eventPub := events.NewWatermillPublisher(publisher)

	signKey, err := loadSigningKey(cfg.Tokens.SigningKey, logger)
	if err != nil {
		return err
	}

	nonces, err := nonce.NewHMACAuthority([]byte(cfg.Auth.NonceSecret))
	if err != nil {
		return err
	}

	bridgeLogger := logging.Component(logger, "bridge")
	warnUncheckedDomain(cfg.Auth, bridgeLogger)
	verifier := service.NewMessageVerifier(siwe.NewVerifier(siwe.Config{
		ExpectedDomain: cfg.Auth.ExpectedDomain,
		MaxLifetime:    cfg.Auth.MaxMessageLifetime,
	}), bridgeLogger)
	resolver := service.NewAccountResolver(st, eventPub, bridgeLogger)
	rotator := service.NewCredentialRotator(st, cfg.Auth.CredentialCost)
	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewPrometheus(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	bridge := service.NewBridgeService(nonces, verifier, resolver, rotator, bridgeLogger).
		WithMetrics(recorder)

	sessions := service.NewSessionService(
		tokenizer.NewJWTTokenizer(signKey),
		st,
		eventPub,
		cfg.Tokens.AccessTTL,
		cfg.Tokens.RefreshTTL,
		logging.Component(logger, "sessions"),
	).WithMetrics(recorder)

	gin.SetMode(gin.ReleaseMode)
	router := transport.SetupRouter(bridge, sessions, logging.Component(logger, "http"))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.HTTPAddr).
			Str("store", cfg.Store.Driver).
			Msg("walletbridge listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config, redisClient *redis.Client) (ports.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		return store.NewRedisStore(redisClient), func() {}, nil
	case config.DriverSQLite:
		s, err := store.NewSQLiteStore(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}

// newPublisher streams events to redis when it is configured, in-process otherwise
func newPublisher(redisClient *redis.Client, logger zerolog.Logger) (message.Publisher, error) {
	wmLogger := logging.NewWatermillAdapter(logger)
	if redisClient == nil {
		return gochannel.NewGoChannel(gochannel.Config{}, wmLogger), nil
	}

	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		wmLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}
	return publisher, nil
}

func loadSigningKey(pemKey string, logger zerolog.Logger) (*ecdsa.PrivateKey, error) {
	if pemKey == "" {
		logger.Warn().Msg("no tokens.signing_key configured, sessions will not survive a restart")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(pemKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse tokens.signing_key: %w", err)
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("tokens.signing_key must be a P-256 key")
	}
	return key, nil
}
