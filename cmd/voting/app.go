package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sevotec/voting-service/adapters/envelope"
	"github.com/sevotec/voting-service/adapters/proxy"
	"github.com/sevotec/voting-service/adapters/queue"
	"github.com/sevotec/voting-service/adapters/store"
	"github.com/sevotec/voting-service/adapters/tokenizer"
	"github.com/sevotec/voting-service/adapters/warehouse"
	"github.com/sevotec/voting-service/config"
	"github.com/sevotec/voting-service/ports"
	"github.com/sevotec/voting-service/service"
)

// app holds the components shared by the serve and worker commands
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	redis     *redis.Client
	db        *pgxpool.Pool
	store     *store.RedisStore
	publisher *redisstream.Publisher
	codec     *envelope.Codec
	tokenizer *tokenizer.JWTTokenizer
	gateway   envelope.Peer
	ledger    ports.Ledger
	census    ports.Census
}

func newApp(ctx context.Context, log *slog.Logger) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &app{cfg: cfg, log: log}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	a.redis = redis.NewClient(opts)
	a.store = store.NewRedisStore(a.redis)

	if cfg.DatabaseURL != "" {
		a.db, err = warehouse.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			// A missing warehouse only leaves the pool cold
			log.Error("token warehouse unavailable", "error", err)
		}
	}

	vault, err := envelope.NewKeyVault(cfg.PrivateKeys, cfg.PublicKeys)
	if err != nil {
		return nil, err
	}

	a.gateway = envelope.Peer{
		Service:         cfg.GatewayName,
		EncryptionKey:   envelope.KeyGatewayPublic,
		VerificationKey: envelope.KeyGatewayPublic,
	}
	a.codec, err = envelope.NewCodec(vault, envelope.CodecConfig{
		Service:       cfg.ServiceName,
		SigningKey:    envelope.KeyVotingSigning,
		DecryptionKey: envelope.KeyVotingPrivate,
		Trusted:       []envelope.Peer{a.gateway},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create envelope codec: %w", err)
	}

	signKey, err := vault.PrivateKey(envelope.KeyVotingSigning)
	if err != nil {
		return nil, err
	}
	verifyKey, err := vault.PublicKey(envelope.KeyGatewayPublic)
	if err != nil {
		return nil, err
	}
	a.tokenizer, err = tokenizer.NewJWTTokenizer(tokenizer.Config{
		Service:       cfg.ServiceName,
		SignKey:       signKey,
		TrustedIssuer: cfg.GatewayName,
		VerifyKey:     verifyKey,
	})
	if err != nil {
		return nil, err
	}

	a.publisher, err = redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: a.redis,
		},
		watermill.NewSlogLogger(log.With("component", "watermill")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
	}

	a.ledger = proxy.NewLedgerProxy(proxy.NewClient(
		envelope.Peer{Service: cfg.BlockchainName, EncryptionKey: envelope.KeyBlockchainPublic, VerificationKey: envelope.KeyBlockchainPublic},
		a.codec, a.tokenizer, cfg.BlockchainAPIKey,
		proxy.NewHTTPTransport(cfg.BlockchainURL),
	))

	var censusTransport proxy.Transport = proxy.NewMessageTransport(a.publisher)
	if cfg.CensusURL != "" {
		censusTransport = proxy.NewHTTPTransport(cfg.CensusURL)
	}
	a.census = proxy.NewCensusProxy(proxy.NewClient(
		envelope.Peer{Service: cfg.CensusName, EncryptionKey: envelope.KeyCensusPublic, VerificationKey: envelope.KeyCensusPublic},
		a.codec, a.tokenizer, cfg.CensusAPIKey,
		censusTransport,
	))

	return a, nil
}

func (a *app) tokenWarehouse() ports.TokenWarehouse {
	if a.db == nil {
		return &warehouse.StaticWarehouse{Err: errors.New("no token warehouse configured")}
	}
	return warehouse.NewPostgresWarehouse(a.db)
}

func (a *app) newWorker() (*queue.Worker, error) {
	subscriber, err := redisstream.NewSubscriber(
		redisstream.SubscriberConfig{
			Client:        a.redis,
			ConsumerGroup: queue.ConsumerGroup,
		},
		watermill.NewSlogLogger(a.log.With("component", "watermill")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis subscriber: %w", err)
	}

	cfg := queue.DefaultWorkerConfig()
	cfg.InitialInterval = a.cfg.RetryBaseDelay

	processor := service.NewSubmissionProcessor(a.ledger, a.census, a.log)
	return queue.NewWorker(cfg, subscriber, a.publisher, a.store, processor, a.log)
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.log.Error("failed to close publisher", "error", err)
	}
	if a.db != nil {
		a.db.Close()
	}
	if err := a.redis.Close(); err != nil {
		a.log.Error("failed to close redis", "error", err)
	}
}
