package main

import (
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/marketdraft/go/internal/draft"
	"github.com/mcdev12/marketdraft/go/internal/draft/events"
	"github.com/mcdev12/marketdraft/go/internal/draft/gateway"
	"github.com/mcdev12/marketdraft/go/internal/draft/orchestrator"
	"github.com/mcdev12/marketdraft/go/internal/draft/outbox"
	"github.com/mcdev12/marketdraft/go/internal/draft/repository"
	"github.com/mcdev12/marketdraft/go/internal/markets"
)

type Services struct {
	Store   *repository.Store
	App     *draft.App
	Markets *markets.Client

	Relay          *outbox.Listener
	Gateway        *gateway.Service
	GatewayStream  *events.Consumer
	Orchestrator   *orchestrator.Orchestrator
	DeadlineStream *events.Consumer
}

// setupServices wires the dependency chain: store → engine → relay →
// stream consumers. Both consumers read the same JetStream stream under
// their own durable names, so the gateway and the deadline orchestrator
// progress independently.
func setupServices(cfg *Config, pool *pgxpool.Pool, dsn string) (*Services, error) {
	store := repository.NewStore(pool)

	marketsClient := markets.NewClient(cfg.Markets.BaseURL)
	if cfg.Markets.APIKey != "" {
		marketsClient.SetHeader("X-Api-Key", cfg.Markets.APIKey)
	}
	if cfg.Markets.TimeoutSeconds > 0 {
		marketsClient.SetTimeout(time.Duration(cfg.Markets.TimeoutSeconds) * time.Second)
	}

	app := draft.NewApp(store, marketsClient)

	// Outbox relay: Postgres NOTIFY → JetStream.
	jsCfg := outbox.DefaultJetStreamConfig()
	jsCfg.URL = cfg.NATS.URL
	publisher, err := outbox.NewJetStreamPublisher(jsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	listenerCfg := outbox.DefaultListenerConfig()
	listenerCfg.DatabaseURL = dsn
	relay, err := outbox.NewListener(store.OutboxRelay(), publisher, listenerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create outbox relay: %w", err)
	}

	// Gateway: JetStream → websocket fan-out.
	manager := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	gatewayConsumerCfg := events.DefaultConsumerConfig("draft-gateway")
	gatewayConsumerCfg.URL = cfg.NATS.URL
	gatewayStream, err := events.NewConsumer(manager, gatewayConsumerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway consumer: %w", err)
	}
	gatewayService := gateway.NewService(cfg.Server.GatewayAddr, manager, app)

	// Deadline orchestrator, fed by the same stream.
	orch := orchestrator.New(app, orchestrator.NewRandomStrategy(marketsClient, 100), orchestrator.Config{
		PickTimeout: cfg.PickTimeout(),
		NumWorkers:  cfg.Orchestrator.Workers,
	})
	deadlineConsumerCfg := events.DefaultConsumerConfig("draft-deadlines")
	deadlineConsumerCfg.URL = cfg.NATS.URL
	deadlineStream, err := events.NewConsumer(orch, deadlineConsumerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create deadline consumer: %w", err)
	}

	return &Services{
		Store:          store,
		App:            app,
		Markets:        marketsClient,
		Relay:          relay,
		Gateway:        gatewayService,
		GatewayStream:  gatewayStream,
		Orchestrator:   orch,
		DeadlineStream: deadlineStream,
	}, nil
}
