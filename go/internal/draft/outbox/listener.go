package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

type ListenerConfig struct {
	DatabaseURL      string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel    string        // Channel name to LISTEN on
	FallbackInterval time.Duration // How often to poll for missed events
	MaxRetries       int
	RetryDelay       time.Duration
	PingInterval     time.Duration
	BatchSize        int32 // Max events to fetch per batch
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		DatabaseURL:      "",
		NotifyChannel:    "draft_outbox_events",
		FallbackInterval: 30 * time.Second,
		MaxRetries:       5,
		RetryDelay:       200 * time.Millisecond,
		PingInterval:     90 * time.Second,
		BatchSize:        100,
	}
}

// Listener is the outbox relay: it wakes on NOTIFY (with a polling
// fallback), drains unsent rows in ID order, publishes each, and marks it
// sent. Draining in ID order is what preserves per-league commit order on
// the bus; duplicates after a crash are absorbed by the publisher's
// dedupe window.
type Listener struct {
	repo      Repository
	listener  *pq.Listener
	publisher Publisher
	cfg       ListenerConfig
}

func NewListener(repo Repository, publisher Publisher, cfg ListenerConfig) (*Listener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &Listener{
		repo:      repo,
		listener:  l,
		publisher: publisher,
		cfg:       cfg,
	}, nil
}

func (l *Listener) Start(ctx context.Context) error {
	log.Info().
		Str("channel", l.cfg.NotifyChannel).
		Dur("ping_interval", l.cfg.PingInterval).
		Dur("fallback_interval", l.cfg.FallbackInterval).
		Msg("outbox relay started")

	pingTicker := time.NewTicker(l.cfg.PingInterval)
	fallbackTicker := time.NewTicker(l.cfg.FallbackInterval)
	defer pingTicker.Stop()
	defer fallbackTicker.Stop()

	// Drain whatever accumulated while we were down.
	if err := l.processUnsent(ctx); err != nil {
		log.Error().Err(err).Msg("failed to process backlog")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("outbox relay shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// nil notification means the connection was lost and
				// re-established; fall back to a full drain
				continue
			}
			// The payload is the new row's serial, but draining in ID
			// order regardless keeps ordering right even when
			// notifications arrive shuffled.
			if err := l.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process notified events")
			}
		case <-fallbackTicker.C:
			if err := l.processUnsent(ctx); err != nil {
				log.Error().Err(err).Msg("failed to process unsent events")
			}
		case <-pingTicker.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (l *Listener) Stop() error {
	return l.listener.Close()
}

// processUnsent drains unsent outbox rows in ID order. A publish failure
// stops the drain instead of skipping the row: skipping would reorder that
// league's events.
func (l *Listener) processUnsent(ctx context.Context) error {
	for {
		unsent, err := l.repo.FetchUnsent(ctx, l.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch unsent outbox events: %w", err)
		}
		if len(unsent) == 0 {
			return nil
		}

		for _, event := range unsent {
			if err := l.publishWithRetry(ctx, event); err != nil {
				return fmt.Errorf("publish event %s: %w", event.EventID, err)
			}
			if err := l.repo.MarkSent(ctx, event.ID); err != nil {
				return fmt.Errorf("mark event %s sent: %w", event.EventID, err)
			}
		}

		if int32(len(unsent)) < l.cfg.BatchSize {
			return nil
		}
	}
}

func (l *Listener) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error
	for attempt := 0; attempt <= l.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := l.cfg.RetryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := l.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Error().
				Err(err).
				Int("attempt", attempt+1).
				Str("event_id", event.EventID.String()).
				Msg("failed to publish, retrying")
			continue
		}
		return nil
	}
	return lastErr
}
