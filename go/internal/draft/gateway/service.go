package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/marketdraft/go/internal/draft"
)

// StateProvider is what the gateway needs from the engine to serve
// snapshots: the same read the server itself uses, so an observer seeding
// from it starts from authoritative inputs.
type StateProvider interface {
	GetDraftState(ctx context.Context, leagueID uuid.UUID) (*draft.DraftState, error)
}

// Service is the gateway HTTP surface: the snapshot endpoint observers
// seed from, plus the WebSocket routes they stream deltas over.
type Service struct {
	addr     string
	manager  *ConnectionManager
	handler  *WebSocketHandler
	provider StateProvider
}

func NewService(addr string, manager *ConnectionManager, provider StateProvider) *Service {
	return &Service{
		addr:     addr,
		manager:  manager,
		handler:  NewWebSocketHandler(manager),
		provider: provider,
	}
}

// Run serves until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	s.handler.RegisterRoutes(mux)
	mux.HandleFunc("/leagues/state", s.handleDraftState)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: cors.AllowAll().Handler(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go s.manager.Start(ctx)

	log.Info().Str("addr", s.addr).Msg("gateway listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Service) handleDraftState(w http.ResponseWriter, r *http.Request) {
	leagueID, err := uuid.Parse(r.URL.Query().Get("league_id"))
	if err != nil {
		http.Error(w, "invalid league_id format", http.StatusBadRequest)
		return
	}

	state, err := s.provider.GetDraftState(r.Context(), leagueID)
	if err != nil {
		if errors.Is(err, draft.ErrLeagueNotFound) {
			http.Error(w, "league not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("league_id", leagueID.String()).Msg("failed to load draft state")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(state); err != nil {
		log.Error().Err(err).Msg("failed to encode draft state")
	}
}
