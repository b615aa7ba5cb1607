package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/marketdraft/go/internal/draft"
	"github.com/mcdev12/marketdraft/go/internal/markets"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

func setupServer(cfg *Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	registerRoutes(mux, services.App)
	setupHealthCheck(mux)

	return &http.Server{
		Addr:    cfg.Server.APIAddr,
		Handler: c.Handler(mux),
	}
}

func registerRoutes(mux *http.ServeMux, app *draft.App) {
	h := &apiHandler{app: app}
	mux.HandleFunc("POST /leagues", h.createLeague)
	mux.HandleFunc("POST /leagues/{id}/members", h.joinLeague)
	mux.HandleFunc("POST /leagues/{id}/start", h.startDraft)
	mux.HandleFunc("POST /leagues/{id}/picks", h.submitPick)
	mux.HandleFunc("DELETE /leagues/{id}/picks/last", h.undoLastPick)
	mux.HandleFunc("GET /leagues/{id}/state", h.draftState)
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

type apiHandler struct {
	app *draft.App
}

func (h *apiHandler) createLeague(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		CreatorKey  string `json:"creator_key"`
		MaxPlayers  int    `json:"max_players"`
		TotalRounds int    `json:"total_rounds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, draft.ErrInvalidInput)
		return
	}
	league, err := h.app.CreateLeague(r.Context(), draft.CreateLeagueRequest{
		Name:        req.Name,
		CreatorKey:  req.CreatorKey,
		MaxPlayers:  req.MaxPlayers,
		TotalRounds: req.TotalRounds,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, league)
}

func (h *apiHandler) joinLeague(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathLeagueID(w, r)
	if !ok {
		return
	}
	var req struct {
		ParticipantKey string `json:"participant_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, draft.ErrInvalidInput)
		return
	}
	member, err := h.app.JoinLeague(r.Context(), leagueID, req.ParticipantKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, member)
}

func (h *apiHandler) startDraft(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathLeagueID(w, r)
	if !ok {
		return
	}
	var req struct {
		RequesterKey string `json:"requester_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, draft.ErrInvalidInput)
		return
	}
	result, err := h.app.StartDraft(r.Context(), leagueID, req.RequesterKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *apiHandler) submitPick(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathLeagueID(w, r)
	if !ok {
		return
	}
	var req struct {
		RequesterKey string `json:"requester_key"`
		MarketID     string `json:"market_id"`
		OutcomeSide  string `json:"outcome_side"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, draft.ErrInvalidInput)
		return
	}
	result, err := h.app.SubmitPick(r.Context(), leagueID, req.RequesterKey, req.MarketID, models.OutcomeSide(req.OutcomeSide))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *apiHandler) undoLastPick(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathLeagueID(w, r)
	if !ok {
		return
	}
	var req struct {
		RequesterKey string     `json:"requester_key"`
		PickID       *uuid.UUID `json:"pick_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, draft.ErrInvalidInput)
		return
	}
	result, err := h.app.UndoLastPick(r.Context(), leagueID, req.RequesterKey, req.PickID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *apiHandler) draftState(w http.ResponseWriter, r *http.Request) {
	leagueID, ok := pathLeagueID(w, r)
	if !ok {
		return
	}
	state, err := h.app.GetDraftState(r.Context(), leagueID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func pathLeagueID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, draft.ErrInvalidInput)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Holder string `json:"turn_holder,omitempty"`
}

// writeError maps engine sentinels onto HTTP statuses. A turn violation
// additionally names who actually holds the turn.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, draft.ErrLeagueNotFound),
		errors.Is(err, draft.ErrPickNotFound),
		errors.Is(err, draft.ErrMarketNotFound):
		status = http.StatusNotFound
	case errors.Is(err, draft.ErrForbidden),
		errors.Is(err, draft.ErrNotAMember):
		status = http.StatusForbidden
	case errors.Is(err, draft.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, draft.ErrNotYourTurn),
		errors.Is(err, draft.ErrAlreadyTaken),
		errors.Is(err, draft.ErrAlreadyMember),
		errors.Is(err, draft.ErrLeagueFull),
		errors.Is(err, draft.ErrInvalidState),
		errors.Is(err, draft.ErrAlreadyStarted),
		errors.Is(err, draft.ErrInsufficientMembers),
		errors.Is(err, draft.ErrDraftNotActive),
		errors.Is(err, draft.ErrDraftComplete),
		errors.Is(err, draft.ErrNotLastPick):
		status = http.StatusConflict
	case errors.Is(err, markets.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}

	body := errorBody{Error: err.Error()}
	var tve *draft.TurnViolationError
	if errors.As(err, &tve) {
		body.Holder = tve.Holder.ParticipantKey
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, body)
}
