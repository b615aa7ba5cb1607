package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mcdev12/marketdraft/go/internal/draft"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

type LeagueRepository struct {
	q db
}

const leagueColumns = `id, name, creator_key, status, max_players, total_rounds, draft_started_at, created_at, updated_at`

func (r *LeagueRepository) GetLeague(ctx context.Context, id uuid.UUID) (*models.League, error) {
	row := r.q.QueryRow(ctx, `SELECT `+leagueColumns+` FROM leagues WHERE id = $1`, id)
	league, err := scanLeague(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("league %s: %w", id, draft.ErrLeagueNotFound)
		}
		return nil, fmt.Errorf("get league: %w", err)
	}
	return league, nil
}

func (r *LeagueRepository) CreateLeague(ctx context.Context, id uuid.UUID, req draft.CreateLeagueRequest) (*models.League, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO leagues (id, name, creator_key, status, max_players, total_rounds)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+leagueColumns,
		id, req.Name, req.CreatorKey, models.LeagueStatusOpen, req.MaxPlayers, req.TotalRounds)

	league, err := scanLeague(row)
	if err != nil {
		return nil, fmt.Errorf("create league: %w", err)
	}
	return league, nil
}

// UpdateLeagueStatus changes the status and, when given, stamps
// draft_started_at. The stamp is write-once: a nil value never clears it.
func (r *LeagueRepository) UpdateLeagueStatus(ctx context.Context, id uuid.UUID, status models.LeagueStatus, draftStartedAt *time.Time) (*models.League, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE leagues
		SET status = $2,
		    draft_started_at = COALESCE(draft_started_at, $3),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+leagueColumns,
		id, status, draftStartedAt)

	league, err := scanLeague(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("league %s: %w", id, draft.ErrLeagueNotFound)
		}
		return nil, fmt.Errorf("update league status: %w", err)
	}
	return league, nil
}

func scanLeague(row pgx.Row) (*models.League, error) {
	var league models.League
	err := row.Scan(
		&league.ID,
		&league.Name,
		&league.CreatorKey,
		&league.Status,
		&league.MaxPlayers,
		&league.TotalRounds,
		&league.DraftStartedAt,
		&league.CreatedAt,
		&league.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &league, nil
}
