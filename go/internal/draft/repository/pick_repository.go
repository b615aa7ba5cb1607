package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mcdev12/marketdraft/go/internal/draft"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

type PickRepository struct {
	q db
}

const pickColumns = `id, league_id, member_id, market_id, outcome_side, pick_number, round, created_at`

func (r *PickRepository) ListPicks(ctx context.Context, leagueID uuid.UUID) ([]models.Pick, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+pickColumns+` FROM picks WHERE league_id = $1 ORDER BY pick_number`,
		leagueID)
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	defer rows.Close()

	var picks []models.Pick
	for rows.Next() {
		pick, err := scanPick(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pick: %w", err)
		}
		picks = append(picks, *pick)
	}
	return picks, rows.Err()
}

func (r *PickRepository) CountPicks(ctx context.Context, leagueID uuid.UUID) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM picks WHERE league_id = $1`, leagueID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count picks: %w", err)
	}
	return count, nil
}

func (r *PickRepository) HasPick(ctx context.Context, leagueID uuid.UUID, marketID string, side models.OutcomeSide) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM picks
			WHERE league_id = $1 AND market_id = $2 AND outcome_side = $3
		)`,
		leagueID, marketID, side).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pick exists: %w", err)
	}
	return exists, nil
}

func (r *PickRepository) CreatePick(ctx context.Context, req draft.CreatePickRequest) (*models.Pick, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO picks (id, league_id, member_id, market_id, outcome_side, pick_number, round)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+pickColumns,
		req.ID, req.LeagueID, req.MemberID, req.MarketID, req.OutcomeSide, req.PickNumber, req.Round)

	pick, err := scanPick(row)
	if err != nil {
		// Unique constraints back up the admission checks; a violation
		// here means we lost a race that the league lock should have
		// prevented, so surface it as the conflict it is.
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s %s: %w", req.MarketID, req.OutcomeSide, draft.ErrAlreadyTaken)
		}
		return nil, fmt.Errorf("create pick: %w", err)
	}
	return pick, nil
}

func (r *PickRepository) GetLastPick(ctx context.Context, leagueID uuid.UUID) (*models.Pick, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+pickColumns+` FROM picks WHERE league_id = $1 ORDER BY pick_number DESC LIMIT 1`,
		leagueID)

	pick, err := scanPick(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("league %s has no picks: %w", leagueID, draft.ErrPickNotFound)
		}
		return nil, fmt.Errorf("get last pick: %w", err)
	}
	return pick, nil
}

func (r *PickRepository) DeletePick(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM picks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete pick: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pick %s: %w", id, draft.ErrPickNotFound)
	}
	return nil
}

func scanPick(row pgx.Row) (*models.Pick, error) {
	var pick models.Pick
	err := row.Scan(
		&pick.ID,
		&pick.LeagueID,
		&pick.MemberID,
		&pick.MarketID,
		&pick.OutcomeSide,
		&pick.PickNumber,
		&pick.Round,
		&pick.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pick, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
