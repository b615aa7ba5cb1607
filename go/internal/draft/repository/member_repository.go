package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mcdev12/marketdraft/go/internal/draft"
	"github.com/mcdev12/marketdraft/go/internal/models"
)

type MemberRepository struct {
	q db
}

const memberColumns = `id, league_id, participant_key, draft_order, joined_at`

func (r *MemberRepository) GetMemberByKey(ctx context.Context, leagueID uuid.UUID, participantKey string) (*models.Member, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE league_id = $1 AND participant_key = $2`,
		leagueID, participantKey)

	member, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("participant %s in league %s: %w", participantKey, leagueID, draft.ErrMemberNotFound)
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return member, nil
}

func (r *MemberRepository) ListMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+memberColumns+` FROM members WHERE league_id = $1 ORDER BY joined_at, id`,
		leagueID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *member)
	}
	return members, rows.Err()
}

func (r *MemberRepository) CreateMember(ctx context.Context, req draft.CreateMemberRequest) (*models.Member, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO members (id, league_id, participant_key)
		VALUES ($1, $2, $3)
		RETURNING `+memberColumns,
		uuid.New(), req.LeagueID, req.ParticipantKey)

	member, err := scanMember(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("participant %s: %w", req.ParticipantKey, draft.ErrAlreadyMember)
		}
		return nil, fmt.Errorf("create member: %w", err)
	}
	return member, nil
}

// AssignDraftOrder writes the full permutation for a league. Each member
// must exist and must not have an order yet; anything else aborts the
// transaction rather than leave a partial assignment behind.
func (r *MemberRepository) AssignDraftOrder(ctx context.Context, leagueID uuid.UUID, orders map[uuid.UUID]int) error {
	for memberID, order := range orders {
		tag, err := r.q.Exec(ctx, `
			UPDATE members SET draft_order = $3
			WHERE id = $1 AND league_id = $2 AND draft_order IS NULL`,
			memberID, leagueID, order)
		if err != nil {
			return fmt.Errorf("assign draft order to %s: %w", memberID, err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("member %s missing or already ordered: %w", memberID, draft.ErrInvariantViolation)
		}
	}
	return nil
}

func scanMember(row pgx.Row) (*models.Member, error) {
	var member models.Member
	err := row.Scan(
		&member.ID,
		&member.LeagueID,
		&member.ParticipantKey,
		&member.DraftOrder,
		&member.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &member, nil
}
