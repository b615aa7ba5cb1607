package draft

import (
	"errors"
	"fmt"

	"github.com/mcdev12/marketdraft/go/internal/models"
)

// Sentinel errors for every admission and lifecycle rejection. Callers
// branch with errors.Is; repositories and the app wrap them with context.
var (
	ErrLeagueNotFound      = errors.New("league not found")
	ErrMemberNotFound      = errors.New("member not found")
	ErrPickNotFound        = errors.New("pick not found")
	ErrForbidden           = errors.New("requester is not the league creator")
	ErrInvalidState        = errors.New("league status does not allow this action")
	ErrInsufficientMembers = errors.New("league needs at least two members to draft")
	ErrAlreadyStarted      = errors.New("draft order already assigned")
	ErrDraftNotActive      = errors.New("league is not drafting")
	ErrNotAMember          = errors.New("requester is not a member of the league")
	ErrInvalidInput        = errors.New("invalid market or outcome side")
	ErrMarketNotFound      = errors.New("market does not exist")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrAlreadyTaken        = errors.New("market and side already picked in this league")
	ErrDraftComplete       = errors.New("draft is complete")
	ErrNotLastPick         = errors.New("only the most recent pick can be removed")
	ErrAlreadyMember       = errors.New("participant already joined this league")
	ErrLeagueFull          = errors.New("league is at max players")

	// ErrInvariantViolation means persisted state broke an engine
	// invariant (e.g. a pick-number gap). It always aborts the
	// enclosing exclusive unit and is never returned for caller mistakes.
	ErrInvariantViolation = errors.New("draft invariant violation")
)

// TurnViolationError reports a pick submitted out of turn, naming the
// member whose turn it actually is so the caller can display it.
type TurnViolationError struct {
	Holder models.Member
}

func (e *TurnViolationError) Error() string {
	return fmt.Sprintf("not your turn: current holder is %s", e.Holder.ParticipantKey)
}

func (e *TurnViolationError) Unwrap() error {
	return ErrNotYourTurn
}
