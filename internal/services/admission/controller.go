package admission

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
)

const ReasonActivation = "chat_activation"

var ErrValidation = errors.New("validation error")

// ActiveChatLimitError blocks activation because a participant has no free chat slot.
type ActiveChatLimitError struct {
	BlockedUserID int64
	Limit         int
}

func (e ActiveChatLimitError) Error() string {
	return "active chat limit reached for user " + strconv.FormatInt(e.BlockedUserID, 10)
}

func IsActiveChatLimit(err error) (*ActiveChatLimitError, bool) {
	var target ActiveChatLimitError
	if errors.As(err, &target) {
		return &target, true
	}
	return nil, false
}

// CreditRequiredError blocks activation because some participants cannot pay the activation cost.
type CreditRequiredError struct {
	MissingUserIDs []int64
}

func (e CreditRequiredError) Error() string {
	ids := make([]string, 0, len(e.MissingUserIDs))
	for _, id := range e.MissingUserIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	return "date credit required for users " + strings.Join(ids, ",")
}

func IsCreditRequired(err error) (*CreditRequiredError, bool) {
	var target CreditRequiredError
	if errors.As(err, &target) {
		return &target, true
	}
	return nil, false
}

// ConversationCounter counts live chats under a per-user lock held until the transaction ends.
type ConversationCounter interface {
	LockUser(ctx context.Context, tx pgx.Tx, userID int64) error
	CountActiveForUser(ctx context.Context, tx pgx.Tx, userID, excludeMatchID int64) (int, error)
}

type Wallet interface {
	BalanceTx(ctx context.Context, tx pgx.Tx, userID int64) (int64, error)
	DebitTx(ctx context.Context, tx pgx.Tx, userID, cents int64, reason string, matchID int64) error
}

type EscrowStore interface {
	Hold(ctx context.Context, tx pgx.Tx, matchID, userID, cents int64, at time.Time) error
}

type Dependencies struct {
	Conversations ConversationCounter
	Wallet        Wallet
	Escrows       EscrowStore
}

type Config struct {
	ActivationCostCents int64
	Limits              rules.ChatLimits
}

type Participant struct {
	UserID int64
	Tier   enums.Tier
}

// Request lists the participants in check order; the caller puts the consenting user first.
type Request struct {
	MatchID      int64
	Participants []Participant
}

// Controller gates activation of a conversation: chat slots first, then balance.
type Controller struct {
	deps Dependencies
	cfg  Config
	now  func() time.Time
}

func NewController(deps Dependencies, cfg Config) *Controller {
	if cfg.ActivationCostCents < 0 {
		cfg.ActivationCostCents = 0
	}
	return &Controller{
		deps: deps,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Admit runs inside the consent transaction. Participants are locked in
// ascending user id order before their chats are counted, so concurrent
// admissions sharing a user see each other's activations. On success both participants are
// charged and their payment is held in escrow for this match. On failure nothing
// is charged and the returned error says what blocks activation.
func (c *Controller) Admit(ctx context.Context, tx pgx.Tx, req Request) error {
	if req.MatchID <= 0 || len(req.Participants) == 0 {
		return ErrValidation
	}
	if c.deps.Conversations == nil || c.deps.Wallet == nil {
		return fmt.Errorf("admission dependencies are not configured")
	}

	ordered := sortedByUserID(req.Participants)
	for _, p := range ordered {
		if err := c.deps.Conversations.LockUser(ctx, tx, p.UserID); err != nil {
			return fmt.Errorf("lock participant: %w", err)
		}
	}

	for _, p := range req.Participants {
		active, err := c.deps.Conversations.CountActiveForUser(ctx, tx, p.UserID, req.MatchID)
		if err != nil {
			return fmt.Errorf("count active chats: %w", err)
		}
		limit := c.cfg.Limits.For(p.Tier)
		if active >= limit {
			return ActiveChatLimitError{BlockedUserID: p.UserID, Limit: limit}
		}
	}

	cost := c.cfg.ActivationCostCents
	if cost == 0 {
		return nil
	}

	missing := make([]int64, 0, len(ordered))
	for _, p := range ordered {
		balance, err := c.deps.Wallet.BalanceTx(ctx, tx, p.UserID)
		if err != nil {
			return fmt.Errorf("read wallet balance: %w", err)
		}
		if balance < cost {
			missing = append(missing, p.UserID)
		}
	}
	if len(missing) > 0 {
		return CreditRequiredError{MissingUserIDs: missing}
	}

	now := c.now().UTC()
	for _, p := range ordered {
		if err := c.deps.Wallet.DebitTx(ctx, tx, p.UserID, cost, ReasonActivation, req.MatchID); err != nil {
			return fmt.Errorf("charge activation: %w", err)
		}
		if c.deps.Escrows != nil {
			if err := c.deps.Escrows.Hold(ctx, tx, req.MatchID, p.UserID, cost, now); err != nil {
				return fmt.Errorf("hold activation escrow: %w", err)
			}
		}
	}

	return nil
}

func sortedByUserID(participants []Participant) []Participant {
	out := append([]Participant(nil), participants...)
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
