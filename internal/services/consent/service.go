package consent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/model"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/rules"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/infra/metrics"
	pgrepo "github.com/ethanserbantes/wifey-dating-app-sub002/internal/repo/postgres"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/services/admission"
)

const (
	DefaultDecisionWindow   = 48 * time.Hour
	DefaultInactivityWindow = 7 * 24 * time.Hour
)

var (
	ErrValidation        = errors.New("validation error")
	ErrMatchNotFound     = errors.New("match not found")
	ErrNotParticipant    = errors.New("not a participant of this match")
	ErrNoLongerAvailable = errors.New("match is no longer available")
	ErrExpired           = errors.New("decision window expired")
	ErrNotActive         = errors.New("conversation is not active")
)

type MatchStore interface {
	GetByID(ctx context.Context, tx pgx.Tx, matchID int64) (model.Match, error)
}

type ConversationStore interface {
	Ensure(ctx context.Context, tx pgx.Tx, m model.Match, decisionExpiresAt, at time.Time) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, matchID int64) (model.ConversationState, error)
	SetConsent(ctx context.Context, tx pgx.Tx, matchID, userID int64, tier enums.Tier, at time.Time) (bool, error)
	Activate(ctx context.Context, tx pgx.Tx, matchID int64, at, inactivityExpiresAt time.Time) (bool, error)
	Finalize(ctx context.Context, tx pgx.Tx, matchID int64, terminal enums.TerminalState, at time.Time) (bool, error)
	Archive(ctx context.Context, tx pgx.Tx, matchID int64, at time.Time) (bool, error)
	CountActiveForUser(ctx context.Context, tx pgx.Tx, userID, excludeMatchID int64) (int, error)
}

type Admitter interface {
	Admit(ctx context.Context, tx pgx.Tx, req admission.Request) error
}

type Dependencies struct {
	Tx            pgrepo.TxRunner
	Matches       MatchStore
	Conversations ConversationStore
	Admission     Admitter
	Logger        *zap.Logger
}

type Config struct {
	DecisionWindow   time.Duration
	InactivityWindow time.Duration
	Limits           rules.ChatLimits
}

// Usage describes the viewer's chat slots for the tier they asked about.
type Usage struct {
	Tier        enums.Tier
	ActiveChats int
	Limit       int
}

func (u Usage) Available() bool {
	return u.ActiveChats < u.Limit
}

type Status struct {
	MatchID              int64
	Phase                enums.ConsentPhase
	ViewerConsentAt      *time.Time
	ViewerTier           *enums.Tier
	CounterpartConsented bool
	ActiveAt             *time.Time
	DecisionExpiresAt    time.Time
	RemainingSeconds     int64
	InactivityExpiresAt  *time.Time
	ArchivedAt           *time.Time
	TerminalState        *enums.TerminalState
	Usage                *Usage
}

type Service struct {
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.DecisionWindow <= 0 {
		cfg.DecisionWindow = DefaultDecisionWindow
	}
	if cfg.InactivityWindow <= 0 {
		cfg.InactivityWindow = DefaultInactivityWindow
	}
	if cfg.Limits.Base <= 0 {
		cfg.Limits.Base = rules.BaseActiveChats
	}
	if cfg.Limits.Plus <= 0 {
		cfg.Limits.Plus = rules.PlusActiveChats
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		deps:   deps,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// GetStatus reads the consent state, creating it on first access. A decision
// deadline that passed without activation is finalized to expired by this read.
func (s *Service) GetStatus(ctx context.Context, matchID, viewerID int64, tier *enums.Tier) (Status, error) {
	if matchID <= 0 || viewerID <= 0 {
		return Status{}, ErrValidation
	}
	if tier != nil && !validTier(*tier) {
		return Status{}, ErrValidation
	}
	if err := s.ready(); err != nil {
		return Status{}, err
	}

	now := s.now().UTC()
	var status Status
	err := s.deps.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		state, err := s.load(ctx, tx, matchID, viewerID, now)
		if err != nil {
			return err
		}

		if state.DecisionOverdue(now) {
			state, err = s.finalizeExpired(ctx, tx, matchID, now)
			if err != nil {
				return err
			}
		}

		status = buildStatus(state, viewerID, now)
		if tier != nil {
			active, err := s.deps.Conversations.CountActiveForUser(ctx, tx, viewerID, 0)
			if err != nil {
				return err
			}
			status.Usage = &Usage{Tier: *tier, ActiveChats: active, Limit: s.cfg.Limits.For(*tier)}
		}
		return nil
	})
	if err != nil {
		return Status{}, err
	}

	return status, nil
}

// Consent records the user's opt-in once and, when it completes dual consent,
// runs admission in the same transaction. An admission block keeps the consent
// and is returned together with the status so the caller can retry later.
func (s *Service) Consent(ctx context.Context, matchID, userID int64, tier enums.Tier) (Status, error) {
	if matchID <= 0 || userID <= 0 || !validTier(tier) {
		return Status{}, ErrValidation
	}
	if err := s.ready(); err != nil {
		return Status{}, err
	}

	now := s.now().UTC()
	var (
		status   Status
		blockErr error
		expired  bool
	)
	err := s.deps.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		state, err := s.load(ctx, tx, matchID, userID, now)
		if err != nil {
			return err
		}

		if state.TerminalState != nil {
			return ErrNoLongerAvailable
		}
		if state.ActiveAt != nil {
			status = buildStatus(state, userID, now)
			return nil
		}
		if state.DecisionOverdue(now) {
			state, err = s.finalizeExpired(ctx, tx, matchID, now)
			if err != nil {
				return err
			}
			expired = true
			status = buildStatus(state, userID, now)
			return nil
		}

		if _, err := s.deps.Conversations.SetConsent(ctx, tx, matchID, userID, tier, now); err != nil {
			return err
		}
		state, err = s.deps.Conversations.GetForUpdate(ctx, tx, matchID)
		if err != nil {
			return err
		}

		if state.BothConsented() {
			admitErr := s.deps.Admission.Admit(ctx, tx, admission.Request{
				MatchID: matchID,
				Participants: []admission.Participant{
					participant(state, userID),
					participant(state, state.Counterpart(userID)),
				},
			})
			switch {
			case admitErr == nil:
				if _, err := s.deps.Conversations.Activate(ctx, tx, matchID, now, now.Add(s.cfg.InactivityWindow)); err != nil {
					return err
				}
				state, err = s.deps.Conversations.GetForUpdate(ctx, tx, matchID)
				if err != nil {
					return err
				}
			case isAdmissionBlock(admitErr):
				blockErr = admitErr
			default:
				return admitErr
			}
		}

		status = buildStatus(state, userID, now)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNoLongerAvailable) {
			metrics.RecordConsent("no_longer_available")
		}
		return Status{}, err
	}

	switch {
	case expired:
		metrics.RecordConsent("expired")
		return status, ErrExpired
	case blockErr != nil:
		if _, ok := admission.IsActiveChatLimit(blockErr); ok {
			metrics.RecordConsent("active_chat_limit")
		} else {
			metrics.RecordConsent("credit_required")
		}
		return status, blockErr
	case status.ActiveAt != nil:
		metrics.RecordConsent("activated")
	default:
		metrics.RecordConsent("recorded")
	}

	return status, nil
}

// Archive frees the chat slot held by an active conversation.
func (s *Service) Archive(ctx context.Context, matchID, userID int64) (Status, error) {
	if matchID <= 0 || userID <= 0 {
		return Status{}, ErrValidation
	}
	if err := s.ready(); err != nil {
		return Status{}, err
	}

	now := s.now().UTC()
	var status Status
	err := s.deps.Tx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		state, err := s.load(ctx, tx, matchID, userID, now)
		if err != nil {
			return err
		}
		if state.TerminalState != nil {
			return ErrNoLongerAvailable
		}
		if state.ActiveAt == nil {
			return ErrNotActive
		}

		if state.ArchivedAt == nil {
			if _, err := s.deps.Conversations.Archive(ctx, tx, matchID, now); err != nil {
				return err
			}
			state, err = s.deps.Conversations.GetForUpdate(ctx, tx, matchID)
			if err != nil {
				return err
			}
		}

		status = buildStatus(state, userID, now)
		return nil
	})
	if err != nil {
		return Status{}, err
	}

	return status, nil
}

// load returns the locked state row. While the match exists the row is created
// on demand; after an unmatch the surviving row still answers with its terminal state.
func (s *Service) load(ctx context.Context, tx pgx.Tx, matchID, viewerID int64, now time.Time) (model.ConversationState, error) {
	m, err := s.deps.Matches.GetByID(ctx, tx, matchID)
	switch {
	case err == nil:
		if !m.Has(viewerID) {
			return model.ConversationState{}, ErrNotParticipant
		}
		if err := s.deps.Conversations.Ensure(ctx, tx, m, m.CreatedAt.Add(s.cfg.DecisionWindow), now); err != nil {
			return model.ConversationState{}, err
		}
	case errors.Is(err, pgrepo.ErrMatchNotFound):
	default:
		return model.ConversationState{}, err
	}

	state, err := s.deps.Conversations.GetForUpdate(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrConversationNotFound) {
			return model.ConversationState{}, ErrMatchNotFound
		}
		return model.ConversationState{}, err
	}
	if !state.Has(viewerID) {
		return model.ConversationState{}, ErrNotParticipant
	}

	return state, nil
}

func (s *Service) finalizeExpired(ctx context.Context, tx pgx.Tx, matchID int64, now time.Time) (model.ConversationState, error) {
	if _, err := s.deps.Conversations.Finalize(ctx, tx, matchID, enums.TerminalExpired, now); err != nil {
		return model.ConversationState{}, err
	}
	s.logger.Info("conversation expired", zap.Int64("match_id", matchID))
	return s.deps.Conversations.GetForUpdate(ctx, tx, matchID)
}

func (s *Service) ready() error {
	if s.deps.Tx == nil || s.deps.Matches == nil || s.deps.Conversations == nil || s.deps.Admission == nil {
		return fmt.Errorf("consent dependencies are not configured")
	}
	return nil
}

func buildStatus(state model.ConversationState, viewerID int64, now time.Time) Status {
	consentAt, tier := state.ConsentOf(viewerID)
	counterpartAt, _ := state.ConsentOf(state.Counterpart(viewerID))

	status := Status{
		MatchID:              state.MatchID,
		Phase:                state.Phase(),
		ViewerConsentAt:      consentAt,
		ViewerTier:           tier,
		CounterpartConsented: counterpartAt != nil,
		ActiveAt:             state.ActiveAt,
		DecisionExpiresAt:    state.DecisionExpiresAt,
		InactivityExpiresAt:  state.InactivityExpiresAt,
		ArchivedAt:           state.ArchivedAt,
		TerminalState:        state.TerminalState,
	}
	if state.ActiveAt == nil && state.TerminalState == nil {
		if remaining := state.DecisionExpiresAt.Sub(now); remaining > 0 {
			status.RemainingSeconds = int64((remaining + time.Second - 1) / time.Second)
		}
	}
	return status
}

func participant(state model.ConversationState, userID int64) admission.Participant {
	_, tier := state.ConsentOf(userID)
	p := admission.Participant{UserID: userID, Tier: enums.TierBase}
	if tier != nil {
		p.Tier = *tier
	}
	return p
}

func isAdmissionBlock(err error) bool {
	if _, ok := admission.IsActiveChatLimit(err); ok {
		return true
	}
	_, ok := admission.IsCreditRequired(err)
	return ok
}

func validTier(tier enums.Tier) bool {
	return tier == enums.TierBase || tier == enums.TierPlus
}
