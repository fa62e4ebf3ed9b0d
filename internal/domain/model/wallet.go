package model

import (
	"time"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
)

type Escrow struct {
	ID          int64              `json:"id"`
	MatchID     int64              `json:"match_id"`
	UserID      int64              `json:"user_id"`
	AmountCents int64              `json:"amount_cents"`
	Status      enums.EscrowStatus `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
	SettledAt   *time.Time         `json:"settled_at,omitempty"`
}

type WalletEntry struct {
	ID         string    `json:"id"`
	UserID     int64     `json:"user_id"`
	DeltaCents int64     `json:"delta_cents"`
	Reason     string    `json:"reason"`
	MatchID    *int64    `json:"match_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
