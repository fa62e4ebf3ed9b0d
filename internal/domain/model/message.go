package model

import (
	"time"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
)

type Message struct {
	ID          int64             `json:"id"`
	MatchID     int64             `json:"match_id"`
	SenderID    *int64            `json:"sender_id,omitempty"`
	RecipientID *int64            `json:"recipient_id,omitempty"`
	Kind        enums.MessageKind `json:"kind"`
	Body        string            `json:"body"`
	CreatedAt   time.Time         `json:"created_at"`
}
