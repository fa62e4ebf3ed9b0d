package notify

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSendTimeout = 5 * time.Second

	likeText         = "Someone new likes you. Open the app to see who."
	matchText        = "It's a match! Open your matches to start talking."
	pendingMatchText = "It's a match! The conversation opens as soon as a chat slot frees up."
)

type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type ChatResolver interface {
	TelegramChatID(ctx context.Context, userID int64) (int64, error)
}

// Dispatcher delivers best-effort notifications. Failures are logged and never returned.
type Dispatcher struct {
	sender  Sender
	chats   ChatResolver
	timeout time.Duration
	logger  *zap.Logger
}

func NewDispatcher(sender Sender, chats ChatResolver, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sender:  sender,
		chats:   chats,
		timeout: defaultSendTimeout,
		logger:  logger,
	}
}

// NotifyMatch tells toUser about a match with fromUser. A nil matchID means the
// match is queued until one side frees a chat slot.
func (d *Dispatcher) NotifyMatch(ctx context.Context, toUserID, fromUserID int64, matchID *int64) {
	text := matchText
	fields := []zap.Field{zap.Int64("to_user_id", toUserID), zap.Int64("from_user_id", fromUserID)}
	if matchID == nil {
		text = pendingMatchText
	} else {
		fields = append(fields, zap.Int64("match_id", *matchID))
	}
	d.send(ctx, toUserID, text, "match", fields...)
}

func (d *Dispatcher) NotifyLike(ctx context.Context, toUserID, fromUserID int64) {
	d.send(ctx, toUserID, likeText, "like", zap.Int64("to_user_id", toUserID), zap.Int64("from_user_id", fromUserID))
}

func (d *Dispatcher) send(ctx context.Context, userID int64, text, kind string, fields ...zap.Field) {
	if d == nil || d.sender == nil || d.chats == nil {
		return
	}

	// Detached so a finished request does not cancel delivery.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	chatID, err := d.chats.TelegramChatID(sendCtx, userID)
	if err != nil {
		d.logger.Warn("notification recipient lookup failed",
			append(fields, zap.String("kind", kind), zap.Error(err))...)
		return
	}
	if err := d.sender.SendText(sendCtx, chatID, text); err != nil {
		d.logger.Warn("notification send failed",
			append(fields, zap.String("kind", kind), zap.String("chat_id", strconv.FormatInt(chatID, 10)), zap.Error(err))...)
	}
}

// Nop drops every notification.
type Nop struct{}

func (Nop) NotifyMatch(context.Context, int64, int64, *int64) {}

func (Nop) NotifyLike(context.Context, int64, int64) {}
