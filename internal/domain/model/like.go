package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
)

const MaxAnnotationCommentRunes = 280

var ErrInvalidAnnotation = errors.New("invalid annotation")

// Annotation ties a like to the part of the profile that prompted it.
type Annotation struct {
	Kind    enums.AnnotationKind `json:"kind"`
	Key     string               `json:"key,omitempty"`
	Comment string               `json:"comment,omitempty"`
}

func (a Annotation) Validate() error {
	if !a.Kind.Valid() {
		return ErrInvalidAnnotation
	}
	key := strings.TrimSpace(a.Key)
	if a.Kind.RequiresKey() && key == "" {
		return ErrInvalidAnnotation
	}
	if !a.Kind.RequiresKey() && key != "" {
		return ErrInvalidAnnotation
	}
	if utf8.RuneCountInString(a.Comment) > MaxAnnotationCommentRunes {
		return ErrInvalidAnnotation
	}
	return nil
}

type LikeEdge struct {
	ID         int64           `json:"id"`
	FromUserID int64           `json:"from_user_id"`
	ToUserID   int64           `json:"to_user_id"`
	State      enums.EdgeState `json:"state"`
	Annotation *Annotation     `json:"annotation,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	SurfacedAt *time.Time      `json:"surfaced_at,omitempty"`
	MatchedAt  *time.Time      `json:"matched_at,omitempty"`
	ExpiredAt  *time.Time      `json:"expired_at,omitempty"`
}
