package model

import "time"

type Match struct {
	ID         int64     `json:"id"`
	UserLowID  int64     `json:"user_low_id"`
	UserHighID int64     `json:"user_high_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m Match) Has(userID int64) bool {
	return userID > 0 && (m.UserLowID == userID || m.UserHighID == userID)
}

func (m Match) Counterpart(userID int64) int64 {
	if m.UserLowID == userID {
		return m.UserHighID
	}
	return m.UserLowID
}

// NormalizePair orders a user pair so the lower id comes first.
func NormalizePair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
