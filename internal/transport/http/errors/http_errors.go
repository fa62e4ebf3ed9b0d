package errors

import (
	"encoding/json"
	"net/http"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RateLimitError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retry_after_sec"`
}

type ActiveChatLimitError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	BlockedUserID int64  `json:"blocked_user_id"`
	Limit         int    `json:"limit"`
}

type CreditRequiredError struct {
	Code           string  `json:"code"`
	Message        string  `json:"message"`
	MissingUserIDs []int64 `json:"missing_user_ids"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
