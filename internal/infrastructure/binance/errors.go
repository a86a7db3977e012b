package binance

import (
	"encoding/json"
	"fmt"
)

// APIError captures structured error info returned by the exchange's
// JSON error body ({"code":...,"msg":...}).
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Body       string
}

func (e *APIError) HTTPStatus() int { return e.StatusCode }

func (e *APIError) Error() string {
	if e == nil {
		return "exchange API error"
	}
	if e.Code != 0 || e.Message != "" {
		return fmt.Sprintf("exchange API error %d (code=%d): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("exchange API error %d: %s", e.StatusCode, e.Body)
}

// ErrNoChangeCode is the margin-type "no change" error code: -4046.
// Callers should swallow it as success.
const ErrNoChangeCode = -4046

func parseAPIError(statusCode int, body []byte) error {
	var parsed struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && (parsed.Code != 0 || parsed.Msg != "") {
		return &APIError{StatusCode: statusCode, Code: parsed.Code, Message: parsed.Msg, Body: string(body)}
	}
	return &HTTPStatusError{StatusCode: statusCode, Body: body}
}
