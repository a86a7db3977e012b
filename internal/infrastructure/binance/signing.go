package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"
)

// sign signs a canonical query string (including timestamp and
// recvWindow, added by the caller) with HMAC-SHA256.
func sign(secret, canonicalQuery string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonicalQuery))
	return hex.EncodeToString(mac.Sum(nil))
}

// signParams stamps timestamp/recvWindow onto params and appends the
// HMAC signature, returning the final encoded query string.
func signParams(secret string, params url.Values, recvWindowMs int) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(recvWindowMs))

	query := params.Encode()
	params.Set("signature", sign(secret, query))
	return params.Encode()
}
