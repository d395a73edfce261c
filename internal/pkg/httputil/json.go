package httputil

import (
	"encoding/json"
	"io"
	"net/http"
)

// MaxJSONBodySize is the maximum size for JSON request bodies (1MB).
const MaxJSONBodySize = 1 << 20

// DecodeJSON decodes JSON from the request body into the provided value.
// It enforces a maximum body size to prevent memory exhaustion attacks.
// If decoding fails, it writes an appropriate error response and returns false.
// If decoding succeeds, it returns true.
//
// Usage:
//
//	var req MyRequest
//	if !httputil.DecodeJSON(w, r, &req) {
//	    return // error response already written
//	}
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	limitedBody := io.LimitReader(r.Body, MaxJSONBodySize+1)

	decoder := json.NewDecoder(limitedBody)
	if err := decoder.Decode(v); err != nil {
		InvalidJSON(w, r, err)
		return false
	}

	// Try to read one more byte to detect a body that was truncated by the limit.
	var extra [1]byte
	if n, _ := limitedBody.Read(extra[:]); n > 0 {
		RequestTooLarge(w, r, MaxJSONBodySize)
		return false
	}

	return true
}
