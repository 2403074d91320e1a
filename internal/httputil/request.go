package httputil

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// GetSecondsQueryParameter reads a duration expressed in seconds from the
// request query, using fallback when it's missing. If the value isn't an
// integer between 1 and limit seconds, it'll write a 400 status code as well
// as the reasoning for the error into the ResponseWriter, and return false.
func GetSecondsQueryParameter(w http.ResponseWriter, r *http.Request, key string, fallback, limit time.Duration) (time.Duration, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, true
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil || seconds < 1 || seconds > int64(limit/time.Second) {
		http.Error(w, fmt.Sprintf("expected %s query parameter to be between 1 and %d", key, int64(limit/time.Second)), http.StatusBadRequest)
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}
