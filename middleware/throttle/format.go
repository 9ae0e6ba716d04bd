package throttle

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// retryAfterSeconds arredonda para cima: 2.5s -> "3", nunca menos que 1.
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func setRetryAfter(w http.ResponseWriter, d time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(d)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error             string `json:"error"`
	Reason            string `json:"reason,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

func methodSet(methods []string, def ...string) map[string]bool {
	if len(methods) == 0 {
		methods = def
	}
	out := make(map[string]bool, len(methods))
	for _, m := range methods {
		out[m] = true
	}
	return out
}
