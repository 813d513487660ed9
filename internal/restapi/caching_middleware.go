package restapi

import (
	"net/http"
	"strconv"
	"time"
)

// noStore is sent with every realtime answer and every non-2xx response.
const noStore = "no-cache, no-store, must-revalidate"

// cachePolicy decides the Cache-Control header of an endpoint's successful
// responses. A zero MaxAge means the answer must not be cached.
type cachePolicy struct {
	MaxAge time.Duration
}

var (
	// Stop lists and config only change when the catalog or process does.
	catalogCachePolicy = cachePolicy{MaxAge: 5 * time.Minute}
	// Arrival minutes are stale as soon as they are computed.
	realtimeCachePolicy = cachePolicy{}
)

func (p cachePolicy) headerValue() string {
	seconds := int(p.MaxAge / time.Second)
	if seconds <= 0 {
		return noStore
	}
	return "public, max-age=" + strconv.Itoa(seconds)
}

// withCachePolicy stamps Cache-Control when the handler commits its status.
// Only 2xx responses get the policy value; errors are never cached.
func withCachePolicy(policy cachePolicy, next http.Handler) http.Handler {
	success := policy.headerValue()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&cachePolicyWriter{ResponseWriter: w, success: success}, r)
	})
}

type cachePolicyWriter struct {
	http.ResponseWriter
	success string
	stamped bool
}

func (w *cachePolicyWriter) WriteHeader(code int) {
	if !w.stamped {
		w.stamped = true
		value := noStore
		if code >= 200 && code < 300 {
			value = w.success
		}
		w.Header().Set("Cache-Control", value)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cachePolicyWriter) Write(b []byte) (int, error) {
	if !w.stamped {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *cachePolicyWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
