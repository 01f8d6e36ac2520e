package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/microblog/internal/metrics"
)

// Metrics records request count, latency and in-flight requests.
//
// Requests are labelled with the chi route pattern (e.g. /api/posts/{id})
// rather than the raw path, which keeps the label set bounded. The pattern
// is only complete after routing, so it is read once the handler returns.
// Scrapes of /metrics are not recorded.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		done := metrics.RequestStarted()
		defer done()

		start := time.Now()
		rec := record(w)
		next.ServeHTTP(rec, r)

		route := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			route = rctx.RoutePattern()
		}
		metrics.ObserveRequest(r.Method, route, rec.status, time.Since(start))
	})
}
