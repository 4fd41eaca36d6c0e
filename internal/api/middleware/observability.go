package middleware

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zatekoja/carematch/internal/infrastructure/observability"
)

type routeKey struct{}

// routeSlot receives the matched ServeMux pattern once routing has happened
type routeSlot struct {
	pattern string
}

// CaptureRoute must wrap the ServeMux directly. Outer middleware only ever sees a copy of
// the request, so the matched pattern is handed back through a slot in the context.
func CaptureRoute(mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mux.ServeHTTP(w, r)
		if slot, ok := r.Context().Value(routeKey{}).(*routeSlot); ok {
			slot.pattern = r.Pattern
		}
	})
}

// routeLabel keeps metric cardinality bounded: unmatched paths collapse into one label
func routeLabel(r *http.Request, pattern string, status int) string {
	switch {
	case pattern != "":
		return pattern
	case status == http.StatusNotFound || status == http.StatusMethodNotAllowed:
		return "unmatched"
	default:
		// Served before routing, e.g. a response cache hit on a fixed path.
		return r.Method + " " + r.URL.Path
	}
}

// ObservabilityMiddleware opens a server span per request and records request metrics
// labelled by route pattern.
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slot := &routeSlot{}
			ctx, span := observability.StartSpan(context.WithValue(r.Context(), routeKey{}, slot), "HTTP "+r.Method)
			defer span.End()

			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rw, r.WithContext(ctx))

			route := routeLabel(r, slot.pattern, rw.statusCode)
			span.SetName(route)
			observability.SetSpanAttributes(span,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.Int("http.status_code", rw.statusCode),
			)
			if rw.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
			}
			observability.RecordRequestMetric(ctx, metrics, r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
