package observability

import (
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/elite-furniture/api/internal/platform/requestctx"
)

const tracerName = "github.com/elite-furniture/api"

// TraceMiddleware extracts the X-Cloud-Trace-Context header, opens a server
// span for the request, and stores trace metadata on the request context.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			info := parseCloudTraceHeader(r.Header.Get("X-Cloud-Trace-Context"))
			info.ProjectID = projectID

			ctx, span := tracer.Start(ctx, r.Method+" "+routePattern(r),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					attribute.String("http.route", routePattern(r)),
				),
			)
			defer span.End()

			if sc := span.SpanContext(); sc.HasTraceID() && info.TraceID == "" {
				info.TraceID = sc.TraceID().String()
				info.SpanID = sc.SpanID().String()
				info.Sampled = sc.IsSampled()
			}

			ctx = requestctx.WithTrace(ctx, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseCloudTraceHeader parses "TRACE_ID/SPAN_ID;o=OPTIONS" as emitted by
// Google front ends. Malformed headers yield an empty TraceInfo.
func parseCloudTraceHeader(header string) requestctx.TraceInfo {
	header = strings.TrimSpace(header)
	if header == "" {
		return requestctx.TraceInfo{}
	}

	var info requestctx.TraceInfo
	rest := header
	if idx := strings.Index(rest, ";"); idx >= 0 {
		options := rest[idx+1:]
		rest = rest[:idx]
		for _, opt := range strings.Split(options, ";") {
			if strings.TrimSpace(opt) == "o=1" {
				info.Sampled = true
			}
		}
	}

	parts := strings.SplitN(rest, "/", 2)
	traceID := strings.TrimSpace(parts[0])
	if len(traceID) != 32 || !isHex(traceID) {
		return requestctx.TraceInfo{}
	}
	info.TraceID = traceID

	if len(parts) == 2 {
		if spanID, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64); err == nil && spanID > 0 {
			info.SpanID = strconv.FormatUint(spanID, 16)
		}
	}
	return info
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
