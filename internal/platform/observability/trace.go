package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/requestctx"
)

const (
	cloudTraceHeader = "X-Cloud-Trace-Context"
	tracerName       = "workflow/http"
)

// workflowParams are the route parameters copied onto server spans.
var workflowParams = map[string]string{
	"cartID":     "workflow.cart_id",
	"itemID":     "workflow.item_id",
	"optionID":   "workflow.option_id",
	"orderID":    "workflow.order_id",
	"paymentID":  "workflow.payment_id",
	"deliveryID": "workflow.delivery_id",
}

var traceContext = propagation.TraceContext{}

// TraceMiddleware continues the caller's trace (W3C traceparent first, then X-Cloud-Trace-Context),
// starts a server span, and stores the correlation ids on the request context. The span is renamed
// after routing so it carries the route pattern rather than the raw path.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := traceContext.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			if !trace.SpanContextFromContext(ctx).IsValid() {
				if remote, ok := parseCloudTrace(r.Header.Get(cloudTraceHeader)); ok {
					ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
				}
			}

			ctx, span := tracer.Start(ctx, r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttributes(r)...),
			)
			defer span.End()

			sc := span.SpanContext()
			if !sc.IsValid() {
				sc = correlationOnly()
			}
			info := requestctx.TraceInfo{
				TraceID:   sc.TraceID().String(),
				SpanID:    sc.SpanID().String(),
				Sampled:   sc.IsSampled(),
				ProjectID: projectID,
			}
			w.Header().Set(cloudTraceHeader, formatCloudTrace(sc))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(requestctx.WithTrace(ctx, info)))

			route := routePattern(r)
			span.SetName(r.Method + " " + route)
			span.SetAttributes(semconv.HTTPRoute(route))
			span.SetAttributes(workflowAttributes(r)...)
			recordStatus(span, ww.Status())
		})
	}
}

// parseCloudTrace reads "TRACE_ID/SPAN_ID;o=OPTIONS". SPAN_ID is decimal; hex is accepted from older proxies.
func parseCloudTrace(header string) (trace.SpanContext, bool) {
	traceHex, rest, ok := strings.Cut(strings.TrimSpace(header), "/")
	if !ok {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanPart, options, _ := strings.Cut(rest, ";")

	var spanID trace.SpanID
	if n, err := strconv.ParseUint(spanPart, 10, 64); err == nil && n != 0 {
		for i := 7; i >= 0; i-- {
			spanID[i] = byte(n)
			n >>= 8
		}
	} else if parsed, err := trace.SpanIDFromHex(leftPadHex(spanPart)); err == nil {
		spanID = parsed
	} else {
		return trace.SpanContext{}, false
	}

	var flags trace.TraceFlags
	if strings.TrimSpace(options) == "o=1" {
		flags = trace.FlagsSampled
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	})
	return sc, sc.IsValid()
}

// correlationOnly returns fresh ids for requests that carry no trace while no tracer provider is installed.
func correlationOnly() trace.SpanContext {
	traceID := uuid.New()
	spanSeed := uuid.New()
	var spanID trace.SpanID
	copy(spanID[:], spanSeed[:8])
	return trace.NewSpanContext(trace.SpanContextConfig{TraceID: trace.TraceID(traceID), SpanID: spanID})
}

func leftPadHex(value string) string {
	if len(value) >= 16 {
		return value
	}
	return strings.Repeat("0", 16-len(value)) + value
}

func formatCloudTrace(sc trace.SpanContext) string {
	sampled := 0
	if sc.IsSampled() {
		sampled = 1
	}
	spanID := sc.SpanID()
	var n uint64
	for _, b := range spanID {
		n = n<<8 | uint64(b)
	}
	return fmt.Sprintf("%s/%d;o=%d", sc.TraceID(), n, sampled)
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.URLScheme(scheme),
		semconv.URLPath(r.URL.Path),
	}
	if r.Host != "" {
		attrs = append(attrs, semconv.ServerAddress(r.Host))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, semconv.UserAgentOriginal(cleanLogValue(ua, maxUserAgentLen)))
	}
	return attrs
}

func workflowAttributes(r *http.Request) []attribute.KeyValue {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	var attrs []attribute.KeyValue
	for i, key := range rctx.URLParams.Keys {
		if name, ok := workflowParams[key]; ok && i < len(rctx.URLParams.Values) {
			attrs = append(attrs, attribute.String(name, cleanLogValue(rctx.URLParams.Values[i], maxIDLen)))
		}
	}
	return attrs
}

func recordStatus(span trace.Span, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}
