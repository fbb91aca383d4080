package apm

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

type HTTPOpts struct {
	OperationName string
	// SkipPathPrefixes are not traced, e.g. "/-/" for health & metrics endpoints
	SkipPathPrefixes []string
	// SpanName defaults to the operation name. Prefer low cardinality names like route patterns.
	SpanName func(req *http.Request) string
	// Labels are added to the otelhttp metrics of every request
	Labels func(req *http.Request) []attribute.KeyValue
}

type HTTPMiddleware func(h http.Handler) http.Handler

func (hopts *HTTPOpts) otelOptions() []otelhttp.Option {
	gb := Global()
	opts := []otelhttp.Option{
		otelhttp.WithMeterProvider(gb.GetMeterProvider()),
		otelhttp.WithTracerProvider(gb.GetTracerProvider()),
	}

	if len(hopts.SkipPathPrefixes) > 0 {
		opts = append(opts, otelhttp.WithFilter(func(req *http.Request) bool {
			for _, prefix := range hopts.SkipPathPrefixes {
				if strings.HasPrefix(req.URL.Path, prefix) {
					return false
				}
			}
			return true
		}))
	}

	if hopts.SpanName != nil {
		opts = append(opts, otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return hopts.SpanName(req)
		}))
	}

	return opts
}

func NewHTTPMiddleware(hopts *HTTPOpts) HTTPMiddleware {
	if hopts == nil {
		hopts = &HTTPOpts{}
	}

	opName := hopts.OperationName
	if opName == "" {
		opName = "otelhttp"
	}

	otelMw := otelhttp.NewMiddleware(opName, hopts.otelOptions()...)
	if hopts.Labels == nil {
		return otelMw
	}

	return func(next http.Handler) http.Handler {
		// otelhttp puts a labeler in the context and reads it once the request is served
		return otelMw(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			labeler, _ := otelhttp.LabelerFromContext(req.Context())
			labeler.Add(hopts.Labels(req)...)
			next.ServeHTTP(w, req)
		}))
	}
}
