package apm

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopOption(t *testing.T) {
	asserter := assert.New(t)
	requirer := require.New(t)

	asserter.NotNil(Global())

	ins, err := New(t.Context(), &Options{})
	requirer.NoError(err)
	asserter.NotNil(ins)

	requirer.NoError(ins.Shutdown(t.Context()))
	assert.NotNil(t, Global().AppTracer())
	assert.NotNil(t, Global().AppMeter())
}

func TestHTTPMiddleware(t *testing.T) {
	called := false
	handler := NewHTTPMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/1/type/restaurant", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestHTTPMiddlewareOptions(t *testing.T) {
	labelled := 0
	mw := NewHTTPMiddleware(&HTTPOpts{
		SkipPathPrefixes: []string{"/-/"},
		SpanName: func(req *http.Request) string {
			return req.Method + " /items/{id}/type/{type}"
		},
		Labels: func(*http.Request) []attribute.KeyValue {
			labelled++
			return []attribute.KeyValue{attribute.String("http.route", "/items/{id}/type/{type}")}
		},
	})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/items/1/type/restaurant", "/-/metrics"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, labelled)
}

func TestGRPCServerHandler(t *testing.T) {
	assert.NotNil(t, OtelGRPCNewServerHandler("/grpc.health.v1.Health/Check"))
}
