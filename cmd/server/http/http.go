// Package http exposes the item pricing APIs over HTTP. Handlers only translate between
// HTTP and the api package, there's no business logic here.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/naughtygopher/errors"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/onlydevelop/restaurant-service-demo/internal/api"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/apm"
	"github.com/onlydevelop/restaurant-service-demo/internal/pkg/logger"
)

type Config struct {
	Host              string
	Port              int
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	EnableAccesslog   bool
}

type HTTP struct {
	locker *sync.Mutex
	server *http.Server
	// apis has all the APIs, and respective HTTP handlers will call using this
	apis              *api.API
	shutdownInitiated bool
}

// Start blocks until the server stops. It returns nil if it was stopped by Shutdown.
func (ht *HTTP) Start() error {
	err := ht.server.ListenAndServe()
	if err != nil && !(ht.isShuttingDown() && errors.Is(err, http.ErrServerClosed)) {
		return errors.Wrap(err, "failed to start http server")
	}

	return nil
}

func (ht *HTTP) Shutdown(ctx context.Context) error {
	ht.locker.Lock()
	ht.shutdownInitiated = true
	ht.locker.Unlock()

	err := ht.server.Shutdown(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to shutdown http server")
	}

	return nil
}

func (ht *HTTP) isShuttingDown() bool {
	ht.locker.Lock()
	defer ht.locker.Unlock()
	return ht.shutdownInitiated
}

// Handler returns the router with all routes mounted.
func (ht *HTTP) Handler() http.Handler {
	return ht.server.Handler
}

type errResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal response")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(body)
	if err != nil {
		return errors.Wrap(err, "failed to write response")
	}

	return nil
}

type HandlerFuncErr func(w http.ResponseWriter, req *http.Request) error

// ErrorHandler responds with the status and public message of the error returned by fn.
func (ht *HTTP) ErrorHandler(fn HandlerFuncErr) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		status, message, _ := errors.HTTPStatusCodeMessage(err)
		_ = respondJSON(w, status, errResponse{Status: status, Message: message})

		// 4xx are client errors, only internal errors are logged
		if status >= http.StatusInternalServerError {
			logger.ErrWithStacktrace(err)
		}
	}
}

func chiURIPattern(router *chi.Mux, r *http.Request) string {
	// a fresh context, matching must not leave url params behind in the request's route context
	rctx := chi.NewRouteContext()
	if router.Match(rctx, r.Method, r.URL.Path) {
		return rctx.RoutePattern()
	}
	return "unmatched-path"
}

func newChiRouter(cfg *Config) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		apm.NewHTTPMiddleware(&apm.HTTPOpts{
			SkipPathPrefixes: []string{"/-/"},
			SpanName: func(req *http.Request) string {
				return fmt.Sprintf("%s %s", req.Method, chiURIPattern(router, req))
			},
			Labels: func(req *http.Request) []attribute.KeyValue {
				return []attribute.KeyValue{
					semconv.HTTPRoute(chiURIPattern(router, req)),
				}
			},
		}),
	)

	if cfg.EnableAccesslog {
		router.Use(middleware.Logger)
	}

	return router
}

func New(apis *api.API, cfg *Config) *HTTP {
	router := newChiRouter(cfg)
	ht := &HTTP{
		locker: &sync.Mutex{},
		apis:   apis,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
	ht.itemRoutes(router)

	return ht
}
