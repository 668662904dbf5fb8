package routing

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Router registers handlers by route class on a gorilla/mux router. Panics
// become JSON 500s and every request is access-logged.
type Router struct {
	mux    *mux.Router
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := mux.NewRouter()
	m.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, Classify(req.URL.Path), http.StatusNotFound, "not_found", "not found")
	})
	m.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		WriteError(w, req, Classify(req.URL.Path), http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})
	return &Router{mux: m, logger: logger}
}

// Handle registers h for method on a mux path template such as
// "/payroll/api/settlements/{id}".
func (r *Router) Handle(rc RouteClass, method string, path string, h http.Handler) {
	r.mux.Handle(path, r.recoverer(rc, h)).Methods(method)
}

func (r *Router) recoverer(rc RouteClass, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("handler panic",
					zap.String("path", req.URL.Path),
					zap.String("method", req.Method),
					zap.String("trace_id", TraceID(req)),
					zap.String("panic", fmt.Sprint(rec)),
					zap.Stack("stack"),
				)
				WriteError(w, req, rc, http.StatusInternalServerError, "internal_error", "internal error")
			}
		}()
		h.ServeHTTP(w, req)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w}
	r.mux.ServeHTTP(rec, req)

	status := rec.status
	if status == 0 {
		status = http.StatusOK
	}
	r.logger.Info("http request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", status),
		zap.Duration("duration", time.Since(start)),
		zap.String("trace_id", TraceID(req)),
	)
}
