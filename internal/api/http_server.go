package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"advocat/internal/collection"
	"advocat/internal/config"
	"advocat/internal/metrics"
	"advocat/internal/models"
	"advocat/internal/remote"
	"advocat/internal/schedule"
	"advocat/internal/service"
	"advocat/internal/visitor"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ReadyCheck is one dependency probed by /readyz.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the components the gateway serves.
type Deps struct {
	Config   *config.Config
	Registry *visitor.Registry
	Catalog  *service.CatalogService
	Contacts *service.ContactService
	State    *service.StateService
	Schedule *schedule.Schedule
	Ready    []ReadyCheck
	Logger   *zerolog.Logger
}

// HTTPServer is the site gateway: one JSON endpoint per page or action of the site.
type HTTPServer struct {
	cfg      *config.Config
	registry *visitor.Registry
	catalog  *service.CatalogService
	contacts *service.ContactService
	state    *service.StateService
	schedule *schedule.Schedule
	ready    []ReadyCheck
	limiter  *ipLimiter
	log      zerolog.Logger
	now      func() time.Time

	handler http.Handler
	server  *http.Server
}

func NewHTTPServer(deps Deps) *HTTPServer {
	log := zerolog.Nop()
	if deps.Logger != nil {
		log = deps.Logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:      deps.Config,
		registry: deps.Registry,
		catalog:  deps.Catalog,
		contacts: deps.Contacts,
		state:    deps.State,
		schedule: deps.Schedule,
		ready:    deps.Ready,
		limiter:  newIPLimiter(deps.Config.Server.RateLimit),
		log:      log,
		now:      time.Now,
	}

	mux := http.NewServeMux()
	srv.routes(mux)

	var handler http.Handler = mux
	handler = srv.withVisitor(handler)
	handler = withCORS(deps.Config.Server.CORS)(handler)
	handler = srv.withAccessLog(handler)
	handler = withRequestID(handler)
	handler = otelhttp.NewHandler(handler, "advocat")
	srv.handler = handler

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", deps.Config.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	limited := s.limited

	s.handle(mux, "GET /{$}", s.handleHome)
	s.handle(mux, "POST /contact/form", limited(s.handleContact))
	s.handle(mux, "GET /booking", s.handleBooking)
	s.handle(mux, "POST /booking/draft", s.handleSetDraft)
	s.handle(mux, "DELETE /booking/draft", s.handleResetDraft)
	s.handle(mux, "GET /booking/slots", s.handleSlots)
	s.handle(mux, "POST /booking/form", limited(s.handleCreateBooking))
	s.handle(mux, "GET /confirmation", s.handleConfirmation)
	s.handle(mux, "POST /booking/panel/open", s.handlePanel(true))
	s.handle(mux, "POST /booking/panel/close", s.handlePanel(false))
	s.handle(mux, "GET /testimonials", s.handleTestimonials)
	s.handle(mux, "POST /testimonials", limited(s.handleCreateTestimonial))
	s.handle(mux, "POST /login", limited(s.handleLogin))
	s.handle(mux, "POST /logout", s.handleLogout)
	s.handle(mux, "POST /request-password", limited(s.handleRequestPassword))
	s.handle(mux, "GET /me", s.handleMe)
	s.handle(mux, "GET /legal-notices", s.handleLegalNotices)

	s.adminRoutes(mux)

	s.handle(mux, "GET /healthz", s.handleHealth)
	s.handle(mux, "GET /readyz", s.handleReady)
	if s.cfg.Monitoring.PrometheusEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	s.handle(mux, "/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// handle registers h and counts its responses under the route pattern.
func (s *HTTPServer) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.IncHTTP(pattern, fmt.Sprint(rec.status))
	})
}

func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("site gateway listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) visitor(r *http.Request) *visitor.Visitor {
	return s.registry.Get(r.Context(), visitorIDFromContext(r.Context()))
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.ready))
	code := http.StatusOK
	for _, c := range s.ready {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}
	writeJSON(w, code, map[string]any{"checks": checks})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// redirectHome answers a guarded or unauthorized request with a redirect to "/".
func redirectHome(w http.ResponseWriter) {
	w.Header().Set("Location", "/")
	writeJSON(w, http.StatusSeeOther, map[string]string{"redirect": "/"})
}

// writeFailure maps an error from a form or remote call to a response.
func (s *HTTPServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	var apiErr *remote.APIError
	switch {
	case errors.Is(err, remote.ErrUnauthorized):
		redirectHome(w)
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "validation failed", "fields": verr.Fields})
	case errors.Is(err, collection.ErrSearchUnsupported), errors.Is(err, errBadPicture):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "remote api timeout")
	case errors.As(err, &apiErr):
		code := apiErr.StatusCode
		if code < 400 || code >= 500 {
			code = http.StatusBadGateway
		}
		writeJSON(w, code, map[string]any{"error": "remote api rejected the request", "status": apiErr.StatusCode, "detail": apiErr.Body})
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusBadGateway, "remote api unavailable")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
