package api

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/axiomesh/governor/core"
	"github.com/axiomesh/governor/metrics"
	"github.com/axiomesh/governor/voting"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const APIVersionV1 = "v1"

const (
	ConfigPattern            = "/config"
	InfoPattern              = "/info"
	ProposalsPattern         = "/proposals"
	ProposalsMultiplePattern = "/proposals/multiple"
	ReverseProposalsPattern  = "/proposals/reverse"
	ProposalCountPattern     = "/proposals/count"
	NextProposalIDPattern    = "/proposals/next_id"
	ProposalPattern          = "/proposals/{id:[0-9]+}"
	VotesPattern             = "/proposals/{id:[0-9]+}/votes"
	VotePattern              = "/proposals/{id:[0-9]+}/votes/{voter}"
	RationalePattern         = "/proposals/{id:[0-9]+}/rationale"
	ExecutePattern           = "/proposals/{id:[0-9]+}/execute"
	VetoPattern              = "/proposals/{id:[0-9]+}/veto"
	ClosePattern             = "/proposals/{id:[0-9]+}/close"
	MetricsPattern           = "/metrics"
)

// Clock tells which block a request runs at.
type Clock interface {
	Now(ctx context.Context) (voting.BlockInfo, error)
}

type Config struct {
	CORSOrigins []string
	// AccessLog receives combined log format lines when set.
	AccessLog io.Writer
	// MetricsHandler is served on /metrics when set.
	MetricsHandler http.Handler
	// Now is the wall clock signature expiries are checked against.
	Now func() time.Time
}

type Server struct {
	module  *core.Module
	clock   Clock
	metrics *metrics.APIMetrics
	logger  logrus.FieldLogger
	auth    *authenticator

	router  *mux.Router
	handler http.Handler
	server  *http.Server
}

func NewServer(module *core.Module, clock Clock, cfg Config, apiMetrics *metrics.APIMetrics, logger logrus.FieldLogger) *Server {
	if apiMetrics == nil {
		apiMetrics = metrics.NopAPIMetrics()
	}
	s := &Server{
		module:  module,
		clock:   clock,
		metrics: apiMetrics,
		logger:  logger,
		auth:    newAuthenticator(cfg.Now),
		router:  mux.NewRouter(),
	}
	s.routes(cfg)

	var h http.Handler = s.router
	if len(cfg.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(cfg.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut}),
			handlers.AllowedHeaders([]string{"Content-Type", "X-Requested-With", SignatureHeader, ExpiresHeader}),
		)(h)
	}
	if cfg.AccessLog != nil {
		h = handlers.CombinedLoggingHandler(cfg.AccessLog, h)
	}
	s.handler = h
	return s
}

func (s *Server) HandlerURLPattern(pattern string) string {
	return fmt.Sprintf("/%s%s", APIVersionV1, pattern)
}

func (s *Server) routes(cfg Config) {
	s.router.Use(s.recoverMiddleware, s.metricsMiddleware)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, NewDetailedStatusProblem(http.StatusNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path)))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, NewDetailedStatusProblem(http.StatusMethodNotAllowed, fmt.Sprintf("%s is not allowed on %s", r.Method, r.URL.Path)))
	})

	get := func(pattern string, h http.HandlerFunc) {
		s.router.HandleFunc(s.HandlerURLPattern(pattern), h).Methods(http.MethodGet)
	}
	// every mutating route is signed by its sender
	post := func(pattern string, h http.HandlerFunc) {
		s.router.HandleFunc(s.HandlerURLPattern(pattern), s.authenticated(h)).
			Methods(http.MethodPost, http.MethodPut).
			HeadersRegexp("Content-Type", "application/json")
	}

	get(ConfigPattern, s.GetConfigHandler)
	post(ConfigPattern, s.UpdateConfigHandler)
	get(InfoPattern, s.GetInfoHandler)

	get(ProposalsPattern, s.ListProposalsHandler)
	post(ProposalsPattern, s.ProposeHandler)
	post(ProposalsMultiplePattern, s.ProposeMultipleHandler)
	get(ReverseProposalsPattern, s.ReverseProposalsHandler)
	get(ProposalCountPattern, s.ProposalCountHandler)
	get(NextProposalIDPattern, s.NextProposalIDHandler)
	get(ProposalPattern, s.GetProposalHandler)

	get(VotesPattern, s.ListVotesHandler)
	post(VotesPattern, s.VoteHandler)
	get(VotePattern, s.GetVoteHandler)
	post(RationalePattern, s.UpdateRationaleHandler)

	post(ExecutePattern, s.ExecuteHandler)
	post(VetoPattern, s.VetoHandler)
	post(ClosePattern, s.CloseHandler)

	if cfg.MetricsHandler != nil {
		s.router.Handle(MetricsPattern, cfg.MetricsHandler).Methods(http.MethodGet)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Serve blocks answering requests on listen until Shutdown is called.
func (s *Server) Serve(listen string) error {
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", listen)
	}
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.WithField("listen", l.Addr().String()).Info("API server started")

	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		s.metrics.ObserveRequest(endpoint, r.Method, rec.status, begin)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.logger.WithFields(logrus.Fields{
					"path":  r.URL.Path,
					"panic": v,
				}).Error("Recover from panic")
				writeProblem(w, r, NewStatusProblem(http.StatusInternalServerError))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
