// Package api exposes the gate and the school directory over JSON/HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/tunaaoguzhann/schoolgate/core"
	"github.com/tunaaoguzhann/schoolgate/directory"
	"github.com/tunaaoguzhann/schoolgate/logging"
)

type Server struct {
	auth       core.Authority
	channel    core.Channel
	codeLength int
	gates      *GateRegistry
	grants     *Grants
	registry   *directory.Registry
	imageDir   string
	maxUpload  int64
}

// Options wires a Server. ImageDir is served under /images/ when set.
type Options struct {
	Authority  core.Authority
	Channel    core.Channel
	CodeLength int
	Gates      *GateRegistry
	Grants     *Grants
	Registry   *directory.Registry
	ImageDir   string
	MaxUpload  int64
}

func NewServer(opts Options) *Server {
	s := &Server{
		auth:       opts.Authority,
		channel:    opts.Channel,
		codeLength: opts.CodeLength,
		gates:      opts.Gates,
		grants:     opts.Grants,
		registry:   opts.Registry,
		imageDir:   opts.ImageDir,
		maxUpload:  opts.MaxUpload,
	}
	if s.codeLength == 0 {
		s.codeLength = core.DefaultCodeLength
	}
	if s.gates == nil {
		s.gates = NewGateRegistry()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = directory.DefaultMaxImageBytes
	}
	return s
}

func (s *Server) Gates() *GateRegistry { return s.gates }

// Router builds the chi routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/gates", func(gr chi.Router) {
		gr.Post("/", s.handleCreateGate)
		gr.Get("/{id}", s.handleGateStatus)
		gr.Post("/{id}/resend", s.handleResend)
		gr.Post("/{id}/submit", s.handleSubmit)
	})

	r.Get("/schools", s.handleListSchools)
	r.With(requireGrant(s.grants, ActionAddSchool)).Post("/schools", s.handleAddSchool)

	if s.imageDir != "" {
		r.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(http.Dir(s.imageDir))))
	}
	return r
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}
