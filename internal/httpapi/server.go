// Package httpapi exposes the controller over HTTP: live status for the
// polling UI, operator commands, and the recorded vitals trend.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"codeberg.org/veldt/ventctl/internal/control"
	"codeberg.org/veldt/ventctl/internal/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type Server struct {
	ctl     *control.Controller
	handler http.Handler
	srv     *http.Server
}

func NewServer(addr string, ctl *control.Controller) *Server {
	s := &Server{ctl: ctl}

	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/start", s.handleStart).Methods(http.MethodGet)
	r.HandleFunc("/set_zero", s.handleStop).Methods(http.MethodGet)
	r.HandleFunc("/set_spo2", s.handleSetSaturation).Methods(http.MethodGet)
	r.HandleFunc("/set_auto", s.handleSetAuto).Methods(http.MethodGet)
	r.HandleFunc("/set_bpm", s.handleSetRate).Methods(http.MethodGet)
	r.HandleFunc("/get_data", s.handleGetData).Methods(http.MethodGet)

	s.handler = handlers.RecoveryHandler(
		handlers.PrintRecoveryStack(false),
		handlers.RecoveryLogger(recoveryLogger{}),
	)(handlers.LoggingHandler(accessLogWriter{}, r))

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Handler returns the fully wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) ListenAndServe() error {
	logger.Info().Str("addr", s.srv.Addr).Msg("HTTP API listening")

	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests with a bounded grace period.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.srv.Shutdown(ctx)
}

// accessLogWriter feeds the Apache-format access log lines from
// gorilla/handlers into the structured logger.
type accessLogWriter struct{}

func (accessLogWriter) Write(p []byte) (int, error) {
	logger.Debug().Msg(strings.TrimSpace(string(p)))

	return len(p), nil
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logger.Error().Msgf("Handler panic recovered: %v", v)
}
