package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"
)

type HTTPServerConfig struct {
	ListenAddr  string
	EnablePprof bool
	Log         *slog.Logger

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

type Server struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	srv     *http.Server
	handler *Handler
	auth    *OperatorAuth
}

func New(cfg *HTTPServerConfig, handler *Handler, auth *OperatorAuth) (srv *Server, err error) {
	if auth == nil {
		auth = NewOperatorAuth(nil, cfg.Log)
	}
	srv = &Server{
		cfg:     cfg,
		log:     cfg.Log,
		handler: handler,
		auth:    auth,
	}
	srv.isReady.Store(true)

	if !auth.Enabled() {
		srv.log.Warn("No operators configured, provisioning API is unauthenticated")
	}

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv, nil
}

// Router returns the HTTP handler of the server.
func (srv *Server) Router() http.Handler {
	return srv.srv.Handler
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()

	mux.With(srv.httpLogger, srv.whenReady, srv.auth.Middleware).Post("/api/v1/provision/{network}", srv.handler.HandleProvision)
	mux.With(srv.httpLogger).Get("/api/v1/manifests/{network}", srv.handler.HandleManifest)
	mux.With(srv.httpLogger).Get("/api/v1/status", srv.handler.HandleStatus)

	// Health and diagnostic endpoints
	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

// whenReady refuses new runs while the server is draining.
func (srv *Server) whenReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !srv.isReady.Load() {
			http.Error(w, "Server is draining", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthStatus struct {
	Status string `json:"status"`
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, srv.log, http.StatusOK, healthStatus{"alive"})
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		writeJSON(w, srv.log, http.StatusServiceUnavailable, healthStatus{"not ready"})
		return
	}
	writeJSON(w, srv.log, http.StatusOK, healthStatus{"ready"})
}

// handleDrain marks the server not ready so load balancers stop routing to it.
// In-flight runs continue; new runs are refused.
func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		writeJSON(w, srv.log, http.StatusOK, healthStatus{"already draining"})
		return
	}

	srv.log.Info("Server marked as not ready", slog.Bool("runInFlight", srv.handler.Status().Running))
	if srv.cfg.DrainDuration > 0 {
		time.AfterFunc(srv.cfg.DrainDuration, func() {
			srv.log.Info("Drain period completed")
		})
	}

	writeJSON(w, srv.log, http.StatusOK, healthStatus{"draining"})
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		writeJSON(w, srv.log, http.StatusOK, healthStatus{"already ready"})
		return
	}

	srv.log.Info("Server marked as ready")
	writeJSON(w, srv.log, http.StatusOK, healthStatus{"ready"})
}

func (srv *Server) RunInBackground() {
	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for an in-flight run to finish.
func (srv *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}

	srv.handler.Wait()
}
