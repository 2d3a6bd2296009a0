package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"hl-delta-bot/internal/engine"

	"go.uber.org/zap"
)

// Controller is the engine surface the API exposes.
type Controller interface {
	Start()
	Stop(ctx context.Context) error
	Open(ctx context.Context, coin string) error
	Close(ctx context.Context, coin string) error
	Status(ctx context.Context) engine.Status
	IsRunning() bool
}

type Server struct {
	engine  Controller
	log     *zap.Logger
	httpSrv *http.Server
}

func NewServer(addr string, controller Controller, metricsHandler http.Handler, log *zap.Logger) *Server {
	s := &Server{engine: controller, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("POST /open/{coin}", s.handleOpen)
	mux.HandleFunc("POST /close/{coin}", s.handleClose)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start serves in the background until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	go func() {
		s.log.Info("api listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "running": s.engine.IsRunning()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status(r.Context()))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.engine.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Stop(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"running": false})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	coin := r.PathValue("coin")
	if err := s.engine.Open(r.Context(), coin); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coin": coin, "action": "open"})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	coin := r.PathValue("coin")
	if err := s.engine.Close(r.Context(), coin); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coin": coin, "action": "close"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
