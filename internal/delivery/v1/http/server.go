package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DRSN-tech/go-recommender/internal/cfg"
)

const (
	readHeaderTimeout = 5 * time.Second
	maxHeaderBytes    = 1 << 20
)

// Server - HTTP-сервер API рекомендаций.
type Server struct {
	srv *http.Server
}

func NewServer(handler http.Handler, httpCfg *cfg.HTTPConfig) *Server {
	srv := &http.Server{
		Addr:              ":" + httpCfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       httpCfg.ReadTimeout,
		WriteTimeout:      httpCfg.WriteTimeout,
		IdleTimeout:       httpCfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
	return &Server{srv: srv}
}

// Run блокируется до остановки сервера. Штатная остановка через Stop ошибкой не считается.
func (s *Server) Run() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop дожидается завершения активных запросов, пока не истечёт ctx.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
