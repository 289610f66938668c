package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"amequeue/internal/logging"
)

const maxCallbackBody = 1 << 20

// callbackServer is the endpoint the encoder posts job notifications to.
// Notifications are informational: they are logged and acknowledged, and job
// state is still driven by polling.
type callbackServer struct {
	bind   string
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

func newCallbackServer(bind string, logger *slog.Logger) *callbackServer {
	srv := &callbackServer{
		bind:   strings.TrimSpace(bind),
		logger: logging.NewComponentLogger(logger, "callback"),
	}
	srv.server = &http.Server{
		Handler:           http.HandlerFunc(srv.handle),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *callbackServer) listen() error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("callback listen: %w", err)
	}
	s.listener = listener
	return nil
}

func (s *callbackServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *callbackServer) serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()
	s.logger.Info("callback listener ready", logging.String("address", s.address()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("callback server: %w", err)
	case <-ctx.Done():
		s.close()
		return nil
	}
}

func (s *callbackServer) close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
	}
}

func (s *callbackServer) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		s.logger.Debug("callback body read failed", logging.Error(err))
	}
	s.logger.Debug("encoder notification received",
		logging.String("method", r.Method),
		logging.String("path", r.URL.Path),
		logging.String("remote", r.RemoteAddr),
		logging.String("body", string(body)),
		logging.String(logging.FieldEventType, "encoder_callback"),
	)
	w.WriteHeader(http.StatusOK)
}
