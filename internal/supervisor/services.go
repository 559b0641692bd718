// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// StartStopper matches the sync manager's lifecycle: Start spawns the
// loop and returns, Stop blocks until it drained.
type StartStopper interface {
	Start()
	Stop()
}

// SyncService adapts the Start/Stop lifecycle to suture's Serve.
type SyncService struct {
	manager StartStopper
}

// NewSyncService wraps the sync manager for supervision.
func NewSyncService(manager StartStopper) *SyncService {
	return &SyncService{manager: manager}
}

// Serve implements suture.Service: start, wait for cancellation, stop.
func (s *SyncService) Serve(ctx context.Context) error {
	s.manager.Start()
	<-ctx.Done()
	s.manager.Stop()
	return ctx.Err()
}

func (s *SyncService) String() string { return "sync-manager" }

// HTTPServer matches *http.Server's lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService adapts an HTTP server's blocking ListenAndServe to
// suture's context-aware Serve.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server for supervision.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. http.ErrServerClosed is expected on
// shutdown and converted to the context error.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return ctx.Err()
}

func (h *HTTPService) String() string { return "http-server" }
