package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"freight-dashboard/internal/config"
)

const maxHookTimeout = 10 * time.Second

// ShutdownHook releases one collaborator of the dashboard, such as the
// rate limiter sweep or the result cache connection.
type ShutdownHook struct {
	Name  string
	Close func(ctx context.Context) error
}

// GracefulServer runs the dashboard's HTTP server and tears its
// collaborators down when the process is asked to stop.
type GracefulServer struct {
	server  *http.Server
	logger  *slog.Logger
	config  *config.Config
	startup []any

	mu    sync.Mutex
	hooks []ShutdownHook
}

func NewGracefulServer(server *http.Server, logger *slog.Logger, config *config.Config) *GracefulServer {
	return &GracefulServer{
		server: server,
		logger: logger,
		config: config,
	}
}

// WithStartupFields adds key/value pairs, such as the dataset source and
// record count, to the startup log line.
func (gs *GracefulServer) WithStartupFields(args ...any) *GracefulServer {
	gs.startup = append(gs.startup, args...)
	return gs
}

func (gs *GracefulServer) RegisterShutdownHook(name string, fn func(ctx context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.hooks = append(gs.hooks, ShutdownHook{Name: name, Close: fn})
}

// ListenAndServe serves until the server fails or SIGINT/SIGTERM arrives.
func (gs *GracefulServer) ListenAndServe() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	return gs.serve(gs.server.ListenAndServe, stop)
}

func (gs *GracefulServer) serve(listen func() error, stop <-chan os.Signal) error {
	failed := make(chan error, 1)
	go func() {
		attrs := append([]any{
			"addr", gs.server.Addr,
			"read_timeout", gs.config.Server.ReadTimeout,
			"write_timeout", gs.config.Server.WriteTimeout,
		}, gs.startup...)
		gs.logger.Info("serving lead dashboard", attrs...)
		failed <- listen()
	}()

	select {
	case err := <-failed:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-stop:
		gs.logger.Info("shutdown signal received", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), gs.config.Server.ShutdownTimeout)
		defer cancel()
		return gs.shutdown(ctx)
	}
}

// shutdown drains HTTP connections before any hook runs, then runs the
// hooks concurrently.
func (gs *GracefulServer) shutdown(ctx context.Context) error {
	start := time.Now()
	gs.logger.Info("draining connections", "timeout", gs.config.Server.ShutdownTimeout)
	httpErr := gs.server.Shutdown(ctx)
	if httpErr != nil {
		gs.logger.Error("HTTP server shutdown failed", "error", httpErr)
		httpErr = fmt.Errorf("HTTP server shutdown failed: %w", httpErr)
	}

	gs.mu.Lock()
	hooks := append([]ShutdownHook(nil), gs.hooks...)
	gs.mu.Unlock()

	hookTimeout := min(maxHookTimeout, gs.config.Server.ShutdownTimeout)
	errs := make([]error, len(hooks))
	var wg sync.WaitGroup
	for i, hook := range hooks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hookCtx, cancel := context.WithTimeout(ctx, hookTimeout)
			defer cancel()

			if err := hook.Close(hookCtx); err != nil {
				gs.logger.Error("shutdown hook failed", "hook", hook.Name, "error", err)
				errs[i] = fmt.Errorf("close %s: %w", hook.Name, err)
				return
			}
			gs.logger.Debug("shutdown hook completed", "hook", hook.Name)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		gs.logger.Warn("shutdown timeout exceeded, forcing exit", "elapsed", time.Since(start))
		return ctx.Err()
	}

	err := errors.Join(append([]error{httpErr}, errs...)...)
	if err == nil {
		gs.logger.Info("graceful shutdown completed", "hooks", len(hooks), "elapsed", time.Since(start))
	}
	return err
}
