package graceful

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mikespro21/ARC/pkg/logger"
)

// Shutdowner is a component stopped before the HTTP server
type Shutdowner interface {
	Shutdown(timeout time.Duration) error
}

// ShutdownFunc adapts a plain function to Shutdowner
type ShutdownFunc func(timeout time.Duration) error

func (f ShutdownFunc) Shutdown(timeout time.Duration) error {
	return f(timeout)
}

type ShutdownManager struct {
	server      *http.Server
	shutdowners []Shutdowner
	closers     []func() error
	timeout     time.Duration
	logger      *logger.Logger
}

func NewShutdownManager(server *http.Server, logger *logger.Logger) *ShutdownManager {
	return &ShutdownManager{
		server:      server,
		shutdowners: make([]Shutdowner, 0),
		timeout:     30 * time.Second,
		logger:      logger,
	}
}

// Register adds a component stopped in registration order
func (sm *ShutdownManager) Register(s Shutdowner) {
	sm.shutdowners = append(sm.shutdowners, s)
}

// OnClose adds a resource closed after the server has drained
func (sm *ShutdownManager) OnClose(fn func() error) {
	sm.closers = append(sm.closers, fn)
}

// WaitForShutdown blocks until SIGINT/SIGTERM or ctx is done, then shuts down
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case <-ctx.Done():
	}

	sm.Shutdown()
}

// Shutdown stops registered components, drains the HTTP server and closes resources
func (sm *ShutdownManager) Shutdown() {
	sm.logger.Info("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	// Shutdown registered components
	for _, s := range sm.shutdowners {
		if err := s.Shutdown(sm.timeout); err != nil {
			sm.logger.Warn("Component shutdown error", "error", err)
		}
	}

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.Error("Server forced shutdown", "error", err)
		}
	}

	for _, closeFn := range sm.closers {
		if err := closeFn(); err != nil {
			sm.logger.Warn("Resource close error", "error", err)
		}
	}

	sm.logger.Info("Shutdown complete")
}
