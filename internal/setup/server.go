package setup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/robalyx/gatekeeper/internal/bot/utils"
	"go.uber.org/zap"
)

const (
	selfPingInterval  = 2 * time.Minute
	selfPingTimeout   = 5 * time.Second
	selfPingUserAgent = "GatekeeperBot-KeepAlive/1.0"
	shutdownTimeout   = 5 * time.Second
)

// ReadyFunc reports whether the gateway connection is up.
type ReadyFunc func() bool

// KeepAliveServer answers uptime probes so hosting platforms keep the process running.
type KeepAliveServer struct {
	server  *http.Server
	ready   ReadyFunc
	started time.Time
	logger  *zap.Logger
}

// NewKeepAliveServer creates the keep-alive server listening on port.
func NewKeepAliveServer(port int, ready ReadyFunc, logger *zap.Logger) *KeepAliveServer {
	s := &KeepAliveServer{
		ready:   ready,
		started: time.Now(),
		logger:  logger.Named("keepalive"),
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	return s
}

// Handler returns the router serving the keep-alive endpoints.
func (s *KeepAliveServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Discord Bot is running!"))
	})
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	r.Get("/health", s.health)
	return r
}

func (s *KeepAliveServer) health(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	status := "degraded"
	if s.ready != nil && s.ready() {
		status = "ok"
	}

	// Always 200 so uptime monitors keep the instance alive while reconnecting
	s.writeJSON(w, map[string]any{
		"status":    status,
		"uptime":    utils.FormatUptime(time.Since(s.started)),
		"memory":    utils.FormatMegabytes(mem.HeapInuse),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *KeepAliveServer) writeJSON(w http.ResponseWriter, body map[string]any) {
	data, err := sonic.Marshal(body)
	if err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Run serves until ctx is cancelled.
func (s *KeepAliveServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Keep-alive server listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("keep-alive server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down keep-alive server: %w", err)
	}
	return nil
}

// SelfPinger periodically requests the public /ping endpoint of the app.
type SelfPinger struct {
	client   *http.Client
	target   string
	interval time.Duration
	logger   *zap.Logger
}

// NewSelfPinger creates a pinger for appURL. An empty appURL yields nil.
func NewSelfPinger(appURL string, logger *zap.Logger) *SelfPinger {
	if appURL == "" {
		return nil
	}

	return &SelfPinger{
		client:   &http.Client{Timeout: selfPingTimeout},
		target:   strings.TrimRight(appURL, "/") + "/ping",
		interval: selfPingInterval,
		logger:   logger.Named("selfping"),
	}
}

// WithInterval overrides the ping interval.
func (p *SelfPinger) WithInterval(interval time.Duration) *SelfPinger {
	p.interval = interval
	return p
}

// Run pings until ctx is cancelled. Failures are only logged.
func (p *SelfPinger) Run(ctx context.Context) error {
	p.logger.Info("Self-ping enabled",
		zap.String("target", p.target),
		zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Ping(ctx)
		}
	}
}

// Ping performs a single request and reports whether it succeeded.
func (p *SelfPinger) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.target, nil)
	if err != nil {
		p.logger.Warn("Failed to build self-ping request", zap.Error(err))
		return false
	}
	req.Header.Set("User-Agent", selfPingUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Warn("Self-ping failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Warn("Self-ping returned unexpected status", zap.Int("status", resp.StatusCode))
		return false
	}

	p.logger.Debug("Self-ping succeeded")
	return true
}
