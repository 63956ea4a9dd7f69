// Package service exposes the registry and share-node HTTP surfaces.
// Both are plain net/http muxes behind per-category rate limiting; every
// failure is a structured models.Error JSON document.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nodemesh/datashare/config"
)

// Version is reported by GET /version on both surfaces.
const Version = "1.0.0"

const shutdownGrace = 5 * time.Second

func buildRateLimiters(logger *slog.Logger, cfg config.RateLimiters) map[string]*rate.Limiter {
	limiters := make(map[string]*rate.Limiter)
	rlLogger := logger.With("component", "rate-limiter")

	for category, rlConfig := range map[string]config.RateLimiterConfig{
		"nodes":   cfg.Nodes,
		"share":   cfg.Share,
		"consume": cfg.Consume,
		"default": cfg.Default,
	} {
		if rlConfig.Limit <= 0 {
			continue
		}
		limiters[category] = rate.NewLimiter(rate.Limit(rlConfig.Limit), rlConfig.Burst)
		rlLogger.Info("Initialized rate limiter", "category", category, "limit", rlConfig.Limit, "burst", rlConfig.Burst)
	}
	return limiters
}

func rateLimitMiddleware(logger *slog.Logger, limiters map[string]*rate.Limiter, category string, next http.Handler) http.Handler {
	limiter, ok := limiters[category]
	if !ok {
		limiter, ok = limiters["default"]
		if !ok {
			logger.Warn("No rate limiter configured for category and no default limiter present", "category", category)
			return next
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			logger.Warn("Rate limit exceeded", "category", category, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// serve blocks until the context is cancelled or the listener fails.
func serve(ctx context.Context, logger *slog.Logger, binding string, tlsCfg config.TLS, mux *http.ServeMux) {
	srv := &http.Server{
		Addr:    binding,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	if tlsCfg.Cert != "" && tlsCfg.Key != "" {
		logger.Info("Starting HTTPS server", "listen_addr", binding)
		if err := srv.ListenAndServeTLS(tlsCfg.Cert, tlsCfg.Key); err != http.ErrServerClosed {
			logger.Error("HTTPS server error", "error", err)
		}
		return
	}

	logger.Info("TLS cert or key not specified in config. Starting HTTP server (insecure).", "listen_addr", binding)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error("HTTP server error", "error", err)
	}
}
