// Package bootstrap is the composition root: it turns a Config into a ready
// Terminal with every collaborator wired.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"posterminal/internal/config"
	"posterminal/internal/infra"
	"posterminal/internal/repository"
	"posterminal/internal/service"
	"posterminal/internal/terminal"

	"github.com/rs/zerolog/log"
)

// New wires logger, archive, cache, backend client and services. Redis and
// postgres are optional; without DATABASE_URL the archive lives in memory.
// The returned cleanup releases every opened connection.
func New(ctx context.Context, cfg *config.Config) (*terminal.Terminal, func(), error) {
	infra.SetupLogger(cfg.Env, cfg.LogLevel)

	if cfg.LocationID <= 0 {
		return nil, nil, errors.New("LOCATION_ID must be set")
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	archive := repository.NewMemoryZReportRepository()
	if cfg.DatabaseURL != "" {
		db, err := infra.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			closers = append(closers, func() { _ = sqlDB.Close() })
		}
		archive = repository.NewZReportRepository(db)
	} else {
		log.Warn().Msg("DATABASE_URL not set, z-reports are kept in memory")
	}

	var cache service.LastClosedCache
	if cfg.RedisURL != "" {
		rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			// The cache only serves offline display.
			log.Warn().Err(err).Msg("redis unavailable, last closed session cache disabled")
		} else {
			closers = append(closers, func() { _ = rdb.Close() })
			cache = infra.NewSessionCache(rdb, cfg.LastClosedCacheTTL)
		}
	}

	var tokens *infra.DeviceTokenSource
	if cfg.DeviceSecret != "" {
		var err error
		tokens, err = infra.NewDeviceTokenSource(cfg.DeviceSecret, cfg.TerminalID, cfg.LocationID, cfg.DeviceTokenTTL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
	} else {
		log.Warn().Msg("DEVICE_SECRET not set, backend requests are unauthenticated")
	}

	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		Name:             "backend",
		FailureThreshold: cfg.CBFailureThreshold,
		SuccessThreshold: cfg.CBSuccessThreshold,
		OpenTimeout:      cfg.CBOpenTimeout,
	})
	backend := infra.NewBackendClient(cfg.BackendURL, cfg.BackendTimeout, cb, tokens)

	sessions := service.NewSessionManager(backend, cfg.LocationID, service.SessionOptions{
		Cache:      cache,
		Location:   cfg.Location(),
		CutoffHour: cfg.BusinessDayCutoffHour,
	})

	term := terminal.New(terminal.Deps{
		Sessions:       sessions,
		Payments:       service.NewPaymentService(sessions, backend, backend),
		Reports:        service.NewReportService(sessions, backend, archive),
		Categories:     service.NewCategoryService(backend, cfg.SimilarityThreshold, cfg.SearchDebounce),
		Catalog:        backend,
		SearchDebounce: cfg.SearchDebounce,
	})

	log.Info().
		Int("location_id", cfg.LocationID).
		Str("terminal_id", cfg.TerminalID).
		Str("backend", cfg.BackendURL).
		Msg("terminal ready")
	return term, cleanup, nil
}
