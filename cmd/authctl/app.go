package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/information-sharing-networks/authcore/internal/auth"
	"github.com/information-sharing-networks/authcore/internal/config"
	"github.com/information-sharing-networks/authcore/internal/logger"
	"github.com/information-sharing-networks/authcore/internal/protocol"
	"github.com/information-sharing-networks/authcore/internal/session"
	"github.com/information-sharing-networks/authcore/internal/vault"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	vault   *vault.Vault
	service *auth.AuthService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}
	log := logger.InitLogger(logger.ParseLogLevel(cfg.LogLevel), cfg.Environment)

	backend, err := vault.NewBackend(ctx, vault.BackendConfig{
		Driver:     cfg.VaultDriver,
		SQLitePath: cfg.VaultSQLitePath,
		Redis: &vault.RedisConfig{
			Addr:     cfg.VaultRedisAddr,
			Password: cfg.VaultRedisPassword,
			DB:       cfg.VaultRedisDB,
			Prefix:   cfg.VaultRedisPrefix,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open vault storage: %w", err)
	}

	var keystore vault.Keystore
	if cfg.VaultKey != "" {
		keystore, err = vault.NewStaticKeystore(cfg.VaultKey)
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
	} else {
		keystore = vault.NewFileKeystore(cfg.VaultKeyFile)
	}

	v, err := vault.New(ctx, vault.NewAEADProvider(keystore, backend), backend, vault.Options{
		Name:                   cfg.VaultName,
		AllowPlaintextFallback: cfg.VaultAllowPlaintextFallback,
		Logger:                 log,
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	transport := protocol.NewHTTPTransport(protocol.HTTPTransportOptions{
		Timeout:   cfg.RequestTimeout,
		RateLimit: cfg.RateLimitRPS,
		RateBurst: cfg.RateLimitBurst,
		Logger:    log,
	})
	service := auth.NewAuthService(v, protocol.NewClient(cfg.APIBaseURL, transport), auth.Options{
		MaxConcurrent: cfg.MaxConcurrentRequests,
		Logger:        log,
		StateSink: func(s session.State) {
			log.Debug("auth state", slog.String("state", s.String()))
		},
	})

	log.Debug("authctl configured",
		slog.String("api", cfg.APIBaseURL),
		slog.String("vault_driver", cfg.VaultDriver),
		slog.Bool("vault_degraded", v.Degraded()),
	)

	return &app{cfg: cfg, logger: log, vault: v, service: service}, nil
}

func (a *app) Close() {
	if err := a.vault.Close(); err != nil {
		a.logger.Warn("closing vault", slog.String("error", err.Error()))
	}
}
