// Package postgres connects to the MGI registry database, the authoritative
// source for how many CARs each municipality has on record.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zetta-ds/carsigef/internal/config"
	"github.com/zetta-ds/carsigef/internal/infrastructure/monitoring/logging"
	apperrors "github.com/zetta-ds/carsigef/pkg/errors"
)

// NewPool opens a pgx connection pool against the MGI database and verifies
// connectivity with a ping.
func NewPool(ctx context.Context, cfg config.MGIConfig, log logging.Logger) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfig, "mgi.dsn is not configured")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfig, "parse mgi dsn")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRegistryError, "connect to mgi database")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRegistryError, "ping mgi database")
	}

	log.Info("connected to mgi database", logging.Int("max_conns", int(poolCfg.MaxConns)))
	return pool, nil
}
