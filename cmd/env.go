package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/opengov-in/mgnrega-dashboard/internal/mgnrega"
	"github.com/opengov-in/mgnrega-dashboard/internal/store"
	"github.com/opengov-in/mgnrega-dashboard/pkg/datagov"
	"github.com/opengov-in/mgnrega-dashboard/pkg/geocode"
)

// env holds the wired application components shared by the commands.
type env struct {
	Service   *mgnrega.Service
	Geocoder  *geocode.Client
	snapshots store.Store
}

func (e *env) Close() {
	if e.snapshots != nil {
		if err := e.snapshots.Close(); err != nil {
			zap.L().Warn("close snapshot store", zap.Error(err))
		}
	}
}

// initEnv builds the query pipeline from config. A missing API key is not an
// error here: the service is still constructed and every request reports the
// misconfiguration explicitly.
func initEnv(ctx context.Context) (*env, error) {
	var client datagov.Client
	if cfg.DataGov.Configured() {
		client = datagov.NewClient(
			cfg.DataGov.Key,
			cfg.DataGov.ResourceID,
			datagov.WithBaseURL(cfg.DataGov.BaseURL),
			datagov.WithRateLimit(rate.Limit(cfg.DataGov.RatePerSec), cfg.DataGov.RatePerSec),
		)
	} else {
		zap.L().Warn("data.gov.in credentials missing; upstream queries disabled")
	}

	snapshots, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	svc := mgnrega.NewService(mgnrega.Options{
		Client:       client,
		Snapshots:    snapshots,
		DefaultState: cfg.Cache.DefaultState,
		PageSize:     cfg.Cache.PageSize,
		MaxPages:     cfg.Cache.MaxPages,
		Lookback:     cfg.Cache.LookbackPeriods,
		QueryTTL:     cfg.Cache.QueryTTL(),
		MonthlyTTL:   cfg.Cache.MonthlyTTL(),
	})

	geo := geocode.New(
		geocode.WithBaseURL(cfg.Geocode.BaseURL),
		geocode.WithUserAgent(cfg.Geocode.UserAgent),
	)

	return &env{Service: svc, Geocoder: geo, snapshots: snapshots}, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// cleanupExpired deletes stale snapshots on an interval so the store does not
// grow without bound.
func cleanupExpired(ctx context.Context, snapshots store.Store, every time.Duration) {
	if snapshots == nil {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := snapshots.DeleteExpired(ctx)
			if err != nil {
				zap.L().Warn("snapshot cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Info("snapshot cleanup", zap.Int("deleted", n))
			}
		}
	}
}
