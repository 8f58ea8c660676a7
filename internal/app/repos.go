package app

import (
	"context"
	"fmt"

	"github.com/yungbote/finpulse-backend/internal/data/db"
	financerepo "github.com/yungbote/finpulse-backend/internal/data/repos/finance"
	"github.com/yungbote/finpulse-backend/internal/data/repos/mongostore"
	"github.com/yungbote/finpulse-backend/internal/pkg/logger"
)

type Repos struct {
	Raw         financerepo.RawProfileRepo
	Profiles    financerepo.FinanceProfileRepo
	Suggestions financerepo.SuggestionHistoryRepo

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping checks that the configured store is reachable.
func (r *Repos) Ping(ctx context.Context) error {
	if r == nil || r.ping == nil {
		return nil
	}
	return r.ping(ctx)
}

func (r *Repos) Close(ctx context.Context) error {
	if r == nil || r.close == nil {
		return nil
	}
	return r.close(ctx)
}

func wireRepos(ctx context.Context, log *logger.Logger, cfg Config) (*Repos, error) {
	log.Info("Wiring repos...", "driver", cfg.StoreDriver)
	switch cfg.StoreDriver {
	case StoreMongo:
		store, err := mongostore.Connect(ctx, log, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return nil, err
		}
		return &Repos{
			Raw:         mongostore.NewRawProfileRepo(store, log),
			Profiles:    mongostore.NewFinanceProfileRepo(store, log),
			Suggestions: mongostore.NewSuggestionHistoryRepo(store, log),
			ping:        store.Ping,
			close:       store.Close,
		}, nil

	case StorePostgres, StoreSQLite:
		var (
			svc *db.Service
			err error
		)
		if cfg.StoreDriver == StoreSQLite {
			svc, err = db.NewSQLiteService(log, cfg.SQLitePath)
		} else {
			svc, err = db.NewPostgresService(log, cfg.Postgres)
		}
		if err != nil {
			return nil, err
		}
		if err := svc.AutoMigrateAll(); err != nil {
			_ = svc.Close()
			return nil, err
		}
		gdb := svc.DB()
		return &Repos{
			Raw:         financerepo.NewRawProfileRepo(gdb, log),
			Profiles:    financerepo.NewFinanceProfileRepo(gdb, log),
			Suggestions: financerepo.NewSuggestionHistoryRepo(gdb, log),
			ping:        svc.Ping,
			close:       func(context.Context) error { return svc.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
