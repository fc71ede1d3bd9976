package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mint-desk/pkg/api"
	"mint-desk/pkg/clients/firebase"
	"mint-desk/pkg/config"
	"mint-desk/pkg/store"
	"mint-desk/pkg/store/postgres"
	"mint-desk/pkg/store/sqlite"
)

var _ api.ReadinessChecker = (*postgres.Store)(nil)

// openCollection connects the store backend selected by MINT_DESK_STORE.
func openCollection(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Collection, error) {
	switch cfg.StoreDriver {
	case config.DriverFirebase:
		// streaming requests stay open, so no overall client timeout
		return firebase.NewClient(cfg.FirebaseDatabaseURL, cfg.FirebaseAuthToken, &http.Client{}, log), nil
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		s, err := postgres.Connect(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
