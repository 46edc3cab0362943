package app

import (
	"fmt"

	"github.com/shrimpsizemoose/allotter/internal/store"
	"github.com/shrimpsizemoose/allotter/internal/store/postgres"
	"github.com/shrimpsizemoose/allotter/internal/store/sqlite"
)

func NewStore(dsn string) (store.AllotmentStore, error) {
	cfg := store.DBConfig{DSN: dsn, Type: store.DetectType(dsn)}

	switch cfg.Type {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(cfg.DSN)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", dsn)
	}
}
