package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/config"
)

// OpenDocumentStore opens the store selected by cfg.Database.Driver. The
// returned pool is non-nil only for the postgres driver.
func OpenDocumentStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (DocumentStore, *sqlx.DB, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := NewConnection(cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		store := NewPostgresDocumentStore(db)
		if cfg.Database.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				db.Close()
				return nil, nil, err
			}
		}
		return store, db, nil

	case "firestore":
		store, err := NewFirestoreDocumentStore(ctx, cfg.Firebase)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case "memory":
		logger.Warn("Using in-memory document store, data is lost on restart")
		return NewMemoryDocumentStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
