package cmd

import (
	"context"
	"fmt"

	"eventhub/config"
	"eventhub/db"
	"eventhub/postgres"
	"eventhub/service"
)

// openStore connects the configured backend and brings its schema up to date.
func openStore(ctx context.Context, c config.Database) (service.Store, error) {
	var (
		store service.Store
		err   error
	)

	switch c.Driver {
	case "sqlite":
		store, err = db.NewDB(c.DSN)
	case "postgres":
		store, err = postgres.New(ctx, c.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", c.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
