package database

import (
	"context"

	"github.com/quocanhngo/talkhub/internal/config"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/repository"
	"github.com/quocanhngo/talkhub/internal/repository/mongostore"
)

// OpenStore connects the backend named by cfg.Driver, brings its schema or
// indexes up to date and returns the repositories. The returned func releases
// the connection.
func OpenStore(ctx context.Context, cfg config.DBConfig, env string) (*repository.Store, func(), error) {
	if cfg.Driver == "mongo" {
		client, db, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warnf("mongo disconnect: %v", err)
			}
		}
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			closeFn()
			return nil, nil, err
		}
		logger.Infof("Connected to MongoDB (%s)", db.Name())
		return mongostore.NewStore(db), closeFn, nil
	}

	db, err := Open(cfg, env)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := Migrate(db, cfg); err != nil {
		closeFn()
		return nil, nil, err
	}
	logger.Infof("Connected to %s, schema up to date", cfg.Driver)
	return repository.NewStore(db), closeFn, nil
}
