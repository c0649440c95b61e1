package docstore

import (
	"context"
	"time"

	"github.com/smallbiznis/qalam/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewMongoClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.DocstoreURI))
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Disconnect(ctx)
		},
	})

	log.Info("document store connected", zap.String("database", cfg.DocstoreDatabase))
	return client, nil
}

func NewDatabase(client *mongo.Client, cfg config.Config) *mongo.Database {
	return client.Database(cfg.DocstoreDatabase)
}

func provideStore(db *mongo.Database, log *zap.Logger) Store {
	return NewMongoStore(db, log)
}

// Module wires the MongoDB-backed document store client.
var Module = fx.Module("docstore",
	fx.Provide(NewMongoClient),
	fx.Provide(NewDatabase),
	fx.Provide(provideStore),
)
