package migration

import (
	"github.com/smallbiznis/qalam/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Module applies the embedded schema on startup. Only the postgres dialect is
// migrated here; tests create their schema with AutoMigrate.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		return RunMigrations(sqlDB)
	}),
)
