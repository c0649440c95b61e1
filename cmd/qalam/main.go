package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/qalam/internal/catalog"
	"github.com/smallbiznis/qalam/internal/clock"
	"github.com/smallbiznis/qalam/internal/config"
	"github.com/smallbiznis/qalam/internal/coupon"
	"github.com/smallbiznis/qalam/internal/docstore"
	"github.com/smallbiznis/qalam/internal/logger"
	"github.com/smallbiznis/qalam/internal/migration"
	obsmetrics "github.com/smallbiznis/qalam/internal/observability/metrics"
	"github.com/smallbiznis/qalam/internal/order"
	"github.com/smallbiznis/qalam/internal/outbox"
	"github.com/smallbiznis/qalam/internal/pricing"
	"github.com/smallbiznis/qalam/internal/server"
	"github.com/smallbiznis/qalam/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		obsmetrics.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		docstore.Module,

		// Functional domains
		catalog.Module,
		coupon.Module,
		pricing.Module,
		order.Module,
		outbox.Module,

		// HTTP surface
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
