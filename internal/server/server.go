package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/qalam/internal/catalog/domain"
	"github.com/smallbiznis/qalam/internal/config"
	orderdomain "github.com/smallbiznis/qalam/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the HTTP surface for checkout and catalog browsing.
var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	orderSvc   orderdomain.Service
	catalogSvc catalogdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	OrderSvc   orderdomain.Service
	CatalogSvc catalogdomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("server"),
		orderSvc:   p.OrderSvc,
		catalogSvc: p.CatalogSvc,
	}
}

func registerRoutes(s *Server) {
	v1 := s.engine.Group("/v1")

	v1.GET("/templates", s.ListTemplates)
	v1.GET("/templates/:id", s.GetTemplate)
	v1.GET("/categories", s.ListCategories)

	v1.POST("/orders", s.CreateOrder)
	v1.GET("/orders", s.ListOrders)
	v1.GET("/orders/:id", s.GetOrder)
	v1.POST("/orders/:id/complete", s.CompleteOrder)
	v1.POST("/orders/:id/cancel", s.CancelOrder)
	v1.POST("/orders/:id/refund", s.RefundOrder)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
