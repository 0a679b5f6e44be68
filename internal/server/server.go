package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/bluemoon/internal/apartment"
	"github.com/smallbiznis/bluemoon/internal/authorization"
	"github.com/smallbiznis/bluemoon/internal/clock"
	"github.com/smallbiznis/bluemoon/internal/config"
	"github.com/smallbiznis/bluemoon/internal/extrafee"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
	"github.com/smallbiznis/bluemoon/internal/invoice"
	invoicedomain "github.com/smallbiznis/bluemoon/internal/invoice/domain"
	"github.com/smallbiznis/bluemoon/internal/observability"
	obsmiddleware "github.com/smallbiznis/bluemoon/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bluemoon/internal/observability/metrics"
	obstracing "github.com/smallbiznis/bluemoon/internal/observability/tracing"
	"github.com/smallbiznis/bluemoon/internal/periodlock"
	"github.com/smallbiznis/bluemoon/internal/price"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	"github.com/smallbiznis/bluemoon/internal/providers"
	"github.com/smallbiznis/bluemoon/internal/rating"
	"github.com/smallbiznis/bluemoon/internal/usage"
	usagedomain "github.com/smallbiznis/bluemoon/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	authorization.Module,
	providers.Module,
	periodlock.Module,
	apartment.Module,
	price.Module,
	rating.Module,
	usage.Module,
	extrafee.Module,
	invoice.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	clock       clock.Clock
	authzSvc    authorization.Service
	invoiceSvc  invoicedomain.Service
	priceSvc    pricedomain.Service
	extraFeeSvc extrafeedomain.Service
	usageSvc    usagedomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Clock       clock.Clock
	AuthzSvc    authorization.Service
	InvoiceSvc  invoicedomain.Service
	PriceSvc    pricedomain.Service
	ExtraFeeSvc extrafeedomain.Service
	UsageSvc    usagedomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		clock:       p.Clock,
		authzSvc:    p.AuthzSvc,
		invoiceSvc:  p.InvoiceSvc,
		priceSvc:    p.PriceSvc,
		extraFeeSvc: p.ExtraFeeSvc,
		usageSvc:    p.UsageSvc,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) clockYear() int {
	if s.clock == nil {
		return 0
	}
	return s.clock.Now().Year()
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	accounting := api.Group("/accounting")
	accounting.GET("", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListInvoiceSummaries)
	accounting.POST("/invoices/generate", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceGenerate), s.GenerateInvoices)
	accounting.GET("/invoices/:id", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoice)
	accounting.GET("/invoices/:id/statement", s.authorize(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.DownloadStatement)
	accounting.GET("/dashboard", s.authorize(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetDashboard)
	accounting.GET("/revenue", s.authorize(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetRevenue)

	api.GET("/service-prices", s.authorize(authorization.ObjectPrice, authorization.ActionPriceView), s.ListServicePrices)
	api.POST("/service-prices", s.authorize(authorization.ObjectPrice, authorization.ActionPriceCreate), s.CreateServicePrice)

	api.GET("/extra-fees", s.authorize(authorization.ObjectExtraFee, authorization.ActionExtraFeeView), s.SearchExtraFees)
	api.POST("/extra-fees", s.authorize(authorization.ObjectExtraFee, authorization.ActionExtraFeeCreate), s.CreateExtraFee)
	api.GET("/extra-fees/:id", s.authorize(authorization.ObjectExtraFee, authorization.ActionExtraFeeView), s.GetExtraFee)

	api.GET("/usage-records", s.authorize(authorization.ObjectUsage, authorization.ActionUsageView), s.ListUsageRecords)
	api.POST("/usage-records", s.authorize(authorization.ObjectUsage, authorization.ActionUsageImport), s.ImportUsageRecords)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
