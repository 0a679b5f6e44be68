package service

import (
	"github.com/bwmarrin/snowflake"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	"github.com/smallbiznis/bluemoon/internal/clock"
	"github.com/smallbiznis/bluemoon/internal/config"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
	invoicedomain "github.com/smallbiznis/bluemoon/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/bluemoon/internal/observability/metrics"
	"github.com/smallbiznis/bluemoon/internal/periodlock"
	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	"github.com/smallbiznis/bluemoon/internal/providers/pdf"
	ratingdomain "github.com/smallbiznis/bluemoon/internal/rating/domain"
	usagedomain "github.com/smallbiznis/bluemoon/internal/usage/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Repo           invoicedomain.Repository
	ApartmentRepo  apartmentdomain.Repository
	UsageRepo      usagedomain.Repository
	ExtraFeeRepo   extrafeedomain.Repository
	Prices         pricedomain.Service
	Rating         ratingdomain.Service
	Locker         periodlock.Locker
	Clock          clock.Clock
	BillingConfig  *config.BillingConfigHolder
	Statements     pdf.StatementRenderer      `optional:"true"`
	Metrics        *obsmetrics.Metrics        `optional:"true"`
	BillingMetrics *obsmetrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	repo           invoicedomain.Repository
	apartments     apartmentdomain.Repository
	usage          usagedomain.Repository
	fees           extrafeedomain.Repository
	prices         pricedomain.Service
	rating         ratingdomain.Service
	locker         periodlock.Locker
	clock          clock.Clock
	billingConfig  *config.BillingConfigHolder
	statements     pdf.StatementRenderer
	metrics        *obsmetrics.Metrics
	billingMetrics *obsmetrics.BillingMetrics
	tracer         trace.Tracer
}

func New(p Params) invoicedomain.Service {
	statements := p.Statements
	if statements == nil {
		statements = pdf.New()
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("invoice.service"),
		genID:          p.GenID,
		repo:           p.Repo,
		apartments:     p.ApartmentRepo,
		usage:          p.UsageRepo,
		fees:           p.ExtraFeeRepo,
		prices:         p.Prices,
		rating:         p.Rating,
		locker:         p.Locker,
		clock:          p.Clock,
		billingConfig:  p.BillingConfig,
		statements:     statements,
		metrics:        p.Metrics,
		billingMetrics: p.BillingMetrics,
		tracer:         otel.Tracer("bluemoon/invoice"),
	}
}
