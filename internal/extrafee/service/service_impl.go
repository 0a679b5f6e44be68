package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	"github.com/smallbiznis/bluemoon/internal/clock"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
	"github.com/smallbiznis/bluemoon/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          extrafeedomain.Repository
	ApartmentRepo apartmentdomain.Repository
	Clock         clock.Clock
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          extrafeedomain.Repository
	apartmentRepo apartmentdomain.Repository
	clock         clock.Clock
}

func New(p Params) extrafeedomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("extrafee.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		apartmentRepo: p.ApartmentRepo,
		clock:         p.Clock,
	}
}

func (s *Service) Create(ctx context.Context, req extrafeedomain.CreateRequest) (*extrafeedomain.ExtraFee, error) {
	apartmentID, err := snowflake.ParseString(strings.TrimSpace(req.ApartmentID))
	if err != nil {
		return nil, extrafeedomain.ErrInvalidApartment
	}

	title := strings.TrimSpace(req.Title)
	if title == "" || utf8.RuneCountInString(title) > extrafeedomain.MaxTitleLength {
		return nil, extrafeedomain.ErrInvalidTitle
	}

	quantity, err := decimal.NewFromString(strings.TrimSpace(req.Quantity))
	if err != nil || !quantity.IsPositive() {
		return nil, extrafeedomain.ErrInvalidQuantity
	}
	unitPrice, err := decimal.NewFromString(strings.TrimSpace(req.UnitPrice))
	if err != nil || unitPrice.IsNegative() {
		return nil, extrafeedomain.ErrInvalidUnitPrice
	}

	now := s.clock.Now()
	feeDate := now
	if raw := strings.TrimSpace(req.FeeDate); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, extrafeedomain.ErrInvalidFeeDate
		}
		feeDate = parsed.UTC()
	}

	apartment, err := s.apartmentRepo.FindByID(ctx, s.db, apartmentID)
	if err != nil {
		return nil, err
	}
	if apartment == nil {
		return nil, extrafeedomain.ErrInvalidApartment
	}

	fee := &extrafeedomain.ExtraFee{
		ID:          s.genID.Generate(),
		ApartmentID: apartmentID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Amount:      money.Multiply(quantity, unitPrice),
		FeeDate:     feeDate,
		Metadata:    datatypes.JSONMap(req.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, fee); err != nil {
		return nil, err
	}

	s.log.Info("created extra fee",
		zap.String("extra_fee_id", fee.ID.String()),
		zap.String("apartment_id", apartmentID.String()),
		zap.String("amount", fee.Amount.String()),
	)
	return fee, nil
}

func (s *Service) Get(ctx context.Context, id string) (*extrafeedomain.ExtraFee, error) {
	feeID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, extrafeedomain.ErrInvalidID
	}
	fee, err := s.repo.FindByID(ctx, s.db, feeID)
	if err != nil {
		return nil, err
	}
	if fee == nil {
		return nil, extrafeedomain.ErrNotFound
	}
	return fee, nil
}

func (s *Service) Search(ctx context.Context, keyword string) ([]extrafeedomain.Summary, error) {
	return s.repo.Search(ctx, s.db, keyword)
}

func (s *Service) ListUnbilled(ctx context.Context, apartmentID snowflake.ID) ([]extrafeedomain.ExtraFee, error) {
	return s.repo.ListUnbilled(ctx, s.db, apartmentID)
}
