package service

import (
	"context"
	"fmt"

	pricedomain "github.com/smallbiznis/bluemoon/internal/price/domain"
	ratingdomain "github.com/smallbiznis/bluemoon/internal/rating/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log *zap.Logger
}

type Service struct {
	log         *zap.Logger
	calculators map[pricedomain.ServiceCategory]ratingdomain.Calculator
}

func New(p Params) ratingdomain.Service {
	calculators := make(map[pricedomain.ServiceCategory]ratingdomain.Calculator)
	for _, calc := range Calculators() {
		calculators[calc.Category()] = calc
	}
	return &Service{
		log:         p.Log.Named("rating.service"),
		calculators: calculators,
	}
}

// Calculate dispatches to the category's calculator.
func (s *Service) Calculate(ctx context.Context, category pricedomain.ServiceCategory, req ratingdomain.Request, src ratingdomain.Sources) (ratingdomain.Outcome, error) {
	calc, ok := s.calculators[category]
	if !ok {
		return ratingdomain.Outcome{}, fmt.Errorf("%w: %s", ratingdomain.ErrUnknownCategory, category)
	}
	outcome, err := calc.Calculate(ctx, req, src)
	if err != nil {
		return ratingdomain.Outcome{}, err
	}
	if ce := s.log.Check(zap.DebugLevel, "rated category"); ce != nil {
		ce.Write(
			zap.String("apartment_id", req.Apartment.ID.String()),
			zap.String("category", string(category)),
			zap.Int("items", len(outcome.Items)),
			zap.Int("warnings", len(outcome.Warnings)),
		)
	}
	return outcome, nil
}

// Categories lists the categories a calculator exists for, in billing order.
func (s *Service) Categories() []pricedomain.ServiceCategory {
	out := make([]pricedomain.ServiceCategory, 0, len(s.calculators))
	for _, c := range pricedomain.Categories {
		if _, ok := s.calculators[c]; ok {
			out = append(out, c)
		}
	}
	return out
}
