package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

// Staff roles as sent by the authentication gateway.
const (
	RoleAdmin      = "ADMIN"
	RoleAccountant = "ACCOUNTANT"
)

const (
	ObjectInvoice   = "invoice"
	ObjectDashboard = "dashboard"
	ObjectPrice     = "price"
	ObjectExtraFee  = "extra_fee"
	ObjectUsage     = "usage"
)

const (
	ActionInvoiceGenerate = "invoice.generate"
	ActionInvoiceView     = "invoice.view"
	ActionDashboardView   = "dashboard.view"
	ActionPriceView       = "price.view"
	ActionPriceCreate     = "price.create"
	ActionExtraFeeView    = "extra_fee.view"
	ActionExtraFeeCreate  = "extra_fee.create"
	ActionUsageView       = "usage.view"
	ActionUsageImport     = "usage.import"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads the policy stored in casbin_rule and seeds the built-in role grants.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role string, object string, action string) error {
	subject, err := roleSubject(role)
	if err != nil {
		return err
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func roleSubject(role string) (string, error) {
	role = strings.ToUpper(strings.TrimSpace(role))
	switch role {
	case RoleAdmin, RoleAccountant:
		return fmt.Sprintf("role:%s", strings.ToLower(role)), nil
	case "":
		return "", ErrInvalidRole
	default:
		return "", ErrForbidden
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Accountant runs billing and bookkeeping
		{"role:accountant", ObjectInvoice, ActionInvoiceGenerate},
		{"role:accountant", ObjectInvoice, ActionInvoiceView},
		{"role:accountant", ObjectDashboard, ActionDashboardView},
		{"role:accountant", ObjectPrice, ActionPriceView},
		{"role:accountant", ObjectExtraFee, ActionExtraFeeView},
		{"role:accountant", ObjectExtraFee, ActionExtraFeeCreate},
		{"role:accountant", ObjectUsage, ActionUsageView},
		{"role:accountant", ObjectUsage, ActionUsageImport},

		// Admin additionally owns the price list
		{"role:admin", ObjectPrice, ActionPriceCreate},
	}
	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy[0], policy[1], policy[2])
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return err
		}
	}

	has, err := enforcer.HasGroupingPolicy("role:admin", "role:accountant")
	if err != nil {
		return err
	}
	if !has {
		if _, err := enforcer.AddGroupingPolicy("role:admin", "role:accountant"); err != nil {
			return err
		}
	}
	return nil
}
