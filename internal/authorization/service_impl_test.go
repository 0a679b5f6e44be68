package authorization

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)
	return NewService(Params{DB: db, Log: zap.NewNop(), Enforcer: enforcer}), db
}

func TestAuthorize(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		role   string
		object string
		action string
		want   error
	}{
		{"accountant generates invoices", RoleAccountant, ObjectInvoice, ActionInvoiceGenerate, nil},
		{"role is case insensitive", "accountant", ObjectDashboard, ActionDashboardView, nil},
		{"accountant cannot change prices", RoleAccountant, ObjectPrice, ActionPriceCreate, ErrForbidden},
		{"admin changes prices", RoleAdmin, ObjectPrice, ActionPriceCreate, nil},
		{"admin inherits accountant grants", RoleAdmin, ObjectUsage, ActionUsageImport, nil},
		{"resident role is forbidden", "RESIDENT", ObjectInvoice, ActionInvoiceView, ErrForbidden},
		{"missing role", " ", ObjectInvoice, ActionInvoiceView, ErrInvalidRole},
		{"missing object", RoleAdmin, "", ActionInvoiceView, ErrInvalidObject},
		{"missing action", RoleAdmin, ObjectInvoice, "", ErrInvalidAction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tc.role, tc.object, tc.action)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewEnforcerSeedsOnce(t *testing.T) {
	_, db := newTestService(t)

	// a second instance over the same store must not duplicate rules
	_, err := NewEnforcer(db)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Table("casbin_rule").Count(&count).Error)
	assert.Equal(t, int64(10), count)
}
