package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	apartmentdomain "github.com/smallbiznis/bluemoon/internal/apartment/domain"
	apartmentrepo "github.com/smallbiznis/bluemoon/internal/apartment/repository"
	"github.com/smallbiznis/bluemoon/internal/clock"
	extrafeedomain "github.com/smallbiznis/bluemoon/internal/extrafee/domain"
	"github.com/smallbiznis/bluemoon/internal/extrafee/repository"
	"github.com/smallbiznis/bluemoon/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*gorm.DB, extrafeedomain.Service, *snowflake.Node, snowflake.ID) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&apartmentdomain.Building{},
		&apartmentdomain.Apartment{},
		&apartmentdomain.Resident{},
		&apartmentdomain.Vehicle{},
		&extrafeedomain.ExtraFee{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	building := apartmentdomain.Building{ID: node.Generate(), Name: "Lotus"}
	require.NoError(t, db.Create(&building).Error)
	apartment := apartmentdomain.Apartment{ID: node.Generate(), BuildingID: building.ID, RoomNumber: 1205, Floor: 12, Area: decimal.NewFromInt(80)}
	require.NoError(t, db.Create(&apartment).Error)

	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          repository.Provide(),
		ApartmentRepo: apartmentrepo.Provide(),
		Clock:         clock.NewFakeClock(time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)),
	})
	return db, svc, node, apartment.ID
}

func TestCreateComputesAmountOnce(t *testing.T) {
	_, svc, _, apartmentID := setup(t)
	ctx := context.Background()

	fee, err := svc.Create(ctx, extrafeedomain.CreateRequest{
		ApartmentID: apartmentID.String(),
		Title:       "Window repair",
		Description: "Replace cracked pane",
		Quantity:    "1.5",
		UnitPrice:   "333333",
		FeeDate:     "2024-05-01",
	})
	require.NoError(t, err)
	assert.True(t, fee.Amount.Equal(money.FromInt(500000)), fee.Amount.String())
	assert.False(t, fee.IsBilled)

	got, err := svc.Get(ctx, fee.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Window repair", got.Title)
	assert.True(t, got.Amount.Equal(fee.Amount))

	unbilled, err := svc.ListUnbilled(ctx, apartmentID)
	require.NoError(t, err)
	assert.Len(t, unbilled, 1)
}

func TestCreateValidation(t *testing.T) {
	_, svc, node, apartmentID := setup(t)
	ctx := context.Background()

	valid := func() extrafeedomain.CreateRequest {
		return extrafeedomain.CreateRequest{ApartmentID: apartmentID.String(), Title: "Cleaning", Quantity: "1", UnitPrice: "100000"}
	}
	cases := []struct {
		name   string
		mutate func(*extrafeedomain.CreateRequest)
		want   error
	}{
		{"unknown apartment", func(r *extrafeedomain.CreateRequest) { r.ApartmentID = node.Generate().String() }, extrafeedomain.ErrInvalidApartment},
		{"empty title", func(r *extrafeedomain.CreateRequest) { r.Title = "  " }, extrafeedomain.ErrInvalidTitle},
		{"long title", func(r *extrafeedomain.CreateRequest) { r.Title = strings.Repeat("x", 101) }, extrafeedomain.ErrInvalidTitle},
		{"zero quantity", func(r *extrafeedomain.CreateRequest) { r.Quantity = "0" }, extrafeedomain.ErrInvalidQuantity},
		{"negative price", func(r *extrafeedomain.CreateRequest) { r.UnitPrice = "-5" }, extrafeedomain.ErrInvalidUnitPrice},
		{"bad date", func(r *extrafeedomain.CreateRequest) { r.FeeDate = "05/01/2024" }, extrafeedomain.ErrInvalidFeeDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			tc.mutate(&req)
			_, err := svc.Create(ctx, req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	_, err := svc.Get(ctx, node.Generate().String())
	assert.ErrorIs(t, err, extrafeedomain.ErrNotFound)
}

func TestSearch(t *testing.T) {
	db, svc, _, apartmentID := setup(t)
	ctx := context.Background()

	for _, title := range []string{"Elevator card", "Pest control"} {
		_, err := svc.Create(ctx, extrafeedomain.CreateRequest{
			ApartmentID: apartmentID.String(), Title: title, Quantity: "1", UnitPrice: "50000",
		})
		require.NoError(t, err)
	}

	byTitle, err := svc.Search(ctx, "elevator")
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, "Apartment 1205 - Lotus", byTitle[0].ApartmentLabel)

	byBuilding, err := svc.Search(ctx, "lotus")
	require.NoError(t, err)
	assert.Len(t, byBuilding, 2)

	byRoom, err := svc.Search(ctx, "1205")
	require.NoError(t, err)
	assert.Len(t, byRoom, 2)

	none, err := svc.Search(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, none)

	feeRepo := repository.Provide()
	changed, err := feeRepo.SetBilled(ctx, db, []snowflake.ID{byTitle[0].ID}, true, time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)

	// already billed rows are left alone
	changed, err = feeRepo.SetBilled(ctx, db, []snowflake.ID{byTitle[0].ID}, true, time.Date(2024, 5, 3, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.EqualValues(t, 0, changed)

	unbilled, err := svc.ListUnbilled(ctx, apartmentID)
	require.NoError(t, err)
	require.Len(t, unbilled, 1)
	assert.Equal(t, "Pest control", unbilled[0].Title)
}
