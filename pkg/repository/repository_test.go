package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/bluemoon/pkg/db/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type meterRow struct {
	ID        int64 `gorm:"primaryKey"`
	Category  string
	Position  int
	CreatedAt time.Time
}

func newStore(t *testing.T) (Repository[meterRow], *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&meterRow{}))
	return ProvideStore[meterRow](db), db
}

func TestStoreFindAndCount(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.BatchCreate(ctx, []*meterRow{
		{ID: 1, Category: "WATER", Position: 2},
		{ID: 2, Category: "WATER", Position: 1},
		{ID: 3, Category: "ELECTRICITY", Position: 3},
	}))
	require.NoError(t, store.BatchCreate(ctx, nil))

	rows, err := store.Find(ctx, &meterRow{Category: "WATER"},
		option.WithSortBy(option.WithQuerySortBy("position", "asc", map[string]bool{"position": true})),
	)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].ID)

	count, err := store.Count(ctx, nil, option.ApplyOperator(option.Condition{Field: "id", Operator: option.IN, Value: []int64{1, 3}}))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	missing, err := store.FindOne(ctx, nil, option.ApplyOperator(option.Condition{Field: "id", Value: 42}))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStoreDeleteWhereInTransaction(t *testing.T) {
	store, db := newStore(t)
	ctx := context.Background()
	require.NoError(t, store.BatchCreate(ctx, []*meterRow{{ID: 1, Category: "WATER"}, {ID: 2, Category: "PARKING"}}))

	err := db.Transaction(func(tx *gorm.DB) error {
		deleted, err := store.WithTrx(tx).DeleteWhere(ctx, option.ApplyOperator(option.Condition{Field: "category", Value: "WATER"}))
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)
		return nil
	})
	require.NoError(t, err)

	remaining, err := store.Find(ctx, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "PARKING", remaining[0].Category)
}
