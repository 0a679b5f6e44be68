package repository

import (
	"context"

	"github.com/smallbiznis/bluemoon/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic table store filtered by non-zero fields of the query struct.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
	BatchCreate(ctx context.Context, resources []*T) error
	DeleteWhere(ctx context.Context, opts ...option.QueryOption) (int64, error)
}
