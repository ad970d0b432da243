package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/georgemunganga/printa-storefront/internal/remote"
)

// Service defines catalog loading.
type Service interface {
	// ListProducts fetches the full catalog.
	ListProducts(ctx context.Context, c remote.Caller) ([]Product, error)
	// ListCategories fetches the category list. Failures are logged and
	// yield an empty list.
	ListCategories(ctx context.Context, c remote.Caller) []Category
}

type service struct{ logger *zap.Logger }

func NewService(logger *zap.Logger) Service { return &service{logger: logger} }

func (s *service) ListProducts(ctx context.Context, c remote.Caller) ([]Product, error) {
	var products []Product
	if err := c.Call(ctx, remote.EPProducts, nil, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *service) ListCategories(ctx context.Context, c remote.Caller) []Category {
	var categories []Category
	if err := c.Call(ctx, remote.EPCategories, nil, nil, &categories); err != nil {
		s.logger.Warn("category fetch failed, rendering no sections", zap.Error(err))
		return nil
	}
	return categories
}
