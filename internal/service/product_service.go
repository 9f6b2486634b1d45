package service

import (
	"context"

	"github.com/opencartlab/cart-service/internal/entity"
	"github.com/opencartlab/cart-service/internal/repository"
)

// ProductService exposes catalog reads.
type ProductService struct {
	products repository.ProductRepository
}

func NewProductService(products repository.ProductRepository) *ProductService {
	return &ProductService{products: products}
}

func (s *ProductService) List(ctx context.Context) ([]entity.Product, error) {
	return s.products.FindAll(ctx)
}

func (s *ProductService) Get(ctx context.Context, id string) (*entity.Product, error) {
	return s.products.FindByID(ctx, id)
}

// Seed inserts the initial catalog if the store is empty.
func (s *ProductService) Seed(ctx context.Context, products []entity.Product) error {
	return s.products.Seed(ctx, products)
}
