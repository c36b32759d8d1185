package services

import (
	"context"

	"wanderlust/internal/domain"
	"wanderlust/internal/repos"
)

var ErrProductNotFound = repos.ErrProductNotFound

// CatalogService is the public read side of the product table.
type CatalogService struct {
	Prods *repos.ProductRepo
}

func NewCatalogService(prods *repos.ProductRepo) *CatalogService {
	return &CatalogService{Prods: prods}
}

func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	list, err := s.Prods.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Product, 0, len(list))
	for _, p := range list {
		out = append(out, public(p))
	}
	return out, nil
}

// GetProduct returns an active product. Inactive ones read as not found.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.Prods.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrProductNotFound
	}
	pub := public(*p)
	return &pub, nil
}

// public hides download links; they are only served on paid orders.
func public(p domain.Product) domain.Product {
	p.DigitalFiles = nil
	return p
}
