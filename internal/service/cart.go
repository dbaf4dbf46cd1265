package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"posorder/backend/internal/domain"
	"posorder/backend/internal/pricing"
	"posorder/backend/internal/validation"
)

func (s *Service) Cart(ctx context.Context, actor domain.Actor) (domain.CartResponse, error) {
	lines, err := s.carts.Lines(ctx, actor.ID)
	if err != nil {
		return domain.CartResponse{}, fmt.Errorf("load cart: %w", err)
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return domain.CartResponse{}, fmt.Errorf("load cart products: %w", err)
	}

	resp := domain.CartResponse{Items: make([]domain.CartItem, 0, len(lines)), SubTotal: decimal.Zero}
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			continue
		}
		total := product.DiscountedPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		resp.Items = append(resp.Items, domain.CartItem{
			ProductID:       product.ID,
			Name:            product.Name,
			Quantity:        line.Quantity,
			Price:           product.Price,
			DiscountedPrice: product.DiscountedPrice,
			Total:           total,
		})
		resp.SubTotal = resp.SubTotal.Add(total)
	}
	resp.SubTotal = pricing.Round(resp.SubTotal)
	return resp, nil
}

func (s *Service) AddToCart(ctx context.Context, actor domain.Actor, req domain.CartAddRequest) (domain.CartResponse, error) {
	if req.Quantity < 1 {
		return domain.CartResponse{}, validation.Single("quantity", "The quantity field must be at least 1.")
	}
	if err := s.requireProduct(ctx, req.ProductID); err != nil {
		return domain.CartResponse{}, err
	}
	if err := s.carts.Add(ctx, actor.ID, req.ProductID, req.Quantity); err != nil {
		return domain.CartResponse{}, fmt.Errorf("add to cart: %w", err)
	}
	return s.Cart(ctx, actor)
}

func (s *Service) UpdateCartLine(ctx context.Context, actor domain.Actor, productID int64, req domain.CartUpdateRequest) (domain.CartResponse, error) {
	if req.Quantity < 0 {
		return domain.CartResponse{}, validation.Single("quantity", "The quantity field must be at least 0.")
	}
	if req.Quantity > 0 {
		if err := s.requireProduct(ctx, productID); err != nil {
			return domain.CartResponse{}, err
		}
	}
	if err := s.carts.Set(ctx, actor.ID, productID, req.Quantity); err != nil {
		return domain.CartResponse{}, fmt.Errorf("update cart: %w", err)
	}
	return s.Cart(ctx, actor)
}

func (s *Service) RemoveCartLine(ctx context.Context, actor domain.Actor, productID int64) (domain.CartResponse, error) {
	if err := s.carts.Remove(ctx, actor.ID, productID); err != nil {
		return domain.CartResponse{}, fmt.Errorf("remove cart line: %w", err)
	}
	return s.Cart(ctx, actor)
}

func (s *Service) ClearCart(ctx context.Context, actor domain.Actor) error {
	if err := s.carts.Clear(ctx, actor.ID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Service) requireProduct(ctx context.Context, productID int64) error {
	products, err := s.repo.GetProductsByIDs(ctx, []int64{productID})
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}
	product, ok := products[productID]
	if !ok || !product.Active {
		return validation.Single("product_id", "The selected product does not exist.")
	}
	return nil
}
