package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/storefront-system/internal/model"
)

// buildCartItem разрешает позицию корзины по каталогу: цена берётся из
// номинала, имя региона и подпись номинала фиксируются на момент
// добавления.
func (s *Service) buildCartItem(ctx context.Context, req PurchaseRequest) (model.CartItem, error) {
	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return model.CartItem{}, err
	}

	priceCents := product.PriceCents
	quantityLabel := ""
	if req.DenominationID != "" {
		denom, ok := findDenomination(product.Denominations, req.DenominationID)
		if !ok {
			return model.CartItem{}, fmt.Errorf("%w: unknown denomination", ErrValidation)
		}
		priceCents = denom.PriceCents
		quantityLabel = denom.Label
	} else if len(product.Denominations) > 0 {
		return model.CartItem{}, fmt.Errorf("%w: denomination is required", ErrValidation)
	}

	regionName := ""
	if req.RegionID != "" {
		region, ok := findRegion(product.Regions, req.RegionID)
		if !ok {
			return model.CartItem{}, fmt.Errorf("%w: unknown region", ErrValidation)
		}
		regionName = region.Name
	} else if len(product.Regions) > 0 {
		return model.CartItem{}, fmt.Errorf("%w: region is required", ErrValidation)
	}

	return model.CartItem{
		ID:               uuid.NewString(),
		ProductID:        product.ID,
		Name:             product.Name,
		Category:         product.Category,
		PriceCents:       priceCents,
		RegionID:         req.RegionID,
		RegionName:       regionName,
		DenominationID:   req.DenominationID,
		QuantityLabel:    quantityLabel,
		CustomInputValue: req.CustomInputValue,
		AddedAt:          time.Now(),
	}, nil
}

// AddToCart добавляет товар в корзину пользователя.
func (s *Service) AddToCart(ctx context.Context, userID int64, req PurchaseRequest) (model.CartItem, error) {
	item, err := s.buildCartItem(ctx, req)
	if err != nil {
		return model.CartItem{}, err
	}
	return s.carts.Add(userID, item), nil
}

// StashGuestItem откладывает товар неавторизованного посетителя.
// Хранится не более одной отложенной позиции на сессию; она попадёт в
// корзину после входа.
func (s *Service) StashGuestItem(ctx context.Context, sessionID string, req PurchaseRequest) (model.CartItem, error) {
	item, err := s.buildCartItem(ctx, req)
	if err != nil {
		return model.CartItem{}, err
	}
	s.carts.StashPending(sessionID, item)
	return item, nil
}

// ReplayPendingItem переносит отложенную позицию сессии в корзину
// вошедшего пользователя. Возвращает перенесённую позицию, если она была.
func (s *Service) ReplayPendingItem(sessionID string, userID int64) (model.CartItem, bool) {
	return s.carts.ReplayPending(sessionID, userID)
}

// DropPendingItem удаляет отложенную позицию гостевой сессии, если
// гость передумал до входа.
func (s *Service) DropPendingItem(sessionID string) {
	s.carts.DropPending(sessionID)
}

// GetCart возвращает содержимое корзины и её сумму в центах.
func (s *Service) GetCart(userID int64) ([]model.CartItem, int64) {
	return s.carts.Items(userID), s.carts.Total(userID)
}

// RemoveFromCart удаляет позицию корзины.
func (s *Service) RemoveFromCart(userID int64, itemID string) error {
	return s.carts.Remove(userID, itemID)
}
