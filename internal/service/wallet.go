package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/validation"
)

// GetBalance возвращает текущий баланс пользователя в долларах.
func (s *Service) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &model.Balance{Current: float64(u.BalanceCents) / 100}, nil
}

// Deposit пополняет кошелёк пользователя с банковской карты.
// Списание с карты имитируется после проверки номера по алгоритму Луна.
func (s *Service) Deposit(ctx context.Context, userID int64, amountCents int64, cardNumber string) (*model.User, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: deposit amount must be positive", ErrValidation)
	}
	if !validation.IsValidCardNumber(cardNumber) {
		return nil, ErrInvalidCard
	}
	if err := s.chargeCard(ctx, cardNumber, amountCents); err != nil {
		return nil, err
	}
	return s.repo.AdjustBalance(ctx, userID, amountCents, "Wallet deposit")
}

// GetTransactionsByUser возвращает журнал операций по кошельку, новые первыми.
func (s *Service) GetTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error) {
	return s.repo.GetTransactionsByUser(ctx, userID)
}

// ChargeCard проверяет карту и имитирует списание без изменения баланса.
// Используется страницей прямой оплаты.
func (s *Service) ChargeCard(ctx context.Context, cardNumber string, amountCents int64) error {
	if amountCents <= 0 {
		return fmt.Errorf("%w: charge amount must be positive", ErrValidation)
	}
	if !validation.IsValidCardNumber(cardNumber) {
		return ErrInvalidCard
	}
	return s.chargeCard(ctx, cardNumber, amountCents)
}

// chargeCard имитирует обращение к платёжному шлюзу. Реальная
// интеграция не входит в объём сервиса.
func (s *Service) chargeCard(_ context.Context, _ string, _ int64) error {
	return nil
}
