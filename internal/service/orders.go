package service

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/fulfillment"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/validation"
)

// PurchaseRequest описывает параметры покупки одного товара.
type PurchaseRequest struct {
	ProductID        string
	RegionID         string
	DenominationID   string
	CustomInputValue string
	PaymentMethod    model.PaymentMethod
	CardNumber       string
}

// CheckoutResult описывает исход оформления одной позиции корзины.
type CheckoutResult struct {
	ItemID  string
	Order   *model.Order
	Message string
}

// CreateOrder оформляет покупку: цена и обязательные поля разрешаются
// по каталогу, оплата картой проверяется по алгоритму Луна, затем
// списание, попытка выдачи со склада и вставка заказа выполняются
// одной транзакцией репозитория.
func (s *Service) CreateOrder(ctx context.Context, userID int64, req PurchaseRequest) (*model.Order, error) {
	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	priceCents := product.PriceCents
	quantityLabel := ""
	if req.DenominationID != "" {
		denom, ok := findDenomination(product.Denominations, req.DenominationID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown denomination", ErrValidation)
		}
		priceCents = denom.PriceCents
		quantityLabel = denom.Label
	} else if len(product.Denominations) > 0 {
		return nil, fmt.Errorf("%w: denomination is required", ErrValidation)
	}

	regionName := ""
	customInput := product.CustomInput
	if req.RegionID != "" {
		region, ok := findRegion(product.Regions, req.RegionID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown region", ErrValidation)
		}
		regionName = region.Name
		if region.CustomInput != nil {
			customInput = region.CustomInput
		}
	} else if len(product.Regions) > 0 {
		return nil, fmt.Errorf("%w: region is required", ErrValidation)
	}

	if customInput != nil && customInput.Required && req.CustomInputValue == "" {
		return nil, ErrCustomInputRequired
	}

	switch req.PaymentMethod {
	case model.PaymentWallet:
	case model.PaymentCard:
		if !validation.IsValidCardNumber(req.CardNumber) {
			return nil, ErrInvalidCard
		}
		if err := s.chargeCard(ctx, req.CardNumber, priceCents); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown payment method", ErrValidation)
	}

	id := uuid.New()
	order := model.Order{
		ID:               id.String(),
		Number:           orderNumber(id),
		UserID:           userID,
		UserName:         user.Name,
		ProductID:        product.ID,
		ProductName:      product.Name,
		ProductCategory:  product.Category,
		AmountCents:      priceCents,
		Status:           model.OrderStatusPending,
		FulfillmentType:  product.FulfillmentType,
		PaymentMethod:    req.PaymentMethod,
		RegionName:       regionName,
		QuantityLabel:    quantityLabel,
		CustomInputValue: req.CustomInputValue,
		CreatedAt:        time.Now(),
	}

	return s.repo.PlaceOrder(ctx, repository.PlaceOrderParams{
		Order:          order,
		Debit:          req.PaymentMethod == model.PaymentWallet,
		AttemptStock:   product.FulfillmentType == model.FulfillmentStock || product.AutoDeliverStock,
		RegionID:       req.RegionID,
		DenominationID: req.DenominationID,
	})
}

// orderNumber выводит короткий отображаемый номер заказа из его UUID.
func orderNumber(id uuid.UUID) string {
	n := binary.BigEndian.Uint32(id[:4]) % 100000
	return fmt.Sprintf("#%05d", n)
}

func findDenomination(list []model.Denomination, id string) (model.Denomination, bool) {
	for _, d := range list {
		if d.ID == id {
			return d, true
		}
	}
	return model.Denomination{}, false
}

func findRegion(list []model.Region, id string) (model.Region, bool) {
	for _, r := range list {
		if r.ID == id {
			return r, true
		}
	}
	return model.Region{}, false
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders возвращает заказы для админки с фильтром по статусу и
// поиском по номеру, товару и имени покупателя.
func (s *Service) ListOrders(ctx context.Context, status model.OrderStatus, search string) ([]model.Order, error) {
	return s.repo.ListOrders(ctx, status, search)
}

// CompleteOrder завершает заказ с выдачей кода покупателю.
func (s *Service) CompleteOrder(ctx context.Context, id, code string) (*model.Order, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: delivered code is required", ErrValidation)
	}
	return s.repo.CompleteOrder(ctx, id, code)
}

// CancelOrder отменяет заказ с указанием причины. Оплаченная с кошелька
// сумма возвращается на баланс.
func (s *Service) CancelOrder(ctx context.Context, id, reason string) (*model.Order, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: rejection reason is required", ErrValidation)
	}
	return s.repo.CancelOrder(ctx, id, reason)
}

// CheckoutCart оформляет все позиции корзины по очереди. Исход каждой
// позиции отдельный: успешные удаляются из корзины, неуспешные
// остаются с текстом причины.
func (s *Service) CheckoutCart(ctx context.Context, userID int64, method model.PaymentMethod, cardNumber string) ([]CheckoutResult, error) {
	items := s.carts.Items(userID)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	results := make([]CheckoutResult, 0, len(items))
	succeeded := make([]string, 0, len(items))

	for _, item := range items {
		order, err := s.CreateOrder(ctx, userID, PurchaseRequest{
			ProductID:        item.ProductID,
			RegionID:         item.RegionID,
			DenominationID:   item.DenominationID,
			CustomInputValue: item.CustomInputValue,
			PaymentMethod:    method,
			CardNumber:       cardNumber,
		})
		if err != nil {
			results = append(results, CheckoutResult{ItemID: item.ID, Message: err.Error()})
			continue
		}
		results = append(results, CheckoutResult{ItemID: item.ID, Order: order})
		succeeded = append(succeeded, item.ID)
	}

	s.carts.RemoveMany(userID, succeeded)
	return results, nil
}

// SalesReport содержит сводку по заказам и пользователям.
type SalesReport struct {
	Pending      int   `json:"pending"`
	Completed    int   `json:"completed"`
	Cancelled    int   `json:"cancelled"`
	RevenueCents int64 `json:"revenueCents"`
	Users        int   `json:"users"`
}

// GetSalesReport возвращает сводку для админки.
func (s *Service) GetSalesReport(ctx context.Context) (*SalesReport, error) {
	counts, revenue, err := s.repo.CountOrdersByStatus(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return &SalesReport{
		Pending:      counts[model.OrderStatusPending],
		Completed:    counts[model.OrderStatusCompleted],
		Cancelled:    counts[model.OrderStatusCancelled],
		RevenueCents: revenue,
		Users:        len(users),
	}, nil
}

// StartFulfillmentUpdates запускает фоновый процесс опроса внешней
// системы выдачи по заказам с типом api.
func (s *Service) StartFulfillmentUpdates(ctx context.Context) {
	if s.fulfillmentClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processFulfillmentBatch(ctx)
			}
		}
	}()
}

func (s *Service) processFulfillmentBatch(ctx context.Context) {
	orders, err := s.repo.GetPendingAPIOrders(ctx, 100)
	if err != nil {
		s.logger.Error("get pending orders for fulfillment", zap.Error(err))
		return
	}

	for _, o := range orders {
		resp, statusCode, retryAfter, err := s.fulfillmentClient.GetOrderResult(ctx, o.ID)
		if err != nil {
			continue
		}

		if statusCode == 429 {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if resp == nil {
			continue
		}

		switch resp.Status {
		case fulfillment.StatusDelivered:
			if resp.Code == "" {
				continue
			}
			if _, err := s.repo.CompleteOrder(ctx, o.ID, resp.Code); err != nil &&
				!errors.Is(err, repository.ErrOrderNotPending) {
				s.logger.Error("complete order from fulfillment", zap.String("order_id", o.ID), zap.Error(err))
			}
		case fulfillment.StatusRejected:
			reason := resp.Reason
			if reason == "" {
				reason = "rejected by supplier"
			}
			if _, err := s.repo.CancelOrder(ctx, o.ID, reason); err != nil &&
				!errors.Is(err, repository.ErrOrderNotPending) {
				s.logger.Error("cancel order from fulfillment", zap.String("order_id", o.ID), zap.Error(err))
			}
		}
	}
}
