package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/service"
)

type purchaseRequest struct {
	ProductID        string `json:"productId"`
	RegionID         string `json:"regionId"`
	DenominationID   string `json:"denominationId"`
	CustomInputValue string `json:"customInputValue"`
	PaymentMethod    string `json:"paymentMethod"`
	CardNumber       string `json:"cardNumber"`
}

func (req purchaseRequest) toService() service.PurchaseRequest {
	method := model.PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = model.PaymentWallet
	}
	return service.PurchaseRequest{
		ProductID:        req.ProductID,
		RegionID:         req.RegionID,
		DenominationID:   req.DenominationID,
		CustomInputValue: req.CustomInputValue,
		PaymentMethod:    method,
		CardNumber:       req.CardNumber,
	}
}

// dollarsToCents переводит сумму в долларах в центы. Округление до
// ближайшего цента: дробные суммы вроде 19.99 не представимы в float64
// точно, и усечение занижало бы их на цент.
func dollarsToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// checkIdempotency регистрирует ключ Idempotency-Key запроса.
// Возвращает false, если запрос с таким ключом уже выполнялся и ответ
// 409 уже отправлен.
func (h *Handler) checkIdempotency(w http.ResponseWriter, r *http.Request, userID int64) bool {
	key := r.Header.Get("Idempotency-Key")
	if key == "" || !h.guard.Enabled() {
		return true
	}

	first, err := h.guard.FirstUse(r.Context(), userID, key)
	if err != nil {
		h.logger.Error("idempotency check", zap.Error(err))
		return true
	}
	if !first {
		h.writeError(w, http.StatusConflict, "duplicate request")
		return false
	}
	return true
}

// CreateOrder оформляет покупку одного товара текущим пользователем.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "product id is required")
		return
	}

	if !h.checkIdempotency(w, r, userID) {
		return
	}

	order, err := h.service.CreateOrder(r.Context(), userID, req.toService())
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toOrderResponse(*order))
}

// GetMyOrders возвращает заказы текущего пользователя, новые первыми.
func (h *Handler) GetMyOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type transactionResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Amount    float64 `json:"amount"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"createdAt"`
}

// GetTransactions возвращает журнал операций по кошельку пользователя.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	transactions, err := h.service.GetTransactionsByUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, tr := range transactions {
		resp = append(resp, transactionResponse{
			ID:        tr.ID,
			Title:     tr.Title,
			Amount:    float64(tr.AmountCents) / 100,
			Type:      string(tr.Type),
			Status:    tr.Status,
			CreatedAt: tr.CreatedAt.Format(time.RFC3339),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetWalletBalance возвращает текущий баланс кошелька пользователя.
func (h *Handler) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, balance)
}

type depositRequest struct {
	Amount     float64 `json:"amount"`
	CardNumber string  `json:"cardNumber"`
}

// Deposit пополняет кошелёк текущего пользователя с карты.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.service.Deposit(r.Context(), userID, dollarsToCents(req.Amount), req.CardNumber)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

type chargeRequest struct {
	Amount     float64 `json:"amount"`
	CardNumber string  `json:"cardNumber"`
}

// Charge проверяет карту и имитирует прямое списание без кошелька.
func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.ChargeCard(r.Context(), req.CardNumber, dollarsToCents(req.Amount)); err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

type cartItemResponse struct {
	ID               string  `json:"id"`
	ProductID        string  `json:"productId"`
	Name             string  `json:"name"`
	Category         string  `json:"category,omitempty"`
	Price            float64 `json:"price"`
	PriceCents       int64   `json:"priceCents"`
	RegionID         string  `json:"regionId,omitempty"`
	RegionName       string  `json:"regionName,omitempty"`
	DenominationID   string  `json:"denominationId,omitempty"`
	QuantityLabel    string  `json:"quantityLabel,omitempty"`
	CustomInputValue string  `json:"customInputValue,omitempty"`
}

type cartResponse struct {
	Items      []cartItemResponse `json:"items"`
	Total      float64            `json:"total"`
	TotalCents int64              `json:"totalCents"`
}

func toCartItemResponse(item model.CartItem) cartItemResponse {
	return cartItemResponse{
		ID:               item.ID,
		ProductID:        item.ProductID,
		Name:             item.Name,
		Category:         item.Category,
		Price:            float64(item.PriceCents) / 100,
		PriceCents:       item.PriceCents,
		RegionID:         item.RegionID,
		RegionName:       item.RegionName,
		DenominationID:   item.DenominationID,
		QuantityLabel:    item.QuantityLabel,
		CustomInputValue: item.CustomInputValue,
	}
}

// GetCart возвращает корзину текущего пользователя.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	items, total := h.service.GetCart(userID)
	resp := cartResponse{
		Items:      make([]cartItemResponse, 0, len(items)),
		Total:      float64(total) / 100,
		TotalCents: total,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toCartItemResponse(item))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// AddToCart добавляет товар в корзину текущего пользователя.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "product id is required")
		return
	}

	item, err := h.service.AddToCart(r.Context(), userID, req.toService())
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toCartItemResponse(item))
}

// StashGuestItem откладывает товар неавторизованного посетителя до входа.
// Сессия гостя передаётся заголовком X-Session-ID.
func (h *Handler) StashGuestItem(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		h.writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "product id is required")
		return
	}

	item, err := h.service.StashGuestItem(r.Context(), sessionID, req.toService())
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, toCartItemResponse(item))
}

// DropGuestItem удаляет отложенную позицию гостевой сессии.
func (h *Handler) DropGuestItem(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		h.writeError(w, http.StatusBadRequest, "session id is required")
		return
	}

	h.service.DropPendingItem(sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFromCart удаляет позицию из корзины текущего пользователя.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	if err := h.service.RemoveFromCart(userID, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type checkoutRequest struct {
	PaymentMethod string `json:"paymentMethod"`
	CardNumber    string `json:"cardNumber"`
}

type checkoutItemResponse struct {
	ItemID  string         `json:"itemId"`
	Order   *orderResponse `json:"order,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Checkout оформляет все позиции корзины текущего пользователя.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	method := model.PaymentMethod(req.PaymentMethod)
	if method == "" {
		method = model.PaymentWallet
	}

	if !h.checkIdempotency(w, r, userID) {
		return
	}

	results, err := h.service.CheckoutCart(r.Context(), userID, method, req.CardNumber)
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]checkoutItemResponse, 0, len(results))
	for _, res := range results {
		item := checkoutItemResponse{ItemID: res.ItemID, Message: res.Message}
		if res.Order != nil {
			o := toOrderResponse(*res.Order)
			item.Order = &o
		}
		resp = append(resp, item)
	}
	h.writeJSON(w, http.StatusOK, resp)
}
