package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
)

// requireAdmin перепроверяет административную аутентификацию из
// контекста запроса и при её отсутствии отвечает 403.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if !middleware.IsAdminFromContext(r.Context()) {
		h.writeError(w, http.StatusForbidden, "admin authorization required")
		return false
	}
	return true
}

type productRequest struct {
	ID               string                   `json:"id"`
	Name             string                   `json:"name"`
	Category         string                   `json:"category"`
	PriceCents       int64                    `json:"priceCents"`
	Regions          []model.Region           `json:"regions"`
	Denominations    []model.Denomination     `json:"denominations"`
	CustomInput      *model.CustomInputConfig `json:"customInput"`
	FulfillmentType  string                   `json:"fulfillmentType"`
	AutoDeliverStock bool                     `json:"autoDeliverStock"`
	ImageURL         string                   `json:"imageUrl"`
}

func (req productRequest) toModel() *model.Product {
	return &model.Product{
		ID:               req.ID,
		Name:             req.Name,
		Category:         req.Category,
		PriceCents:       req.PriceCents,
		Regions:          req.Regions,
		Denominations:    req.Denominations,
		CustomInput:      req.CustomInput,
		FulfillmentType:  model.FulfillmentType(req.FulfillmentType),
		AutoDeliverStock: req.AutoDeliverStock,
		ImageURL:         req.ImageURL,
	}
}

// AdminCreateProduct создаёт товар каталога.
func (h *Handler) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.service.CreateProduct(r.Context(), req.toModel())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, product)
}

// AdminUpdateProduct обновляет товар каталога.
func (h *Handler) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.ID = chi.URLParam(r, "id")

	product, err := h.service.UpdateProduct(r.Context(), req.toModel())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, product)
}

// AdminDeleteProduct удаляет товар каталога.
func (h *Handler) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type inventoryItemResponse struct {
	ID             string `json:"id"`
	ProductID      string `json:"productId"`
	RegionID       string `json:"regionId,omitempty"`
	DenominationID string `json:"denominationId,omitempty"`
	Code           string `json:"code"`
	IsUsed         bool   `json:"isUsed"`
	CreatedAt      string `json:"createdAt"`
}

// AdminListInventory возвращает складские коды.
func (h *Handler) AdminListInventory(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	items, err := h.service.ListInventory(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]inventoryItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, inventoryItemResponse{
			ID:             item.ID,
			ProductID:      item.ProductID,
			RegionID:       item.RegionID,
			DenominationID: item.DenominationID,
			Code:           item.Code,
			IsUsed:         item.IsUsed,
			CreatedAt:      item.CreatedAt.Format(time.RFC3339),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type inventoryBatchRequest struct {
	ProductID      string   `json:"productId"`
	RegionID       string   `json:"regionId"`
	DenominationID string   `json:"denominationId"`
	Items          []string `json:"items"`
	Text           string   `json:"text"`
}

// AdminAddInventory добавляет партию кодов: списком или сырым текстом
// по одному коду на строку.
func (h *Handler) AdminAddInventory(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req inventoryBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, "unparsable batch")
		return
	}

	added, err := h.service.AddInventoryBatch(r.Context(), req.ProductID, req.RegionID, req.DenominationID, req.Items, req.Text)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]int{"added": added})
}

// AdminDeleteInventory удаляет неиспользованный складской код.
func (h *Handler) AdminDeleteInventory(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.service.DeleteInventoryCode(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminListUsers возвращает всех пользователей.
func (h *Handler) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for i := range users {
		resp = append(resp, toUserResponse(&users[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

type balanceAdjustRequest struct {
	Amount float64 `json:"amount"`
}

// AdminAdjustBalance пополняет или списывает баланс пользователя.
// Отрицательная сумма означает списание.
func (h *Handler) AdminAdjustBalance(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	userID, ok := userIDParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req balanceAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.service.AdjustUserBalance(r.Context(), userID, dollarsToCents(req.Amount))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

type userStatusRequest struct {
	Status string `json:"status"`
}

// AdminSetUserStatus переключает статус пользователя active/banned.
func (h *Handler) AdminSetUserStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	userID, ok := userIDParam(r)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req userStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.SetUserStatus(r.Context(), userID, model.UserStatus(req.Status)); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// AdminListOrders возвращает заказы с фильтром по статусу и поиском.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	status := model.OrderStatus(r.URL.Query().Get("status"))
	search := r.URL.Query().Get("search")

	orders, err := h.service.ListOrders(r.Context(), status, search)
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

// AdminGetOrder возвращает один заказ со всеми полями.
func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

type orderStatusRequest struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// AdminSetOrderStatus завершает или отменяет заказ. Завершение требует
// код выдачи, отмена требует причину и возвращает оплату с кошелька.
func (h *Handler) AdminSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	orderID := chi.URLParam(r, "id")

	var req orderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		order *model.Order
		err   error
	)
	switch model.OrderStatus(req.Status) {
	case model.OrderStatusCompleted:
		order, err = h.service.CompleteOrder(r.Context(), orderID, req.Code)
	case model.OrderStatusCancelled:
		order, err = h.service.CancelOrder(r.Context(), orderID, req.Reason)
	default:
		h.writeError(w, http.StatusBadRequest, "status must be completed or cancelled")
		return
	}
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// AdminReport возвращает сводку по заказам и пользователям.
func (h *Handler) AdminReport(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	report, err := h.service.GetSalesReport(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, report)
}

type categoryRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// AdminCreateCategory создаёт категорию каталога.
func (h *Handler) AdminCreateCategory(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := h.service.CreateCategory(r.Context(), &model.Category{ID: req.ID, Name: req.Name, Icon: req.Icon})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, category)
}

// AdminDeleteCategory удаляет категорию.
func (h *Handler) AdminDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.service.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bannerRequest struct {
	ID       string `json:"id"`
	ImageURL string `json:"imageUrl"`
	Link     string `json:"link"`
}

// AdminCreateBanner создаёт баннер главной страницы.
func (h *Handler) AdminCreateBanner(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req bannerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	banner, err := h.service.CreateBanner(r.Context(), &model.Banner{ID: req.ID, ImageURL: req.ImageURL, Link: req.Link})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, banner)
}

// AdminDeleteBanner удаляет баннер.
func (h *Handler) AdminDeleteBanner(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.service.DeleteBanner(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type announcementRequest struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	IsActive bool   `json:"isActive"`
}

// AdminCreateAnnouncement создаёт объявление.
func (h *Handler) AdminCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req announcementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	announcement, err := h.service.CreateAnnouncement(r.Context(), &model.Announcement{ID: req.ID, Text: req.Text, IsActive: req.IsActive})
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, announcement)
}

// AdminDeleteAnnouncement удаляет объявление.
func (h *Handler) AdminDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.service.DeleteAnnouncement(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type currencyRequest struct {
	Code   string  `json:"code"`
	Symbol string  `json:"symbol"`
	Rate   float64 `json:"rate"`
}

// AdminUpsertCurrency добавляет или обновляет валюту отображения.
func (h *Handler) AdminUpsertCurrency(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var req currencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if code := chi.URLParam(r, "code"); code != "" {
		req.Code = code
	}

	if err := h.service.UpsertCurrency(r.Context(), model.Currency{Code: req.Code, Symbol: req.Symbol, Rate: req.Rate}); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// AdminDeleteCurrency удаляет валюту отображения.
func (h *Handler) AdminDeleteCurrency(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	if err := h.service.DeleteCurrency(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
