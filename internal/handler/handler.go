// Package handler содержит HTTP-обработчики API витрины цифровых товаров.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/dedup"
	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, name, email, phone, password string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	UpdateProfile(ctx context.Context, userID int64, name, phone string) (*model.User, error)
	Logout(userID int64)

	CreateOrder(ctx context.Context, userID int64, req service.PurchaseRequest) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ListOrders(ctx context.Context, status model.OrderStatus, search string) ([]model.Order, error)
	CompleteOrder(ctx context.Context, id, code string) (*model.Order, error)
	CancelOrder(ctx context.Context, id, reason string) (*model.Order, error)
	GetSalesReport(ctx context.Context) (*service.SalesReport, error)

	GetBalance(ctx context.Context, userID int64) (*model.Balance, error)
	Deposit(ctx context.Context, userID int64, amountCents int64, cardNumber string) (*model.User, error)
	GetTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error)
	ChargeCard(ctx context.Context, cardNumber string, amountCents int64) error

	AddToCart(ctx context.Context, userID int64, req service.PurchaseRequest) (model.CartItem, error)
	StashGuestItem(ctx context.Context, sessionID string, req service.PurchaseRequest) (model.CartItem, error)
	ReplayPendingItem(sessionID string, userID int64) (model.CartItem, bool)
	DropPendingItem(sessionID string)
	GetCart(userID int64) ([]model.CartItem, int64)
	RemoveFromCart(userID int64, itemID string) error
	CheckoutCart(ctx context.Context, userID int64, method model.PaymentMethod, cardNumber string) ([]service.CheckoutResult, error)

	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error

	ListInventory(ctx context.Context) ([]model.InventoryCode, error)
	AddInventoryBatch(ctx context.Context, productID, regionID, denominationID string, codes []string, rawText string) (int, error)
	DeleteInventoryCode(ctx context.Context, id string) error

	ListUsers(ctx context.Context) ([]model.User, error)
	AdjustUserBalance(ctx context.Context, userID int64, deltaCents int64) (*model.User, error)
	SetUserStatus(ctx context.Context, userID int64, status model.UserStatus) error

	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ListBanners(ctx context.Context) ([]model.Banner, error)
	CreateBanner(ctx context.Context, b *model.Banner) (*model.Banner, error)
	DeleteBanner(ctx context.Context, id string) error
	ListAnnouncements(ctx context.Context) ([]model.Announcement, error)
	CreateAnnouncement(ctx context.Context, a *model.Announcement) (*model.Announcement, error)
	DeleteAnnouncement(ctx context.Context, id string) error

	ListCurrencies(ctx context.Context) []model.Currency
	UpsertCurrency(ctx context.Context, c model.Currency) error
	DeleteCurrency(ctx context.Context, code string) error
	FormatPrice(amountCents int64, code string) string
}

// Handler реализует HTTP-обработчики API витрины.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	guard          *dedup.Guard
	adminPasscode  string
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, guard *dedup.Guard, adminPasscode string) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		guard:          guard,
		adminPasscode:  adminPasscode,
	}
}

type errorResponse struct {
	Message string `json:"message"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Message: message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", zap.Error(err))
	}
}

// respondError транслирует ошибку бизнес-логики в HTTP-статус с JSON-телом.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrCustomInputRequired):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		h.writeError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, service.ErrUserBanned):
		h.writeError(w, http.StatusForbidden, "account is banned")
	case errors.Is(err, service.ErrInvalidCard):
		h.writeError(w, http.StatusUnprocessableEntity, "invalid card number")
	case errors.Is(err, repository.ErrInsufficientBalance):
		h.writeError(w, http.StatusPaymentRequired, "insufficient balance")
	case errors.Is(err, repository.ErrUserExists):
		h.writeError(w, http.StatusConflict, "account already exists")
	case errors.Is(err, repository.ErrOrderNotPending),
		errors.Is(err, repository.ErrCodeUsed):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error("internal error", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone,omitempty"`
	Balance float64 `json:"balance"`
	Status  string  `json:"status"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Phone:   u.Phone,
		Balance: float64(u.BalanceCents) / 100,
		Status:  string(u.Status),
	}
}

// Register обрабатывает регистрацию нового пользователя и сразу выдаёт токен.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req.Name, req.Email, req.Phone, req.Password)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.finishLogin(w, r, user)
}

// Login выполняет аутентификацию пользователя.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" {
		h.writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.finishLogin(w, r, user)
}

// finishLogin выдаёт токен и переносит отложенную гостевую позицию в
// корзину, если в запросе указана гостевая сессия.
func (h *Handler) finishLogin(w http.ResponseWriter, r *http.Request, user *model.User) {
	token, err := h.authMiddleware.IssueUserToken(user.ID)
	if err != nil {
		h.logger.Error("issue token", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if sessionID := r.Header.Get("X-Session-ID"); sessionID != "" {
		if item, ok := h.service.ReplayPendingItem(sessionID, user.ID); ok {
			h.logger.Info("pending cart item replayed",
				zap.Int64("user_id", user.ID), zap.String("product_id", item.ProductID))
		}
	}

	h.writeJSON(w, http.StatusOK, authResponse{Token: token, User: toUserResponse(user)})
}

type adminLoginRequest struct {
	Passcode string `json:"passcode"`
}

// AdminLogin обменивает общий админский код доступа на админский токен.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.adminPasscode == "" ||
		subtle.ConstantTimeCompare([]byte(req.Passcode), []byte(h.adminPasscode)) != 1 {
		h.writeError(w, http.StatusUnauthorized, "invalid passcode")
		return
	}

	token, err := h.authMiddleware.IssueAdminToken()
	if err != nil {
		h.logger.Error("issue admin token", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

type profileUpdateRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// UpdateProfile обновляет имя и телефон текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, req.Name, req.Phone)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout очищает корзину пользователя; токен отбрасывает клиент.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	h.service.Logout(userID)
	w.WriteHeader(http.StatusOK)
}

type productResponse struct {
	ID               string                   `json:"id"`
	Name             string                   `json:"name"`
	Category         string                   `json:"category"`
	PriceCents       int64                    `json:"priceCents"`
	Price            string                   `json:"price"`
	Regions          []model.Region           `json:"regions,omitempty"`
	Denominations    []model.Denomination     `json:"denominations,omitempty"`
	CustomInput      *model.CustomInputConfig `json:"customInput,omitempty"`
	FulfillmentType  string                   `json:"fulfillmentType"`
	AutoDeliverStock bool                     `json:"autoDeliverStock"`
	ImageURL         string                   `json:"imageUrl,omitempty"`
}

// GetProducts возвращает каталог товаров. Параметр currency задаёт
// валюту отображаемой цены.
func (h *Handler) GetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	code := r.URL.Query().Get("currency")
	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, productResponse{
			ID:               p.ID,
			Name:             p.Name,
			Category:         p.Category,
			PriceCents:       p.PriceCents,
			Price:            h.service.FormatPrice(p.PriceCents, code),
			Regions:          p.Regions,
			Denominations:    p.Denominations,
			CustomInput:      p.CustomInput,
			FulfillmentType:  string(p.FulfillmentType),
			AutoDeliverStock: p.AutoDeliverStock,
			ImageURL:         p.ImageURL,
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// GetBanners возвращает баннеры главной страницы.
func (h *Handler) GetBanners(w http.ResponseWriter, r *http.Request) {
	banners, err := h.service.ListBanners(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, banners)
}

// GetAnnouncements возвращает активные объявления.
func (h *Handler) GetAnnouncements(w http.ResponseWriter, r *http.Request) {
	announcements, err := h.service.ListAnnouncements(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}

	active := make([]model.Announcement, 0, len(announcements))
	for _, a := range announcements {
		if a.IsActive {
			active = append(active, a)
		}
	}
	h.writeJSON(w, http.StatusOK, active)
}

// GetCategories возвращает категории каталога.
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, categories)
}

// GetCurrencies возвращает валюты отображения с курсами.
func (h *Handler) GetCurrencies(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.ListCurrencies(r.Context()))
}

type orderResponse struct {
	ID               string  `json:"id"`
	Number           string  `json:"number"`
	ProductID        string  `json:"productId"`
	ProductName      string  `json:"productName"`
	ProductCategory  string  `json:"productCategory,omitempty"`
	UserName         string  `json:"userName,omitempty"`
	Amount           float64 `json:"amount"`
	AmountCents      int64   `json:"amountCents"`
	Status           string  `json:"status"`
	FulfillmentType  string  `json:"fulfillmentType"`
	PaymentMethod    string  `json:"paymentMethod"`
	DeliveredCode    string  `json:"deliveredCode,omitempty"`
	RejectionReason  string  `json:"rejectionReason,omitempty"`
	RegionName       string  `json:"regionName,omitempty"`
	QuantityLabel    string  `json:"quantityLabel,omitempty"`
	CustomInputValue string  `json:"customInputValue,omitempty"`
	CreatedAt        string  `json:"createdAt"`
}

func toOrderResponse(o model.Order) orderResponse {
	return orderResponse{
		ID:               o.ID,
		Number:           o.Number,
		ProductID:        o.ProductID,
		ProductName:      o.ProductName,
		ProductCategory:  o.ProductCategory,
		UserName:         o.UserName,
		Amount:           float64(o.AmountCents) / 100,
		AmountCents:      o.AmountCents,
		Status:           string(o.Status),
		FulfillmentType:  string(o.FulfillmentType),
		PaymentMethod:    string(o.PaymentMethod),
		DeliveredCode:    o.DeliveredCode,
		RejectionReason:  o.RejectionReason,
		RegionName:       o.RegionName,
		QuantityLabel:    o.QuantityLabel,
		CustomInputValue: o.CustomInputValue,
		CreatedAt:        o.CreatedAt.Format(time.RFC3339),
	}
}
