package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront-system/internal/dedup"
	"github.com/mmeshcher/storefront-system/internal/middleware"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/service"
)

type stubService struct {
	registerUser *model.User
	registerErr  error

	authUser *model.User
	authErr  error

	profileUser *model.User

	orderResp *model.Order
	orderErr  error

	getOrderResp *model.Order
	getOrderErr  error

	products    []model.Product
	productsErr error

	depositErr     error
	depositedCents int64

	adjustedCents int64

	chargeErr error

	droppedSession string

	checkoutResults []service.CheckoutResult
	checkoutErr     error

	completedOrder *model.Order
	completeErr    error

	replayedOK bool
}

func (s *stubService) RegisterUser(ctx context.Context, name, email, phone, password string) (*model.User, error) {
	return s.registerUser, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	return s.authUser, s.authErr
}

func (s *stubService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return s.profileUser, nil
}

func (s *stubService) UpdateProfile(ctx context.Context, userID int64, name, phone string) (*model.User, error) {
	return s.profileUser, nil
}

func (s *stubService) Logout(userID int64) {}

func (s *stubService) CreateOrder(ctx context.Context, userID int64, req service.PurchaseRequest) (*model.Order, error) {
	return s.orderResp, s.orderErr
}

func (s *stubService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.getOrderResp, s.getOrderErr
}

func (s *stubService) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return nil, nil
}

func (s *stubService) ListOrders(ctx context.Context, status model.OrderStatus, search string) ([]model.Order, error) {
	return nil, nil
}

func (s *stubService) CompleteOrder(ctx context.Context, id, code string) (*model.Order, error) {
	return s.completedOrder, s.completeErr
}

func (s *stubService) CancelOrder(ctx context.Context, id, reason string) (*model.Order, error) {
	return s.completedOrder, s.completeErr
}

func (s *stubService) GetSalesReport(ctx context.Context) (*service.SalesReport, error) {
	return &service.SalesReport{}, nil
}

func (s *stubService) GetBalance(ctx context.Context, userID int64) (*model.Balance, error) {
	return &model.Balance{}, nil
}

func (s *stubService) Deposit(ctx context.Context, userID int64, amountCents int64, cardNumber string) (*model.User, error) {
	if s.depositErr != nil {
		return nil, s.depositErr
	}
	s.depositedCents = amountCents
	return s.profileUser, nil
}

func (s *stubService) GetTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error) {
	return nil, nil
}

func (s *stubService) ChargeCard(ctx context.Context, cardNumber string, amountCents int64) error {
	return s.chargeErr
}

func (s *stubService) AddToCart(ctx context.Context, userID int64, req service.PurchaseRequest) (model.CartItem, error) {
	return model.CartItem{ID: "item-1", ProductID: req.ProductID}, nil
}

func (s *stubService) StashGuestItem(ctx context.Context, sessionID string, req service.PurchaseRequest) (model.CartItem, error) {
	return model.CartItem{ID: "pending-1", ProductID: req.ProductID}, nil
}

func (s *stubService) ReplayPendingItem(sessionID string, userID int64) (model.CartItem, bool) {
	return model.CartItem{ID: "pending-1"}, s.replayedOK
}

func (s *stubService) DropPendingItem(sessionID string) {
	s.droppedSession = sessionID
}

func (s *stubService) GetCart(userID int64) ([]model.CartItem, int64) {
	return nil, 0
}

func (s *stubService) RemoveFromCart(userID int64, itemID string) error { return nil }

func (s *stubService) CheckoutCart(ctx context.Context, userID int64, method model.PaymentMethod, cardNumber string) ([]service.CheckoutResult, error) {
	return s.checkoutResults, s.checkoutErr
}

func (s *stubService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.products, s.productsErr
}

func (s *stubService) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	return p, nil
}

func (s *stubService) UpdateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	return p, nil
}

func (s *stubService) DeleteProduct(ctx context.Context, id string) error { return nil }

func (s *stubService) ListInventory(ctx context.Context) ([]model.InventoryCode, error) {
	return nil, nil
}

func (s *stubService) AddInventoryBatch(ctx context.Context, productID, regionID, denominationID string, codes []string, rawText string) (int, error) {
	return len(codes), nil
}

func (s *stubService) DeleteInventoryCode(ctx context.Context, id string) error { return nil }

func (s *stubService) ListUsers(ctx context.Context) ([]model.User, error) { return nil, nil }

func (s *stubService) AdjustUserBalance(ctx context.Context, userID int64, deltaCents int64) (*model.User, error) {
	s.adjustedCents = deltaCents
	return s.profileUser, nil
}

func (s *stubService) SetUserStatus(ctx context.Context, userID int64, status model.UserStatus) error {
	return nil
}

func (s *stubService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return nil, nil
}

func (s *stubService) CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error) {
	return c, nil
}

func (s *stubService) DeleteCategory(ctx context.Context, id string) error { return nil }

func (s *stubService) ListBanners(ctx context.Context) ([]model.Banner, error) { return nil, nil }

func (s *stubService) CreateBanner(ctx context.Context, b *model.Banner) (*model.Banner, error) {
	return b, nil
}

func (s *stubService) DeleteBanner(ctx context.Context, id string) error { return nil }

func (s *stubService) ListAnnouncements(ctx context.Context) ([]model.Announcement, error) {
	return nil, nil
}

func (s *stubService) CreateAnnouncement(ctx context.Context, a *model.Announcement) (*model.Announcement, error) {
	return a, nil
}

func (s *stubService) DeleteAnnouncement(ctx context.Context, id string) error { return nil }

func (s *stubService) ListCurrencies(ctx context.Context) []model.Currency { return nil }

func (s *stubService) UpsertCurrency(ctx context.Context, c model.Currency) error { return nil }

func (s *stubService) DeleteCurrency(ctx context.Context, code string) error { return nil }

func (s *stubService) FormatPrice(amountCents int64, code string) string { return "$ 0.00" }

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, logger, auth, dedup.NewGuard(""), "admin-pass")
}

func decodeMessage(t *testing.T, res *http.Response) string {
	t.Helper()

	var body errorResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Message
}

func TestRegister_ReturnsToken(t *testing.T) {
	svc := &stubService{
		registerUser: &model.User{ID: 42, Name: "user", Email: "user@example.com", Status: model.UserStatusActive},
	}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(registerRequest{
		Name:     "user",
		Email:    "user@example.com",
		Password: "secret1",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp authResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" || resp.User.ID != 42 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := &stubService{authErr: service.ErrInvalidCredentials}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{Email: "user@example.com", Password: "wrong"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
	if msg := decodeMessage(t, res); msg == "" {
		t.Fatalf("expected error message in body")
	}
}

func TestLogin_BannedAccount(t *testing.T) {
	svc := &stubService{authErr: service.ErrUserBanned}
	h := newTestHandler(t, svc)

	body, _ := json.Marshal(loginRequest{Email: "user@example.com", Password: "pass"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAdminLogin_WrongPasscode(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(adminLoginRequest{Passcode: "nope"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/admin", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.AdminLogin(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAdminLogin_IssuesAdminToken(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(adminLoginRequest{Passcode: "admin-pass"})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/admin", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.AdminLogin(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["token"] == "" {
		t.Fatalf("expected admin token")
	}
}

func TestCreateOrder_RequiresAuth(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	body, _ := json.Marshal(purchaseRequest{ProductID: "p1"})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCreateOrder_InsufficientBalance(t *testing.T) {
	svc := &stubService{orderErr: repository.ErrInsufficientBalance}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	token, err := h.authMiddleware.IssueUserToken(1)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	body, _ := json.Marshal(purchaseRequest{ProductID: "p1", PaymentMethod: "wallet"})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusPaymentRequired)
	}
}

func TestCreateOrder_Success(t *testing.T) {
	svc := &stubService{
		orderResp: &model.Order{ID: "o1", Number: "#00042", Status: model.OrderStatusCompleted},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	token, err := h.authMiddleware.IssueUserToken(1)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	body, _ := json.Marshal(purchaseRequest{ProductID: "p1"})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusCreated)
	}

	var resp orderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Number != "#00042" {
		t.Fatalf("number = %q, want #00042", resp.Number)
	}
}

func TestAdminRoutes_RejectUserToken(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	token, err := h.authMiddleware.IssueUserToken(1)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAdminSetOrderStatus_UnknownStatus(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	token, err := h.authMiddleware.IssueAdminToken()
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}

	body, _ := json.Marshal(orderStatusRequest{Status: "shipped"})

	req := httptest.NewRequest(http.MethodPut, "/api/orders/o1/status", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestStashGuestItem_RequiresSession(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	body, _ := json.Marshal(purchaseRequest{ProductID: "p1"})

	req := httptest.NewRequest(http.MethodPost, "/api/cart/pending", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.StashGuestItem(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestDeposit_RoundsFractionalCents(t *testing.T) {
	svc := &stubService{
		profileUser: &model.User{ID: 1, Name: "user", Status: model.UserStatusActive},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	token, err := h.authMiddleware.IssueUserToken(1)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	// 19.99 не представимо в float64 точно; усечение дало бы 1998.
	body, _ := json.Marshal(depositRequest{Amount: 19.99, CardNumber: "4539578763621486"})

	req := httptest.NewRequest(http.MethodPost, "/api/wallet/deposit", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.depositedCents != 1999 {
		t.Fatalf("deposited cents = %d, want 1999", svc.depositedCents)
	}
}

func TestAdminAdjustBalance_RoundsFractionalCents(t *testing.T) {
	svc := &stubService{
		profileUser: &model.User{ID: 1, Name: "user", Status: model.UserStatusActive},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	token, err := h.authMiddleware.IssueAdminToken()
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}

	body, _ := json.Marshal(balanceAdjustRequest{Amount: -5.01})

	req := httptest.NewRequest(http.MethodPut, "/api/users/1/balance", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.adjustedCents != -501 {
		t.Fatalf("adjusted cents = %d, want -501", svc.adjustedCents)
	}
}

func TestGetWalletBalance(t *testing.T) {
	h := newTestHandler(t, &stubService{})
	router := h.SetupRouter()

	token, err := h.authMiddleware.IssueUserToken(1)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/wallet/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAdminGetOrder(t *testing.T) {
	svc := &stubService{
		getOrderResp: &model.Order{ID: "o1", Number: "#00007", Status: model.OrderStatusPending},
	}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	token, err := h.authMiddleware.IssueAdminToken()
	if err != nil {
		t.Fatalf("issue admin token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/o1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var resp orderResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Number != "#00007" {
		t.Fatalf("number = %q, want #00007", resp.Number)
	}
}

func TestAdminHandler_MissingAdminContext(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	// Обход роутера: запрос без административной аутентификации в контексте.
	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec := httptest.NewRecorder()

	h.AdminListUsers(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestDropGuestItem(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/cart/pending", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status without session = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/cart/pending", nil)
	req.Header.Set("X-Session-ID", "guest-1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if svc.droppedSession != "guest-1" {
		t.Fatalf("dropped session = %q, want guest-1", svc.droppedSession)
	}
}

func TestDeposit_InvalidCard(t *testing.T) {
	svc := &stubService{depositErr: service.ErrInvalidCard}
	h := newTestHandler(t, svc)
	router := h.SetupRouter()

	token, err := h.authMiddleware.IssueUserToken(1)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	body, _ := json.Marshal(depositRequest{Amount: 10, CardNumber: "123"})

	req := httptest.NewRequest(http.MethodPost, "/api/wallet/deposit", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}
