// Package service реализует бизнес-логику витрины цифровых товаров.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/storefront-system/internal/cart"
	"github.com/mmeshcher/storefront-system/internal/currency"
	"github.com/mmeshcher/storefront-system/internal/fulfillment"
	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
	"github.com/mmeshcher/storefront-system/internal/validation"
)

// Ошибки бизнес-логики, транслируемые обработчиками в HTTP-статусы.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserBanned          = errors.New("user is banned")
	ErrInvalidCard         = errors.New("invalid card number")
	ErrCustomInputRequired = errors.New("custom input is required")
	ErrValidation          = errors.New("validation failed")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, name, email, phone string, passwordHash []byte) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	UserExists(ctx context.Context, email, phone string) (bool, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserStatus(ctx context.Context, id int64, status model.UserStatus) error
	UpdateUserProfile(ctx context.Context, id int64, name, phone string) (*model.User, error)
	AdjustBalance(ctx context.Context, userID int64, deltaCents int64, title string) (*model.User, error)
	GetTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error)

	CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, p *model.Product) (*model.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)

	ListInventory(ctx context.Context) ([]model.InventoryCode, error)
	AddInventoryBatch(ctx context.Context, items []model.InventoryCode) (int, error)
	DeleteInventoryCode(ctx context.Context, id string) error

	PlaceOrder(ctx context.Context, params repository.PlaceOrderParams) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ListOrders(ctx context.Context, status model.OrderStatus, search string) ([]model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	CompleteOrder(ctx context.Context, id, code string) (*model.Order, error)
	CancelOrder(ctx context.Context, id, reason string) (*model.Order, error)
	GetPendingAPIOrders(ctx context.Context, limit int) ([]model.Order, error)
	CountOrdersByStatus(ctx context.Context) (map[model.OrderStatus]int, int64, error)

	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ListBanners(ctx context.Context) ([]model.Banner, error)
	CreateBanner(ctx context.Context, b *model.Banner) (*model.Banner, error)
	DeleteBanner(ctx context.Context, id string) error
	ListAnnouncements(ctx context.Context) ([]model.Announcement, error)
	CreateAnnouncement(ctx context.Context, a *model.Announcement) (*model.Announcement, error)
	DeleteAnnouncement(ctx context.Context, id string) error
	ListCurrencies(ctx context.Context) ([]model.Currency, error)
	UpsertCurrency(ctx context.Context, c model.Currency) error
	DeleteCurrency(ctx context.Context, code string) error
}

// Service содержит бизнес-логику витрины.
type Service struct {
	repo              Repository
	fulfillmentClient *fulfillment.Client
	carts             *cart.Store
	currencies        *currency.Table
	logger            *zap.Logger
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом
// внешней системы выдачи кодов.
func NewService(repo Repository, fulfillmentClient *fulfillment.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:              repo,
		fulfillmentClient: fulfillmentClient,
		carts:             cart.NewStore(),
		currencies:        currency.NewTable(),
		logger:            logger,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Carts возвращает хранилище корзин.
func (s *Service) Carts() *cart.Store {
	return s.carts
}

// Currencies возвращает таблицу валют отображения.
func (s *Service) Currencies() *currency.Table {
	return s.currencies
}

// RegisterUser регистрирует нового пользователя. Дубликат e-mail или
// телефона отклоняется целиком, без частичной записи.
func (s *Service) RegisterUser(ctx context.Context, name, email, phone, password string) (*model.User, error) {
	if name == "" || !validation.IsValidEmail(email) {
		return nil, fmt.Errorf("%w: name and valid email are required", ErrValidation)
	}
	if phone != "" && !validation.IsValidPhone(phone) {
		return nil, fmt.Errorf("%w: invalid phone", ErrValidation)
	}
	if len(password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}

	exists, err := s.repo.UserExists(ctx, email, phone)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, repository.ErrUserExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.CreateUser(ctx, name, email, phone, hashed)
}

// AuthenticateUser проверяет e-mail и пароль пользователя. Учётные
// записи без хеша пароля (импортированные из старой базы) пропускаются
// по одному e-mail; такой вход фиксируется предупреждением в логе.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if u.Status == model.UserStatusBanned {
		return nil, ErrUserBanned
	}

	if len(u.PasswordHash) == 0 {
		s.logger.Warn("legacy account login without password check",
			zap.Int64("user_id", u.ID))
		return u, nil
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetProfile возвращает профиль пользователя.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateProfile обновляет имя и телефон пользователя.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, name, phone string) (*model.User, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if phone != "" && !validation.IsValidPhone(phone) {
		return nil, fmt.Errorf("%w: invalid phone", ErrValidation)
	}
	return s.repo.UpdateUserProfile(ctx, userID, name, phone)
}

// Logout очищает корзину пользователя. Сам токен аннулируется на
// стороне клиента.
func (s *Service) Logout(userID int64) {
	s.carts.Clear(userID)
}
