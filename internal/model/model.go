// Package model содержит доменные сущности витрины цифровых товаров.
package model

import "time"

// UserStatus описывает состояние учётной записи пользователя.
type UserStatus string

const (
	UserStatusActive UserStatus = "active"
	UserStatusBanned UserStatus = "banned"
)

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Name         string
	Email        string
	Phone        string
	PasswordHash []byte
	BalanceCents int64
	Status       UserStatus
	CreatedAt    time.Time
}

// FulfillmentType описывает способ выдачи товара по заказу.
type FulfillmentType string

const (
	FulfillmentManual FulfillmentType = "manual"
	FulfillmentAPI    FulfillmentType = "api"
	FulfillmentStock  FulfillmentType = "stock"
)

// OrderStatus описывает статус обработки заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentMethod описывает способ оплаты заказа.
type PaymentMethod string

const (
	PaymentWallet PaymentMethod = "wallet"
	PaymentCard   PaymentMethod = "card"
)

// CustomInputConfig описывает дополнительное поле ввода,
// запрашиваемое при покупке (например, идентификатор игрока).
type CustomInputConfig struct {
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// Region описывает регион, для которого продаётся товар.
type Region struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Flag        string             `json:"flag,omitempty"`
	CustomInput *CustomInputConfig `json:"customInput,omitempty"`
}

// Denomination описывает номинал товара (например, «100 гемов»).
type Denomination struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	PriceCents int64  `json:"priceCents"`
}

// Product представляет товар каталога. Цены хранятся в центах USD.
type Product struct {
	ID               string
	Name             string
	Category         string
	PriceCents       int64
	Regions          []Region
	Denominations    []Denomination
	CustomInput      *CustomInputConfig
	FulfillmentType  FulfillmentType
	AutoDeliverStock bool
	ImageURL         string
	CreatedAt        time.Time
}

// InventoryCode представляет единицу складского запаса: код,
// выдаваемый покупателю не более одного раза. Пустые RegionID и
// DenominationID означают глобальный запас, подходящий под любой запрос.
type InventoryCode struct {
	ID             string
	ProductID      string
	RegionID       string
	DenominationID string
	Code           string
	IsUsed         bool
	CreatedAt      time.Time
}

// Order описывает заказ пользователя.
type Order struct {
	ID               string
	Number           string
	UserID           int64
	UserName         string
	ProductID        string
	ProductName      string
	ProductCategory  string
	AmountCents      int64
	Status           OrderStatus
	FulfillmentType  FulfillmentType
	PaymentMethod    PaymentMethod
	DeliveredCode    string
	RejectionReason  string
	RegionName       string
	QuantityLabel    string
	CustomInputValue string
	CreatedAt        time.Time
}

// TransactionType описывает направление движения средств по кошельку.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// Transaction представляет запись журнала операций по кошельку.
// Журнал append-only: по одной записи на каждое изменение баланса.
type Transaction struct {
	ID          string
	UserID      int64
	Title       string
	AmountCents int64
	Type        TransactionType
	Status      string
	CreatedAt   time.Time
}

// Balance содержит текущий баланс пользователя в долларах.
type Balance struct {
	Current float64 `json:"current"`
}

// Category описывает категорию каталога.
type Category struct {
	ID   string
	Name string
	Icon string
}

// Banner описывает рекламный баннер главной страницы.
type Banner struct {
	ID       string
	ImageURL string
	Link     string
}

// Announcement описывает объявление, показываемое пользователям.
type Announcement struct {
	ID       string
	Text     string
	IsActive bool
}

// Currency описывает валюту отображения цен с курсом к USD.
type Currency struct {
	Code   string
	Symbol string
	Rate   float64
}

// CartItem представляет позицию корзины: товар с выбранным регионом,
// номиналом и значением дополнительного поля. Живёт только в памяти сессии.
type CartItem struct {
	ID               string
	ProductID        string
	Name             string
	Category         string
	PriceCents       int64
	RegionID         string
	RegionName       string
	DenominationID   string
	QuantityLabel    string
	CustomInputValue string
	AddedAt          time.Time
}
