package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/mmeshcher/storefront-system/internal/model"
)

func seedProduct(t *testing.T, repo *MemoryRepository) *model.Product {
	t.Helper()
	p, err := repo.CreateProduct(context.Background(), &model.Product{
		Name:             "Game Card",
		Category:         "cards",
		PriceCents:       1000,
		AutoDeliverStock: true,
		FulfillmentType:  model.FulfillmentManual,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func seedUser(t *testing.T, repo *MemoryRepository, balanceCents int64) *model.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), "buyer", "buyer@example.com", "", nil)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if balanceCents > 0 {
		if _, err := repo.AdjustBalance(context.Background(), u.ID, balanceCents, "seed"); err != nil {
			t.Fatalf("adjust balance: %v", err)
		}
	}
	return u
}

func TestStockMatchingRule(t *testing.T) {
	tests := []struct {
		name          string
		stockRegion   string
		stockDenom    string
		reqRegion     string
		reqDenom      string
		wantAllocated bool
	}{
		{name: "exact region match", stockRegion: "eu", reqRegion: "eu", wantAllocated: true},
		{name: "global stock matches any region", stockRegion: "", reqRegion: "eu", wantAllocated: true},
		{name: "global stock matches absent region", stockRegion: "", reqRegion: "", wantAllocated: true},
		{name: "regional stock does not match other region", stockRegion: "eu", reqRegion: "us", wantAllocated: false},
		{name: "regional stock does not match absent region", stockRegion: "eu", reqRegion: "", wantAllocated: false},
		{name: "denomination exact match", stockDenom: "d100", reqDenom: "d100", wantAllocated: true},
		{name: "denomination mismatch", stockDenom: "d100", reqDenom: "d500", wantAllocated: false},
		{name: "global denomination matches any", stockDenom: "", reqDenom: "d500", wantAllocated: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMemoryRepository()
			p := seedProduct(t, repo)
			u := seedUser(t, repo, 0)

			_, err := repo.AddInventoryBatch(context.Background(), []model.InventoryCode{
				{ProductID: p.ID, RegionID: tt.stockRegion, DenominationID: tt.stockDenom, Code: "ABC123"},
			})
			if err != nil {
				t.Fatalf("add inventory: %v", err)
			}

			order, err := repo.PlaceOrder(context.Background(), PlaceOrderParams{
				Order: model.Order{
					ID:              "o1",
					UserID:          u.ID,
					ProductID:       p.ID,
					ProductName:     p.Name,
					Status:          model.OrderStatusPending,
					FulfillmentType: model.FulfillmentManual,
					PaymentMethod:   model.PaymentCard,
				},
				AttemptStock:   true,
				RegionID:       tt.reqRegion,
				DenominationID: tt.reqDenom,
			})
			if err != nil {
				t.Fatalf("place order: %v", err)
			}

			if tt.wantAllocated {
				if order.Status != model.OrderStatusCompleted {
					t.Fatalf("status = %s, want completed", order.Status)
				}
				if order.DeliveredCode != "ABC123" {
					t.Fatalf("delivered code = %q, want ABC123", order.DeliveredCode)
				}
				if order.FulfillmentType != model.FulfillmentStock {
					t.Fatalf("fulfillment = %s, want stock", order.FulfillmentType)
				}
			} else {
				if order.Status != model.OrderStatusPending {
					t.Fatalf("status = %s, want pending", order.Status)
				}
				if order.DeliveredCode != "" {
					t.Fatalf("delivered code = %q, want empty", order.DeliveredCode)
				}
			}
		})
	}
}

func TestStockFirstMatchWins(t *testing.T) {
	repo := NewMemoryRepository()
	p := seedProduct(t, repo)
	u := seedUser(t, repo, 0)

	_, err := repo.AddInventoryBatch(context.Background(), []model.InventoryCode{
		{ProductID: p.ID, Code: "FIRST"},
		{ProductID: p.ID, Code: "SECOND"},
	})
	if err != nil {
		t.Fatalf("add inventory: %v", err)
	}

	order, err := repo.PlaceOrder(context.Background(), PlaceOrderParams{
		Order: model.Order{
			ID: "o1", UserID: u.ID, ProductID: p.ID, ProductName: p.Name,
			Status: model.OrderStatusPending, FulfillmentType: model.FulfillmentManual,
			PaymentMethod: model.PaymentCard,
		},
		AttemptStock: true,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.DeliveredCode != "FIRST" {
		t.Fatalf("delivered code = %q, want FIRST", order.DeliveredCode)
	}

	// второй код не тронут
	inv, err := repo.ListInventory(context.Background())
	if err != nil {
		t.Fatalf("list inventory: %v", err)
	}
	for _, ic := range inv {
		if ic.Code == "SECOND" && ic.IsUsed {
			t.Fatalf("second code must remain unused")
		}
	}
}

func TestConcurrentAllocationOfLastUnit(t *testing.T) {
	repo := NewMemoryRepository()
	p := seedProduct(t, repo)
	u := seedUser(t, repo, 100000)

	_, err := repo.AddInventoryBatch(context.Background(), []model.InventoryCode{
		{ProductID: p.ID, Code: "ONLY-ONE"},
	})
	if err != nil {
		t.Fatalf("add inventory: %v", err)
	}

	const attempts = 16
	results := make([]model.FulfillmentType, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			order, err := repo.PlaceOrder(context.Background(), PlaceOrderParams{
				Order: model.Order{
					ID: "o" + string(rune('a'+n)), UserID: u.ID, ProductID: p.ID,
					ProductName: p.Name, AmountCents: 1000,
					Status: model.OrderStatusPending, FulfillmentType: model.FulfillmentManual,
					PaymentMethod: model.PaymentWallet,
				},
				Debit:        true,
				AttemptStock: true,
			})
			if err != nil {
				t.Errorf("place order: %v", err)
				return
			}
			results[n] = order.FulfillmentType
		}(i)
	}
	wg.Wait()

	stockWins := 0
	for _, ft := range results {
		if ft == model.FulfillmentStock {
			stockWins++
		}
	}
	if stockWins != 1 {
		t.Fatalf("exactly one attempt must win the last unit, got %d", stockWins)
	}

	// баланс списан за каждую покупку ровно один раз
	user, err := repo.GetUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if want := int64(100000 - attempts*1000); user.BalanceCents != want {
		t.Fatalf("balance = %d, want %d", user.BalanceCents, want)
	}
}

func TestCancelOrderRefundsWallet(t *testing.T) {
	repo := NewMemoryRepository()
	p := seedProduct(t, repo)
	u := seedUser(t, repo, 5000)

	order, err := repo.PlaceOrder(context.Background(), PlaceOrderParams{
		Order: model.Order{
			ID: "o1", UserID: u.ID, ProductID: p.ID, ProductName: p.Name,
			AmountCents: 1000, Status: model.OrderStatusPending,
			FulfillmentType: model.FulfillmentManual, PaymentMethod: model.PaymentWallet,
		},
		Debit: true,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}

	cancelled, err := repo.CancelOrder(context.Background(), order.ID, "out of stock")
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if cancelled.Status != model.OrderStatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.RejectionReason != "out of stock" {
		t.Fatalf("reason = %q", cancelled.RejectionReason)
	}
	if cancelled.DeliveredCode != "" {
		t.Fatalf("delivered code must stay empty")
	}

	user, err := repo.GetUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.BalanceCents != 5000 {
		t.Fatalf("balance = %d, want 5000 after refund", user.BalanceCents)
	}

	// повторная отмена невозможна
	if _, err := repo.CancelOrder(context.Background(), order.ID, "again"); err != ErrOrderNotPending {
		t.Fatalf("second cancel: err = %v, want ErrOrderNotPending", err)
	}
}

func TestAdjustBalanceRejectsOverdraft(t *testing.T) {
	repo := NewMemoryRepository()
	u := seedUser(t, repo, 500)

	if _, err := repo.AdjustBalance(context.Background(), u.ID, -600, "too much"); err != ErrInsufficientBalance {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	user, err := repo.GetUserByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if user.BalanceCents != 500 {
		t.Fatalf("balance = %d, want unchanged 500", user.BalanceCents)
	}
}

func TestDeleteUsedInventoryCode(t *testing.T) {
	repo := NewMemoryRepository()
	p := seedProduct(t, repo)
	u := seedUser(t, repo, 0)

	_, err := repo.AddInventoryBatch(context.Background(), []model.InventoryCode{
		{ProductID: p.ID, Code: "USED"},
	})
	if err != nil {
		t.Fatalf("add inventory: %v", err)
	}

	if _, err := repo.PlaceOrder(context.Background(), PlaceOrderParams{
		Order: model.Order{
			ID: "o1", UserID: u.ID, ProductID: p.ID, ProductName: p.Name,
			Status: model.OrderStatusPending, FulfillmentType: model.FulfillmentManual,
			PaymentMethod: model.PaymentCard,
		},
		AttemptStock: true,
	}); err != nil {
		t.Fatalf("place order: %v", err)
	}

	inv, err := repo.ListInventory(context.Background())
	if err != nil {
		t.Fatalf("list inventory: %v", err)
	}
	if len(inv) != 1 || !inv[0].IsUsed {
		t.Fatalf("inventory code must be marked used")
	}

	if err := repo.DeleteInventoryCode(context.Background(), inv[0].ID); err != ErrCodeUsed {
		t.Fatalf("delete used code: err = %v, want ErrCodeUsed", err)
	}
}
