package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/storefront-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/admin", h.AdminLogin)

		r.Get("/products", h.GetProducts)
		r.Get("/content/banners", h.GetBanners)
		r.Get("/content/announcements", h.GetAnnouncements)
		r.Get("/content/categories", h.GetCategories)
		r.Get("/currencies", h.GetCurrencies)
		r.Post("/payments/charge", h.Charge)

		r.Post("/cart/pending", h.StashGuestItem)
		r.Delete("/cart/pending", h.DropGuestItem)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/auth/profile", h.GetProfile)
			r.Put("/auth/profile", h.UpdateProfile)
			r.Post("/auth/logout", h.Logout)

			r.Post("/orders", h.CreateOrder)
			r.Get("/orders/myorders", h.GetMyOrders)

			r.Get("/wallet/balance", h.GetWalletBalance)
			r.Get("/wallet/transactions", h.GetTransactions)
			r.Post("/wallet/deposit", h.Deposit)

			r.Get("/cart", h.GetCart)
			r.Post("/cart", h.AddToCart)
			r.Delete("/cart/{id}", h.RemoveFromCart)
			r.Post("/cart/checkout", h.Checkout)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.AdminMiddleware)

			r.Get("/orders", h.AdminListOrders)
			r.Get("/orders/{id}", h.AdminGetOrder)
			r.Put("/orders/{id}/status", h.AdminSetOrderStatus)

			r.Post("/products", h.AdminCreateProduct)
			r.Put("/products/{id}", h.AdminUpdateProduct)
			r.Delete("/products/{id}", h.AdminDeleteProduct)

			r.Get("/inventory", h.AdminListInventory)
			r.Post("/inventory", h.AdminAddInventory)
			r.Delete("/inventory/{id}", h.AdminDeleteInventory)

			r.Get("/users", h.AdminListUsers)
			r.Put("/users/{id}/balance", h.AdminAdjustBalance)
			r.Put("/users/{id}/status", h.AdminSetUserStatus)

			r.Post("/content/categories", h.AdminCreateCategory)
			r.Delete("/content/categories/{id}", h.AdminDeleteCategory)
			r.Post("/content/banners", h.AdminCreateBanner)
			r.Delete("/content/banners/{id}", h.AdminDeleteBanner)
			r.Post("/content/announcements", h.AdminCreateAnnouncement)
			r.Delete("/content/announcements/{id}", h.AdminDeleteAnnouncement)

			r.Post("/currencies", h.AdminUpsertCurrency)
			r.Put("/currencies/{code}", h.AdminUpsertCurrency)
			r.Delete("/currencies/{code}", h.AdminDeleteCurrency)

			r.Get("/admin/report", h.AdminReport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusNotFound, "not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
