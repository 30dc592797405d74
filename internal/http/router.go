package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts every storefront endpoint.
func NewRouter(sessions SessionSource, orders OrderService, requestTimeout time.Duration) http.Handler {
	cartHandler := NewCartHandler(requestTimeout)
	sessionHandler := NewSessionHandler(requestTimeout)
	checkoutHandler := NewCheckoutHandler(requestTimeout)
	paymentHandler := NewPaymentHandler(requestTimeout)
	ordersHandler := NewOrdersHandler(orders, requestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(AuthMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(sessions))

		r.Route("/api", func(r chi.Router) {
			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{item_id}", cartHandler.UpdateQuantity)
				r.Delete("/items/{item_id}", cartHandler.RemoveItem)
				r.Post("/items/{item_id}/increment", cartHandler.Increment)
				r.Post("/items/{item_id}/decrement", cartHandler.Decrement)
			})
			r.Route("/session", func(r chi.Router) {
				r.Post("/login", sessionHandler.Login)
				r.Post("/logout", sessionHandler.Logout)
			})
			r.Route("/checkout", func(r chi.Router) {
				r.Get("/", checkoutHandler.GetCheckout)
				r.Post("/delivery", checkoutHandler.SetDelivery)
				r.Post("/payment", checkoutHandler.SelectPayment)
				r.Post("/back", checkoutHandler.Back)
				r.Post("/confirm", checkoutHandler.Confirm)
				r.Post("/abandon", checkoutHandler.Abandon)
				r.Post("/retry/{order_id}", checkoutHandler.RetryPayment)
			})
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", ordersHandler.ListOrders)
				r.Get("/{order_id}", ordersHandler.GetOrder)
				r.Post("/{order_id}/cancel", ordersHandler.CancelOrder)
			})
		})

		r.Get("/payment/success", paymentHandler.Success)
		r.Get("/payment/failed", paymentHandler.Failed)
	})

	return r
}
