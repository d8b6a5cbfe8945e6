package purchaseorder

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the purchase order endpoints under /purchase-orders.
func MountRoutes(r chi.Router, h *Handler) {
	r.Route("/purchase-orders", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.show)
			r.Put("/", h.update)
			r.Delete("/", h.remove)
			r.Post("/receive", h.transition(h.service.Receive))
			r.Post("/approve", h.transition(h.service.Approve))
			r.Post("/start", h.transition(h.service.Start))
			r.Post("/complete", h.transition(h.service.Complete))
			r.Post("/cancel", h.transition(h.service.Cancel))
			r.Post("/convert", h.convert)
		})
	})
}
