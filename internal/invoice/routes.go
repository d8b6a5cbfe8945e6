package invoice

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the invoice endpoints under /invoices.
func MountRoutes(r chi.Router, h *Handler) {
	r.Route("/invoices", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.show)
			r.Put("/", h.update)
			r.Delete("/", h.remove)
			r.Post("/send", h.send)
			r.Post("/payments", h.recordPayment)
			r.Get("/payments", h.payments)
			r.Post("/overdue", h.transition(h.service.MarkOverdue))
			r.Post("/cancel", h.transition(h.service.Cancel))
		})
	})
}
