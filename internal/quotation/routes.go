package quotation

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the quotation endpoints under /quotations.
func MountRoutes(r chi.Router, h *Handler) {
	r.Route("/quotations", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.show)
			r.Put("/", h.update)
			r.Delete("/", h.remove)
			r.Post("/send", h.send)
			r.Post("/viewed", h.transition(h.service.MarkViewed))
			r.Post("/accept", h.transition(h.service.Accept))
			r.Post("/reject", h.transition(h.service.Reject))
			r.Post("/expire", h.transition(h.service.Expire))
			r.Post("/convert", h.convert)
		})
	})
}
