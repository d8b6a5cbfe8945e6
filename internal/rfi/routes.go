package rfi

import "github.com/go-chi/chi/v5"

// MountRoutes attaches the RFI endpoints under /rfis.
func MountRoutes(r chi.Router, h *Handler) {
	r.Route("/rfis", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.show)
			r.Put("/", h.update)
			r.Delete("/", h.remove)
			r.Post("/send", h.send)
			r.Post("/responded", h.transition(h.service.MarkResponded))
			r.Post("/close", h.transition(h.service.Close))
			r.Post("/convert", h.convert)
		})
	})
}
