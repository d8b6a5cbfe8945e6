package summary

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/platform/httpx"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/shared"
)

// Handler exposes the dashboard endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Get(r.Context(), shared.TenantFromContext(r.Context()))
	if err != nil {
		h.logger.Error("summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Refresh(r.Context(), shared.TenantFromContext(r.Context()))
	if err != nil {
		h.logger.Error("summary refresh", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

// MountRoutes attaches the summary endpoints under /summary.
func MountRoutes(r chi.Router, h *Handler) {
	r.Route("/summary", func(r chi.Router) {
		r.Get("/", h.show)
		r.Post("/refresh", h.refresh)
	})
}
