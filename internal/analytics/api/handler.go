package analytics_api

import (
	"net/http"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/analytics"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/utils"

	"github.com/go-chi/chi/v5"
)

// Handler handles event statistics endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

// RegisterRoutes mounts the admin statistics routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{eventId}/stats", h.GetEventStats)
	r.Post("/events/stats/batch", h.GetBatchEventStats)
}

func (h *Handler) GetEventStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.GetEventStats(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteError(w, "Failed to load event statistics", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event statistics", stats))
}

type batchRequest struct {
	EventIDs []string `json:"eventIds"`
}

func (h *Handler) GetBatchEventStats(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "Invalid request body", err)
		return
	}

	stats, err := h.Service.GetBatchEventStats(r.Context(), req.EventIDs)
	if err != nil {
		utils.WriteError(w, "Failed to load event statistics", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event statistics", stats))
}
