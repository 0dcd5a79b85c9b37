package attendance_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/attendance/service"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *service.Service
	Logger  *logger.Logger
}

func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

type scanRequest struct {
	QRToken string `json:"qrToken"`
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/attendance/{eventId}", h.ListAttendance)
}

// RegisterAdminRoutes mounts the scanner-facing routes.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/attendance/scan", h.Scan)
	r.Get("/attendance/{eventId}/stream", h.Stream)
}

func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "QR token is required", err)
		return
	}

	result, err := h.Service.Scan(r.Context(), req.QRToken)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindExpired:
			utils.WriteError(w, "QR code expired", err)
		case apperr.KindNotFound:
			utils.WriteError(w, "Invalid QR code", err)
		case apperr.KindValidation:
			utils.WriteError(w, "QR token is required", err)
		default:
			h.Logger.Error("ATTENDANCE", fmt.Sprintf("Scan failed: %v", err))
			utils.WriteError(w, "Failed to record attendance", err)
		}
		return
	}

	message := "Attendance marked successfully"
	if result.Status == models.ScanAlreadyCheckedIn {
		message = "Already checked in"
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(message, result))
}

func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	rows, err := h.Service.ListAttendance(r.Context(), eventID)
	if err != nil {
		utils.WriteError(w, "Failed to list attendance", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Attendance", map[string]interface{}{
		"eventId":    eventID,
		"count":      len(rows),
		"attendance": rows,
	}))
}

// Stream pushes every first check-in of an event as a server-sent event.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, "Streaming unsupported", apperr.Unconfigured("response writer cannot flush"))
		return
	}

	ctx := r.Context()
	updates, err := h.Service.Subscribe(ctx, eventID)
	if err != nil {
		utils.WriteError(w, "Failed to open attendance stream", err)
		return
	}

	setupSSEHeaders(w)
	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"eventId\":%q}\n\n", eventID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to attendance stream of %s", eventID))

	for {
		select {
		case result, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(result)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize scan result: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: checkin\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client left attendance stream of %s", eventID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
