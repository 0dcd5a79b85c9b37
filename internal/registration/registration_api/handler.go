package registration_api

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/service"
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

type registerResponse struct {
	RegistrationID string `json:"registrationId"`
	EventID        string `json:"eventId"`
	Email          string `json:"email"`
	QRToken        string `json:"qrToken"`
	QRCode         string `json:"qrCode"`
	TokenExpiry    string `json:"tokenExpiry"`
}

// RegisterPublicRoutes mounts the unauthenticated ledger routes.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/events", h.ListEvents)
	r.Get("/events/{eventId}", h.GetEvent)
	r.Post("/events/{eventId}/register", h.Register)
	r.Get("/registrations/count/{eventId}", h.CountRegistrations)
}

// RegisterAdminRoutes mounts the routes that need admin credentials.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/events", h.CreateEvent)
	r.Put("/participants", h.UpsertParticipant)
	r.Delete("/participants/{email}", h.DeleteParticipant)
	r.Get("/registrations/event/{eventId}", h.ListRegistrations)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req service.CreateEventRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "Invalid event", err)
		return
	}

	event, err := h.Service.CreateEvent(r.Context(), req)
	if err != nil {
		utils.WriteError(w, "Failed to create event", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Event created", event))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Service.ListEvents(r.Context())
	if err != nil {
		h.Logger.Error("EVENT", fmt.Sprintf("Failed to list events: %v", err))
		utils.WriteError(w, "Failed to list events", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Events", events))
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.GetEvent(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteError(w, "Event not available", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Event", event))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "Invalid registration", err)
		return
	}

	reg, err := h.Service.Register(r.Context(), chi.URLParam(r, "eventId"), req)
	if err != nil {
		utils.WriteError(w, "Registration failed", err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Registered successfully", registerResponse{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		Email:          reg.ParticipantEmail,
		QRToken:        reg.QRToken,
		QRCode:         "data:image/png;base64," + base64.StdEncoding.EncodeToString(reg.QRCode),
		TokenExpiry:    reg.TokenExpiry.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}))
}

func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	participants, err := h.Service.ListRegistrations(r.Context(), eventID)
	if err != nil {
		utils.WriteError(w, "Failed to list registrations", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Registrations", map[string]interface{}{
		"eventId":      eventID,
		"participants": participants,
	}))
}

func (h *Handler) CountRegistrations(w http.ResponseWriter, r *http.Request) {
	count, err := h.Service.CountRegistrations(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteError(w, "Failed to count registrations", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Registration count", map[string]int{"count": count}))
}

func (h *Handler) UpsertParticipant(w http.ResponseWriter, r *http.Request) {
	var req service.ParticipantRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "Invalid participant", err)
		return
	}
	p, err := h.Service.UpsertParticipant(r.Context(), req)
	if err != nil {
		utils.WriteError(w, "Failed to save participant", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Participant saved", p))
}

func (h *Handler) DeleteParticipant(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteParticipant(r.Context(), chi.URLParam(r, "email")); err != nil {
		utils.WriteError(w, "Failed to delete participant", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Participant deleted", nil))
}
