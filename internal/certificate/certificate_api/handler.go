package certificate_api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/service"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	Service  *service.Service
	Logger   *logger.Logger
	validate *validator.Validate
}

func NewHandler(svc *service.Service, log *logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log, validate: validator.New()}
}

type mintRequest struct {
	EventID string `json:"eventId" validate:"required"`
}

type mintResponse struct {
	Message string                     `json:"message"`
	Report  *models.MintReport         `json:"report"`
	Summary map[models.MintOutcome]int `json:"summary"`
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/certificates/verify/{certId}", h.Verify)
	r.Get("/certificates/network-info", h.NetworkInfo)
	r.Get("/certificates/{certId}/pdf", h.PDF)
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/certificates/mint", h.Mint)
	r.Get("/certificates", h.List)
	r.Get("/certificates/mint-runs/{eventId}", h.MintRuns)
	r.Post("/certificates/{certId}/pdf", h.RegeneratePDF)
}

// Mint answers 200 whenever the run started, whatever the individual outcomes.
func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, "Event ID is required to mint certificates", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteError(w, "Event ID is required to mint certificates", apperr.Wrap(apperr.KindValidation, "invalid mint request", err))
		return
	}

	report, err := h.Service.Mint(r.Context(), req.EventID)
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindNotFound:
			utils.WriteError(w, "Event not found", err)
		case apperr.KindEmptyAttendance:
			utils.WriteError(w, "No attendance records found for this event", err)
		default:
			h.Logger.Error("MINT", fmt.Sprintf("Mint of %s failed: %v", req.EventID, err))
			utils.WriteError(w, "Failed to mint certificates", err)
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, mintResponse{
		Message: "Minting completed",
		Report:  report,
		Summary: report.Summary(),
	})
}

// Verify keeps the fixed {blockchain, database, verified} shape and a single 404 for every miss.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	v, err := h.Service.Verify(r.Context(), chi.URLParam(r, "certId"))
	if err != nil {
		utils.WriteJSON(w, http.StatusNotFound, map[string]interface{}{
			"error":    "Certificate not found or invalid",
			"verified": false,
		})
		return
	}
	utils.WriteJSON(w, http.StatusOK, v)
}

func (h *Handler) PDF(w http.ResponseWriter, r *http.Request) {
	pdf, fileName, err := h.Service.RenderPDF(r.Context(), chi.URLParam(r, "certId"))
	if err != nil {
		utils.WriteError(w, "Failed to render certificate", err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pdf); err != nil {
		h.Logger.Warn("CERTIFICATE", fmt.Sprintf("Failed to stream %s: %v", fileName, err))
	}
}

func (h *Handler) RegeneratePDF(w http.ResponseWriter, r *http.Request) {
	hash, err := h.Service.PinPDF(r.Context(), chi.URLParam(r, "certId"))
	if err != nil {
		utils.WriteError(w, "Failed to generate certificate PDF", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Certificate PDF generated and uploaded", map[string]string{
		"pdfIpfsHash": hash,
		"url":         h.Service.Storage.GatewayURL(hash),
	}))
}

func (h *Handler) NetworkInfo(w http.ResponseWriter, r *http.Request) {
	info := h.Service.NetworkInfo(r.Context())
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Network info", map[string]interface{}{
		"network": info,
	}))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	certs, err := h.Service.ListCertificates(r.Context())
	if err != nil {
		utils.WriteError(w, "Failed to list certificates", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Certificates", certs))
}

func (h *Handler) MintRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Service.MintRuns(r.Context(), chi.URLParam(r, "eventId"))
	if err != nil {
		utils.WriteError(w, "Failed to load mint runs", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Mint runs", runs))
}
