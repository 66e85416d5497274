package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/courtsidehq/league-engine/middleware"
	"github.com/courtsidehq/league-engine/models"
	"github.com/courtsidehq/league-engine/services"
)

// SeasonHandler groups the season-level admin operations: locking,
// recalculation, parameter management, and exports.
type SeasonHandler struct {
	lockService   services.SeasonLockService
	recalcService services.RecalculationService
	configService services.RatingConfigService
	exportService services.ExportService

	// uploadsEnabled mirrors config.ExportUploadsEnabled; when false the
	// upload endpoint reports the feature as unavailable.
	uploadsEnabled bool
}

func NewSeasonHandler(
	lockService services.SeasonLockService,
	recalcService services.RecalculationService,
	configService services.RatingConfigService,
	exportService services.ExportService,
	uploadsEnabled bool,
) *SeasonHandler {
	return &SeasonHandler{
		lockService:    lockService,
		recalcService:  recalcService,
		configService:  configService,
		exportService:  exportService,
		uploadsEnabled: uploadsEnabled,
	}
}

// LockHandler handles POST /admin/seasons/{seasonID}/lock
func (h *SeasonHandler) LockHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	adminID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	var input struct {
		Notes string `json:"notes"`
	}
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	lock, err := h.lockService.Lock(r.Context(), seasonID, adminID, input.Notes)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"lock": lock}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UnlockHandler handles DELETE /admin/seasons/{seasonID}/lock
func (h *SeasonHandler) UnlockHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	adminID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	lock, err := h.lockService.Unlock(r.Context(), seasonID, adminID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"lock": lock}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LockStatusHandler handles GET /seasons/{seasonID}/lock
func (h *SeasonHandler) LockStatusHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	lock, err := h.lockService.Status(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"lock": lock}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecalculateHandler handles POST /admin/seasons/{seasonID}/recalculate
func (h *SeasonHandler) RecalculateHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.RecalculationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.SeasonID = seasonID
	if input.Scope == "" {
		input.Scope = services.ScopeSeason
	}

	result, err := h.recalcService.Recalculate(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// PreviewRecalculationHandler handles POST /admin/seasons/{seasonID}/recalculate/preview
func (h *SeasonHandler) PreviewRecalculationHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.RecalculationInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.SeasonID = seasonID
	if input.Scope == "" {
		input.Scope = services.ScopeSeason
	}

	preview, err := h.recalcService.PreviewRecalculation(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"preview": preview}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetParametersHandler handles GET /seasons/{seasonID}/parameters
func (h *SeasonHandler) GetParametersHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	params, err := h.configService.GetActiveParameters(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"parameters": params}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListParameterVersionsHandler handles GET /seasons/{seasonID}/parameters/versions
func (h *SeasonHandler) ListParameterVersionsHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	versions, err := h.configService.ListParameterVersions(r.Context(), seasonID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"versions": versions}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// SetParametersHandler handles PUT /admin/seasons/{seasonID}/parameters
func (h *SeasonHandler) SetParametersHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var update models.RatingParametersUpdate
	if err := readJSON(w, r, &update); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	result, err := h.configService.SetParameters(r.Context(), seasonID, update)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{"parameters": result.Parameters}
	if result.Warning != "" {
		response["warning"] = result.Warning
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ExportHandler handles GET /admin/seasons/{seasonID}/export?format=CSV|JSON
// and streams the generated file.
func (h *SeasonHandler) ExportHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	format := services.ExportFormat(strings.ToUpper(r.URL.Query().Get("format")))
	if format == "" {
		format = services.ExportFormatJSON
	}

	export, err := h.exportService.GenerateSeasonExport(r.Context(), seasonID, format)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

// ExportUploadHandler handles POST /admin/seasons/{seasonID}/export
func (h *SeasonHandler) ExportUploadHandler(w http.ResponseWriter, r *http.Request) {
	if !h.uploadsEnabled {
		errorResponse(w, r, http.StatusServiceUnavailable, "export uploads are not configured")
		return
	}

	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Format string `json:"format"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	format := services.ExportFormat(strings.ToUpper(input.Format))
	if format == "" {
		format = services.ExportFormatJSON
	}

	export, upload, err := h.exportService.UploadSeasonExport(r.Context(), seasonID, format)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	response := jsonResponse{
		"filename":     export.Filename,
		"generated_at": export.GeneratedAt,
		"location":     upload.Location,
		"key":          upload.Key,
	}
	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
