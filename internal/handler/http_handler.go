package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"metargb/media-service/internal/service"
	"metargb/media-service/pkg/logger"
	"metargb/media-service/pkg/validation"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// HTTPHandler serves the media operations as JSON endpoints
type HTTPHandler struct {
	service   *service.MediaService
	validator *validation.Validator
	logger    *logger.Logger
	gatherer  prometheus.Gatherer
}

// NewHTTPHandler creates a new HTTP handler; gatherer backs /metrics
func NewHTTPHandler(svc *service.MediaService, log *logger.Logger, gatherer prometheus.Gatherer) *HTTPHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &HTTPHandler{
		service:   svc,
		validator: validation.New(),
		logger:    log,
		gatherer:  gatherer,
	}
}

// RegisterHTTPRoutes registers all HTTP routes
func (h *HTTPHandler) RegisterHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/attachments/resolve", h.HandleResolve)
	mux.HandleFunc("POST /api/attachments/import", h.HandleImport)
	mux.HandleFunc("POST /api/images/render", h.HandleRenderImage)
	mux.HandleFunc("POST /api/images/url", h.HandleImageURL)
	mux.HandleFunc("GET /health", h.HandleHealthCheck)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// HandleResolve resolves an image field to an attachment ID
// POST /api/attachments/resolve
func (h *HTTPHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(w, r)

	var req ResolveRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.service.ResolveAttachmentID(r.Context(), req.Field)
	if err != nil {
		log.WithError(err).Error("failed to resolve attachment")
		h.sendError(w, http.StatusInternalServerError, "failed to resolve attachment")
		return
	}

	h.sendJSON(w, http.StatusOK, AttachmentIDResponse{AttachmentID: id})
}

// HandleRenderImage renders <img> markup
// POST /api/images/render
func (h *HTTPHandler) HandleRenderImage(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(w, r)

	var req RenderImageRequest
	if !h.decode(w, r, &req) {
		return
	}

	markup, err := h.service.Image(r.Context(), req.Field, sizeOrDefault(req.Size), req.Default, service.ParseAttributes(req.Attributes))
	if err != nil {
		log.WithError(err).Error("failed to render image")
		h.sendError(w, http.StatusInternalServerError, "failed to render image")
		return
	}

	h.sendJSON(w, http.StatusOK, ImageResponse{HTML: markup})
}

// HandleImageURL returns a sized image URL
// POST /api/images/url
func (h *HTTPHandler) HandleImageURL(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(w, r)

	var req ImageURLRequest
	if !h.decode(w, r, &req) {
		return
	}

	url, err := h.service.ImageURL(r.Context(), req.Field, sizeOrDefault(req.Size), req.Default)
	if err != nil {
		log.WithError(err).Error("failed to get image url")
		h.sendError(w, http.StatusInternalServerError, "failed to get image url")
		return
	}

	h.sendJSON(w, http.StatusOK, URLResponse{URL: url})
}

// HandleImport imports a remote file as an attachment
// POST /api/attachments/import
func (h *HTTPHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	log := h.requestLogger(w, r)

	var req ImportAttachmentRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.service.ImportAttachment(r.Context(), req.toService())
	switch {
	case err == nil:
		h.sendJSON(w, http.StatusCreated, AttachmentIDResponse{AttachmentID: id})
	case errors.Is(err, service.ErrDownload):
		h.sendError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, service.ErrFileType):
		h.sendError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrFeatured):
		log.WithError(err).WithField("attachment_id", id).Error("attachment imported without featured image")
		h.sendJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success":       false,
			"error":         err.Error(),
			"attachment_id": id,
		})
	default:
		log.WithError(err).Error("failed to import attachment")
		h.sendError(w, http.StatusInternalServerError, "failed to import attachment")
	}
}

// HandleHealthCheck handles health check endpoint
func (h *HTTPHandler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "media-service",
	})
}

func (h *HTTPHandler) requestLogger(w http.ResponseWriter, r *http.Request) *logrus.Entry {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	return h.logger.WithRequestID(requestID).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	})
}

// decode reads and validates the body, writing the error response itself
func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, maxBodyBytes), dst); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := h.validator.Validate(dst); err != nil {
		validation.WriteValidationErrorResponse(w, err)
		return false
	}
	return true
}

func (h *HTTPHandler) sendJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// sendError sends an error response
func (h *HTTPHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	h.sendJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
