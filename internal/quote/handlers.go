package quote

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-pricing/internal/common"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
	"github.com/noah-isme/toko-pricing/internal/tenant"
)

// Handler exposes the pricing and currency endpoints.
type Handler struct {
	service  *Service
	renderer Renderer
	maxBody  int64
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service      *Service
	Renderer     Renderer
	MaxBodyBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, renderer: cfg.Renderer, maxBody: cfg.MaxBodyBytes}
}

// Routes mounts the handlers on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/pricing/calculate", h.Calculate)
	r.Post("/pricing/document", h.Document)
	r.Get("/currencies", h.Currencies)
	r.Get("/currencies/{code}/rate", h.Rate)
	r.Post("/currencies/convert", h.Convert)
}

// Calculate handles POST /api/v1/pricing/calculate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	res, ok := h.price(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, res)
}

// Document handles POST /api/v1/pricing/document and responds with a PDF.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	res, ok := h.price(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, res); err != nil {
		h.writeError(w, err)
		return
	}
	obs.ObserveDocumentRendered("pdf")
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+fileName(res.Number)+`.pdf"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Currencies handles GET /api/v1/currencies.
func (h *Handler) Currencies(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	list, err := h.service.Currencies(r.Context(), tenantID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, list)
}

// Rate handles GET /api/v1/currencies/{code}/rate.
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	common.Data(w, http.StatusOK, h.service.Rate(r.Context(), tenantID, chi.URLParam(r, "code")))
}

// Convert handles POST /api/v1/currencies/convert.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req ConvertRequest
	if err := common.DecodeJSON(w, r, h.maxBody, &req); err != nil {
		h.writeError(w, err)
		return
	}
	tenantID, _ := tenant.FromContext(r.Context())
	out, err := h.service.Convert(r.Context(), tenantID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, out)
}

func (h *Handler) price(w http.ResponseWriter, r *http.Request) (Result, bool) {
	if !h.ready(w) {
		return Result{}, false
	}
	var req Request
	if err := common.DecodeJSON(w, r, h.maxBody, &req); err != nil {
		h.writeError(w, err)
		return Result{}, false
	}
	tenantID, _ := tenant.FromContext(r.Context())
	res, err := h.service.Price(r.Context(), tenantID, req)
	if err != nil {
		h.writeError(w, err)
		return Result{}, false
	}
	return res, true
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return false
	}
	return true
}

// fileName keeps only characters that are safe inside a quoted Content-Disposition filename.
func fileName(number string) string {
	out := make([]rune, 0, len(number))
	for _, c := range number {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return "document"
	}
	return string(out)
}

type invalidInputDetails struct {
	Field  string `json:"field"`
	Index  *int   `json:"index,omitempty"`
	Reason string `json:"reason"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var invalid *pricing.InvalidInputError
	if errors.As(err, &invalid) {
		details := invalidInputDetails{Field: invalid.Field, Reason: invalid.Reason}
		if invalid.Index >= 0 {
			idx := invalid.Index
			details.Index = &idx
		}
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_INPUT", invalid.Error(), details)
		return
	}
	common.WriteError(w, err)
}
