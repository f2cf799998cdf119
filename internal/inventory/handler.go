package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridianpos/meridian/internal/platform/httpx"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/low-stock", h.LowStock)
	r.Get("/{variantID}", h.Get)
	r.Post("/{variantID}/adjust", h.Adjust)
	r.Post("/{variantID}/reserve", h.Reserve)
	r.Post("/{variantID}/release", h.Release)
	r.Put("/{variantID}/reorder-policy", h.SetReorderPolicy)
	r.Post("/{variantID}/count", h.Count)
	r.Get("/{variantID}/movements", h.Movements)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	variantID, ok := h.variantID(w, r)
	if !ok {
		return
	}
	rec, err := h.service.Get(r.Context(), variantID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

type adjustForm struct {
	Type          string `json:"type" validate:"required,oneof=purchase sale adjustment transfer return"`
	Delta         int64  `json:"delta" validate:"required"`
	ReferenceType string `json:"reference_type" validate:"max=50"`
	ReferenceID   int64  `json:"reference_id" validate:"gte=0"`
	Note          string `json:"note" validate:"max=500"`
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	variantID, ok := h.variantID(w, r)
	if !ok {
		return
	}
	var form adjustForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mv, err := h.service.Adjust(r.Context(), AdjustInput{
		VariantID:     variantID,
		Type:          MovementType(form.Type),
		Delta:         form.Delta,
		ReferenceType: form.ReferenceType,
		ReferenceID:   form.ReferenceID,
		Note:          form.Note,
	}, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.logger.Error("stock adjust failed", slog.Int64("variant_id", variantID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mv)
}

type reserveForm struct {
	Quantity int64 `json:"quantity" validate:"required,gt=0"`
}

func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	variantID, ok := h.variantID(w, r)
	if !ok {
		return
	}
	var form reserveForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Reserve(r.Context(), variantID, form.Quantity); err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "reserved"})
}

func (h *Handler) Release(w http.ResponseWriter, r *http.Request) {
	variantID, ok := h.variantID(w, r)
	if !ok {
		return
	}
	var form reserveForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Release(r.Context(), variantID, form.Quantity); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (h *Handler) SetReorderPolicy(w http.ResponseWriter, r *http.Request) {
	variantID, ok := h.variantID(w, r)
	if !ok {
		return
	}
	var form struct {
		Level    int64  `json:"level" validate:"gte=0"`
		Quantity int64  `json:"quantity" validate:"gte=0"`
		Location string `json:"location" validate:"max=100"`
	}
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetReorderPolicy(r.Context(), variantID, form.Level, form.Quantity, form.Location); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	variantID, ok := h.variantID(w, r)
	if !ok {
		return
	}
	var form struct {
		Counted int64  `json:"counted" validate:"gte=0"`
		Note    string `json:"note" validate:"max=500"`
	}
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	mv, err := h.service.Count(r.Context(), variantID, form.Counted, form.Note)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mv)
}

func (h *Handler) Movements(w http.ResponseWriter, r *http.Request) {
	variantID, ok := h.variantID(w, r)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	list, err := h.service.Movements(r.Context(), variantID, page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": list})
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.LowStock(r.Context())
	if err != nil {
		h.logger.Error("low stock listing failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": list})
}

func (h *Handler) variantID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "variantID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid variant id")
		return 0, false
	}
	return id, true
}
