package rules

import (
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

// MountRoutes registers rule routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{productID}", h.ListByProduct)
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Delete)
	r.Put("/{id}/active", h.SetActive)
	r.Post("/validate", h.Validate)
	r.Post("/compatible", h.Compatible)
}

type ruleForm struct {
	ProductID        int64  `json:"product_id" validate:"required,gt=0"`
	Kind             string `json:"kind" validate:"required,oneof=compatibility dependency exclusion"`
	PrimaryTypeID    int64  `json:"primary_type_id" validate:"required,gt=0"`
	PrimaryValueID   int64  `json:"primary_value_id" validate:"required,gt=0"`
	SecondaryTypeID  int64  `json:"secondary_type_id" validate:"required,gt=0"`
	SecondaryValueID int64  `json:"secondary_value_id" validate:"required,gt=0"`
	IsActive         *bool  `json:"is_active"`
}

func (h *Handler) ListByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	list, err := h.service.ListByProduct(r.Context(), productID)
	if err != nil {
		h.logger.Error("list rules failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rules": list})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var form ruleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if form.IsActive != nil {
		active = *form.IsActive
	}
	created, err := h.service.Create(r.Context(), Rule{
		ProductID:        form.ProductID,
		Kind:             Kind(form.Kind),
		PrimaryTypeID:    form.PrimaryTypeID,
		PrimaryValueID:   form.PrimaryValueID,
		SecondaryTypeID:  form.SecondaryTypeID,
		SecondaryValueID: form.SecondaryValueID,
		IsActive:         active,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid rule id")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid rule id")
		return
	}
	var body struct {
		IsActive bool `json:"is_active"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.service.SetActive(r.Context(), id, body.IsActive); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type validateForm struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Selection map[string]int64 `json:"selection" validate:"required,min=1"`
}

func (f validateForm) toSelection() (Selection, bool) {
	sel := Selection{}
	for key, valueID := range f.Selection {
		typeID, err := strconv.ParseInt(key, 10, 64)
		if err != nil || typeID <= 0 || valueID <= 0 {
			return nil, false
		}
		sel[typeID] = valueID
	}
	return sel, true
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var form validateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sel, ok := form.toSelection()
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "selection keys and values must be positive ids")
		return
	}
	result, err := h.service.Validate(r.Context(), form.ProductID, sel)
	if err != nil {
		h.logger.Error("rule validation failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

type compatibleForm struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Selection map[string]int64 `json:"selection"`
	TypeID    int64            `json:"type_id" validate:"required,gt=0"`
	ValueIDs  []int64          `json:"value_ids" validate:"required,min=1,dive,gt=0"`
}

func (h *Handler) Compatible(w http.ResponseWriter, r *http.Request) {
	var form compatibleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sel, ok := validateForm{Selection: form.Selection}.toSelection()
	if !ok && len(form.Selection) > 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "selection keys and values must be positive ids")
		return
	}
	values, err := h.service.CompatibleValues(r.Context(), form.ProductID, sel, Axis{TypeID: form.TypeID, ValueIDs: form.ValueIDs})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"value_ids": values})
}
