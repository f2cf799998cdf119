package attributes

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

// MountRoutes registers attribute catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/types", h.ListTypes)
	r.Post("/types", h.CreateType)
	r.Get("/types/{id}", h.GetType)
	r.Put("/types/{id}", h.UpdateType)
	r.Delete("/types/{id}", h.DeleteType)

	r.Get("/types/{id}/values", h.ListValues)
	r.Post("/types/{id}/values", h.CreateValue)
	r.Put("/values/{id}", h.UpdateValue)
	r.Delete("/values/{id}", h.DeleteValue)

	r.Get("/products/{productID}/bindings", h.ListBindings)
	r.Post("/products/{productID}/bindings", h.Bind)
	r.Delete("/bindings/{id}", h.Unbind)
	r.Put("/bindings/{id}/overrides", h.SetOverride)

	r.Get("/products/{productID}/set", h.ProductAttributeSet)
}

type typeForm struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Description string `json:"description" validate:"max=500"`
	DisplayType string `json:"display_type" validate:"omitempty,oneof=select radio color image text number"`
	IsActive    *bool  `json:"is_active"`
	SortOrder   int    `json:"sort_order" validate:"gte=0"`
}

func (f typeForm) toModel(id int64) AttributeType {
	active := true
	if f.IsActive != nil {
		active = *f.IsActive
	}
	return AttributeType{
		ID:          id,
		Name:        f.Name,
		DisplayName: f.DisplayName,
		Description: f.Description,
		DisplayType: DisplayType(f.DisplayType),
		IsActive:    active,
		SortOrder:   f.SortOrder,
	}
}

func (h *Handler) ListTypes(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListTypes(r.Context())
	if err != nil {
		h.logger.Error("list attribute types failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"attribute_types": list})
}

func (h *Handler) CreateType(w http.ResponseWriter, r *http.Request) {
	var form typeForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateType(r.Context(), form.toModel(0))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) GetType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	at, err := h.service.GetType(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, at)
}

func (h *Handler) UpdateType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var form typeForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	model := form.toModel(id)
	if model.DisplayType == "" {
		model.DisplayType = DisplaySelect
	}
	if err := h.service.UpdateType(r.Context(), model); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) DeleteType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteType(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type valueForm struct {
	Value        string `json:"value" validate:"required,min=1,max=100"`
	DisplayValue string `json:"display_value" validate:"max=100"`
	Description  string `json:"description" validate:"max=500"`
	HTMLColor    string `json:"html_color" validate:"omitempty,hexcolor"`
	ImagePath    string `json:"image_path" validate:"max=255"`
	SortOrder    int    `json:"sort_order" validate:"gte=0"`
	IsActive     *bool  `json:"is_active"`
}

func (f valueForm) toModel(id, typeID int64) AttributeValue {
	active := true
	if f.IsActive != nil {
		active = *f.IsActive
	}
	return AttributeValue{
		ID:              id,
		AttributeTypeID: typeID,
		Value:           f.Value,
		DisplayValue:    f.DisplayValue,
		Description:     f.Description,
		HTMLColor:       f.HTMLColor,
		ImagePath:       f.ImagePath,
		SortOrder:       f.SortOrder,
		IsActive:        active,
	}
}

func (h *Handler) ListValues(w http.ResponseWriter, r *http.Request) {
	typeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	list, err := h.service.ListValues(r.Context(), typeID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"values": list})
}

func (h *Handler) CreateValue(w http.ResponseWriter, r *http.Request) {
	typeID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var form valueForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.CreateValue(r.Context(), form.toModel(0, typeID))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateValue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var form valueForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.UpdateValue(r.Context(), form.toModel(id, 0)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) DeleteValue(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteValue(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type bindForm struct {
	AttributeTypeID  int64 `json:"attribute_type_id" validate:"required,gt=0"`
	IsRequired       bool  `json:"is_required"`
	AffectsPrice     bool  `json:"affects_price"`
	AffectsInventory bool  `json:"affects_inventory"`
	SortOrder        int   `json:"sort_order" validate:"gte=0"`
}

func (h *Handler) ListBindings(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	list, err := h.service.ListBindings(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bindings": list})
}

func (h *Handler) Bind(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	var form bindForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	binding, err := h.service.Bind(r.Context(), Binding{
		ProductID:        productID,
		AttributeTypeID:  form.AttributeTypeID,
		IsRequired:       form.IsRequired,
		AffectsPrice:     form.AffectsPrice,
		AffectsInventory: form.AffectsInventory,
		SortOrder:        form.SortOrder,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, binding)
}

func (h *Handler) Unbind(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Unbind(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type overrideForm struct {
	AttributeValueID int64   `json:"attribute_value_id" validate:"required,gt=0"`
	PriceAdjustment  float64 `json:"price_adjustment"`
	AdjustmentType   string  `json:"adjustment_type" validate:"omitempty,oneof=fixed percentage"`
	IsDefault        bool    `json:"is_default"`
	IsActive         *bool   `json:"is_active"`
	SortOrder        int     `json:"sort_order" validate:"gte=0"`
}

func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	bindingID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var form overrideForm
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
	saved, err := h.service.SetOverride(r.Context(), ValueOverride{
		BindingID:        bindingID,
		AttributeValueID: form.AttributeValueID,
		PriceAdjustment:  form.PriceAdjustment,
		AdjustmentType:   AdjustmentType(form.AdjustmentType),
		IsDefault:        form.IsDefault,
		IsActive:         active,
		SortOrder:        form.SortOrder,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, saved)
}

func (h *Handler) ProductAttributeSet(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}
	set, err := h.service.ProductAttributeSet(r.Context(), productID)
	if err != nil {
		h.logger.Error("product attribute set failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"attributes": set})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}
