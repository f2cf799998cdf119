package sales

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

// MountRoutes registers sale routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Commit)
	r.Get("/{id}", h.Get)
}

type lineForm struct {
	ProductID int64 `json:"product_id" validate:"required_without=VariantID,gte=0"`
	VariantID int64 `json:"variant_id" validate:"gte=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type paymentForm struct {
	Method    string  `json:"method" validate:"required,oneof=cash card transfer other"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reference string  `json:"reference" validate:"max=100"`
}

type commitForm struct {
	Lines    []lineForm    `json:"lines" validate:"required,min=1,dive"`
	Payments []paymentForm `json:"payments" validate:"required,min=1,dive"`
	Note     string        `json:"note" validate:"max=500"`
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	var form commitForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	in := CommitInput{Note: form.Note}
	for _, line := range form.Lines {
		in.Lines = append(in.Lines, LineInput{ProductID: line.ProductID, VariantID: line.VariantID, Quantity: line.Quantity})
	}
	for _, p := range form.Payments {
		in.Payments = append(in.Payments, PaymentInput{Method: PaymentMethod(p.Method), Amount: p.Amount, Reference: p.Reference})
	}

	sale, err := h.service.Commit(r.Context(), in, r.Header.Get("Idempotency-Key"))
	if err != nil {
		if errors.Is(err, ErrInsufficientPayment) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Insufficient Payment", err.Error())
			return
		}
		if errors.Is(err, ErrVariantRequired) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Variant Required", err.Error())
			return
		}
		h.logger.Error("sale commit failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	list, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list sales failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": list})
}
