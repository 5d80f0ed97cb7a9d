package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/LexiconIndonesia/catalog-sync-service/common/models"
	"github.com/LexiconIndonesia/catalog-sync-service/common/realtime"
	"github.com/LexiconIndonesia/catalog-sync-service/common/services"
	"github.com/LexiconIndonesia/catalog-sync-service/common/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// EventPublisher receives a change event for every product operation
type EventPublisher interface {
	Publish(ctx context.Context, event realtime.ChangeEvent) error
}

type ProductHandler struct {
	products  services.ProductService
	publisher EventPublisher
	validate  *validator.Validate
	router    *chi.Mux
}

func NewProductHandler(products services.ProductService, publisher EventPublisher) *ProductHandler {
	h := &ProductHandler{
		products:  products,
		publisher: publisher,
		validate:  validator.New(),
	}

	r := chi.NewRouter()
	r.Get("/", h.handleListProducts)
	r.Post("/", h.handleCreateProduct)
	r.Get("/{id}", h.handleGetProduct)
	r.Put("/{id}", h.handleUpdateProduct)
	r.Delete("/{id}", h.handleDeleteProduct)

	h.router = r
	return h
}

func (h *ProductHandler) Router() *chi.Mux {
	return h.router
}

// handleListProducts godoc
// @Summary  List products
// @Tags     products
// @Produce  json
// @Success  200 {object} models.BaseResponse{data=[]models.Product}
// @Failure  500 {object} models.ErrorResponse
// @Router   /products [get]
func (h *ProductHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}

	h.publish(r.Context(), realtime.ProductsEvent(products))
	if products == nil {
		products = []models.Product{}
	}
	utils.WriteJSON(w, http.StatusOK, products)
}

// handleGetProduct godoc
// @Summary  Get a product
// @Tags     products
// @Produce  json
// @Param    id  path     int true "Product id"
// @Success  200 {object} models.BaseResponse{data=models.Product}
// @Failure  404 {object} models.ErrorResponse
// @Router   /products/{id} [get]
func (h *ProductHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		writeProductError(w, err, "Failed to get product")
		return
	}

	h.publish(r.Context(), realtime.ProductEvent(realtime.EventGetProduct, product))
	utils.WriteJSON(w, http.StatusOK, product)
}

// handleCreateProduct godoc
// @Summary  Create a product
// @Tags     products
// @Accept   json
// @Produce  json
// @Param    product body     models.ProductInput true "Product"
// @Success  201     {object} models.BaseResponse{data=models.Product}
// @Failure  400     {object} models.ErrorResponse
// @Router   /products [post]
func (h *ProductHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	product, err := h.products.Create(r.Context(), input.Record())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create product")
		utils.WriteError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}

	h.publish(r.Context(), realtime.ProductEvent(realtime.EventCreateProduct, product))
	utils.WriteJSON(w, http.StatusCreated, product)
}

// handleUpdateProduct godoc
// @Summary  Update a product
// @Tags     products
// @Accept   json
// @Produce  json
// @Param    id      path     int                 true "Product id"
// @Param    product body     models.ProductInput true "Product"
// @Success  200     {object} models.BaseResponse{data=models.Product}
// @Failure  400     {object} models.ErrorResponse
// @Failure  404     {object} models.ErrorResponse
// @Router   /products/{id} [put]
func (h *ProductHandler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	input, ok := h.decodeInput(w, r)
	if !ok {
		return
	}

	product, err := h.products.Update(r.Context(), id, input.Record())
	if err != nil {
		writeProductError(w, err, "Failed to update product")
		return
	}

	h.publish(r.Context(), realtime.ProductEvent(realtime.EventUpdateProduct, product))
	utils.WriteJSON(w, http.StatusOK, product)
}

// handleDeleteProduct godoc
// @Summary  Delete a product
// @Tags     products
// @Produce  json
// @Param    id  path     int true "Product id"
// @Success  200 {object} models.MessageResponse
// @Failure  404 {object} models.ErrorResponse
// @Router   /products/{id} [delete]
func (h *ProductHandler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		writeProductError(w, err, "Failed to delete product")
		return
	}

	h.publish(r.Context(), realtime.ProductDeletedEvent(id))
	utils.WriteMessage(w, http.StatusOK, "Product deleted successfully")
}

func (h *ProductHandler) decodeInput(w http.ResponseWriter, r *http.Request) (models.ProductInput, bool) {
	var input models.ProductInput
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request payload")
		return input, false
	}
	if err := h.validate.Struct(input); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return input, false
	}
	return input, true
}

// publish never fails the request; delivery to subscribers is best effort
func (h *ProductHandler) publish(ctx context.Context, event realtime.ChangeEvent) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event", string(event.Event)).Msg("Failed to publish change event")
	}
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteError(w, http.StatusBadRequest, "Invalid product id")
		return 0, false
	}
	return id, true
}

func writeProductError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, services.ErrNotFound) {
		utils.WriteError(w, http.StatusNotFound, "Product not found")
		return
	}
	log.Error().Err(err).Msg(msg)
	utils.WriteError(w, http.StatusInternalServerError, msg)
}
