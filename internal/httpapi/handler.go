package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
	"github.com/vladislavdragonenkov/comanda/internal/service/checkout"
)

// Handler — HTTP-слой поверх checkout-сервиса.
type Handler struct {
	service *checkout.Service
	logger  *log.Entry
}

// NewHandler создаёт HTTP handler.
func NewHandler(service *checkout.Service, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

type itemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Note      string `json:"note,omitempty"`
}

type createOrderRequest struct {
	TableRef      string           `json:"table_ref"`
	PaymentMethod string           `json:"payment_method"`
	Items         []itemRequestDTO `json:"items"`
}

type setStockRequest struct {
	Stock int32 `json:"stock"`
}

type decreaseStockRequest struct {
	Quantity int32 `json:"quantity"`
}

type orderItemDTO struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Quantity   int32     `json:"quantity"`
	TotalMinor int64     `json:"total_minor"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type orderDTO struct {
	ID            string         `json:"id"`
	TableRef      string         `json:"table_ref"`
	PaymentMethod string         `json:"payment_method,omitempty"`
	TotalMinor    int64          `json:"total_minor"`
	Items         []orderItemDTO `json:"items"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type itemChangeDTO struct {
	Item       *orderItemDTO `json:"item,omitempty"`
	Removed    bool          `json:"removed"`
	OrderTotal int64         `json:"order_total_minor"`
}

type productDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"price_minor"`
	Stock      int32  `json:"stock"`
	CategoryID string `json:"category_id,omitempty"`
}

func toOrderItemDTO(item domain.OrderItem) orderItemDTO {
	return orderItemDTO{
		ID:         item.ID,
		ProductID:  item.ProductID,
		Quantity:   item.Quantity,
		TotalMinor: item.TotalMinor,
		Note:       item.Note,
		CreatedAt:  item.CreatedAt,
	}
}

func toOrderDTO(order domain.Order) orderDTO {
	items := make([]orderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, toOrderItemDTO(item))
	}
	return orderDTO{
		ID:            order.ID,
		TableRef:      order.TableRef,
		PaymentMethod: order.PaymentMethod,
		TotalMinor:    order.TotalMinor,
		Items:         items,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
}

func toItemChangeDTO(change checkout.ItemChange) itemChangeDTO {
	dto := itemChangeDTO{
		Removed:    change.Removed,
		OrderTotal: change.OrderTotal,
	}
	if !change.Removed {
		item := toOrderItemDTO(change.Item)
		dto.Item = &item
	}
	return dto
}

// CreateOrder обрабатывает POST /orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	items := make([]checkout.ItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, checkout.ItemRequest{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Note:      item.Note,
		})
	}

	order, err := h.service.CreateOrder(r.Context(), req.TableRef, req.PaymentMethod, items)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

// GetOrder обрабатывает GET /orders/{orderID}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// AddItem обрабатывает POST /orders/{orderID}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	var req itemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	change, err := h.service.AddItem(r.Context(), orderID, req.ProductID, req.Quantity, req.Note)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemChangeDTO(change))
}

// DecrementItem обрабатывает PATCH /orders/{orderID}/items/{itemID}/decrement.
func (h *Handler) DecrementItem(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	itemID := chi.URLParam(r, "itemID")

	change, err := h.service.DecrementItem(r.Context(), orderID, itemID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemChangeDTO(change))
}

// RemoveItem обрабатывает DELETE /orders/{orderID}/items/{itemID}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	itemID := chi.URLParam(r, "itemID")

	change, err := h.service.RemoveItem(r.Context(), orderID, itemID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemChangeDTO(change))
}

// DecreaseStock обрабатывает POST /stock/{productID}/decrease.
func (h *Handler) DecreaseStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req decreaseStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	product, err := h.service.DecreaseStock(r.Context(), productID, req.Quantity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, productDTO{
		ID:         product.ID,
		Name:       product.Name,
		PriceMinor: product.PriceMinor,
		Stock:      product.Stock,
		CategoryID: product.CategoryID,
	})
}

// ListStock обрабатывает GET /stock.
func (h *Handler) ListStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListStock(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	out := make([]productDTO, 0, len(products))
	for _, p := range products {
		out = append(out, productDTO{
			ID:         p.ID,
			Name:       p.Name,
			PriceMinor: p.PriceMinor,
			Stock:      p.Stock,
			CategoryID: p.CategoryID,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// SetStock обрабатывает PUT /stock/{productID}.
func (h *Handler) SetStock(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	product, err := h.service.SetStock(r.Context(), productID, req.Stock)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, productDTO{
		ID:         product.ID,
		Name:       product.Name,
		PriceMinor: product.PriceMinor,
		Stock:      product.Stock,
		CategoryID: product.CategoryID,
	})
}
