package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/Carlos-Arce04/diseno-store/internal/core/domain"
	"github.com/Carlos-Arce04/diseno-store/internal/core/service"
	"github.com/Carlos-Arce04/diseno-store/internal/platform/logger"
	"github.com/Carlos-Arce04/diseno-store/internal/port"
)

// shopperHeader carries the shopper id issued by the auth collaborator.
const shopperHeader = "X-Shopper-ID"

type HTTPHandler struct {
	sessions *service.SessionManager
	stock    *service.StockService
	catalog  port.Catalog
	log      *logger.Logger
}

func NewHTTPHandler(sessions *service.SessionManager, stock *service.StockService, catalog port.Catalog, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{sessions: sessions, stock: stock, catalog: catalog, log: log}
}

type addItemRequest struct {
	ProductID  int    `json:"product_id"`
	CategoryID int    `json:"category_id"`
	Size       string `json:"size"`
}

type updateItemRequest struct {
	ProductID  int    `json:"product_id"`
	CategoryID int    `json:"category_id"`
	Size       string `json:"size"`
	Delta      int    `json:"delta"`
}

type removeItemRequest struct {
	ProductID int    `json:"product_id"`
	Size      string `json:"size"`
}

type mutationResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type cartResponse struct {
	Items []domain.CartItem `json:"items"`
}

// CartItems dispatches the line-item mutations.
func (h *HTTPHandler) CartItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.addItem(w, r)
	case http.MethodPatch:
		h.updateItem(w, r)
	case http.MethodDelete:
		h.removeItem(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *HTTPHandler) addItem(w http.ResponseWriter, r *http.Request) {
	shopper, ok := h.shopper(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID <= 0 {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Message: "invalid request body"})
		return
	}

	sess := h.sessions.Session(shopper)
	added, err := sess.AddToCart(r.Context(), domain.Product{ID: req.ProductID}, req.CategoryID, req.Size)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			writeJSON(w, http.StatusNotFound, mutationResponse{Message: "unknown product"})
			return
		}
		h.log.Error("add to cart failed", "shopper_id", shopper, "product_id", req.ProductID, "error", err)
		writeJSON(w, http.StatusInternalServerError, mutationResponse{Message: "internal error"})
		return
	}
	if !added {
		writeJSON(w, http.StatusConflict, mutationResponse{Message: "out of stock"})
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Success: true})
}

func (h *HTTPHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	shopper, ok := h.shopper(w, r)
	if !ok {
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID <= 0 {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Message: "invalid request body"})
		return
	}
	// quantities move in single-unit steps, one reservation per unit
	if req.Delta != 1 && req.Delta != -1 {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Message: "delta must be 1 or -1"})
		return
	}

	sess := h.sessions.Session(shopper)
	if err := sess.UpdateQuantity(r.Context(), req.ProductID, req.CategoryID, req.Size, req.Delta); err != nil {
		h.log.Error("quantity update failed", "shopper_id", shopper, "product_id", req.ProductID, "error", err)
		writeJSON(w, http.StatusInternalServerError, mutationResponse{Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Success: true})
}

func (h *HTTPHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	shopper, ok := h.shopper(w, r)
	if !ok {
		return
	}

	var req removeItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID <= 0 {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Message: "invalid request body"})
		return
	}

	sess := h.sessions.Session(shopper)
	if err := sess.RemoveFromCart(r.Context(), req.ProductID, req.Size); err != nil {
		h.log.Error("remove from cart failed", "shopper_id", shopper, "product_id", req.ProductID, "error", err)
		writeJSON(w, http.StatusInternalServerError, mutationResponse{Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Success: true})
}

// Cart serves the snapshot and the clear operation.
func (h *HTTPHandler) Cart(w http.ResponseWriter, r *http.Request) {
	shopper, ok := h.shopper(w, r)
	if !ok {
		return
	}
	sess := h.sessions.Session(shopper)

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, cartResponse{Items: itemsOrEmpty(sess.Items())})
	case http.MethodDelete:
		if err := sess.ClearCart(r.Context()); err != nil {
			h.log.Error("clear cart failed", "shopper_id", shopper, "error", err)
			writeJSON(w, http.StatusInternalServerError, mutationResponse{Message: "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, mutationResponse{Success: true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// StreamCart pushes the live cart view over server-sent events; the
// first event is the current snapshot.
func (h *HTTPHandler) StreamCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	shopper, ok := h.shopper(w, r)
	if !ok {
		return
	}
	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	updates, cancel := h.sessions.Session(shopper).Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-r.Context().Done():
			return
		case items, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(cartResponse{Items: itemsOrEmpty(items)})
			if err != nil {
				continue
			}
			if _, err := w.Write(append(append([]byte("data: "), payload...), '\n', '\n')); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// Stock serves the ledger snapshot for stock-aware product views.
func (h *HTTPHandler) Stock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	productID, err := strconv.Atoi(r.URL.Query().Get("product_id"))
	if err != nil || productID <= 0 {
		writeJSON(w, http.StatusBadRequest, mutationResponse{Message: "invalid product_id"})
		return
	}

	if stock, ok := h.stock.Snapshot(productID); ok {
		writeJSON(w, http.StatusOK, stock)
		return
	}
	stock, err := h.stock.Read(r.Context(), productID)
	if err != nil {
		if errors.Is(err, domain.ErrStockNotFound) {
			writeJSON(w, http.StatusNotFound, mutationResponse{Message: "stock not tracked"})
			return
		}
		h.log.Error("stock read failed", "product_id", productID, "error", err)
		writeJSON(w, http.StatusInternalServerError, mutationResponse{Message: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

// Products proxies catalog browsing: ?id= for a single product, else a
// page filtered by ?category_id= or ?q=.
func (h *HTTPHandler) Products(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()

	if idStr := q.Get("id"); idStr != "" {
		id, err := strconv.Atoi(idStr)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, mutationResponse{Message: "invalid id"})
			return
		}
		product, err := h.catalog.ProductByID(r.Context(), id)
		if err != nil {
			h.catalogError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}

	var (
		products []domain.Product
		err      error
	)
	switch {
	case q.Get("category_id") != "":
		var categoryID int
		categoryID, err = strconv.Atoi(q.Get("category_id"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, mutationResponse{Message: "invalid category_id"})
			return
		}
		products, err = h.catalog.ProductsByCategory(r.Context(), categoryID, page)
	case q.Get("q") != "":
		products, err = h.catalog.Search(r.Context(), q.Get("q"), page)
	default:
		products, err = h.catalog.Products(r.Context(), page)
	}
	if err != nil {
		h.catalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *HTTPHandler) Categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cats, err := h.catalog.Categories(r.Context())
	if err != nil {
		h.catalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// GuestSession mints a shopper id for unauthenticated browsing. A real
// sign-in replaces it with the id from the auth collaborator.
func (h *HTTPHandler) GuestSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"shopper_id": "guest-" + uuid.NewString()})
}

// Logout zeroes and discards the shopper's session.
func (h *HTTPHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	shopper, ok := h.shopper(w, r)
	if !ok {
		return
	}
	h.sessions.Drop(shopper)
	writeJSON(w, http.StatusOK, mutationResponse{Success: true})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) shopper(w http.ResponseWriter, r *http.Request) (string, bool) {
	shopper := r.Header.Get(shopperHeader)
	if shopper == "" {
		writeJSON(w, http.StatusUnauthorized, mutationResponse{Message: "missing " + shopperHeader})
		return "", false
	}
	return shopper, true
}

func (h *HTTPHandler) catalogError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrProductNotFound) {
		writeJSON(w, http.StatusNotFound, mutationResponse{Message: "unknown product"})
		return
	}
	h.log.Error("catalog request failed", "error", err)
	writeJSON(w, http.StatusBadGateway, mutationResponse{Message: "catalog unavailable"})
}

func itemsOrEmpty(items []domain.CartItem) []domain.CartItem {
	if items == nil {
		return []domain.CartItem{}
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
