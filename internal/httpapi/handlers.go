package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"posorder/backend/internal/domain"
)

var (
	errOrderNotFound       = errors.New("order not found")
	errTransactionNotFound = errors.New("transaction not found")
	errProductNotFound     = errors.New("product not found")
)

// handleOrderGrid serves the DataTables server-side protocol. A length of -1
// returns every row.
func (a *API) handleOrderGrid(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := q.Get("search[value]")
	if search == "" {
		search = q.Get("search")
	}
	length := -1
	if strings.TrimSpace(q.Get("length")) != "-1" {
		length = parsePositiveLimit(q.Get("length"), 10, 500)
	}

	grid, err := a.service.OrderGrid(r.Context(), domain.GridQuery{
		Draw:   parseNonNegative(q.Get("draw")),
		Start:  parseNonNegative(q.Get("start")),
		Length: length,
		Search: strings.TrimSpace(search),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (a *API) handleFinalizeOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.FinalizeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.FinalizeOrder(r.Context(), actorFrom(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleInvoice(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeError(w, http.StatusNotFound, errOrderNotFound)
		return
	}
	resp, err := a.service.Invoice(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePOSInvoice(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeError(w, http.StatusNotFound, errOrderNotFound)
		return
	}
	resp, err := a.service.POSInvoice(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCollectionForm(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeError(w, http.StatusNotFound, errOrderNotFound)
		return
	}
	resp, err := a.service.CollectionForm(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCollectDue answers 303 See Other pointing at the collection invoice.
// The receipt is also returned in the body for clients that do not follow.
func (a *API) handleCollectDue(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeError(w, http.StatusNotFound, errOrderNotFound)
		return
	}

	var req domain.CollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	receipt, err := a.service.CollectDue(r.Context(), actorFrom(r), orderID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/collections/%d", receipt.TransactionID))
	writeJSON(w, http.StatusSeeOther, receipt)
}

func (a *API) handleOrderTransactions(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeError(w, http.StatusNotFound, errOrderNotFound)
		return
	}
	resp, err := a.service.OrderTransactions(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCollectionInvoice(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := pathID(r, "transactionID")
	if !ok {
		writeError(w, http.StatusNotFound, errTransactionNotFound)
		return
	}
	resp, err := a.service.CollectionInvoice(r.Context(), transactionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.Cart(r.Context(), actorFrom(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req domain.CartAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.AddToCart(r.Context(), actorFrom(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleUpdateCartLine(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(r, "productID")
	if !ok {
		writeError(w, http.StatusNotFound, errProductNotFound)
		return
	}
	var req domain.CartUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.UpdateCartLine(r.Context(), actorFrom(r), productID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRemoveCartLine(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(r, "productID")
	if !ok {
		writeError(w, http.StatusNotFound, errProductNotFound)
		return
	}
	resp, err := a.service.RemoveCartLine(r.Context(), actorFrom(r), productID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := a.service.ClearCart(r.Context(), actorFrom(r)); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListCustomers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.CustomerCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.Settings(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.SettingsUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.UpdateSettings(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListCashiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cashiers": a.auth.ListCashiers(r.Context())})
}

func (a *API) handleCreateCashier(w http.ResponseWriter, r *http.Request) {
	var req domain.CashierCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cashier, err := a.auth.CreateCashier(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"cashier": cashier})
}
