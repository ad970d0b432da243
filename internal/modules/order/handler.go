package order

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/printa-storefront/internal/modules/user"
	"github.com/georgemunganga/printa-storefront/internal/remote"
	"github.com/georgemunganga/printa-storefront/internal/session"
)

// Handler exposes the delivery dashboard endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/delivery/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)              // GET /api/v1/delivery/orders?status=PENDING&view=board
		r.Put("/{id}/status", h.updateStatus) // PUT /api/v1/delivery/orders/{id}/status
	})
}

// deliverySession returns the caller's session if it belongs to a delivery
// user or admin, writing the error response otherwise.
func deliverySession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok || sess.User().IsZero() {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "login required"})
		return nil, false
	}
	if role := sess.User().Role; role != user.RoleDelivery && role != user.RoleAdmin {
		respond(w, http.StatusForbidden, map[string]string{"error": "delivery access only"})
		return nil, false
	}
	return sess, true
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	sess, ok := deliverySession(w, r)
	if !ok {
		return
	}
	orders, err := h.service.ListDeliveryOrders(r.Context(), sess.Client(), sess.User().ID)
	if err != nil {
		upstreamError(w, err)
		return
	}
	orders = ByStatus(orders, r.URL.Query().Get("status"))
	if r.URL.Query().Get("view") == "board" {
		respond(w, http.StatusOK, Board(orders))
		return
	}
	respond(w, http.StatusOK, orders)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := deliverySession(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	o, err := h.service.UpdateStatus(r.Context(), sess.Client(), sess.User().ID, id, req)
	switch {
	case errors.Is(err, ErrNotFound):
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrInvalidTransition):
		respond(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case err != nil:
		upstreamError(w, err)
	default:
		respond(w, http.StatusOK, o)
	}
}

func upstreamError(w http.ResponseWriter, err error) {
	if errors.Is(err, remote.ErrUnauthorized) {
		respond(w, http.StatusUnauthorized, map[string]string{"error": remote.Message(err), "redirect": session.LandingPage})
		return
	}
	respond(w, http.StatusBadGateway, map[string]string{"error": remote.Message(err)})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
