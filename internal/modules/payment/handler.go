package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/georgemunganga/printa-storefront/internal/notify"
	"github.com/georgemunganga/printa-storefront/internal/remote"
	"github.com/georgemunganga/printa-storefront/internal/session"
)

// Handler exposes wallet and subscription payment endpoints.
type Handler struct{ service Service }

func NewHandler(service Service) *Handler { return &Handler{service: service} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/wallet", func(r chi.Router) {
		// Current balance of the logged-in user
		r.Get("/", h.balance)
		// Top up via mobile money or card
		r.Post("/fund", h.fund)
	})
	r.Post("/api/v1/subscriptions/pay", h.paySubscription)
}

func userSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok || sess.User().IsZero() {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "login required"})
		return nil, false
	}
	return sess, true
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	sess, ok := userSession(w, r)
	if !ok {
		return
	}
	wallet, err := h.service.WalletBalance(r.Context(), sess.Client(), sess.User().ID)
	if err != nil {
		h.fail(w, r, sess, err)
		return
	}
	respond(w, http.StatusOK, wallet)
}

func (h *Handler) fund(w http.ResponseWriter, r *http.Request) {
	sess, ok := userSession(w, r)
	if !ok {
		return
	}
	var req FundWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	tx, err := h.service.FundWallet(r.Context(), sess.Client(), sess.User().ID, r.Header.Get(IdempotencyHeader), req)
	if err != nil {
		h.fail(w, r, sess, err)
		return
	}
	respond(w, http.StatusCreated, tx)
}

func (h *Handler) paySubscription(w http.ResponseWriter, r *http.Request) {
	sess, ok := userSession(w, r)
	if !ok {
		return
	}
	var req SubscriptionPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	tx, err := h.service.PaySubscription(r.Context(), sess.Client(), sess.User().ID, r.Header.Get(IdempotencyHeader), req)
	if err != nil {
		h.fail(w, r, sess, err)
		return
	}
	respond(w, http.StatusCreated, tx)
}

// fail maps validation errors to 400 and upstream failures to a notice plus 502
// (401 when the upstream session expired).
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, sess session.Session, err error) {
	if errors.Is(err, ErrInvalidRequest) {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	msg := remote.Message(err)
	if errors.Is(err, remote.ErrUnauthorized) {
		respond(w, http.StatusUnauthorized, map[string]string{"error": msg, "redirect": session.LandingPage})
		return
	}
	sess.Notify(r.Context(), notify.Notice{Level: notify.LevelError, Code: notify.CodeUpstreamError, Message: msg})
	respond(w, http.StatusBadGateway, map[string]string{"error": msg})
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
