package storefront

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-storefront/internal/modules/auth"
	"github.com/georgemunganga/printa-storefront/internal/modules/user"
	"github.com/georgemunganga/printa-storefront/internal/modules/vendor"
	"github.com/georgemunganga/printa-storefront/internal/remote"
	"github.com/georgemunganga/printa-storefront/internal/session"
)

// Handler exposes the storefront dashboard endpoints.
type Handler struct {
	service Service
	issuer  auth.Issuer
	secure  bool
	logger  *zap.Logger
}

// NewHandler creates the storefront handler. secure marks session cookies Secure.
func NewHandler(service Service, issuer auth.Issuer, secure bool, logger *zap.Logger) *Handler {
	return &Handler{service: service, issuer: issuer, secure: secure, logger: logger}
}

// RegisterRoutes mounts the routes on r, which must run SessionMiddleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/session/mount", h.with(h.mount))

		r.Post("/auth/login", h.with(h.login))
		r.Post("/auth/register", h.with(h.register))
		r.Post("/auth/logout", h.with(h.logout))
		r.Get("/me", h.with(h.me))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.with(h.cartView))                           // GET    /api/v1/cart
			r.Delete("/", h.with(h.clearCart))                       // DELETE /api/v1/cart
			r.Get("/related", h.with(h.related))                     // GET    /api/v1/cart/related
			r.Post("/items", h.with(h.addItem))                      // POST   /api/v1/cart/items
			r.Put("/items/{id}", h.with(h.setQuantity))              // PUT    /api/v1/cart/items/{id}
			r.Post("/items/{id}/increment", h.with(h.incrementItem)) // POST   /api/v1/cart/items/{id}/increment
			r.Post("/items/{id}/decrement", h.with(h.decrementItem)) // POST   /api/v1/cart/items/{id}/decrement
			r.Delete("/items/{id}", h.with(h.removeItem))            // DELETE /api/v1/cart/items/{id}
		})

		r.Get("/categories", h.with(h.categories))
		r.Get("/categories/{name}/products", h.with(h.categoryProducts))
		r.Get("/products", h.with(h.products)) // GET /api/v1/products?q=mug

		r.Route("/vendors", func(r chi.Router) {
			r.Get("/", h.with(h.vendors)) // GET /api/v1/vendors?q=print
			r.Get("/followed", h.with(h.followedVendors))
			r.Post("/follow/reconcile", h.with(h.reconcileFollows))
			r.Post("/{id}/follow", h.with(h.toggleFollow))
		})

		r.Get("/notifications", h.with(h.notifications))
	})
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *Session)

// with resolves the request's session before calling fn.
func (h *Handler) with(fn sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := current(r)
		if !ok {
			respond(w, http.StatusInternalServerError, map[string]string{"error": "no session"})
			return
		}
		fn(w, r, sess)
	}
}

func (h *Handler) mount(w http.ResponseWriter, r *http.Request, sess *Session) {
	overview, err := h.service.Mount(r.Context(), sess)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, overview)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respond(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}
	u, err := h.service.Login(r.Context(), sess, req.Email, req.Password)
	if err != nil {
		// A rejected login is a credentials problem, not an expired session.
		if errors.Is(err, remote.ErrUnauthorized) {
			respond(w, http.StatusUnauthorized, map[string]string{"error": remote.Message(err)})
			return
		}
		h.fail(w, err)
		return
	}
	if err := issueCookie(w, h.issuer, sess, h.secure); err != nil {
		h.logger.Error("issuing session token", zap.Error(err))
		respond(w, http.StatusInternalServerError, map[string]string{"error": "could not update session"})
		return
	}
	respond(w, http.StatusOK, u)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req user.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	u, err := h.service.Register(r.Context(), sess, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusCreated, u)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request, sess *Session) {
	if err := h.service.Logout(r.Context(), sess); err != nil {
		h.fail(w, err)
		return
	}
	if err := issueCookie(w, h.issuer, sess, h.secure); err != nil {
		h.logger.Error("issuing session token", zap.Error(err))
	}
	respond(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request, sess *Session) {
	u := sess.User()
	if u.IsZero() {
		respond(w, http.StatusUnauthorized, map[string]string{"error": "not logged in", "redirect": session.LandingPage})
		return
	}
	respond(w, http.StatusOK, u)
}

func (h *Handler) cartView(w http.ResponseWriter, r *http.Request, sess *Session) {
	respond(w, http.StatusOK, h.service.CartView(sess))
}

func (h *Handler) related(w http.ResponseWriter, r *http.Request, sess *Session) {
	respond(w, http.StatusOK, h.service.Related(sess))
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.ProductID == "" {
		respond(w, http.StatusBadRequest, map[string]string{"error": "product_id is required"})
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	view, err := h.service.AddToCart(r.Context(), sess, req.ProductID, qty)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) setQuantity(w http.ResponseWriter, r *http.Request, sess *Session) {
	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Quantity == nil {
		respond(w, http.StatusBadRequest, map[string]string{"error": "quantity is required"})
		return
	}
	view, err := h.service.SetQuantity(r.Context(), sess, chi.URLParam(r, "id"), *req.Quantity)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) incrementItem(w http.ResponseWriter, r *http.Request, sess *Session) {
	view, err := h.service.Increment(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) decrementItem(w http.ResponseWriter, r *http.Request, sess *Session) {
	view, err := h.service.Decrement(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request, sess *Session) {
	view, err := h.service.RemoveFromCart(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request, sess *Session) {
	view, err := h.service.ClearCart(r.Context(), sess)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, view)
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request, sess *Session) {
	respond(w, http.StatusOK, h.service.Categories(sess))
}

func (h *Handler) categoryProducts(w http.ResponseWriter, r *http.Request, sess *Session) {
	respond(w, http.StatusOK, h.service.CategoryProducts(sess, chi.URLParam(r, "name")))
}

func (h *Handler) products(w http.ResponseWriter, r *http.Request, sess *Session) {
	respond(w, http.StatusOK, h.service.Products(sess, r.URL.Query().Get("q")))
}

func (h *Handler) vendors(w http.ResponseWriter, r *http.Request, sess *Session) {
	respond(w, http.StatusOK, h.service.Vendors(sess, r.URL.Query().Get("q")))
}

func (h *Handler) followedVendors(w http.ResponseWriter, r *http.Request, sess *Session) {
	respond(w, http.StatusOK, h.service.FollowedVendors(sess))
}

func (h *Handler) toggleFollow(w http.ResponseWriter, r *http.Request, sess *Session) {
	card, err := h.service.ToggleFollow(r.Context(), sess, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, card)
}

func (h *Handler) reconcileFollows(w http.ResponseWriter, r *http.Request, sess *Session) {
	cards, err := h.service.ReconcileFollows(r.Context(), sess)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond(w, http.StatusOK, cards)
}

func (h *Handler) notifications(w http.ResponseWriter, r *http.Request, sess *Session) {
	respond(w, http.StatusOK, sess.Store().DrainNotices())
}

// fail maps service errors to status codes. Upstream 401s send the
// dashboard back to the landing page.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	var re *remote.Error
	switch {
	case errors.Is(err, ErrUnknownProduct):
		respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, user.ErrMissingCredentials):
		respond(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrLoginRequired):
		respond(w, http.StatusUnauthorized, map[string]string{"error": err.Error(), "redirect": session.LandingPage})
	case errors.Is(err, remote.ErrUnauthorized):
		respond(w, http.StatusUnauthorized, map[string]string{"error": remote.Message(err), "redirect": session.LandingPage})
	case errors.Is(err, ErrClosed), errors.Is(err, vendor.ErrBoardClosed):
		respond(w, http.StatusGone, map[string]string{"error": err.Error()})
	case errors.As(err, &re):
		code := http.StatusBadGateway
		if re.Kind == remote.KindServer && re.Status < http.StatusInternalServerError {
			code = re.Status
		}
		respond(w, code, map[string]string{"error": re.UserMessage()})
	default:
		h.logger.Error("storefront request failed", zap.Error(err))
		respond(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
