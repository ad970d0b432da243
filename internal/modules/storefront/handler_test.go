package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/printa-storefront/internal/modules/auth"
	"github.com/georgemunganga/printa-storefront/internal/modules/cart"
	"github.com/georgemunganga/printa-storefront/internal/modules/catalog"
	"github.com/georgemunganga/printa-storefront/internal/modules/user"
	"github.com/georgemunganga/printa-storefront/internal/modules/vendor"
	"github.com/georgemunganga/printa-storefront/internal/notify"
	"github.com/georgemunganga/printa-storefront/internal/remote"
)

const upstreamCookie = "upstream_sid"

// marketplace is a fake upstream. Follow endpoints require the cookie set
// by a successful login, so they only work on a credentialed session client.
type marketplace struct {
	mu         sync.Mutex
	products   string
	failFollow bool
	failCats   bool
	expired    bool
	toggles    int
}

func newMarketplace() *marketplace {
	return &marketplace{products: `[
		{"_id":"p1","name":"Photo Mug","price":10,"category":"Mugs"},
		{"_id":"p2","name":"Travel Mug","price":"12.50","category":"Mugs"},
		{"_id":"p3","name":"Logo Shirt","price":20,"category":"Shirts","vendor":{"_id":"v1"}},
		{"_id":"p4","name":"Latte Mug","price":9,"category":"Mugs"},
		{"_id":"p5","name":"Espresso Cup","price":7,"category":"Mugs"},
		{"_id":"p6","name":"Giant Mug","price":15,"category":"Mugs"}
	]`}
}

func (m *marketplace) set(fn func(m *marketplace)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *marketplace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expired {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Token expired"}`))
		return
	}
	if strings.HasPrefix(r.URL.Path, "/follow") {
		if _, err := r.Cookie(upstreamCookie); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	switch r.URL.Path {
	case "/product/":
		w.Write([]byte(m.products))
	case "/category/":
		if m.failCats {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"_id":"c1","name":"Mugs"},{"_id":"c2","name":"Shirts"},{"_id":"c3","name":"Posters"}]`))
	case "/vendor/stats/":
		w.Write([]byte(`[
			{"_id":"v1","storeName":"Acme Prints","category":"Printing","followerCount":2},
			{"_id":"v2","storeName":"Bolt Tees","description":"Custom shirts","followerCount":0}
		]`))
	case "/auth/login":
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid email or password"}`))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: upstreamCookie, Value: "abc", Path: "/"})
		w.Write([]byte(`{"user":{"_id":"u1","email":"ada@example.com","firstName":"Ada","role":"customer"}}`))
	case "/auth/logout":
		w.WriteHeader(http.StatusNoContent)
	case "/follow/followings/u1":
		w.Write([]byte(`[{"following":"v2"}]`))
	case "/follow":
		m.toggles++
		if m.failFollow {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"Follow service unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case "/follow/check":
		w.Write([]byte(`{"isFollowing":true}`))
	case "/follow/my-followers/v1":
		w.Write([]byte(`{"count":9}`))
	case "/follow/my-followers/v2":
		w.Write([]byte(`[{"_id":"u1"}]`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type harness struct {
	t        *testing.T
	upstream *marketplace
	carts    cart.Repository
	registry *Registry
	server   *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	up := newMarketplace()
	upSrv := httptest.NewServer(up)
	t.Cleanup(upSrv.Close)

	logger := zap.NewNop()
	base := remote.New(upSrv.URL, remote.DefaultEndpoints(), 2*time.Second, logger)
	reg := NewRegistry(base, notify.Log{Logger: logger}, time.Hour, logger)
	issuer := auth.NewIssuer("test-secret", time.Hour)
	carts := cart.NewMemoryRepository()

	vendors := vendor.NewService()
	svc := NewService(Deps{
		Catalog:  catalog.NewService(logger),
		Vendors:  vendors,
		Follower: vendor.NewFollower(vendors, logger, 4),
		Users:    user.NewService(),
		Carts:    carts,
		Logger:   logger,
	})

	r := chi.NewRouter()
	r.Use(SessionMiddleware(reg, issuer, false, logger))
	NewHandler(svc, issuer, false, logger).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &harness{t: t, upstream: up, carts: carts, registry: reg, server: srv}
}

// browser returns a client with its own cookie jar, like one dashboard tab.
func (h *harness) browser() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(h.t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (h *harness) do(c *http.Client, method, path string, body any, out any) int {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequest(method, h.server.URL+path, reader)
	require.NoError(h.t, err)
	resp, err := c.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type cardView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Following bool   `json:"following"`
	Followers int    `json:"followers"`
}

type overviewView struct {
	User       *user.User      `json:"user"`
	Cart       cart.View       `json:"cart"`
	Categories []catalog.Group `json:"categories"`
	Vendors    int             `json:"vendors"`
	Pruned     []string        `json:"pruned"`
}

func productIDs(ps []catalog.Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func noticeCodes(ns []notify.Notice) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Code)
	}
	return out
}

func TestMountBuildsCategorySections(t *testing.T) {
	h := newHarness(t)
	b := h.browser()

	var ov overviewView
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/session/mount", nil, &ov))
	assert.Nil(t, ov.User)
	assert.Equal(t, 2, ov.Vendors)
	assert.Empty(t, ov.Pruned)

	require.Len(t, ov.Categories, 2, "Posters has no products")
	mugs := ov.Categories[0]
	assert.Equal(t, "Mugs", mugs.Category.Name)
	assert.Equal(t, 5, mugs.Total)
	assert.True(t, mugs.ViewAll)
	assert.Equal(t, []string{"p1", "p2", "p4", "p5"}, productIDs(mugs.Products))
	assert.False(t, ov.Categories[1].ViewAll)

	var all []catalog.Product
	require.Equal(t, http.StatusOK, h.do(b, http.MethodGet, "/api/v1/categories/Mugs/products", nil, &all))
	assert.Len(t, all, 5)

	var found []catalog.Product
	require.Equal(t, http.StatusOK, h.do(b, http.MethodGet, "/api/v1/products?q=shirt", nil, &found))
	assert.Equal(t, []string{"p3"}, productIDs(found))
	assert.True(t, found[0].CanMessageVendor())

	var vendors []cardView
	require.Equal(t, http.StatusOK, h.do(b, http.MethodGet, "/api/v1/vendors?q=CUSTOM", nil, &vendors))
	require.Len(t, vendors, 1)
	assert.Equal(t, "v2", vendors[0].ID)

	assert.Equal(t, 1, h.registry.Len(), "the cookie keeps one session per browser")
}

func TestCartFlow(t *testing.T) {
	h := newHarness(t)
	b := h.browser()
	h.do(b, http.MethodPost, "/api/v1/session/mount", nil, nil)

	var view cart.View
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p1", "quantity": 2}, &view))
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p3"}, &view))
	assert.Equal(t, 3, view.Count)
	assert.Equal(t, 40.0, view.Total)

	assert.Equal(t, http.StatusNotFound, h.do(b, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "nope"}, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(b, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p1", "quantity": 0}, nil))
	assert.Equal(t, http.StatusBadRequest, h.do(b, http.MethodPost, "/api/v1/cart/items", map[string]any{}, nil))

	var related []catalog.Product
	require.Equal(t, http.StatusOK, h.do(b, http.MethodGet, "/api/v1/cart/related", nil, &related))
	assert.Equal(t, []string{"p2", "p4", "p5", "p6"}, productIDs(related))

	require.Equal(t, http.StatusOK, h.do(b, http.MethodPut, "/api/v1/cart/items/p2", map[string]any{"quantity": 4}, &view))
	assert.Equal(t, []string{"p1", "p3", "p2"}, itemIDs(view.Items))
	assert.Equal(t, 90.0, view.Total)

	assert.Equal(t, http.StatusBadRequest, h.do(b, http.MethodPut, "/api/v1/cart/items/p2", map[string]any{}, nil))

	assert.Equal(t, http.StatusNotFound, h.do(b, http.MethodPut, "/api/v1/cart/items/nope", map[string]any{"quantity": 2}, nil))
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPut, "/api/v1/cart/items/nope", map[string]any{"quantity": 0}, &view),
		"removing an unknown line is a no-op")
	assert.Equal(t, []string{"p1", "p3", "p2"}, itemIDs(view.Items))

	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/cart/items/p3/increment", nil, &view))
	assert.Equal(t, 8, view.Count)
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/cart/items/p3/decrement", nil, &view))
	assert.Equal(t, 7, view.Count)
	assert.Equal(t, http.StatusNotFound, h.do(b, http.MethodPost, "/api/v1/cart/items/nope/increment", nil, nil))

	require.Equal(t, http.StatusOK, h.do(b, http.MethodPut, "/api/v1/cart/items/p1", map[string]any{"quantity": 0}, &view))
	assert.Equal(t, []string{"p3", "p2"}, itemIDs(view.Items))

	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/cart/items/p3/decrement", nil, &view))
	assert.Equal(t, []string{"p2"}, itemIDs(view.Items), "a line decremented below 1 is removed")
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/cart/items/p3/decrement", nil, &view))
	assert.Equal(t, 4, view.Count)

	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/cart/items/p3/increment", nil, &view))
	require.Equal(t, http.StatusOK, h.do(b, http.MethodDelete, "/api/v1/cart/items/p3", nil, &view))
	assert.Equal(t, 4, view.Count)

	require.Equal(t, http.StatusOK, h.do(b, http.MethodDelete, "/api/v1/cart", nil, &view))
	assert.Empty(t, view.Items)
	assert.Zero(t, view.Total)
}

func TestMountPrunesVanishedProducts(t *testing.T) {
	h := newHarness(t)
	b := h.browser()
	h.do(b, http.MethodPost, "/api/v1/session/mount", nil, nil)
	h.do(b, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p3"}, nil)
	h.do(b, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p1"}, nil)

	h.upstream.set(func(m *marketplace) {
		m.products = `[{"_id":"p1","name":"Photo Mug","price":10,"category":"Mugs"}]`
	})

	var ov overviewView
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/session/mount", nil, &ov))
	assert.Equal(t, []string{"p3"}, ov.Pruned)
	assert.Equal(t, []string{"p1"}, itemIDs(ov.Cart.Items))
	assert.Equal(t, 1, ov.Cart.Count)

	var notices []notify.Notice
	require.Equal(t, http.StatusOK, h.do(b, http.MethodGet, "/api/v1/notifications", nil, &notices))
	require.Len(t, notices, 1)
	assert.Equal(t, notify.CodeItemUnavailable, notices[0].Code)
	assert.Equal(t, "p3", notices[0].Subject)

	require.Equal(t, http.StatusOK, h.do(b, http.MethodGet, "/api/v1/notifications", nil, &notices))
	assert.Empty(t, notices)
}

func TestLoginFollowAndCartRestore(t *testing.T) {
	h := newHarness(t)
	b := h.browser()
	h.do(b, http.MethodPost, "/api/v1/session/mount", nil, nil)
	h.do(b, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p1", "quantity": 2}, nil)

	assert.Equal(t, http.StatusUnauthorized, h.do(b, http.MethodGet, "/api/v1/me", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, h.do(b, http.MethodPost, "/api/v1/vendors/v1/follow", nil, nil))

	var failed map[string]string
	require.Equal(t, http.StatusUnauthorized, h.do(b, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "ada@example.com", "password": "wrong"}, &failed))
	assert.Equal(t, "Invalid email or password", failed["error"])
	assert.Equal(t, http.StatusBadRequest, h.do(b, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": "ada@example.com"}, nil))

	var u user.User
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "Ada@Example.com", "password": "pw"}, &u))
	assert.Equal(t, "u1", u.ID)
	require.Equal(t, http.StatusOK, h.do(b, http.MethodGet, "/api/v1/me", nil, &u))
	assert.Equal(t, "Ada", u.FirstName)

	saved, err := h.carts.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []cart.Line{{ProductID: "p1", Quantity: 2}}, saved, "the anonymous cart is saved for the user")

	var followed []cardView
	require.Equal(t, http.StatusOK, h.do(b, http.MethodGet, "/api/v1/vendors/followed", nil, &followed))
	require.Len(t, followed, 1)
	assert.Equal(t, "v2", followed[0].ID)

	var card vendor.Card
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/vendors/v1/follow", nil, &card))
	assert.Equal(t, vendor.Card{VendorID: "v1", Following: true, Followers: 3}, card)

	h.upstream.set(func(m *marketplace) { m.failFollow = true })
	var failure map[string]string
	require.Equal(t, http.StatusBadGateway, h.do(b, http.MethodPost, "/api/v1/vendors/v1/follow", nil, &failure))
	assert.Equal(t, "Follow service unavailable", failure["error"])

	var cards []cardView
	require.Equal(t, http.StatusOK, h.do(b, http.MethodGet, "/api/v1/vendors", nil, &cards))
	require.Len(t, cards, 2)
	assert.Equal(t, cardView{ID: "v1", Name: "Acme Prints", Following: true, Followers: 3}, cards[0], "failed unfollow is reverted")

	var notices []notify.Notice
	h.do(b, http.MethodGet, "/api/v1/notifications", nil, &notices)
	assert.Equal(t, []string{notify.CodeFollowFailed}, noticeCodes(notices))

	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/vendors/follow/reconcile", nil, &cards))
	assert.Equal(t, cardView{ID: "v1", Name: "Acme Prints", Following: true, Followers: 9}, cards[0])
	assert.Equal(t, cardView{ID: "v2", Name: "Bolt Tees", Following: true, Followers: 1}, cards[1])

	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/auth/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, h.do(b, http.MethodGet, "/api/v1/me", nil, nil))
	var view cart.View
	h.do(b, http.MethodGet, "/api/v1/cart", nil, &view)
	assert.Empty(t, view.Items)

	other := h.browser()
	h.do(other, http.MethodPost, "/api/v1/session/mount", nil, nil)
	h.do(other, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p4"}, nil)
	require.Equal(t, http.StatusOK, h.do(other, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "ada@example.com", "password": "pw"}, nil))
	h.do(other, http.MethodGet, "/api/v1/cart", nil, &view)
	assert.Equal(t, []string{"p4", "p1"}, itemIDs(view.Items), "saved lines are merged after the current ones")
	assert.Equal(t, 3, view.Count)
}

func TestExpiredUpstreamSession(t *testing.T) {
	h := newHarness(t)
	b := h.browser()
	h.do(b, http.MethodPost, "/api/v1/session/mount", nil, nil)
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": "ada@example.com", "password": "pw"}, nil))
	h.do(b, http.MethodPost, "/api/v1/cart/items", map[string]any{"product_id": "p1"}, nil)

	h.upstream.set(func(m *marketplace) { m.expired = true })

	var ov overviewView
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/session/mount", nil, &ov))
	assert.Nil(t, ov.User)
	assert.Empty(t, ov.Categories, "no category list, no grouping")
	assert.Equal(t, 1, ov.Cart.Count)

	var followed []cardView
	require.Equal(t, http.StatusOK, h.do(b, http.MethodGet, "/api/v1/vendors/followed", nil, &followed))
	assert.Empty(t, followed, "follow state of the expired user is gone")

	var body map[string]string
	require.Equal(t, http.StatusUnauthorized, h.do(b, http.MethodGet, "/api/v1/me", nil, &body))
	assert.Equal(t, "/", body["redirect"])

	var notices []notify.Notice
	h.do(b, http.MethodGet, "/api/v1/notifications", nil, &notices)
	assert.Equal(t, []string{notify.CodeSessionExpired}, noticeCodes(notices))
}

func TestUpstreamOutageBecomesNotice(t *testing.T) {
	h := newHarness(t)
	b := h.browser()
	h.upstream.set(func(m *marketplace) { m.products = `not json` })

	var ov overviewView
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/session/mount", nil, &ov))
	assert.Empty(t, ov.Categories)
	assert.Equal(t, 2, ov.Vendors)

	var notices []notify.Notice
	h.do(b, http.MethodGet, "/api/v1/notifications", nil, &notices)
	require.Len(t, notices, 1)
	assert.Equal(t, notify.CodeUpstreamError, notices[0].Code)
	assert.Equal(t, "Something went wrong", notices[0].Message)
}

func TestFailedCategoryFetchClearsGrouping(t *testing.T) {
	h := newHarness(t)
	b := h.browser()

	var ov overviewView
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/session/mount", nil, &ov))
	require.Len(t, ov.Categories, 2)

	h.upstream.set(func(m *marketplace) { m.failCats = true })
	require.Equal(t, http.StatusOK, h.do(b, http.MethodPost, "/api/v1/session/mount", nil, &ov))
	assert.Empty(t, ov.Categories)

	var groups []catalog.Group
	require.Equal(t, http.StatusOK, h.do(b, http.MethodGet, "/api/v1/categories", nil, &groups))
	assert.Empty(t, groups)
}

func TestSessionMiddleware(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.server.URL + "/api/v1/cart")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)

	req, _ := http.NewRequest(http.MethodGet, h.server.URL+"/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer "+cookies[0].Value)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Cookies(), "a valid token reuses its session")
	assert.Equal(t, 1, h.registry.Len())

	req, _ = http.NewRequest(http.MethodGet, h.server.URL+"/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer forged")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Len(t, resp.Cookies(), 1)
	assert.Equal(t, 2, h.registry.Len())
}

func itemIDs(items []cart.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Product.ID)
	}
	return out
}
