package storefront

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/georgemunganga/printa-storefront/internal/modules/cart"
	"github.com/georgemunganga/printa-storefront/internal/modules/catalog"
	"github.com/georgemunganga/printa-storefront/internal/modules/user"
	"github.com/georgemunganga/printa-storefront/internal/modules/vendor"
	"github.com/georgemunganga/printa-storefront/internal/notify"
)

// ErrClosed is returned by every update on a store whose session was dropped.
var ErrClosed = errors.New("storefront: session closed")

// MaxNotices caps the queued notices; the oldest are dropped first.
const MaxNotices = 50

// Store is the state of one storefront session. All reads go through
// Snapshot so each view is built from one consistent copy.
type Store struct {
	mu         sync.RWMutex
	user       user.User
	products   []catalog.Product
	categories []catalog.Category
	vendors    []vendor.Vendor
	followings []string
	cart       *cart.Cart
	board      *vendor.Board
	notices    []notify.Notice
	closed     bool
	now        func() time.Time
}

// Snapshot is a point-in-time copy of a Store. The catalog slices are
// replaced wholesale on every fetch, never edited in place, so they are
// shared with the store rather than copied.
type Snapshot struct {
	User       user.User
	Products   []catalog.Product
	Categories []catalog.Category
	Vendors    []vendor.Vendor
	Followings []string
	Lines      []cart.Line
}

func NewStore() *Store {
	return &Store{cart: cart.New(), board: vendor.NewBoard(), now: time.Now}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		User:       s.user,
		Products:   s.products,
		Categories: s.categories,
		Vendors:    s.vendors,
		Followings: slices.Clone(s.followings),
		Lines:      s.cart.Lines(),
	}
}

// Board is the session's follow board. It has its own lock.
func (s *Store) Board() *vendor.Board {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.board
}

// User returns the cached identity.
func (s *Store) User() user.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// update runs fn under the write lock unless the store is closed.
func (s *Store) update(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fn()
	return nil
}

func (s *Store) SetUser(u user.User) error {
	return s.update(func() { s.user = u })
}

// SetFollowings records the followed vendor ids and seeds the board with them.
func (s *Store) SetFollowings(ids []string) error {
	return s.update(func() {
		s.followings = vendor.Dedupe(ids)
		s.board.Seed(s.vendors, s.followings)
	})
}

// SetFollowingsFor is SetFollowings for ids fetched on behalf of userID. It
// reports false, changing nothing, when userID is no longer logged in.
func (s *Store) SetFollowingsFor(userID string, ids []string) (bool, error) {
	applied := false
	err := s.update(func() {
		if userID == "" || s.user.ID != userID {
			return
		}
		s.followings = vendor.Dedupe(ids)
		s.board.Seed(s.vendors, s.followings)
		applied = true
	})
	return applied, err
}

// Logout forgets the user, the cart and the follow state. The cart was
// already persisted for the user on its last change.
func (s *Store) Logout() error {
	return s.update(func() {
		s.user = user.User{}
		s.cart = cart.New()
		s.resetFollows()
	})
}

// Invalidate handles an upstream 401: the cached identity and its follow
// state are cleared and a session-expired notice queued. The cart is kept.
func (s *Store) Invalidate() {
	s.update(func() {
		if s.user.IsZero() {
			return
		}
		s.user = user.User{}
		s.resetFollows()
		s.pushNotice(notify.Notice{
			Level:   notify.LevelWarning,
			Code:    notify.CodeSessionExpired,
			Message: "Your session has expired, please log in again",
		})
	})
}

// resetFollows swaps in an anonymous board. The old board is closed so
// responses still in flight for the previous identity are dropped.
func (s *Store) resetFollows() {
	s.followings = nil
	s.board.Close()
	s.board = vendor.NewBoard()
	s.board.Seed(s.vendors, nil)
}

// SetCatalog replaces the product list.
func (s *Store) SetCatalog(products []catalog.Product) error {
	return s.update(func() { s.products = products })
}

func (s *Store) SetCategories(categories []catalog.Category) error {
	return s.update(func() { s.categories = categories })
}

// SetVendors replaces the vendor list and seeds their follow cards.
func (s *Store) SetVendors(vendors []vendor.Vendor) error {
	return s.update(func() {
		s.vendors = vendors
		s.board.Seed(vendors, s.followings)
	})
}

// ReconcileCart drops lines whose product is no longer in the catalog and
// returns the dropped ids.
func (s *Store) ReconcileCart() ([]string, error) {
	var pruned []string
	err := s.update(func() { pruned = cart.Reconcile(s.cart, s.products) })
	return pruned, err
}

// AddToCart adds n units of id and returns the resulting lines.
func (s *Store) AddToCart(id string, n int) ([]cart.Line, error) {
	return s.mutateCart(func(c *cart.Cart) { c.Add(id, n) })
}

// SetQuantity sets the quantity of id; q <= 0 removes the line.
func (s *Store) SetQuantity(id string, q int) ([]cart.Line, error) {
	return s.mutateCart(func(c *cart.Cart) { c.SetQuantity(id, q) })
}

func (s *Store) Increment(id string) ([]cart.Line, error) {
	return s.mutateCart(func(c *cart.Cart) { c.Increment(id) })
}

// Decrement removes one unit of id; the line goes once it drops below 1.
func (s *Store) Decrement(id string) ([]cart.Line, error) {
	return s.mutateCart(func(c *cart.Cart) { c.Decrement(id) })
}

func (s *Store) RemoveFromCart(id string) ([]cart.Line, error) {
	return s.mutateCart(func(c *cart.Cart) { c.Remove(id) })
}

func (s *Store) ClearCart() ([]cart.Line, error) {
	return s.mutateCart(func(c *cart.Cart) { c.Clear() })
}

// MergeCart adds saved lines after the current ones.
func (s *Store) MergeCart(lines []cart.Line) ([]cart.Line, error) {
	return s.mutateCart(func(c *cart.Cart) { c.Merge(lines) })
}

func (s *Store) mutateCart(fn func(*cart.Cart)) ([]cart.Line, error) {
	var lines []cart.Line
	err := s.update(func() {
		fn(s.cart)
		lines = s.cart.Lines()
	})
	return lines, err
}

// Notify queues n, stamping it with the current time when unset.
func (s *Store) Notify(n notify.Notice) error {
	return s.update(func() { s.pushNotice(n) })
}

func (s *Store) pushNotice(n notify.Notice) {
	if n.At.IsZero() {
		n.At = s.now()
	}
	s.notices = append(s.notices, n)
	if over := len(s.notices) - MaxNotices; over > 0 {
		s.notices = slices.Delete(s.notices, 0, over)
	}
}

// DrainNotices returns the queued notices and empties the queue.
func (s *Store) DrainNotices() []notify.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	if out == nil {
		out = []notify.Notice{}
	}
	return out
}

// Close marks the store unmounted. Later updates return ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.board.Close()
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
