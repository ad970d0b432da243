package storefront

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/georgemunganga/printa-storefront/internal/modules/cart"
	"github.com/georgemunganga/printa-storefront/internal/modules/catalog"
	"github.com/georgemunganga/printa-storefront/internal/modules/user"
	"github.com/georgemunganga/printa-storefront/internal/modules/vendor"
	"github.com/georgemunganga/printa-storefront/internal/notify"
	"github.com/georgemunganga/printa-storefront/internal/remote"
)

var (
	ErrLoginRequired   = errors.New("login required")
	ErrUnknownProduct  = errors.New("product not found in catalog")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Service orchestrates upstream fetches into session state and builds the
// dashboard view-models from it.
type Service interface {
	// Mount loads catalog, categories and vendors in parallel, then prunes
	// cart lines whose product disappeared. Upstream failures become notices.
	Mount(ctx context.Context, sess *Session) (*Overview, error)

	Login(ctx context.Context, sess *Session, email, password string) (*user.User, error)
	Register(ctx context.Context, sess *Session, req user.RegisterRequest) (*user.User, error)
	Logout(ctx context.Context, sess *Session) error

	CartView(sess *Session) cart.View
	Related(sess *Session) []catalog.Product
	AddToCart(ctx context.Context, sess *Session, productID string, quantity int) (cart.View, error)
	SetQuantity(ctx context.Context, sess *Session, productID string, quantity int) (cart.View, error)
	Increment(ctx context.Context, sess *Session, productID string) (cart.View, error)
	Decrement(ctx context.Context, sess *Session, productID string) (cart.View, error)
	RemoveFromCart(ctx context.Context, sess *Session, productID string) (cart.View, error)
	ClearCart(ctx context.Context, sess *Session) (cart.View, error)

	Categories(sess *Session) []catalog.Group
	CategoryProducts(sess *Session, name string) []catalog.Product
	Products(sess *Session, query string) []catalog.Product

	Vendors(sess *Session, query string) []VendorCard
	FollowedVendors(sess *Session) []VendorCard
	ToggleFollow(ctx context.Context, sess *Session, vendorID string) (vendor.Card, error)
	ReconcileFollows(ctx context.Context, sess *Session) ([]VendorCard, error)
}

// Deps are the collaborators a Service is built from.
type Deps struct {
	Catalog  catalog.Service
	Vendors  vendor.Service
	Follower *vendor.Follower
	Users    user.Service
	Carts    cart.Repository
	Logger   *zap.Logger
}

type service struct {
	catalog  catalog.Service
	vendors  vendor.Service
	follower *vendor.Follower
	users    user.Service
	carts    cart.Repository
	logger   *zap.Logger
}

// NewService creates a new storefront service.
func NewService(d Deps) Service {
	return &service{
		catalog:  d.Catalog,
		vendors:  d.Vendors,
		follower: d.Follower,
		users:    d.Users,
		carts:    d.Carts,
		logger:   d.Logger,
	}
}

func (s *service) Mount(ctx context.Context, sess *Session) (*Overview, error) {
	var (
		products   []catalog.Product
		categories []catalog.Category
		vendors    []vendor.Vendor
		followings []string
	)
	userID := sess.store.User().ID
	c := sess.Client()

	var g errgroup.Group
	g.Go(func() (err error) {
		products, err = s.catalog.ListProducts(ctx, c)
		return err
	})
	g.Go(func() error {
		categories = s.catalog.ListCategories(ctx, c)
		return nil
	})
	g.Go(func() (err error) {
		vendors, err = s.vendors.ListVendors(ctx, c)
		return err
	})
	if userID != "" {
		g.Go(func() (err error) {
			followings, err = s.vendors.Followings(ctx, c, userID)
			return err
		})
	}
	fetchErr := g.Wait()

	st := sess.store
	// A failed product or vendor fetch leaves the previous copy in place.
	// Categories are always replaced; nil groups nothing.
	if products != nil {
		if err := st.SetCatalog(products); err != nil {
			return nil, err
		}
	}
	if err := st.SetCategories(categories); err != nil {
		return nil, err
	}
	if vendors != nil {
		if err := st.SetVendors(vendors); err != nil {
			return nil, err
		}
	}
	if followings != nil {
		if _, err := st.SetFollowingsFor(userID, followings); err != nil {
			return nil, err
		}
	}
	if fetchErr != nil {
		s.upstreamFailure(ctx, sess, "mount", fetchErr)
	}

	var pruned []string
	if products != nil {
		var err error
		if pruned, err = s.reconcileCart(ctx, sess); err != nil {
			return nil, err
		}
	}

	snap := st.Snapshot()
	view := cart.BuildView(snap.Products, snap.Lines)
	if pruned == nil {
		pruned = []string{}
	}
	return &Overview{
		User:       userPtr(snap.User),
		Cart:       view,
		Categories: catalog.GroupByCategory(snap.Categories, snap.Products),
		Vendors:    len(snap.Vendors),
		Pruned:     pruned,
	}, nil
}

// reconcileCart prunes orphaned lines, then logs, notifies and persists.
func (s *service) reconcileCart(ctx context.Context, sess *Session) ([]string, error) {
	pruned, err := sess.store.ReconcileCart()
	if err != nil || len(pruned) == 0 {
		return pruned, err
	}
	s.logger.Info("pruned unavailable cart lines",
		zap.String("session", sess.id),
		zap.Strings("products", pruned))
	for _, id := range pruned {
		sess.Notify(ctx, notify.Notice{
			Level:   notify.LevelWarning,
			Code:    notify.CodeItemUnavailable,
			Message: "An item in your cart is no longer available and was removed",
			Subject: id,
		})
	}
	s.persistCart(ctx, sess, sess.store.Snapshot())
	return pruned, nil
}

func (s *service) Login(ctx context.Context, sess *Session, email, password string) (*user.User, error) {
	u, err := s.users.Login(ctx, sess.Client(), email, password)
	if err != nil {
		return nil, err
	}
	if err := sess.store.SetUser(*u); err != nil {
		return nil, err
	}
	s.restoreCart(ctx, sess, u.ID)

	followings, err := s.vendors.Followings(ctx, sess.Client(), u.ID)
	if err != nil {
		s.upstreamFailure(ctx, sess, "followings", err)
	} else if applied, err := sess.store.SetFollowingsFor(u.ID, followings); err != nil {
		return nil, err
	} else if !applied {
		s.logger.Debug("discarded followings of a replaced user", zap.String("session", sess.id), zap.String("user", u.ID))
	}
	s.logger.Info("user logged in", zap.String("session", sess.id), zap.String("user", u.ID))
	return u, nil
}

// restoreCart merges the user's saved cart after the anonymous lines and
// saves the result.
func (s *service) restoreCart(ctx context.Context, sess *Session, userID string) {
	saved, err := s.carts.Load(ctx, userID)
	if err != nil {
		s.logger.Warn("cart restore failed", zap.String("user", userID), zap.Error(err))
		return
	}
	if _, err := sess.store.MergeCart(saved); err != nil {
		return
	}
	s.persistCart(ctx, sess, sess.store.Snapshot())
}

func (s *service) Register(ctx context.Context, sess *Session, req user.RegisterRequest) (*user.User, error) {
	return s.users.RegisterUser(ctx, sess.Client(), req)
}

func (s *service) Logout(ctx context.Context, sess *Session) error {
	if err := s.users.Logout(ctx, sess.Client()); err != nil && !errors.Is(err, remote.ErrUnauthorized) {
		s.logger.Warn("upstream logout failed", zap.String("session", sess.id), zap.Error(err))
	}
	return sess.store.Logout()
}

func (s *service) CartView(sess *Session) cart.View {
	snap := sess.store.Snapshot()
	return cart.BuildView(snap.Products, snap.Lines)
}

func (s *service) Related(sess *Session) []catalog.Product {
	snap := sess.store.Snapshot()
	view := cart.BuildView(snap.Products, snap.Lines)
	return cart.Related(view.Items, snap.Products, cart.RelatedLimit)
}

func (s *service) AddToCart(ctx context.Context, sess *Session, productID string, quantity int) (cart.View, error) {
	if quantity <= 0 {
		return cart.View{}, ErrInvalidQuantity
	}
	if err := s.inCatalog(sess, productID); err != nil {
		return cart.View{}, err
	}
	_, err := sess.store.AddToCart(productID, quantity)
	return s.cartChanged(ctx, sess, err)
}

func (s *service) SetQuantity(ctx context.Context, sess *Session, productID string, quantity int) (cart.View, error) {
	if quantity > 0 {
		if err := s.inCatalog(sess, productID); err != nil {
			return cart.View{}, err
		}
	}
	_, err := sess.store.SetQuantity(productID, quantity)
	return s.cartChanged(ctx, sess, err)
}

func (s *service) Increment(ctx context.Context, sess *Session, productID string) (cart.View, error) {
	if err := s.inCatalog(sess, productID); err != nil {
		return cart.View{}, err
	}
	_, err := sess.store.Increment(productID)
	return s.cartChanged(ctx, sess, err)
}

func (s *service) Decrement(ctx context.Context, sess *Session, productID string) (cart.View, error) {
	_, err := sess.store.Decrement(productID)
	return s.cartChanged(ctx, sess, err)
}

func (s *service) inCatalog(sess *Session, productID string) error {
	if _, ok := catalog.Find(sess.store.Snapshot().Products, productID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	return nil
}

func (s *service) RemoveFromCart(ctx context.Context, sess *Session, productID string) (cart.View, error) {
	_, err := sess.store.RemoveFromCart(productID)
	return s.cartChanged(ctx, sess, err)
}

func (s *service) ClearCart(ctx context.Context, sess *Session) (cart.View, error) {
	_, err := sess.store.ClearCart()
	return s.cartChanged(ctx, sess, err)
}

// cartChanged persists the cart for a logged-in user and builds the view.
func (s *service) cartChanged(ctx context.Context, sess *Session, err error) (cart.View, error) {
	if err != nil {
		return cart.View{}, err
	}
	snap := sess.store.Snapshot()
	s.persistCart(ctx, sess, snap)
	return cart.BuildView(snap.Products, snap.Lines), nil
}

func (s *service) persistCart(ctx context.Context, sess *Session, snap Snapshot) {
	if snap.User.IsZero() {
		return
	}
	if err := s.carts.Save(ctx, snap.User.ID, snap.Lines); err != nil {
		s.logger.Warn("cart save failed",
			zap.String("session", sess.id),
			zap.String("user", snap.User.ID),
			zap.Error(err))
	}
}

func (s *service) Categories(sess *Session) []catalog.Group {
	snap := sess.store.Snapshot()
	return catalog.GroupByCategory(snap.Categories, snap.Products)
}

func (s *service) CategoryProducts(sess *Session, name string) []catalog.Product {
	return catalog.InCategory(sess.store.Snapshot().Products, name)
}

func (s *service) Products(sess *Session, query string) []catalog.Product {
	found := catalog.Search(sess.store.Snapshot().Products, query)
	if found == nil {
		return []catalog.Product{}
	}
	return found
}

func (s *service) Vendors(sess *Session, query string) []VendorCard {
	snap := sess.store.Snapshot()
	return cards(vendor.Filter(snap.Vendors, query), sess.store.Board())
}

func (s *service) FollowedVendors(sess *Session) []VendorCard {
	snap := sess.store.Snapshot()
	b := sess.store.Board()
	return cards(vendor.Followed(snap.Vendors, followedIDs(b)), b)
}

func (s *service) ToggleFollow(ctx context.Context, sess *Session, vendorID string) (vendor.Card, error) {
	u := sess.store.User()
	b := sess.store.Board()
	if u.IsZero() {
		return b.Card(vendorID), ErrLoginRequired
	}
	card, err := s.follower.Toggle(ctx, sess.Client(), b, u.ID, vendorID)
	if err != nil {
		if !errors.Is(err, remote.ErrUnauthorized) && !errors.Is(err, vendor.ErrBoardClosed) {
			sess.Notify(ctx, notify.Notice{
				Level:   notify.LevelError,
				Code:    notify.CodeFollowFailed,
				Message: remote.Message(err),
				Subject: vendorID,
			})
		}
		return card, err
	}
	return card, nil
}

func (s *service) ReconcileFollows(ctx context.Context, sess *Session) ([]VendorCard, error) {
	snap := sess.store.Snapshot()
	b := sess.store.Board()
	ids := make([]string, 0, len(snap.Vendors))
	for _, v := range snap.Vendors {
		ids = append(ids, v.ID)
	}
	if err := s.follower.Reconcile(ctx, sess.Client(), b, snap.User.ID, ids); err != nil {
		s.upstreamFailure(ctx, sess, "follow reconcile", err)
	}
	return cards(snap.Vendors, b), nil
}

// upstreamFailure logs err and turns it into a notice. A 401 has already
// invalidated the store through the client hook and queued its own notice.
func (s *service) upstreamFailure(ctx context.Context, sess *Session, op string, err error) {
	s.logger.Warn("upstream failure",
		zap.String("session", sess.id),
		zap.String("op", op),
		zap.Error(err))
	if errors.Is(err, remote.ErrUnauthorized) {
		return
	}
	sess.Notify(ctx, notify.Notice{
		Level:   notify.LevelError,
		Code:    notify.CodeUpstreamError,
		Message: remote.Message(err),
		Subject: strings.ReplaceAll(op, " ", "_"),
	})
}
