// internal/domain/cart/service.go
package cart

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// CatalogProduct is the catalog view needed to put a product in a cart
type CatalogProduct struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	ImageURLs []string
	Paused    bool
}

// Catalog looks up products for add-to-cart.
// Lookup returns ErrProductNotFound for unknown ids.
type Catalog interface {
	Lookup(ctx context.Context, productID string) (CatalogProduct, error)
}

// CatalogFunc adapts a function to Catalog
type CatalogFunc func(ctx context.Context, productID string) (CatalogProduct, error)

func (f CatalogFunc) Lookup(ctx context.Context, productID string) (CatalogProduct, error) {
	return f(ctx, productID)
}

// DiscountValidator resolves a discount code to a percent
type DiscountValidator interface {
	Validate(ctx context.Context, code string) (decimal.Decimal, error)
}

// ShippingQuoter prices shipping for a postal code
type ShippingQuoter interface {
	Quote(postalCode string) (decimal.Decimal, error)
}

// Service owns the session carts of this instance. Carts are kept in a
// bounded LRU and rehydrated from the Persister on a miss. With a shared
// Persister every access also refreshes a cached cart from the persisted
// copy, so instances behind a load balancer see each other's writes.
type Service struct {
	persister Persister
	catalog   Catalog
	discounts DiscountValidator
	shipping  ShippingQuoter
	logger    logrus.FieldLogger

	sessions *lru.Cache[string, *Store]
	loads    singleflight.Group

	heldMu sync.Mutex
	held   map[string]*heldStore
}

type heldStore struct {
	store *Store
	count int
}

// NewService creates a cart service
func NewService(persister Persister, catalog Catalog, discounts DiscountValidator, shipping ShippingQuoter, maxSessions int, logger logrus.FieldLogger) (*Service, error) {
	if persister == nil {
		persister = NopPersister{}
	}
	sessions, err := lru.New[string, *Store](maxSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &Service{
		persister: persister,
		catalog:   catalog,
		discounts: discounts,
		shipping:  shipping,
		logger:    logger,
		sessions:  sessions,
		held:      make(map[string]*heldStore),
	}, nil
}

// Discounts returns the validator used for discount codes, or nil
func (s *Service) Discounts() DiscountValidator {
	return s.discounts
}

// Session returns the cart for a session, rehydrating it if needed.
// A load failure yields an empty cart.
func (s *Service) Session(ctx context.Context, sessionID string) *Store {
	if store, ok := s.heldStore(sessionID); ok {
		s.sessions.Add(sessionID, store)
		store.Refresh(ctx)
		return store
	}
	if store, ok := s.sessions.Get(sessionID); ok {
		store.Refresh(ctx)
		return store
	}

	v, _, _ := s.loads.Do(sessionID, func() (interface{}, error) {
		if store, ok := s.sessions.Get(sessionID); ok {
			return store, nil
		}
		if store, ok := s.heldStore(sessionID); ok {
			s.sessions.Add(sessionID, store)
			return store, nil
		}

		store := NewStore(sessionID, s.persister, s.logger)
		snap, found, err := s.persister.Load(ctx, sessionID)
		switch {
		case err != nil:
			s.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to load persisted cart, starting empty")
		case found:
			store.restore(snap)
		}

		s.sessions.Add(sessionID, store)
		return store, nil
	})

	return v.(*Store)
}

// Hold returns the session cart and keeps it the session's cart until
// release is called, even if the LRU evicts it meanwhile.
func (s *Service) Hold(ctx context.Context, sessionID string) (*Store, func()) {
	store := s.Session(ctx, sessionID)

	s.heldMu.Lock()
	h, ok := s.held[sessionID]
	if !ok {
		h = &heldStore{store: store}
		s.held[sessionID] = h
	}
	h.count++
	store = h.store
	s.heldMu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			s.heldMu.Lock()
			defer s.heldMu.Unlock()
			if h.count--; h.count == 0 {
				delete(s.held, sessionID)
			}
		})
	}
	return store, release
}

func (s *Service) heldStore(sessionID string) (*Store, bool) {
	s.heldMu.Lock()
	defer s.heldMu.Unlock()
	h, ok := s.held[sessionID]
	if !ok {
		return nil, false
	}
	return h.store, true
}

// Snapshot returns the session cart contents
func (s *Service) Snapshot(ctx context.Context, sessionID string) Snapshot {
	return s.Session(ctx, sessionID).Snapshot()
}

// AddProduct adds quantity units of a catalog product. Quantity is not
// capped at stock here; stock is enforced when checking out.
func (s *Service) AddProduct(ctx context.Context, sessionID, productID string, quantity int) (Snapshot, error) {
	if productID == "" {
		return Snapshot{}, ErrInvalidLineIdentifier
	}
	if quantity < 1 {
		return Snapshot{}, ErrInvalidQuantity
	}

	product, err := s.catalog.Lookup(ctx, productID)
	if err != nil {
		return Snapshot{}, err
	}
	if product.Paused {
		return Snapshot{}, ErrProductUnavailable
	}

	store := s.Session(ctx, sessionID)
	err = store.AddLine(ctx, Line{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  quantity,
		ImageRefs: product.ImageURLs,
	})
	if err != nil {
		return Snapshot{}, err
	}
	return store.Snapshot(), nil
}

// UpdateQuantity replaces a line quantity
func (s *Service) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (Snapshot, error) {
	store := s.Session(ctx, sessionID)
	if err := store.UpdateQuantity(ctx, productID, quantity); err != nil {
		return Snapshot{}, err
	}
	return store.Snapshot(), nil
}

// RemoveLine removes a product from the cart
func (s *Service) RemoveLine(ctx context.Context, sessionID, productID string) Snapshot {
	store := s.Session(ctx, sessionID)
	store.RemoveLine(ctx, productID)
	return store.Snapshot()
}

// Clear empties the session cart
func (s *Service) Clear(ctx context.Context, sessionID string) {
	s.Session(ctx, sessionID).Clear(ctx)
}

// ApplyDiscountCode validates a code and sets its percent on the cart.
// On any validation error the cart is left untouched.
func (s *Service) ApplyDiscountCode(ctx context.Context, sessionID, code string) (decimal.Decimal, error) {
	percent, err := s.discounts.Validate(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.Session(ctx, sessionID).SetDiscountPercent(ctx, percent, code); err != nil {
		return decimal.Zero, err
	}
	return percent, nil
}

// RemoveDiscount resets the discount modifier
func (s *Service) RemoveDiscount(ctx context.Context, sessionID string) error {
	return s.Session(ctx, sessionID).SetDiscountPercent(ctx, decimal.Zero, "")
}

// SetShipping quotes a postal code and accepts the cost on the cart
func (s *Service) SetShipping(ctx context.Context, sessionID, postalCode string) (decimal.Decimal, error) {
	cost, err := s.shipping.Quote(postalCode)
	if err != nil {
		return decimal.Zero, err
	}

	if err := s.Session(ctx, sessionID).SetShippingCost(ctx, cost, postalCode); err != nil {
		return decimal.Zero, err
	}
	return cost, nil
}

// CancelShipping sets shipping back to zero
func (s *Service) CancelShipping(ctx context.Context, sessionID string) error {
	return s.Session(ctx, sessionID).SetShippingCost(ctx, decimal.Zero, "")
}
