// internal/domain/cart/store.go
package cart

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const persistTimeout = 3 * time.Second

// Store holds one session's cart. It is safe for concurrent use.
// Every mutation is written through to the Persister; persistence
// failures are logged and the in-memory state stays authoritative.
type Store struct {
	mu              sync.Mutex
	sessionID       string
	lines           map[string]Line
	shippingCost    decimal.Decimal
	postalCode      string
	discountPercent decimal.Decimal
	discountCode    string
	updatedAt       time.Time
	version         uint64
	// saved is false while the last write-through failed
	saved bool

	persister Persister
	shared    bool
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewStore creates an empty cart for a session
func NewStore(sessionID string, persister Persister, logger logrus.FieldLogger) *Store {
	if persister == nil {
		persister = NopPersister{}
	}
	_, nop := persister.(NopPersister)
	return &Store{
		sessionID: sessionID,
		lines:     make(map[string]Line),
		saved:     true,
		persister: persister,
		shared:    !nop,
		logger:    logger.WithField("session_id", sessionID),
		now:       time.Now,
	}
}

// restore replaces the store contents with a persisted snapshot without writing back
func (s *Store) restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(snap)
}

func (s *Store) applyLocked(snap Snapshot) {
	s.lines = make(map[string]Line, len(snap.Lines))
	for _, l := range snap.Lines {
		if err := l.Validate(); err != nil {
			s.logger.WithError(err).WithField("product_id", l.ProductID).Warn("Dropping invalid persisted cart line")
			continue
		}
		s.lines[l.ProductID] = l.clone()
	}
	s.shippingCost = snap.ShippingCost
	s.postalCode = snap.PostalCode
	s.discountPercent = snap.DiscountPercent
	s.discountCode = snap.DiscountCode
	s.updatedAt = snap.UpdatedAt
	s.saved = true
}

// Refresh picks up writes made to the persisted copy by another instance.
// A newer persisted cart replaces this one; a missing copy empties a cart
// that was last saved successfully. Load failures keep the local state.
func (s *Store) Refresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked(ctx)
}

func (s *Store) refreshLocked(ctx context.Context) {
	if !s.shared {
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	snap, found, err := s.persister.Load(pctx, s.sessionID)
	switch {
	case err != nil:
		s.logger.WithError(err).Warn("Failed to refresh persisted cart")
	case found && newer(snap.UpdatedAt, s.updatedAt):
		s.applyLocked(snap)
		s.version++
	case !found && s.saved && !s.emptyLocked():
		s.resetLocked()
		s.version++
	}
}

// SessionID returns the owning session id
func (s *Store) SessionID() string {
	return s.sessionID
}

// AddLine inserts a line or, when the product is already present,
// increments the existing quantity by line.Quantity.
func (s *Store) AddLine(ctx context.Context, line Line) error {
	if err := line.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.lines[line.ProductID]; ok {
		if existing.Quantity > math.MaxInt32-line.Quantity {
			return ErrInvalidQuantity
		}
		existing.Quantity += line.Quantity
		s.lines[line.ProductID] = existing
	} else {
		s.lines[line.ProductID] = line.clone()
	}

	s.touch(ctx)
	return nil
}

// UpdateQuantity replaces the quantity of an existing line
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if productID == "" {
		return ErrInvalidLineIdentifier
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[productID]
	if !ok {
		return ErrLineNotFound
	}
	line.Quantity = quantity
	s.lines[productID] = line

	s.touch(ctx)
	return nil
}

// RemoveLine deletes a line. Removing an absent product is a no-op.
func (s *Store) RemoveLine(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lines[productID]; !ok {
		return
	}
	delete(s.lines, productID)

	s.touch(ctx)
}

// SetShippingCost sets the shipping modifier. Last write wins.
func (s *Store) SetShippingCost(ctx context.Context, cost decimal.Decimal, postalCode string) error {
	if cost.IsNegative() {
		return ErrInvalidShippingCost
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.shippingCost = cost
	s.postalCode = postalCode

	s.touch(ctx)
	return nil
}

// SetDiscountPercent sets the discount modifier. Last write wins.
func (s *Store) SetDiscountPercent(ctx context.Context, percent decimal.Decimal, code string) error {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return ErrInvalidDiscount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.discountPercent = percent
	s.discountCode = code

	s.touch(ctx)
	return nil
}

// Clear empties the cart, resets modifiers and purges the persisted copy
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(ctx)
}

// Settle removes what a completed checkout bought. If the cart has not
// changed since version it is cleared; otherwise only the purchased
// quantities are taken out and lines added meanwhile survive. Modifiers
// are reset either way.
func (s *Store) Settle(ctx context.Context, purchased Snapshot, version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshLocked(ctx)
	if s.version == version {
		s.clearLocked(ctx)
		return
	}

	for _, p := range purchased.Lines {
		line, ok := s.lines[p.ProductID]
		if !ok {
			continue
		}
		line.Quantity -= p.Quantity
		if line.Quantity <= 0 {
			delete(s.lines, p.ProductID)
			continue
		}
		s.lines[p.ProductID] = line
	}
	if len(s.lines) == 0 {
		s.clearLocked(ctx)
		return
	}

	s.shippingCost = decimal.Zero
	s.postalCode = ""
	s.discountPercent = decimal.Zero
	s.discountCode = ""
	s.touch(ctx)
}

func (s *Store) clearLocked(ctx context.Context) {
	s.resetLocked()
	s.updatedAt = s.now()
	s.version++

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.persister.Clear(pctx, s.sessionID); err != nil {
		s.logger.WithError(err).Warn("Failed to purge persisted cart")
		s.saved = false
		return
	}
	s.saved = true
}

// newer compares at millisecond precision, the coarsest a persister keeps
func newer(persisted, local time.Time) bool {
	return persisted.Truncate(time.Millisecond).After(local.Truncate(time.Millisecond))
}

func (s *Store) resetLocked() {
	s.lines = make(map[string]Line)
	s.shippingCost = decimal.Zero
	s.postalCode = ""
	s.discountPercent = decimal.Zero
	s.discountCode = ""
}

func (s *Store) emptyLocked() bool {
	return len(s.lines) == 0 && s.shippingCost.IsZero() && s.discountPercent.IsZero()
}

// Snapshot returns a deep copy of the current cart
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// VersionedSnapshot returns a snapshot together with the version it was taken at
func (s *Store) VersionedSnapshot() (Snapshot, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), s.version
}

// Version increases on every mutation
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Store) snapshotLocked() Snapshot {
	lines := make([]Line, 0, len(s.lines))
	for _, l := range s.lines {
		lines = append(lines, l.clone())
	}
	sortLines(lines)

	return Snapshot{
		SessionID:       s.sessionID,
		Lines:           lines,
		ShippingCost:    s.shippingCost,
		PostalCode:      s.postalCode,
		DiscountPercent: s.discountPercent,
		DiscountCode:    s.discountCode,
		UpdatedAt:       s.updatedAt,
	}
}

// touch records a mutation and writes the full cart through. Caller holds mu.
func (s *Store) touch(ctx context.Context) {
	s.updatedAt = s.now()
	s.version++

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.persister.Save(pctx, s.sessionID, s.snapshotLocked()); err != nil {
		s.logger.WithError(err).Warn("Failed to persist cart")
		s.saved = false
		return
	}
	s.saved = true
}
