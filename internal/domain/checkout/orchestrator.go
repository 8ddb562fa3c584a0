// internal/domain/checkout/orchestrator.go
package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/order"
	"github.com/your-org/storefront-backend/internal/domain/payment"
	"github.com/your-org/storefront-backend/internal/domain/pricing"
)

const (
	shippingItemTitle = "Shipping"
	recordTimeout     = 5 * time.Second
)

// OrderRecorder keeps the order trail of checkout attempts
type OrderRecorder interface {
	RecordPending(ctx context.Context, order *order.Order) error
	AttachPreference(ctx context.Context, reference, preferenceID string) error
	MarkFailed(ctx context.Context, reference, reason string) error
}

// Options configure how preferences are built
type Options struct {
	Currency        string
	BackURLs        payment.BackURLs
	AutoReturn      string
	NotificationURL string
	Timeout         time.Duration
}

// Orchestrator drives one cart through a checkout attempt. Only one
// attempt runs at a time; the orchestrator is back to idle once the
// attempt reaches Completed or Failed.
type Orchestrator struct {
	mu    sync.Mutex
	state State

	store      *cart.Store
	reconciler *Reconciler
	gateway    payment.Gateway
	orders     OrderRecorder
	opts       Options
	logger     logrus.FieldLogger

	onFinish     func(Transition)
	newReference func() string
}

// NewOrchestrator creates an idle orchestrator for a cart
func NewOrchestrator(store *cart.Store, reconciler *Reconciler, gateway payment.Gateway, orders OrderRecorder, opts Options, logger logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{
		state:        StateIdle,
		store:        store,
		reconciler:   reconciler,
		gateway:      gateway,
		orders:       orders,
		opts:         opts,
		logger:       logger.WithField("session_id", store.SessionID()),
		newReference: func() string { return uuid.NewString() },
	}
}

// OnFinish registers a hook called just before the terminal transition is emitted
func (o *Orchestrator) OnFinish(fn func(Transition)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onFinish = fn
}

// State returns the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Start begins an attempt and streams its transitions. The channel is
// closed after the terminal transition. Starting while an attempt is
// running fails with ErrCheckoutInProgress and has no side effects.
func (o *Orchestrator) Start(ctx context.Context) (<-chan Transition, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	o.state = StateValidating
	o.mu.Unlock()

	// Large enough for every state of one attempt, so the attempt never
	// blocks on a slow or absent reader.
	transitions := make(chan Transition, 8)

	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if o.opts.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
	}

	transitions <- Transition{State: StateValidating}
	go func() {
		defer cancel()
		o.run(attemptCtx, transitions)
	}()

	return transitions, nil
}

func (o *Orchestrator) run(ctx context.Context, out chan<- Transition) {
	result, err := o.attempt(ctx, out)

	final := Transition{State: StateCompleted, Result: result}
	if err != nil {
		final = Transition{State: StateFailed, Err: err}
		o.logger.WithError(err).WithField("code", Code(err)).Warn("Checkout failed")
	} else {
		o.logger.WithField("reference", result.Reference).Info("Checkout completed")
	}

	o.mu.Lock()
	o.state = StateIdle
	hook := o.onFinish
	o.mu.Unlock()

	if hook != nil {
		hook(final)
	}

	out <- final
	close(out)
}

func (o *Orchestrator) emit(out chan<- Transition, state State) {
	o.mu.Lock()
	o.state = state
	o.mu.Unlock()

	o.logger.WithField("state", state).Debug("Checkout transition")
	out <- Transition{State: state}
}

func (o *Orchestrator) attempt(ctx context.Context, out chan<- Transition) (*Result, error) {
	// Validating
	snap, version := o.store.VersionedSnapshot()
	if snap.IsEmpty() {
		return nil, ErrEmptyCart
	}
	for _, line := range snap.Lines {
		if line.ProductID == "" {
			return nil, ErrInvalidLineIdentifier
		}
	}

	priced, err := o.reconciler.Check(ctx, snap.Lines)
	if err != nil {
		return nil, o.contextError(ctx, err)
	}
	percent, err := o.reconciler.CheckDiscount(ctx, snap)
	if err != nil {
		return nil, o.contextError(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, o.contextError(ctx, err)
	}

	// Pricing
	o.emit(out, StatePricing)
	pricedSnap := withPrices(snap, priced)
	pricedSnap.DiscountPercent = percent
	breakdown := pricing.Calculate(pricedSnap)

	// CreatingPreference
	o.emit(out, StateCreatingPreference)
	reference := o.newReference()
	request := o.buildPreference(reference, pricedSnap)
	pending := buildOrder(reference, pricedSnap, breakdown, o.opts.Currency)
	pending.Total = request.Total()

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	err = o.orders.RecordPending(recordCtx, pending)
	cancel()
	if err != nil {
		o.logger.WithError(err).Error("Failed to record pending order")
		return nil, ErrOrderNotRecorded
	}

	pref, err := o.gateway.CreatePreference(ctx, request)
	if err != nil {
		err = o.contextError(ctx, &GatewayError{Err: err})
		o.markFailed(ctx, reference, err)
		return nil, err
	}

	// Redirecting. The preference exists at this point, so the attempt
	// runs to completion even if the caller went away.
	o.emit(out, StateRedirecting)
	attachCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	if err := o.orders.AttachPreference(attachCtx, reference, pref.ID); err != nil {
		o.logger.WithError(err).WithField("reference", reference).Error("Failed to attach preference to order")
	}
	cancel()

	// lines added while the preference was being created stay in the cart
	o.store.Settle(ctx, snap, version)

	return &Result{
		RedirectURL:  pref.RedirectURL,
		PreferenceID: pref.ID,
		Reference:    reference,
	}, nil
}

// contextError replaces err with the cancellation cause when the attempt context ended
func (o *Orchestrator) contextError(ctx context.Context, err error) error {
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return ErrCheckoutTimeout
	case errors.Is(ctxErr, context.Canceled):
		return ErrCheckoutCancelled
	default:
		return err
	}
}

func (o *Orchestrator) markFailed(ctx context.Context, reference string, cause error) {
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := o.orders.MarkFailed(markCtx, reference, cause.Error()); err != nil {
		o.logger.WithError(err).WithField("reference", reference).Error("Failed to mark order as failed")
	}
}

func (o *Orchestrator) buildPreference(reference string, snap cart.Snapshot) payment.PreferenceRequest {
	items := make([]payment.Item, 0, len(snap.Lines)+1)
	for _, line := range snap.Lines {
		title := line.Name
		if title == "" {
			title = line.ProductID
		}
		items = append(items, payment.Item{
			Title:      title,
			Quantity:   line.Quantity,
			CurrencyID: o.opts.Currency,
			UnitPrice:  pricing.ApplyDiscount(line.UnitPrice, snap.DiscountPercent).Round(2),
		})
	}
	if snap.ShippingCost.IsPositive() {
		items = append(items, payment.Item{
			Title:      shippingItemTitle,
			Quantity:   1,
			CurrencyID: o.opts.Currency,
			UnitPrice:  snap.ShippingCost.Round(2),
		})
	}

	return payment.PreferenceRequest{
		Items:             items,
		BackURLs:          o.opts.BackURLs,
		AutoReturn:        o.opts.AutoReturn,
		ExternalReference: reference,
		NotificationURL:   o.opts.NotificationURL,
	}
}

// withPrices returns a copy of snap carrying the authoritative names and prices
func withPrices(snap cart.Snapshot, priced []PricedLine) cart.Snapshot {
	byID := make(map[string]PricedLine, len(priced))
	for _, p := range priced {
		byID[p.ProductID] = p
	}

	lines := make([]cart.Line, len(snap.Lines))
	for i, line := range snap.Lines {
		if p, ok := byID[line.ProductID]; ok {
			line.Name = p.Name
			line.UnitPrice = p.UnitPrice
		}
		lines[i] = line
	}
	snap.Lines = lines
	return snap
}

// buildOrder records the exact breakdown; callers set Total to the charged amount
func buildOrder(reference string, snap cart.Snapshot, breakdown pricing.Breakdown, currency string) *order.Order {
	items := make([]order.OrderItem, 0, len(snap.Lines))
	for _, line := range snap.Lines {
		title := line.Name
		if title == "" {
			title = line.ProductID
		}
		items = append(items, order.OrderItem{
			ProductID: line.ProductID,
			Title:     title,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	return &order.Order{
		Reference:       reference,
		SessionID:       snap.SessionID,
		Currency:        currency,
		Subtotal:        breakdown.Subtotal,
		DiscountPercent: breakdown.DiscountPercent,
		DiscountCode:    snap.DiscountCode,
		ShippingCost:    breakdown.ShippingCost,
		PostalCode:      snap.PostalCode,
		Total:           breakdown.Total,
		Items:           items,
	}
}
