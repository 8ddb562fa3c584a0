// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/cart"
	"github.com/your-org/storefront-backend/internal/domain/payment"
)

const lockKeyPrefix = "checkout:lock:"

var releaseLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Service runs checkouts for session carts. It keeps one orchestrator per
// session while an attempt is running and, when Redis is configured,
// holds a lock so another instance cannot check out the same session.
type Service struct {
	carts       *cart.Service
	reconciler  *Reconciler
	gateway     payment.Gateway
	orders      OrderRecorder
	redisClient *redis.Client
	opts        Options
	lockTTL     time.Duration
	logger      logrus.FieldLogger

	mu     sync.Mutex
	active map[string]*Orchestrator
}

// NewService creates a checkout service. redisClient may be nil.
func NewService(carts *cart.Service, stock StockReader, gateway payment.Gateway, orders OrderRecorder, redisClient *redis.Client, opts Options, lockTTL time.Duration, logger logrus.FieldLogger) *Service {
	if lockTTL < opts.Timeout {
		lockTTL = opts.Timeout
	}
	return &Service{
		carts:       carts,
		reconciler:  NewReconciler(stock).WithDiscounts(carts.Discounts()),
		gateway:     gateway,
		orders:      orders,
		redisClient: redisClient,
		opts:        opts,
		lockTTL:     lockTTL,
		logger:      logger,
		active:      make(map[string]*Orchestrator),
	}
}

// Start begins a checkout for the session cart and streams its transitions
func (s *Service) Start(ctx context.Context, sessionID string) (<-chan Transition, error) {
	s.mu.Lock()
	if _, running := s.active[sessionID]; running {
		s.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	store, unhold := s.carts.Hold(ctx, sessionID)
	orch := NewOrchestrator(store, s.reconciler, s.gateway, s.orders, s.opts, s.logger)
	s.active[sessionID] = orch
	s.mu.Unlock()

	token, err := s.acquire(ctx, sessionID)
	if err != nil {
		s.release(sessionID, "", unhold)
		return nil, err
	}

	orch.OnFinish(func(Transition) {
		s.release(sessionID, token, unhold)
	})

	transitions, err := orch.Start(ctx)
	if err != nil {
		s.release(sessionID, token, unhold)
		return nil, err
	}
	return transitions, nil
}

// Run performs a checkout and waits for its outcome
func (s *Service) Run(ctx context.Context, sessionID string) (*Result, error) {
	transitions, err := s.Start(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var last Transition
	for t := range transitions {
		last = t
	}
	if last.Err != nil {
		return nil, last.Err
	}
	return last.Result, nil
}

// InProgress reports whether this instance is running a checkout for the session
func (s *Service) InProgress(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.active[sessionID]
	return running
}

func (s *Service) acquire(ctx context.Context, sessionID string) (string, error) {
	if s.redisClient == nil {
		return "", nil
	}

	token := uuid.NewString()
	ok, err := s.redisClient.SetNX(ctx, lockKeyPrefix+sessionID, token, s.lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire checkout lock: %w", err)
	}
	if !ok {
		return "", ErrCheckoutInProgress
	}
	return token, nil
}

func (s *Service) release(sessionID, token string, unhold func()) {
	s.mu.Lock()
	delete(s.active, sessionID)
	s.mu.Unlock()
	unhold()

	if s.redisClient == nil || token == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := releaseLock.Run(ctx, s.redisClient, []string{lockKeyPrefix + sessionID}, token).Err(); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to release checkout lock")
	}
}
