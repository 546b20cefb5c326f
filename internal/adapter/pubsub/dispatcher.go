package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sony/gobreaker"
	"github.com/webitel/im-realtime-service/internal/domain/model"
	"github.com/webitel/im-realtime-service/internal/service"
	"golang.org/x/sync/errgroup"
)

var _ service.Notifier = (*PushDispatcher)(nil)

// TokenSource resolves the registered device tokens of a user.
type TokenSource interface {
	Tokens(ctx context.Context, userID string) ([]model.PushToken, error)
}

type DispatcherConfig struct {
	Topic            string
	Source           string
	CacheSize        int
	CacheTTL         time.Duration
	BreakerFailures  uint32
	BreakerOpenFor   time.Duration
	BreakerHalfProbe uint32
}

// PushDispatcher is the Notification Gateway: it resolves the recipient's
// device tokens and publishes one push request per token to the push queue,
// where a platform worker (FCM, APNs, Web Push) picks them up.
type PushDispatcher struct {
	publisher message.Publisher
	tokens    TokenSource
	cache     *expirable.LRU[string, []model.PushToken]
	breaker   *gobreaker.CircuitBreaker
	topic     string
	source    string
	logger    *slog.Logger
}

func NewPushDispatcher(pub message.Publisher, tokens TokenSource, cfg DispatcherConfig, logger *slog.Logger) (*PushDispatcher, error) {
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("pubsub: token cache: size must be positive, got %d", cfg.CacheSize)
	}

	// [MEMORY_MANAGEMENT] bounded cache of "hot" recipients' tokens. Entries
	// expire because Forget only reaches the node that served the token change.
	cache := expirable.NewLRU[string, []model.PushToken](cfg.CacheSize, nil, cfg.CacheTTL)

	d := &PushDispatcher{
		publisher: pub,
		tokens:    tokens,
		cache:     cache,
		topic:     cfg.Topic,
		source:    cfg.Source,
		logger:    logger,
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "push-publisher",
		MaxRequests: cfg.BreakerHalfProbe,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("PUSH_BREAKER_STATE_CHANGED", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return d, nil
}

// Notify publishes n to every device of userID. The whole fan-out shares ctx's deadline.
func (d *PushDispatcher) Notify(ctx context.Context, userID string, n *model.Notification) error {
	tokens, err := d.resolve(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: resolve tokens: %w", model.ErrNotify, err)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("%w: %w", model.ErrNotify, model.ErrNoDeliveryToken)
	}

	_, err = d.breaker.Execute(func() (interface{}, error) {
		return nil, d.publishAll(ctx, tokens, n)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrNotify, err)
	}

	return nil
}

// Forget drops the cached tokens of userID on this node; call it after any
// token change. Other nodes pick the change up once their entry expires.
func (d *PushDispatcher) Forget(userID string) {
	d.cache.Remove(userID)
}

// resolve applies the cache-aside strategy. Empty results are cached too, so
// users without devices do not cost a query per message.
func (d *PushDispatcher) resolve(ctx context.Context, userID string) ([]model.PushToken, error) {
	if cached, ok := d.cache.Get(userID); ok {
		return cached, nil
	}

	tokens, err := d.tokens.Tokens(ctx, userID)
	if err != nil {
		return nil, err
	}

	d.cache.Add(userID, tokens)
	return tokens, nil
}

// publishAll fans out concurrently and fails if any device publish fails.
func (d *PushDispatcher) publishAll(ctx context.Context, tokens []model.PushToken, n *model.Notification) error {
	g, gCtx := errgroup.WithContext(ctx)

	for _, t := range tokens {
		g.Go(func() error {
			return d.publish(gCtx, t, n)
		})
	}

	return g.Wait()
}

func (d *PushDispatcher) publish(ctx context.Context, token model.PushToken, n *model.Notification) error {
	payload, err := json.Marshal(model.NewPushRequest(d.source, token, n))
	if err != nil {
		return fmt.Errorf("push dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("user_id", token.UserID)
	msg.Metadata.Set("platform", string(token.Platform))
	msg.Metadata.Set("kind", string(n.Kind))
	msg.SetContext(ctx)

	// Publish has no context of its own; do not let a stalled broker outlive ctx.
	done := make(chan error, 1)
	go func() {
		done <- d.publisher.Publish(d.topic, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("push dispatcher: publish to %s: %w", d.topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("push dispatcher: publish to %s: %w", d.topic, ctx.Err())
	}
}
