package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adiwijaya/go-cart-orders/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher is the slice of the Kafka producer the processor needs.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Outcome is the result of one processing job. Submit hands back a channel
// carrying exactly one Outcome; callers that only need the fire-and-forget
// contract can drop it.
type Outcome struct {
	CartID string
	Status Status
	Total  decimal.Decimal
	Err    error
}

type job struct {
	cartID string
	done   chan Outcome
}

// Processor prices and settles carts asynchronously. Jobs run on a fixed
// worker pool fed by a buffered channel; each job takes the same registry
// lock the mutation service uses, so processing never overlaps add/remove
// on the same cart.
type Processor struct {
	store Store
	locks *LockRegistry
	log   *slog.Logger

	Redis       *redis.Client // optional outcome cache
	ProducerOK  Publisher     // cart.processed
	ProducerErr Publisher     // cart.process.failed
	ServiceName string
	SettleDelay time.Duration // simulated fulfillment latency

	workers int
	jobs    chan job
	closeCh chan struct{}
}

func NewProcessor(store Store, locks *LockRegistry, workers, buf int, log *slog.Logger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		store:   store,
		locks:   locks,
		log:     log,
		workers: workers,
		jobs:    make(chan job, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Processor) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range p.jobs {
				j.done <- p.runSafe(ctx, j.cartID)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(p.closeCh)
	}()
}

// Submit enqueues a cart for processing and returns immediately. The cart's
// existence is not checked here; an unknown or already-processed cart is
// accepted and dropped by the worker with a log line.
func (p *Processor) Submit(ctx context.Context, cartID string) (<-chan Outcome, error) {
	j := job{cartID: cartID, done: make(chan Outcome, 1)}
	select {
	case p.jobs <- j:
		p.log.Info("order processing accepted", "cart_id", cartID)
		return j.done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops intake; workers drain the queue and exit.
func (p *Processor) Close() { close(p.jobs) }

// WaitClosed blocks until every worker has finished.
func (p *Processor) WaitClosed() { <-p.closeCh }

// runSafe keeps a panicking job from taking the whole process down.
func (p *Processor) runSafe(ctx context.Context, cartID string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("order processing panic", "cart_id", cartID, "panic", r)
			out = Outcome{CartID: cartID, Err: fmt.Errorf("processing panic: %v", r)}
		}
	}()
	return p.run(ctx, cartID)
}

func (p *Processor) run(ctx context.Context, cartID string) Outcome {
	l := p.locks.Acquire(cartID)
	defer p.locks.Release(l)

	p.log.Info("order processing started", "cart_id", cartID)

	c, err := p.store.FindCartByIDAndStatus(ctx, cartID, StatusActive)
	if err != nil {
		// Not found or already processed: nothing to do, terminal state wins.
		p.log.Warn("order processing skipped: no active cart", "cart_id", cartID, "err", err)
		return Outcome{CartID: cartID, Err: err}
	}

	items, err := p.store.FindItemsByCart(ctx, c.ID)
	if err != nil {
		return p.fail(c, fmt.Errorf("load items: %w", err))
	}

	total := decimal.Zero
	lines := make([]ProcessedLine, 0, len(items))
	for _, it := range items {
		prod, err := p.store.FindProductByID(ctx, it.ProductID)
		if err != nil {
			return p.fail(c, fmt.Errorf("load product %s: %w", it.ProductID, err))
		}
		line := prod.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		d, err := p.store.FindDiscountByCategory(ctx, prod.Category)
		switch {
		case err == nil:
			off := line.Mul(d.Percentage).Div(decimal.NewFromInt(100))
			line = line.Sub(off)
			p.log.Debug("discount applied", "cart_id", cartID, "product_id", prod.ID,
				"percentage", d.Percentage.String(), "line_total", line.String())
		case errors.Is(err, ErrDiscountNotFound):
			// full price
		default:
			return p.fail(c, fmt.Errorf("load discount for %s: %w", prod.Category, err))
		}
		total = total.Add(line)
		lines = append(lines, ProcessedLine{ProductID: prod.ID, Quantity: it.Quantity, LineTotal: line})
	}

	// An empty cart settles immediately: a zero-total order is still an order.
	if len(items) > 0 {
		select {
		case <-time.After(p.SettleDelay):
		case <-ctx.Done():
			return p.fail(c, fmt.Errorf("settle interrupted: %w", ctx.Err()))
		}
	}

	if !CanTransition(c.Status, StatusProcessed) {
		return p.fail(c, fmt.Errorf("illegal transition %s -> %s", c.Status, StatusProcessed))
	}
	c.Status = StatusProcessed
	c.Total = total
	c.ProcessErr = ""
	saved, err := p.store.SaveCart(ctx, c)
	if err != nil {
		// Status write failed, so the persisted cart is still ACTIVE.
		return p.fail(c, fmt.Errorf("persist processed cart: %w", err))
	}
	c = saved

	p.publishProcessed(c, lines)
	p.cacheOutcome(c.ID, StatusProcessed, total.String(), "")
	p.log.Info("order processed", "cart_id", c.ID, "total", total.String())
	return Outcome{CartID: c.ID, Status: StatusProcessed, Total: total}
}

// fail records the failure on the cart (best effort, cart stays ACTIVE),
// publishes a failure event and caches the outcome. Log-and-drop alone is
// not enough for a paid order pipeline.
func (p *Processor) fail(c Cart, cause error) Outcome {
	p.log.Error("order processing failed", "cart_id", c.ID, "err", cause)

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.Status = StatusActive
	c.ProcessErr = cause.Error()
	if _, err := p.store.SaveCart(sctx, c); err != nil {
		p.log.Error("order failure not persisted", "cart_id", c.ID, "err", err)
	}

	if p.ProducerErr != nil {
		ev := p.envelope(EventCartProcessFailed, c.ID,
			CartProcessFailedPayload{CartID: c.ID, Reason: cause.Error()})
		p.ProducerErr.Publish(PartitionKey(c.ID), mustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(EventCartProcessFailed)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
	p.cacheOutcome(c.ID, StatusActive, "", cause.Error())
	return Outcome{CartID: c.ID, Status: StatusActive, Err: cause}
}

func (p *Processor) publishProcessed(c Cart, lines []ProcessedLine) {
	if p.ProducerOK == nil {
		return
	}
	ev := p.envelope(EventCartProcessed, c.ID, CartProcessedPayload{
		CartID: c.ID,
		UserID: c.UserID,
		Lines:  lines,
		Total:  c.Total,
	})
	p.ProducerOK.Publish(PartitionKey(c.ID), mustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventCartProcessed)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (p *Processor) envelope(eventType, cartID string, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.ServiceName,
		CorrelationID: cartID,
		Payload:       mustMarshal(payload),
	}
}

func (p *Processor) cacheOutcome(cartID string, status Status, total, reason string) {
	if p.Redis == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	body := map[string]string{"status": string(status)}
	if total != "" {
		body["total"] = total
	}
	if reason != "" {
		body["error"] = reason
	}
	b, _ := json.Marshal(body)
	key := fmt.Sprintf(redisx.KeyCartStatus, cartID)
	if err := p.Redis.Set(sctx, key, b, redisx.TTLStatusCache).Err(); err != nil {
		p.log.Warn("outcome cache write failed", "cart_id", cartID, "err", err)
	}
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
