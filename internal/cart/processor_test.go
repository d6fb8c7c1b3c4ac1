package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []Envelope
}

func (p *capturePublisher) Publish(key, value []byte, _ ...kafkago.Header) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		panic(err)
	}
	p.mu.Lock()
	p.events = append(p.events, env)
	p.mu.Unlock()
}

func (p *capturePublisher) all() []Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Envelope(nil), p.events...)
}

func newTestProcessor(f *fixture) (*Processor, *capturePublisher, *capturePublisher) {
	ok := &capturePublisher{}
	rj := &capturePublisher{}
	p := NewProcessor(f.store, f.locks, 2, 16, testLogger())
	p.ProducerOK = ok
	p.ProducerErr = rj
	p.ServiceName = "cart-api-test"
	p.SettleDelay = 5 * time.Millisecond
	return p, ok, rj
}

func submitAndWait(t *testing.T, p *Processor, cartID string) Outcome {
	t.Helper()
	done, err := p.Submit(context.Background(), cartID)
	require.NoError(t, err)
	select {
	case out := <-done:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("processing did not finish")
		return Outcome{}
	}
}

func TestProcessor_DiscountedTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.CreateCart(ctx, f.user.ID)
	require.NoError(t, err)

	// 1200.00 x 2 at 10% off = 2160.00, 25.00 x 1 at 10% off = 22.50
	_, err = f.svc.AddItem(ctx, c.ID, "PROD001", 2)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, c.ID, "PROD002", 1)
	require.NoError(t, err)

	p, ok, rj := newTestProcessor(f)
	p.Start(ctx)
	defer func() { p.Close(); p.WaitClosed() }()

	out := submitAndWait(t, p, c.ID)
	require.NoError(t, out.Err)
	require.Equal(t, StatusProcessed, out.Status)
	require.True(t, out.Total.Equal(decimal.RequireFromString("2182.50")),
		"got total %s", out.Total)

	got, err := f.store.FindCartByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, got.Status)
	require.True(t, got.Total.Equal(decimal.RequireFromString("2182.50")))
	require.Empty(t, got.ProcessErr)

	events := ok.all()
	require.Len(t, events, 1)
	require.Equal(t, EventCartProcessed, events[0].EventType)
	require.Equal(t, c.ID, events[0].CorrelationID)
	require.Empty(t, rj.all())
}

func TestProcessor_UndiscountedCategoryFullPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.AddProduct(Product{
		Code:     "BOOK001",
		Name:     "Novel",
		Price:    decimal.RequireFromString("15.00"),
		Category: "Books", // no discount seeded for Books
	})

	c, err := f.svc.CreateCart(ctx, f.user.ID)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, c.ID, "BOOK001", 3)
	require.NoError(t, err)

	p, _, _ := newTestProcessor(f)
	p.Start(ctx)
	defer func() { p.Close(); p.WaitClosed() }()

	out := submitAndWait(t, p, c.ID)
	require.NoError(t, out.Err)
	require.True(t, out.Total.Equal(decimal.RequireFromString("45.00")), "got %s", out.Total)
}

func TestProcessor_EmptyCartSettlesToZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.CreateCart(ctx, f.user.ID)
	require.NoError(t, err)

	p, ok, _ := newTestProcessor(f)
	p.Start(ctx)
	defer func() { p.Close(); p.WaitClosed() }()

	out := submitAndWait(t, p, c.ID)
	require.NoError(t, out.Err)
	require.Equal(t, StatusProcessed, out.Status)
	require.True(t, out.Total.IsZero())

	got, err := f.store.FindCartByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, got.Status)
	require.Len(t, ok.all(), 1)
}

func TestProcessor_SecondRunFindsTerminalState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.CreateCart(ctx, f.user.ID)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, c.ID, "PROD002", 1)
	require.NoError(t, err)

	p, ok, rj := newTestProcessor(f)
	p.Start(ctx)
	defer func() { p.Close(); p.WaitClosed() }()

	first := submitAndWait(t, p, c.ID)
	require.NoError(t, first.Err)

	second := submitAndWait(t, p, c.ID)
	require.ErrorIs(t, second.Err, ErrCartNotFound, "no active cart to process")

	got, err := f.store.FindCartByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusProcessed, got.Status)
	require.True(t, got.Total.Equal(first.Total), "second run must not mutate the total")
	require.Len(t, ok.all(), 1, "only the first run publishes")
	require.Empty(t, rj.all())
}

// brokenProducts fails product lookups after the cart is loaded, driving the
// pipeline down its failure path.
type brokenProducts struct {
	*MemoryStore
}

var errStoreDown = errors.New("store down")

func (b *brokenProducts) FindProductByID(context.Context, string) (Product, error) {
	return Product{}, errStoreDown
}

func TestProcessor_FailureLeavesCartActiveWithError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.CreateCart(ctx, f.user.ID)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, c.ID, "PROD001", 1)
	require.NoError(t, err)

	broken := &brokenProducts{MemoryStore: f.store}
	p := NewProcessor(broken, f.locks, 1, 4, testLogger())
	ok := &capturePublisher{}
	rj := &capturePublisher{}
	p.ProducerOK = ok
	p.ProducerErr = rj
	p.SettleDelay = time.Millisecond
	p.Start(ctx)
	defer func() { p.Close(); p.WaitClosed() }()

	out := submitAndWait(t, p, c.ID)
	require.ErrorIs(t, out.Err, errStoreDown)
	require.Equal(t, StatusActive, out.Status)

	got, err := f.store.FindCartByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, got.Status, "failure must not flip status")
	require.Contains(t, got.ProcessErr, "store down", "failure must be observable on the cart")

	events := rj.all()
	require.Len(t, events, 1)
	require.Equal(t, EventCartProcessFailed, events[0].EventType)
	require.Empty(t, ok.all())
}

func TestProcessor_ExcludesConcurrentMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.svc.CreateCart(ctx, f.user.ID)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, c.ID, "PROD002", 1)
	require.NoError(t, err)

	p, _, _ := newTestProcessor(f)
	p.SettleDelay = 50 * time.Millisecond
	p.Start(ctx)
	defer func() { p.Close(); p.WaitClosed() }()

	done, err := p.Submit(ctx, c.ID)
	require.NoError(t, err)

	// Adds racing the processor either land before it takes the lock or are
	// rejected afterwards; either way they never interleave with pricing.
	addErrs := make(chan error, 10)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddItem(ctx, c.ID, "PROD002", 1)
			addErrs <- err
		}()
	}
	wg.Wait()
	close(addErrs)

	out := <-done
	require.NoError(t, out.Err)

	landed := 0
	for err := range addErrs {
		if err == nil {
			landed++
		} else {
			require.ErrorIs(t, err, ErrCartNotActive)
		}
	}

	items, err := f.store.FindItemsByCart(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 1+landed, items[0].Quantity, "every accepted add must be in the final quantity")
}
