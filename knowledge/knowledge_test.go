package knowledge

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/replypipe/replypipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderIntent(id string) core.Intent {
	return core.Intent{
		Category: core.IntentOrderStatus,
		Entities: map[string]string{core.EntityOrderNumber: id},
	}
}

func TestStore_OrderLookup(t *testing.T) {
	s := NewFixtureStore()

	rec, err := s.Lookup(context.Background(), orderIntent("10125"))
	require.NoError(t, err)
	assert.Equal(t, "order", rec.Kind)
	assert.Equal(t, "10125", rec.OrderID)
	assert.Equal(t, core.Money(2999), rec.TotalCents)
	assert.Equal(t, "shipped", rec.Status)
	assert.Equal(t, "UPS", rec.Fields["carrier"])
}

func TestStore_UnknownOrderIsNotFound(t *testing.T) {
	s := NewFixtureStore()

	_, err := s.Lookup(context.Background(), orderIntent("99999"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_OrderIntentWithoutNumberIsNotFound(t *testing.T) {
	s := NewFixtureStore()

	_, err := s.Lookup(context.Background(), core.Intent{Category: core.IntentReturnRequest})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ShippingPolicy(t *testing.T) {
	s := NewFixtureStore()

	rec, err := s.Lookup(context.Background(), core.Intent{Category: core.IntentShippingQuestion})
	require.NoError(t, err)
	assert.Equal(t, "policy", rec.Kind)
	assert.Contains(t, rec.Fields["text"], "business days")
}

type countingResolver struct {
	inner Resolver
	calls atomic.Int64
}

func (c *countingResolver) Lookup(ctx context.Context, intent core.Intent) (core.KnowledgeRecord, error) {
	c.calls.Add(1)
	return c.inner.Lookup(ctx, intent)
}

func TestCached_HitsSkipSource(t *testing.T) {
	counting := &countingResolver{inner: NewFixtureStore()}
	c := NewCached(counting)

	for i := 0; i < 5; i++ {
		rec, err := c.Lookup(context.Background(), orderIntent("10125"))
		require.NoError(t, err)
		assert.Equal(t, "10125", rec.OrderID)
	}
	assert.Equal(t, int64(1), counting.calls.Load())
}

func TestCached_NotFoundIsNeverCached(t *testing.T) {
	store := NewStore()
	counting := &countingResolver{inner: store}
	c := NewCached(counting)

	_, err := c.Lookup(context.Background(), orderIntent("10777"))
	require.ErrorIs(t, err, ErrNotFound)

	// The record shows up as soon as the store has it.
	store.PutOrder(Order{ID: "10777", TotalCents: core.Money(1200), Status: "processing"})
	rec, err := c.Lookup(context.Background(), orderIntent("10777"))
	require.NoError(t, err)
	assert.Equal(t, "10777", rec.OrderID)
	assert.Equal(t, int64(2), counting.calls.Load())
}

func TestCached_EntriesExpire(t *testing.T) {
	counting := &countingResolver{inner: NewFixtureStore()}
	c := NewCached(counting, func(o *CacheOptions) { o.TTL = 20 * time.Millisecond })

	_, err := c.Lookup(context.Background(), orderIntent("10125"))
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = c.Lookup(context.Background(), orderIntent("10125"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), counting.calls.Load())
}

func TestCacheKey_StableAcrossEntityOrder(t *testing.T) {
	a := core.Intent{
		Category: core.IntentOrderStatus,
		Entities: map[string]string{"order_number": "10125", "amount": "29.99"},
	}
	b := core.Intent{
		Category: core.IntentOrderStatus,
		Entities: map[string]string{"amount": "29.99", "order_number": "10125"},
	}
	assert.Equal(t, cacheKey(a), cacheKey(b))
}
