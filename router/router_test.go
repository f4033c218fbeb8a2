package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(conv, task string) *core.Message {
	m := core.NewCustomerMessage(conv, task, "hello")
	return &m
}

func TestRouter_DeliversToSubscriber(t *testing.T) {
	r := New()
	defer r.Close()

	got := make(chan string, 1)
	r.Subscribe("inbound", func(ctx context.Context, m *core.Message) error {
		got <- m.TaskID
		return nil
	})

	require.NoError(t, r.Send(context.Background(), "inbound", msg("c1", "t1")))

	select {
	case task := <-got:
		assert.Equal(t, "t1", task)
	case <-time.After(time.Second):
		t.Fatal("message never delivered")
	}
}

func TestRouter_NoSubscriber(t *testing.T) {
	r := New()
	defer r.Close()

	err := r.Send(context.Background(), "nowhere", msg("c1", "t1"))
	assert.ErrorIs(t, err, ErrNoSubscriber)
}

func TestRouter_PerConversationFIFOUnderConcurrentSends(t *testing.T) {
	r := New(func(o *Options) {
		o.GlobalRate = 0
		o.TopicRate = 0
	})

	var mu sync.Mutex
	received := map[string][]int{}
	r.Subscribe("inbound", func(ctx context.Context, m *core.Message) error {
		var seq int
		fmt.Sscanf(m.TaskID, "%d", &seq)
		mu.Lock()
		received[m.ConversationID] = append(received[m.ConversationID], seq)
		mu.Unlock()
		return nil
	})

	const perConv = 50
	var wg sync.WaitGroup
	for _, conv := range []string{"c1", "c2", "c3", "c4"} {
		wg.Add(1)
		go func(conv string) {
			defer wg.Done()
			for i := 0; i < perConv; i++ {
				require.NoError(t, r.Send(context.Background(), "inbound", msg(conv, fmt.Sprintf("%d", i))))
			}
		}(conv)
	}
	wg.Wait()
	r.Close()

	for conv, seqs := range received {
		require.Len(t, seqs, perConv, "conversation %s lost messages", conv)
		for i, seq := range seqs {
			assert.Equal(t, i, seq, "conversation %s out of order at position %d", conv, i)
		}
	}
}

func TestRouter_ThrottleRejectsWithBackpressure(t *testing.T) {
	r := New(func(o *Options) {
		o.GlobalRate = 0
		o.TopicRate = 3
	})
	defer r.Close()

	block := make(chan struct{})
	r.Subscribe("inbound", func(ctx context.Context, m *core.Message) error {
		<-block
		return nil
	})

	var rejected int
	for i := 0; i < 10; i++ {
		err := r.Send(context.Background(), "inbound", msg("c1", fmt.Sprintf("t%d", i)))
		if errors.Is(err, ErrBackpressure) {
			rejected++
		}
	}
	close(block)
	assert.Equal(t, 7, rejected)
}

func TestRouter_SaturatedQueueEvictsOldest(t *testing.T) {
	r := New(func(o *Options) {
		o.GlobalRate = 0
		o.TopicRate = 0
		o.MaxDepth = 3
	})

	release := make(chan struct{})
	var mu sync.Mutex
	var delivered []string
	r.Subscribe("inbound", func(ctx context.Context, m *core.Message) error {
		<-release
		mu.Lock()
		delivered = append(delivered, m.TaskID)
		mu.Unlock()
		return nil
	})

	// First send goes in flight; the next four hit a depth-3 queue, so the
	// oldest queued message (t1) is evicted when t4 arrives.
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Send(context.Background(), "inbound", msg("c1", fmt.Sprintf("t%d", i))))
	}
	assert.Equal(t, 3, r.Depth("inbound"))

	close(release)
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"t0", "t2", "t3", "t4"}, delivered)
}

func TestRouter_FailedDeliveryRetriedOnce(t *testing.T) {
	r := New(func(o *Options) {
		o.GlobalRate = 0
		o.TopicRate = 0
	})

	var mu sync.Mutex
	attempts := 0
	r.Subscribe("inbound", func(ctx context.Context, m *core.Message) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return errors.New("transient handler failure")
		}
		return nil
	})

	require.NoError(t, r.Send(context.Background(), "inbound", msg("c1", "t1")))
	r.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestRouter_DeliveriesLoggedWithTopic(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.LogLevelDebug,
		Format: "json",
		Output: &buf,
	})

	r := New(func(o *Options) { o.Logger = logger })
	r.Subscribe("inbound", func(ctx context.Context, m *core.Message) error { return nil })

	require.NoError(t, r.Send(context.Background(), "inbound", msg("c1", "t1")))
	r.Close()

	assert.Contains(t, buf.String(), "Message delivered")
	assert.Contains(t, buf.String(), `"topic":"inbound"`)
}

func TestRouter_SendAfterClose(t *testing.T) {
	r := New()
	r.Subscribe("inbound", func(ctx context.Context, m *core.Message) error { return nil })
	r.Close()

	err := r.Send(context.Background(), "inbound", msg("c1", "t1"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRegistry_CreatesOnFirstUse(t *testing.T) {
	reg := NewRegistry()
	defer reg.Close()

	c1 := reg.Get("conv-1")
	c2 := reg.Get("conv-1")
	assert.Same(t, c1, c2)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_SweepCollectsIdleConversations(t *testing.T) {
	reg := NewRegistry(func(o *RegistryOptions) {
		o.IdleTimeout = 10 * time.Minute
	})
	defer reg.Close()

	stale := reg.Get("stale")
	_ = stale
	fresh := reg.Get("fresh")

	// Touch only the fresh conversation, then sweep from 15 minutes later.
	future := time.Now().Add(15 * time.Minute)
	fresh.SetContext("locale", "en-US")
	fresh.Updated = future

	collected := reg.Sweep(future)
	assert.Equal(t, 1, collected)
	assert.Equal(t, 1, reg.Len())
}
