// Package router provides topic-keyed message delivery between pipeline
// components. It owns conversation state for the lifetime of each
// conversation, enforces global and per-topic throttles, bounds every topic
// queue with oldest-first eviction, and guarantees FIFO delivery within a
// conversation while unrelated conversations proceed concurrently.
package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/replypipe/replypipe/analytics"
	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/logging"
)

// rateInterval is the throttle window; rates are expressed per second.
const rateInterval = time.Second

// ErrBackpressure is returned when a send exceeds a throttle. The caller is
// responsible for retry with backoff; accepted messages are never silently
// dropped (saturated queues evict oldest-first with a logged warning, which
// is visible, not silent).
var ErrBackpressure = errors.New("router: backpressure, send rejected by throttle")

// ErrNoSubscriber is returned when a topic has no registered handler.
var ErrNoSubscriber = errors.New("router: no subscriber for topic")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("router: closed")

// Handler consumes one delivered message. Returning an error triggers one
// redelivery attempt before the message is dropped with an error log.
type Handler func(ctx context.Context, msg *core.Message) error

// Options configure the router.
type Options struct {
	// GlobalRate caps sends per second across all topics. 0 disables.
	GlobalRate int
	// TopicRate caps sends per second per topic. 0 disables.
	TopicRate int
	// MaxDepth bounds each topic queue; beyond it the oldest waiting
	// message is evicted.
	MaxDepth int
	// MaxDeliveries is the total delivery attempts per message.
	MaxDeliveries int
	Logger        logging.Logger
	Tracer        *analytics.Tracer
	Metrics       *analytics.Metrics
}

type entry struct {
	msg      *core.Message
	attempts int
}

type topic struct {
	name    string
	handler Handler
	gate    *core.RateGate
	queue   []*entry
	// busy marks conversations with a delivery in flight so dispatch never
	// runs two messages of one conversation concurrently.
	busy map[string]bool
}

// Router delivers messages to topic subscribers.
type Router struct {
	opts   Options
	global *core.RateGate

	mu     sync.Mutex
	topics map[string]*topic
	closed bool
	wg     sync.WaitGroup
}

// New creates a router with defaults of 100 msg/s global, 20 msg/s per
// topic, and a queue depth of 1000.
func New(optFns ...func(o *Options)) *Router {
	opts := Options{
		GlobalRate:    100,
		TopicRate:     20,
		MaxDepth:      1000,
		MaxDeliveries: 2,
		Logger:        logging.NewNoOpLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Router{
		opts:   opts,
		global: core.NewRateGate(opts.GlobalRate, rateInterval),
		topics: map[string]*topic{},
	}
}

// Subscribe registers the handler for a topic, replacing any previous one.
func (r *Router) Subscribe(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.topics[name]
	if !ok {
		t = &topic{
			name: name,
			gate: core.NewRateGate(r.opts.TopicRate, rateInterval),
			busy: map[string]bool{},
		}
		r.topics[name] = t
	}
	t.handler = handler
}

// Send enqueues a message for delivery to the topic's subscriber. It returns
// ErrBackpressure when a throttle rejects the send and ErrNoSubscriber when
// nothing is listening. Delivery itself is asynchronous; per-conversation
// order follows send order.
func (r *Router) Send(ctx context.Context, topicName string, msg *core.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	t, ok := r.topics[topicName]
	if !ok || t.handler == nil {
		return ErrNoSubscriber
	}

	if !r.global.Allow() || !t.gate.Allow() {
		if r.opts.Metrics != nil {
			r.opts.Metrics.BackpressureTotal.WithLabelValues(topicName).Inc()
		}
		return ErrBackpressure
	}

	if len(t.queue) >= r.opts.MaxDepth {
		evicted := t.queue[0]
		t.queue = t.queue[1:]
		r.opts.Logger.Warn("topic queue saturated, evicting oldest message",
			"topic", topicName,
			"evicted_task", evicted.msg.TaskID,
			"depth", r.opts.MaxDepth)
		if r.opts.Metrics != nil {
			r.opts.Metrics.EvictionsTotal.WithLabelValues(topicName).Inc()
		}
	}

	t.queue = append(t.queue, &entry{msg: msg, attempts: 0})
	r.dispatchLocked(t)
	return nil
}

// dispatchLocked starts deliveries for every queued message whose
// conversation is currently idle. Queue scan order preserves per-conversation
// FIFO; distinct conversations are handled on separate goroutines.
func (r *Router) dispatchLocked(t *topic) {
	i := 0
	for i < len(t.queue) {
		e := t.queue[i]
		if t.busy[e.msg.ConversationID] {
			i++
			continue
		}
		t.queue = append(t.queue[:i], t.queue[i+1:]...)
		t.busy[e.msg.ConversationID] = true
		r.wg.Add(1)
		go r.deliver(t, e)
	}
}

// deliveryLogger is the optional logger upgrade for delivery telemetry;
// logging.PipelineLogger implements it.
type deliveryLogger interface {
	LogDelivery(topic string, dur time.Duration, queued int, err error)
}

func (r *Router) deliver(t *topic, e *entry) {
	defer r.wg.Done()

	ctx := context.Background()
	var end func(error)
	if r.opts.Tracer != nil {
		ctx, end = r.opts.Tracer.StartDelivery(ctx, t.name, e.msg.ConversationID, e.msg.TaskID)
	}

	start := time.Now()
	e.attempts++
	err := t.handler(ctx, e.msg)

	if end != nil {
		end(err)
	}
	if dl, ok := r.opts.Logger.(deliveryLogger); ok {
		dl.LogDelivery(t.name, time.Since(start), r.Depth(t.name), err)
	}
	if r.opts.Metrics != nil {
		r.opts.Metrics.DeliveriesTotal.WithLabelValues(t.name).Inc()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(t.busy, e.msg.ConversationID)

	if err != nil {
		if e.attempts < r.opts.MaxDeliveries {
			r.opts.Logger.Warn("delivery failed, redelivering",
				"topic", t.name, "task_id", e.msg.TaskID, "attempt", e.attempts, "error", err)
			// Redeliver ahead of anything queued later for this conversation.
			t.queue = append([]*entry{e}, t.queue...)
		} else {
			r.opts.Logger.Error("delivery failed, dropping after max attempts",
				"topic", t.name, "task_id", e.msg.TaskID, "attempts", e.attempts, "error", err)
		}
	}

	// Accepted messages are drained even during shutdown; Close only stops
	// new sends.
	r.dispatchLocked(t)
}

// Depth returns the number of messages waiting on a topic.
func (r *Router) Depth(topicName string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.topics[topicName]; ok {
		return len(t.queue)
	}
	return 0
}

// Close stops accepting sends and waits for in-flight deliveries to finish.
func (r *Router) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}
