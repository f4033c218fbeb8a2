// Package knowledge resolves domain facts (orders, products, policies) the
// composer needs to ground its replies. The Resolver boundary keeps the
// pipeline independent of any particular backing store; the in-memory store
// here is the reference implementation and test fixture, and Cached wraps any
// resolver with a TTL'd LRU so hot lookups skip the backing store.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/replypipe/replypipe/core"
)

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("knowledge: record not found")

// Resolver looks up the record backing a classified turn. Implementations
// must be safe for concurrent use.
type Resolver interface {
	Lookup(ctx context.Context, intent core.Intent) (core.KnowledgeRecord, error)
}

// Order is a fixture row in the in-memory store.
type Order struct {
	ID         string
	TotalCents core.Money
	Status     string
	Items      []string
	ShippedAt  time.Time
	Carrier    string
	Tracking   string
}

// Store is an in-memory resolver keyed on order number. It serves order
// lookups directly and product or policy questions from a flat fields map.
type Store struct {
	mu       sync.RWMutex
	orders   map[string]Order
	products map[string]string
	policies map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		orders:   map[string]Order{},
		products: map[string]string{},
		policies: map[string]string{},
	}
}

// NewFixtureStore creates a store pre-loaded with the standard demo data set.
func NewFixtureStore() *Store {
	s := NewStore()
	s.PutOrder(Order{
		ID:         "10125",
		TotalCents: core.Money(2999),
		Status:     "shipped",
		Items:      []string{"wireless earbuds"},
		ShippedAt:  time.Date(2026, time.August, 18, 9, 30, 0, 0, time.UTC),
		Carrier:    "UPS",
		Tracking:   "1Z999AA10123456784",
	})
	s.PutOrder(Order{
		ID:         "10342",
		TotalCents: core.Money(8637),
		Status:     "processing",
		Items:      []string{"standing desk", "monitor arm"},
	})
	s.PutOrder(Order{
		ID:         "10488",
		TotalCents: core.Money(4500),
		Status:     "delivered",
		Items:      []string{"running shoes"},
	})
	s.PutProduct("running shoes", "Available in sizes 6-13, ships within 2 business days.")
	s.PutPolicy("return", "Items may be returned within 30 days of delivery in original condition.")
	s.PutPolicy("refund", "Refunds are issued to the original payment method within 5-7 business days.")
	s.PutPolicy("shipping", "Standard shipping takes 3-5 business days; expedited takes 1-2.")
	return s
}

// PutOrder adds or replaces an order.
func (s *Store) PutOrder(o Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

// PutProduct adds or replaces a product description.
func (s *Store) PutProduct(name, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[strings.ToLower(name)] = description
}

// PutPolicy adds or replaces a policy text.
func (s *Store) PutPolicy(topic, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[strings.ToLower(topic)] = text
}

// Lookup implements Resolver.
func (s *Store) Lookup(ctx context.Context, intent core.Intent) (core.KnowledgeRecord, error) {
	if err := ctx.Err(); err != nil {
		return core.KnowledgeRecord{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	switch intent.Category {
	case core.IntentOrderStatus, core.IntentReturnRequest, core.IntentRefundRequest:
		id, ok := intent.Entities[core.EntityOrderNumber]
		if !ok {
			return core.KnowledgeRecord{}, ErrNotFound
		}
		o, ok := s.orders[id]
		if !ok {
			return core.KnowledgeRecord{}, ErrNotFound
		}
		return orderRecord(o), nil
	case core.IntentShippingQuestion:
		if text, ok := s.policies["shipping"]; ok {
			return policyRecord("shipping", text), nil
		}
	case core.IntentProductQuestion:
		for name, desc := range s.products {
			if strings.Contains(strings.ToLower(intent.Entities["product"]), name) {
				return core.KnowledgeRecord{
					Kind:        "product",
					Fields:      map[string]string{"name": name, "description": desc},
					RetrievedAt: time.Now(),
				}, nil
			}
		}
	}

	return core.KnowledgeRecord{}, ErrNotFound
}

func orderRecord(o Order) core.KnowledgeRecord {
	fields := map[string]string{
		"items": strings.Join(o.Items, ", "),
	}
	if o.Carrier != "" {
		fields["carrier"] = o.Carrier
		fields["tracking"] = o.Tracking
	}
	if !o.ShippedAt.IsZero() {
		fields["shipped_at"] = o.ShippedAt.Format("2006-01-02")
	}
	return core.KnowledgeRecord{
		Kind:        "order",
		OrderID:     o.ID,
		TotalCents:  o.TotalCents,
		Status:      o.Status,
		Fields:      fields,
		RetrievedAt: time.Now(),
	}
}

func policyRecord(topic, text string) core.KnowledgeRecord {
	return core.KnowledgeRecord{
		Kind:        "policy",
		Fields:      map[string]string{"topic": topic, "text": text},
		RetrievedAt: time.Now(),
	}
}

// cacheKey derives a stable key from the lookup inputs. Entities are sorted
// so key construction does not depend on map iteration order.
func cacheKey(intent core.Intent) string {
	keys := make([]string, 0, len(intent.Entities))
	for k := range intent.Entities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(intent.Category))
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, intent.Entities[k])
	}
	return b.String()
}
