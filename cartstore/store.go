// Package cartstore holds the shopping cart of a storefront session and keeps it
// mirrored to a key-value slot.
package cartstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/norun9/gomarketplace-cart/events"
	"github.com/norun9/gomarketplace-cart/kvstore"
)

// DefaultKey is the slot the cart snapshot lives under.
const DefaultKey = "@GoMarketPlace:cart"

var (
	ErrItemNotFound    = errors.New("cartstore: item not found in cart")
	ErrInvalidProduct  = errors.New("cartstore: product id is required")
	ErrCorruptSnapshot = errors.New("cartstore: corrupt cart snapshot")
)

// Store owns the cart. All mutations are serialized and each one writes the
// full cart to the slot before the next one starts.
type Store struct {
	mu       sync.RWMutex
	products []CartItem

	slot      kvstore.Store
	key       string
	notifier  Notifier
	publisher events.Publisher
	log       logrus.FieldLogger
	now       func() time.Time

	tracer    trace.Tracer
	mutations metric.Int64Counter
}

// Option configures a Store.
type Option func(*Store)

// WithKey overrides the slot key. Default: DefaultKey.
func WithKey(key string) Option { return func(s *Store) { s.key = key } }

// WithNotifier sets where not-found alerts go. Default: a LogNotifier.
func WithNotifier(n Notifier) Option { return func(s *Store) { s.notifier = n } }

// WithPublisher sets the event publisher. Default: events.Nop.
func WithPublisher(p events.Publisher) Option { return func(s *Store) { s.publisher = p } }

// WithLogger sets the logger. Default: logrus.StandardLogger().
func WithLogger(l logrus.FieldLogger) Option { return func(s *Store) { s.log = l } }

// Open creates a store on slot and loads the persisted cart once. A missing or
// empty snapshot yields an empty cart; an unreadable or corrupt one is logged and
// also yields an empty cart.
func Open(ctx context.Context, slot kvstore.Store, opts ...Option) *Store {
	s := &Store{
		slot:      slot,
		key:       DefaultKey,
		publisher: events.Nop{},
		log:       logrus.StandardLogger(),
		now:       time.Now,
		tracer:    otel.Tracer("cartstore"),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.WithField("cart_key", s.key)
	if s.notifier == nil {
		s.notifier = NewLogNotifier(s.log)
	}

	counter, err := otel.Meter("cartstore").Int64Counter("cart.mutations",
		metric.WithDescription("Cart mutations applied, by operation"))
	if err != nil {
		s.log.WithError(err).Warn("failed to create cart.mutations counter")
	}
	s.mutations = counter

	if err := s.Load(ctx); err != nil {
		s.log.WithError(err).Warn("starting with an empty cart")
	}
	return s
}

// Load replaces the in-memory cart with the persisted snapshot. On any error
// the cart is left empty.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = nil

	raw, err := s.slot.Get(ctx, s.key)
	if errors.Is(err, kvstore.ErrNotFound) || (err == nil && raw == "") {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read cart snapshot")
	}

	var items []CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return errors.Wrapf(ErrCorruptSnapshot, "decode: %v", err)
	}
	s.products = dedupe(items)

	s.log.WithField("items", len(s.products)).Debug("cart snapshot loaded")
	return nil
}

// Products returns a copy of the cart in order of last modification.
func (s *Store) Products() []CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CartItem, len(s.products))
	copy(out, s.products)
	return out
}

// Totals returns the unit count and subtotal of the cart.
func (s *Store) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return totalsOf(s.products)
}

// AddToCart puts one unit of p into the cart. A product already in the cart
// gets one more unit and moves to the end.
//
// A new product is written to the slot before it becomes visible; if the write
// fails the cart is unchanged. An existing product is updated first and then
// written; if the write fails the updated cart is kept. Either way no event is
// published for a change the slot did not accept.
func (s *Store) AddToCart(ctx context.Context, p Product) error {
	ctx, span := s.tracer.Start(ctx, "cartstore.AddToCart")
	defer span.End()
	span.SetAttributes(attribute.String("app.product_id", p.ID))

	if p.ID == "" {
		return ErrInvalidProduct
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(p.ID)
	if i < 0 {
		item := CartItem{Product: p, Quantity: 1}
		next := append(s.cloneProducts(), item)
		if err := s.persist(ctx, next); err != nil {
			return err
		}
		s.products = next
		s.applied(ctx, "add", events.ItemAdded, item)
		return nil
	}

	item := s.products[i]
	item.Quantity = incremented(item.Quantity)
	s.products = moveToEnd(s.products, i, item)
	if err := s.persist(ctx, s.products); err != nil {
		return err
	}
	s.applied(ctx, "add", events.ItemAdded, item)
	return nil
}

// Increment adds one unit of the item with the given id. If the item is not in
// the cart the user is alerted and ErrItemNotFound is returned.
func (s *Store) Increment(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "cartstore.Increment")
	defer span.End()
	span.SetAttributes(attribute.String("app.product_id", id))

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.notifier.Alert(ctx, AlertTitle, AlertIncrementFailed)
		return errors.Wrapf(ErrItemNotFound, "increment %q", id)
	}

	item := s.products[i]
	item.Quantity = incremented(item.Quantity)
	s.products = moveToEnd(s.products, i, item)
	if err := s.persist(ctx, s.products); err != nil {
		return err
	}
	s.applied(ctx, "increment", events.ItemIncremented, item)
	return nil
}

// Decrement removes one unit of the item with the given id. The item leaves
// the cart when no units remain. If the item is not in the cart the user is
// alerted and ErrItemNotFound is returned.
func (s *Store) Decrement(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "cartstore.Decrement")
	defer span.End()
	span.SetAttributes(attribute.String("app.product_id", id))

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.notifier.Alert(ctx, AlertTitle, AlertDecrementFailed)
		return errors.Wrapf(ErrItemNotFound, "decrement %q", id)
	}

	item := s.products[i]
	item.Quantity--
	typ := events.ItemDecremented
	if item.Quantity <= 0 {
		item.Quantity = 0
		typ = events.ItemRemoved
		s.products = removeAt(s.products, i)
	} else {
		s.products = moveToEnd(s.products, i, item)
	}
	if err := s.persist(ctx, s.products); err != nil {
		return err
	}
	s.applied(ctx, "decrement", typ, item)
	return nil
}

// persist writes items to the slot. Callers hold s.mu.
func (s *Store) persist(ctx context.Context, items []CartItem) error {
	if items == nil {
		items = []CartItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "encode cart snapshot")
	}
	if err := s.slot.Set(ctx, s.key, string(data)); err != nil {
		s.log.WithError(err).Error("failed to persist cart")
		return errors.Wrap(err, "persist cart snapshot")
	}
	return nil
}

// applied records a mutation once it has been written to the slot.
func (s *Store) applied(ctx context.Context, op string, typ events.Type, item CartItem) {
	if s.mutations != nil {
		s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	}

	s.log.WithFields(logrus.Fields{
		"op":       op,
		"item_id":  item.ID,
		"quantity": item.Quantity,
	}).Debug("cart updated")

	err := s.publisher.Publish(ctx, events.Event{
		Type:      typ,
		ItemID:    item.ID,
		Quantity:  item.Quantity,
		Timestamp: s.now(),
	})
	if err != nil {
		s.log.WithError(err).Warn("failed to publish cart event")
	}
}

func (s *Store) indexOf(id string) int {
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) cloneProducts() []CartItem {
	out := make([]CartItem, len(s.products), len(s.products)+1)
	copy(out, s.products)
	return out
}

func moveToEnd(items []CartItem, i int, updated CartItem) []CartItem {
	next := make([]CartItem, 0, len(items))
	next = append(next, items[:i]...)
	next = append(next, items[i+1:]...)
	return append(next, updated)
}

func removeAt(items []CartItem, i int) []CartItem {
	next := make([]CartItem, 0, len(items)-1)
	next = append(next, items[:i]...)
	return append(next, items[i+1:]...)
}

// dedupe keeps the last entry for each id, preserving the order of those entries.
func dedupe(items []CartItem) []CartItem {
	last := make(map[string]int, len(items))
	for i, it := range items {
		last[it.ID] = i
	}
	out := make([]CartItem, 0, len(last))
	for i, it := range items {
		if last[it.ID] == i {
			out = append(out, it)
		}
	}
	return out
}
