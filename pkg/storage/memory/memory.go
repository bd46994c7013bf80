// Package memory implements storage.Store in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/matsecom/pkg/lock"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/storage"
)

// Store keeps subscribers, sessions and invoices in maps. mu guards the maps;
// subscribers serializes units of work per subscriber.
type Store struct {
	mu          sync.RWMutex
	subscribers map[int64]*model.Subscriber
	byIMSI      map[string]int64
	sessions    map[int64]*model.Session
	invoices    map[int64]*model.Invoice

	nextSubscriber int64
	nextSession    int64
	nextInvoice    int64

	locks *lock.KeyedMutex
	now   func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		subscribers: make(map[int64]*model.Subscriber),
		byIMSI:      make(map[string]int64),
		sessions:    make(map[int64]*model.Session),
		invoices:    make(map[int64]*model.Invoice),
		locks:       lock.NewKeyedMutex(),
		now:         time.Now,
	}
}

func (s *Store) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byIMSI[sub.IMSI]; exists {
		return fmt.Errorf("%w: %s", storage.ErrDuplicateIMSI, sub.IMSI)
	}
	s.nextSubscriber++
	sub.ID = s.nextSubscriber
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now().UTC()
	}
	stored := *sub
	s.subscribers[sub.ID] = &stored
	s.byIMSI[sub.IMSI] = sub.ID
	return nil
}

func (s *Store) GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return nil, fmt.Errorf("subscriber %d: %w", id, storage.ErrNotFound)
	}
	out := *sub
	return &out, nil
}

func (s *Store) GetSubscriberByIMSI(ctx context.Context, imsi string) (*model.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIMSI[imsi]
	if !ok {
		return nil, fmt.Errorf("subscriber with imsi %s: %w", imsi, storage.ErrNotFound)
	}
	out := *s.subscribers[id]
	return &out, nil
}

func (s *Store) ListSubscribers(ctx context.Context) ([]*model.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := make([]*model.Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		out := *sub
		subs = append(subs, &out)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (s *Store) DeleteSubscriber(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscribers[id]
	if !ok {
		return fmt.Errorf("subscriber %d: %w", id, storage.ErrNotFound)
	}
	delete(s.byIMSI, sub.IMSI)
	delete(s.subscribers, id)
	for sid, sess := range s.sessions {
		if sess.SubscriberID == id {
			delete(s.sessions, sid)
		}
	}
	for iid, inv := range s.invoices {
		if inv.SubscriberID == id {
			delete(s.invoices, iid)
		}
	}
	return nil
}

func matches(sess *model.Session, filter model.SessionFilter) bool {
	if filter.SubscriberID != 0 && sess.SubscriberID != filter.SubscriberID {
		return false
	}
	if filter.Paid != nil && sess.Paid != *filter.Paid {
		return false
	}
	return true
}

func (s *Store) ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionsLocked(filter), nil
}

func (s *Store) sessionsLocked(filter model.SessionFilter) []*model.Session {
	out := make([]*model.Session, 0)
	for _, sess := range s.sessions {
		if matches(sess, filter) {
			c := *sess
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*model.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, fmt.Errorf("invoice %d: %w", id, storage.ErrNotFound)
	}
	out := *inv
	return &out, nil
}

func (s *Store) ListInvoices(ctx context.Context, subscriberID int64) ([]*model.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Invoice, 0)
	for _, inv := range s.invoices {
		if subscriberID == 0 || inv.SubscriberID == subscriberID {
			c := *inv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Atomically stages the writes of fn and applies them together once fn succeeds.
func (s *Store) Atomically(ctx context.Context, subscriberID int64, fn func(tx storage.Tx) error) error {
	unlock, err := s.locks.Lock(ctx, lock.SubscriberKey(subscriberID))
	if err != nil {
		return fmt.Errorf("failed to lock subscriber %d: %w", subscriberID, err)
	}
	defer unlock()

	if _, err := s.GetSubscriber(ctx, subscriberID); err != nil {
		return err
	}

	tx := &memTx{store: s, subscriberID: subscriberID, paid: make(map[int64]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	return s.apply(tx)
}

func (s *Store) apply(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscribers[tx.subscriberID]; !ok {
		return fmt.Errorf("subscriber %d: %w", tx.subscriberID, storage.ErrNotFound)
	}
	for id := range tx.paid {
		if sess, ok := s.sessions[id]; ok {
			sess.Paid = true
		}
	}
	for _, sess := range tx.newSessions {
		c := *sess
		s.sessions[c.ID] = &c
	}
	for _, inv := range tx.newInvoices {
		c := *inv
		s.invoices[c.ID] = &c
	}
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

type memTx struct {
	store        *Store
	subscriberID int64
	newSessions  []*model.Session
	newInvoices  []*model.Invoice
	paid         map[int64]bool
}

func (t *memTx) Sessions(ctx context.Context, paid *bool) ([]*model.Session, error) {
	t.store.mu.RLock()
	committed := t.store.sessionsLocked(model.SessionFilter{SubscriberID: t.subscriberID})
	t.store.mu.RUnlock()

	all := committed
	for _, sess := range t.newSessions {
		c := *sess
		all = append(all, &c)
	}

	out := make([]*model.Session, 0, len(all))
	for _, sess := range all {
		if t.paid[sess.ID] {
			sess.Paid = true
		}
		if paid == nil || sess.Paid == *paid {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (t *memTx) CreateSession(ctx context.Context, sess *model.Session) error {
	if sess.SubscriberID != t.subscriberID {
		return fmt.Errorf("session belongs to subscriber %d, transaction is scoped to %d", sess.SubscriberID, t.subscriberID)
	}
	t.store.mu.Lock()
	t.store.nextSession++
	sess.ID = t.store.nextSession
	t.store.mu.Unlock()

	c := *sess
	t.newSessions = append(t.newSessions, &c)
	return nil
}

func (t *memTx) MarkPaid(ctx context.Context, ids []int64) error {
	current, err := t.Sessions(ctx, nil)
	if err != nil {
		return err
	}
	byID := make(map[int64]*model.Session, len(current))
	for _, sess := range current {
		byID[sess.ID] = sess
	}
	for _, id := range ids {
		sess, ok := byID[id]
		if !ok {
			return fmt.Errorf("session %d of subscriber %d: %w", id, t.subscriberID, storage.ErrNotFound)
		}
		if sess.Paid {
			return fmt.Errorf("session %d is already paid", id)
		}
	}
	for _, id := range ids {
		t.paid[id] = true
	}
	return nil
}

func (t *memTx) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	if inv.SubscriberID != t.subscriberID {
		return fmt.Errorf("invoice belongs to subscriber %d, transaction is scoped to %d", inv.SubscriberID, t.subscriberID)
	}
	t.store.mu.Lock()
	t.store.nextInvoice++
	inv.ID = t.store.nextInvoice
	t.store.mu.Unlock()

	c := *inv
	t.newInvoices = append(t.newInvoices, &c)
	return nil
}
