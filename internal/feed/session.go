package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrSessionClosed = errors.New("feed session closed")

type Options struct {
	Tables         []domain.Table
	ActivitySize   int
	ResubscribeGap time.Duration
	WatchBuffer    int
}

// Session is one back-office view of the watched tables: a local cache per
// table, the live subscriptions feeding it and the active filters. Change
// events from every table are applied by a single loop in receipt order.
// The cache is never authoritative; Refresh re-reads it from the gateway.
type Session struct {
	gateway repository.Gateway
	log     *zap.Logger
	opts    Options

	mu          sync.RWMutex
	collections map[domain.Table]*Collection
	activity    *ActivityWindow

	incoming chan domain.ChangeEvent
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	subMu sync.Mutex
	subs  map[domain.Table]repository.Subscription

	watchMu  sync.Mutex
	watchers map[int]chan domain.ChangeEvent
	nextID   int
	closed   bool
}

func NewSession(g repository.Gateway, logger *zap.Logger, opts Options) *Session {
	if len(opts.Tables) == 0 {
		opts.Tables = domain.WatchedTables
	}
	if opts.ResubscribeGap <= 0 {
		opts.ResubscribeGap = 5 * time.Second
	}
	if opts.WatchBuffer <= 0 {
		opts.WatchBuffer = 32
	}
	s := &Session{
		gateway:     g,
		log:         logger.Named("feed"),
		opts:        opts,
		collections: make(map[domain.Table]*Collection, len(opts.Tables)),
		activity:    NewActivityWindow(opts.ActivitySize),
		incoming:    make(chan domain.ChangeEvent, 128),
		subs:        map[domain.Table]repository.Subscription{},
		watchers:    map[int]chan domain.ChangeEvent{},
	}
	for _, t := range opts.Tables {
		s.collections[t] = NewCollection(t)
	}
	return s
}

// Start loads every table, subscribes to their changes and starts the apply
// loop. A table that cannot be loaded or subscribed is logged and left
// degraded; Start only fails when no table could be loaded.
func (s *Session) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	loaded := s.RefreshAll(ctx)
	if loaded == 0 {
		cancel()
		return errors.New("feed: no table could be loaded")
	}

	s.wg.Add(1)
	go s.applyLoop(ctx)

	for _, t := range s.opts.Tables {
		s.wg.Add(1)
		go s.pump(ctx, t)
	}
	return nil
}

// RefreshAll re-fetches every table in parallel and returns how many succeeded.
func (s *Session) RefreshAll(ctx context.Context) int {
	results := make([]bool, len(s.opts.Tables))
	var g errgroup.Group
	for i, t := range s.opts.Tables {
		i, t := i, t
		g.Go(func() error {
			if err := s.Refresh(ctx, t); err != nil {
				s.log.Error("table refresh failed", zap.String("table", string(t)), zap.Error(err))
				return nil
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range results {
		if ok {
			n++
		}
	}
	return n
}

// Refresh replaces the cached copy of table with a full fetch. It is the
// only recovery from missed events. Events applied while the fetch runs are
// replayed over its rows, so a concurrent delete stays deleted.
func (s *Session) Refresh(ctx context.Context, table domain.Table) error {
	c, err := s.collection(table)
	if err != nil {
		return err
	}

	s.mu.Lock()
	mark := c.BeginRefresh()
	s.mu.Unlock()

	recs, err := s.gateway.Fetch(ctx, table, repository.Newest())

	s.mu.Lock()
	defer s.mu.Unlock()
	defer c.EndRefresh()
	if err != nil {
		return err
	}
	c.ResetSince(recs, mark)
	s.reseedActivity()
	return nil
}

func (s *Session) reseedActivity() {
	var recent []domain.Record
	for _, t := range s.opts.Tables {
		if !tracksActivity(t) {
			continue
		}
		all := s.collections[t].All()
		if len(all) > s.activity.size {
			all = all[:s.activity.size]
		}
		recent = append(recent, all...)
	}
	s.activity.Seed(recent)
}

// pump forwards one table's subscription into the apply loop, subscribing
// again after a transport failure. Events missed in between are not replayed.
func (s *Session) pump(ctx context.Context, table domain.Table) {
	defer s.wg.Done()
	for {
		sub, err := s.gateway.Subscribe(ctx, table)
		if err != nil {
			s.log.Error("subscribe failed", zap.String("table", string(table)), zap.Error(err))
		} else {
			s.setSub(table, sub)
			s.forward(ctx, sub)
			s.setSub(table, nil)
			if err := sub.Err(); err != nil && !errors.Is(err, repository.ErrSubscriptionDone) && ctx.Err() == nil {
				s.log.Warn("subscription ended", zap.String("table", string(table)), zap.Error(err))
			}
			s.recoverDropped(ctx, table, sub)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.opts.ResubscribeGap):
		}
	}
}

// lossy is implemented by subscriptions that count events they had to drop.
type lossy interface {
	Dropped() int64
}

// recoverDropped re-reads table when its ended subscription lost events.
func (s *Session) recoverDropped(ctx context.Context, table domain.Table, sub repository.Subscription) {
	l, ok := sub.(lossy)
	if !ok || ctx.Err() != nil {
		return
	}
	n := l.Dropped()
	if n == 0 {
		return
	}
	s.log.Warn("subscription dropped events", zap.String("table", string(table)), zap.Int64("dropped", n))
	if err := s.Refresh(ctx, table); err != nil {
		s.log.Error("table refresh failed", zap.String("table", string(table)), zap.Error(err))
	}
}

func (s *Session) forward(ctx context.Context, sub repository.Subscription) {
	for {
		select {
		case <-ctx.Done():
			_ = sub.Close()
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			select {
			case s.incoming <- evt:
			case <-ctx.Done():
				_ = sub.Close()
				return
			}
		}
	}
}

func (s *Session) setSub(table domain.Table, sub repository.Subscription) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if sub == nil {
		delete(s.subs, table)
		return
	}
	s.subs[table] = sub
}

func (s *Session) applyLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-s.incoming:
			s.Apply(evt)
		}
	}
}

// Apply folds one event into the cache and notifies watchers. Bad events
// are logged and dropped.
func (s *Session) Apply(evt domain.ChangeEvent) {
	c, err := s.collection(evt.Table)
	if err != nil {
		s.log.Warn("event for unwatched table", zap.String("table", string(evt.Table)))
		return
	}

	s.mu.Lock()
	changed, err := c.Apply(evt)
	if err == nil && changed {
		if id, idErr := evt.RecordID(); idErr == nil {
			switch evt.Type {
			case domain.EventInsert:
				if rec, ok := c.Get(id); ok {
					s.activity.Add(rec)
				}
			case domain.EventDelete:
				s.activity.Remove(evt.Table, id)
			}
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("change event not applied",
			zap.String("table", string(evt.Table)),
			zap.String("type", string(evt.Type)),
			zap.Error(err))
		return
	}
	s.broadcast(evt)
}

// Optimistic applies patch to the cached record ahead of the store and
// returns a func undoing it. The undo restores only the patched fields that
// still hold the optimistic values; changes applied in between are kept.
func (s *Session) Optimistic(table domain.Table, id uint64, patch domain.Patch) func() {
	noop := func() {}
	c, err := s.collection(table)
	if err != nil {
		return noop
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return noop
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := c.Get(id)
	if !ok {
		return noop
	}
	next, err := domain.Merge(prev, raw)
	if err != nil {
		return noop
	}
	before, err := fieldsOf(prev, patch)
	if err != nil {
		return noop
	}
	applied, err := fieldsOf(next, patch)
	if err != nil {
		return noop
	}
	c.Replace(next)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		cur, ok := c.Get(id)
		if !ok {
			return
		}
		now, err := fieldsOf(cur, patch)
		if err != nil {
			return
		}
		restore := map[string]json.RawMessage{}
		for k, v := range applied {
			if v != nil && bytes.Equal(now[k], v) {
				restore[k] = before[k]
			}
		}
		if len(restore) == 0 {
			return
		}
		raw, err := json.Marshal(restore)
		if err != nil {
			return
		}
		if rec, err := domain.Merge(cur, raw); err == nil {
			c.Replace(rec)
		}
	}
}

// fieldsOf returns the encoded values of rec for the keys named in patch.
func fieldsOf(rec domain.Record, patch domain.Patch) (map[string]json.RawMessage, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	all := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(patch))
	for k := range patch {
		out[k] = all[k]
	}
	return out, nil
}

// View returns the filtered records of table, most recent first.
func (s *Session) View(table domain.Table) ([]domain.Record, error) {
	c, err := s.collection(table)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.View(), nil
}

func (s *Session) SetFilter(table domain.Table, filter string) ([]domain.Record, error) {
	c, err := s.collection(table)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.SetFilter(filter)
	return c.View(), nil
}

// Query filters the cached records of table without touching the active filter.
func (s *Session) Query(table domain.Table, filter string) ([]domain.Record, error) {
	c, err := s.collection(table)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.Matching(filter), nil
}

func (s *Session) Get(table domain.Table, id uint64) (domain.Record, bool) {
	c, err := s.collection(table)
	if err != nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.Get(id)
}

// Unseen counts cached unseen records per table.
func (s *Session) Unseen() map[domain.Table]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.Table]int, len(s.collections))
	for t, c := range s.collections {
		out[t] = c.Unseen()
	}
	return out
}

func (s *Session) Activity() []Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activity.Items()
}

// Watch returns a channel of applied events. A watcher that falls behind
// misses events. Call the returned func to stop watching.
func (s *Session) Watch() (<-chan domain.ChangeEvent, func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	ch := make(chan domain.ChangeEvent, s.opts.WatchBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.watchMu.Lock()
			defer s.watchMu.Unlock()
			if w, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(w)
			}
		})
	}
}

func (s *Session) broadcast(evt domain.ChangeEvent) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Teardown stops the apply loop, closes every subscription and every watcher.
func (s *Session) Teardown() {
	if s.cancel != nil {
		s.cancel()
	}
	s.subMu.Lock()
	for t, sub := range s.subs {
		_ = sub.Close()
		delete(s.subs, t)
	}
	s.subMu.Unlock()
	s.wg.Wait()

	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.closed = true
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
}

func (s *Session) collection(table domain.Table) (*Collection, error) {
	c, ok := s.collections[table]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownTable, string(table))
	}
	return c, nil
}
