package shard

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"matchbook/internal/common"
	"matchbook/internal/engine"
	"matchbook/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	tomb "gopkg.in/tomb.v2"
)

const (
	defaultShards    = 4
	defaultQueueSize = 100
)

var (
	ErrNotStarted = errors.New("router not started")
	ErrStopped    = errors.New("router stopped")
)

// task is a unit of work run on the goroutine owning a shard's engine. done is closed
// once the task has run or been discarded at shutdown; ran tells the two apart.
type task struct {
	run  func(eng *engine.Engine)
	ran  bool
	done chan struct{}
}

type shard struct {
	id    int
	eng   *engine.Engine
	tasks chan *task
}

// Router spreads symbols over a fixed set of shards. Every shard owns one engine and
// is drained by exactly one goroutine, so an engine is never touched concurrently.
// No invariant spans symbols, so symbols on different shards proceed in parallel.
type Router struct {
	shards  []*shard
	metrics *metrics.Metrics
	t       *tomb.Tomb

	// Senders hold mu for reading while handing a task over. Once sealed is closed no
	// task can be handed over, so a dying worker can drain its queue for good.
	mu     sync.RWMutex
	sealed chan struct{}

	// owners maps every resting order id to the shard holding it. Ids are unique
	// across the router, not only within one engine.
	ownersMu sync.Mutex
	owners   map[uuid.UUID]int
}

type Option func(*Router)

// WithMetrics records order flow and book shape into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		r.metrics = m
	}
}

func New(shards, queueSize int, opts ...Option) *Router {
	if shards <= 0 {
		shards = defaultShards
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	r := &Router{
		shards: make([]*shard, shards),
		owners: make(map[uuid.UUID]int),
	}
	for i := range r.shards {
		r.shards[i] = &shard{
			id:    i,
			eng:   engine.New(),
			tasks: make(chan *task, queueSize),
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches one worker per shard. The workers stop when ctx is done or Stop is
// called.
func (r *Router) Start(ctx context.Context) {
	r.t, _ = tomb.WithContext(ctx)
	r.sealed = make(chan struct{})
	// Spawned from a tracked goroutine so the tomb cannot die half started.
	r.t.Go(func() error {
		r.t.Go(r.seal)
		for _, s := range r.shards[1:] {
			r.t.Go(func() error {
				return r.worker(s)
			})
		}
		return r.worker(r.shards[0])
	})
	log.Info().Int("shards", len(r.shards)).Msg("router running")
}

// Stop kills the workers and waits for them to exit.
func (r *Router) Stop() error {
	if r.t == nil {
		return nil
	}
	log.Info().Msg("router shutting down")
	r.t.Kill(nil)
	return r.Wait()
}

// Wait blocks until every worker has exited.
func (r *Router) Wait() error {
	if r.t == nil {
		return nil
	}
	err := r.t.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// seal stops new hand-overs once the router is dying. Taking the write lock waits for
// every sender still inside its hand-over.
func (r *Router) seal() error {
	<-r.t.Dying()
	r.mu.Lock()
	close(r.sealed)
	r.mu.Unlock()
	return nil
}

// worker runs tasks for one shard until the router is dying. Tasks still queued at
// that point are discarded, never half run.
func (r *Router) worker(s *shard) error {
	for {
		select {
		case <-r.t.Dying():
			<-r.sealed
			log.Info().Int("shard", s.id).Int("discarded", drain(s)).Msg("worker exiting")
			return nil
		case tk := <-s.tasks:
			tk.run(s.eng)
			tk.ran = true
			close(tk.done)
		}
	}
}

// drain discards every queued task without running it.
func drain(s *shard) int {
	n := 0
	for {
		select {
		case tk := <-s.tasks:
			close(tk.done)
			n++
		default:
			return n
		}
	}
}

// shardFor picks the shard owning symbol.
func (r *Router) shardFor(symbol string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return r.shards[h.Sum32()%uint32(len(r.shards))]
}

// do runs fn on the shard's goroutine and waits for it. ctx only bounds the hand-over:
// a task that was handed over always runs to completion and do reports success, or it
// is discarded unrun at shutdown and do reports ErrStopped.
func (r *Router) do(ctx context.Context, s *shard, fn func(eng *engine.Engine)) error {
	if r.t == nil {
		return ErrNotStarted
	}
	tk := &task{run: fn, done: make(chan struct{})}
	if err := r.handOver(ctx, s, tk); err != nil {
		return err
	}
	<-tk.done
	if !tk.ran {
		return ErrStopped
	}
	return nil
}

func (r *Router) handOver(ctx context.Context, s *shard, tk *task) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	select {
	case <-r.t.Dying():
		return ErrStopped
	default:
	}
	select {
	case s.tasks <- tk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.t.Dying():
		return ErrStopped
	}
}

// all runs fn on every shard concurrently and waits for all of them.
func (r *Router) all(ctx context.Context, fn func(s *shard, eng *engine.Engine)) error {
	errs := make(chan error, len(r.shards))
	for _, s := range r.shards {
		go func() {
			errs <- r.do(ctx, s, func(eng *engine.Engine) { fn(s, eng) })
		}()
	}
	var joined []error
	for range r.shards {
		if err := <-errs; err != nil {
			joined = append(joined, err)
		}
	}
	return errors.Join(joined...)
}

// Submit matches orders in submission order and returns one blotter per order.
// Consecutive orders owned by the same shard are handed over together. On failure the
// blotters of every order matched before it are returned with the error.
func (r *Router) Submit(ctx context.Context, orders ...common.Order) ([]common.TradeBlotter, error) {
	blotters := make([]common.TradeBlotter, 0, len(orders))
	for start := 0; start < len(orders); {
		s := r.shardFor(orders[start].Symbol)
		end := start + 1
		for end < len(orders) && r.shardFor(orders[end].Symbol) == s {
			end++
		}

		var (
			run      []common.TradeBlotter
			matchErr error
		)
		batch := orders[start:end]
		err := r.do(ctx, s, func(eng *engine.Engine) {
			run, matchErr = r.matchAll(s, batch)
		})
		if err != nil {
			return blotters, err
		}
		blotters = append(blotters, run...)
		if matchErr != nil {
			return blotters, fmt.Errorf("order %d of %d: %w", len(blotters), len(orders), matchErr)
		}
		start = end
	}
	return blotters, nil
}

func (r *Router) matchAll(s *shard, orders []common.Order) ([]common.TradeBlotter, error) {
	blotters := make([]common.TradeBlotter, 0, len(orders))
	for _, order := range orders {
		if err := r.claim(order.ID, s.id); err != nil {
			r.observeReject()
			return blotters, err
		}
		began := time.Now()
		blotter, err := s.eng.Match(order)
		if err != nil {
			r.release(order.ID, s.id)
			r.observeReject()
			return blotters, err
		}
		if blotter.Order.Quantity == 0 {
			r.release(order.ID, s.id)
		}
		for _, trade := range blotter.Trades {
			if _, resting := s.eng.Order(trade.StandingOrderID); !resting {
				r.release(trade.StandingOrderID, s.id)
			}
		}
		r.observeMatch(s.eng, blotter, time.Since(began))
		blotters = append(blotters, blotter)
	}
	return blotters, nil
}

// claim records that id rests on shard. It fails if id already rests anywhere.
func (r *Router) claim(id uuid.UUID, shardID int) error {
	r.ownersMu.Lock()
	defer r.ownersMu.Unlock()
	if _, ok := r.owners[id]; ok {
		return fmt.Errorf("%w: order %s is already resting", common.ErrInvalidOrder, id)
	}
	r.owners[id] = shardID
	return nil
}

// release forgets id if shardID still holds it.
func (r *Router) release(id uuid.UUID, shardID int) {
	r.ownersMu.Lock()
	defer r.ownersMu.Unlock()
	if owner, ok := r.owners[id]; ok && owner == shardID {
		delete(r.owners, id)
	}
}

// owner returns the shard holding the resting order id.
func (r *Router) owner(id uuid.UUID) (*shard, bool) {
	r.ownersMu.Lock()
	defer r.ownersMu.Unlock()
	i, ok := r.owners[id]
	if !ok {
		return nil, false
	}
	return r.shards[i], true
}

// Enqueue rests the order on its shard without matching.
func (r *Router) Enqueue(ctx context.Context, order common.Order) error {
	var enqueueErr error
	s := r.shardFor(order.Symbol)
	err := r.do(ctx, s, func(eng *engine.Engine) {
		if enqueueErr = r.claim(order.ID, s.id); enqueueErr != nil {
			r.observeReject()
			return
		}
		if enqueueErr = eng.Enqueue(order); enqueueErr != nil {
			r.release(order.ID, s.id)
			r.observeReject()
			return
		}
		if r.metrics != nil {
			r.metrics.OrdersEnqueued.Inc()
		}
		r.observeDepth(eng, order.Symbol)
	})
	if err != nil {
		return err
	}
	return enqueueErr
}

// Cancel removes a resting order from the shard holding it.
func (r *Router) Cancel(ctx context.Context, id uuid.UUID) error {
	s, ok := r.owner(id)
	if !ok {
		r.observeCancel(metrics.CancelNotFound)
		return &common.OrderNotFoundError{ID: id}
	}

	var cancelErr error
	err := r.do(ctx, s, func(eng *engine.Engine) {
		order, resting := eng.Order(id)
		cancelErr = eng.Cancel(id)
		// The engine no longer indexes id whatever the outcome.
		r.release(id, s.id)
		if resting && cancelErr == nil {
			r.observeDepth(eng, order.Symbol)
		}
	})
	if err != nil {
		return err
	}

	switch {
	case cancelErr == nil:
		r.observeCancel(metrics.CancelOK)
	case errors.Is(cancelErr, common.ErrOrderNotFound):
		r.observeCancel(metrics.CancelNotFound)
	default:
		r.observeCancel(metrics.CancelError)
	}
	return cancelErr
}

// Order looks up a resting order.
func (r *Router) Order(ctx context.Context, id uuid.UUID) (common.Order, bool, error) {
	s, ok := r.owner(id)
	if !ok {
		return common.Order{}, false, nil
	}
	var (
		order   common.Order
		resting bool
	)
	err := r.do(ctx, s, func(eng *engine.Engine) {
		order, resting = eng.Order(id)
	})
	return order, resting, err
}

func (r *Router) Level(ctx context.Context, symbol string, side common.Side, price decimal.Decimal) (engine.PriceLevel, bool, error) {
	var (
		level engine.PriceLevel
		ok    bool
	)
	err := r.do(ctx, r.shardFor(symbol), func(eng *engine.Engine) {
		level, ok = eng.Level(symbol, side, price)
	})
	return level, ok, err
}

func (r *Router) Snapshot(ctx context.Context, symbol string, depth int) (engine.Snapshot, bool, error) {
	var (
		snap engine.Snapshot
		ok   bool
	)
	err := r.do(ctx, r.shardFor(symbol), func(eng *engine.Engine) {
		snap, ok = eng.Snapshot(symbol, depth)
	})
	return snap, ok, err
}

// Symbols lists every symbol seen by any shard.
func (r *Router) Symbols(ctx context.Context) ([]string, error) {
	perShard := make([][]string, len(r.shards))
	err := r.all(ctx, func(s *shard, eng *engine.Engine) {
		perShard[s.id] = eng.Symbols()
	})
	var symbols []string
	for _, list := range perShard {
		symbols = append(symbols, list...)
	}
	sort.Strings(symbols)
	return symbols, err
}

// CheckConsistency verifies the index of every shard's engine and that the router's
// ownership map names exactly the resting orders.
func (r *Router) CheckConsistency(ctx context.Context) error {
	results := make([]error, len(r.shards))
	resting := make([]int, len(r.shards))
	if err := r.all(ctx, func(s *shard, eng *engine.Engine) {
		results[s.id] = eng.CheckConsistency()
		resting[s.id] = eng.Len()
	}); err != nil {
		return err
	}
	if err := errors.Join(results...); err != nil {
		return err
	}

	owned := make([]int, len(r.shards))
	r.ownersMu.Lock()
	for _, i := range r.owners {
		owned[i]++
	}
	r.ownersMu.Unlock()
	for i := range r.shards {
		if owned[i] != resting[i] {
			return fmt.Errorf("%w: shard %d rests %d orders but owns %d ids",
				common.ErrInconsistentState, i, resting[i], owned[i])
		}
	}
	return nil
}
