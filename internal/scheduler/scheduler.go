// Package scheduler periodically refreshes the feed cache and notifies subscribers
// about newly published items.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"rss_notify/internal/model"
)

// Refresher rebuilds and publishes the feed snapshot.
type Refresher interface {
	Refresh(ctx context.Context) *model.Snapshot
}

// Tracker computes which snapshot items have not been announced yet.
type Tracker interface {
	Delta(snap *model.Snapshot) []model.Item
}

// SubscriberLister returns the current notification recipients.
type SubscriberLister interface {
	ListSubscribers(ctx context.Context) ([]model.Subscriber, error)
}

// Deliverer sends a text message to a chat.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, text string) error
}

// State is the dispatcher's position in its refresh cycle.
type State int32

// Dispatcher states.
const (
	Idle State = iota
	Refreshing
)

func (s State) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// Report summarizes one refresh cycle.
type Report struct {
	Started     time.Time
	Finished    time.Time
	NewItems    int
	Subscribers int
	Delivered   int
	Failed      int
}

// Dispatcher runs refresh cycles: rebuild the cache, compute the delta and
// deliver every new item to every subscriber.
type Dispatcher struct {
	cache     Refresher
	tracker   Tracker
	directory SubscriberLister
	sender    Deliverer
	log       *slog.Logger

	tick            time.Duration
	deliveryTimeout time.Duration
	sendGap         time.Duration
	notifyBacklog   bool

	state   atomic.Int32
	skipped atomic.Int64

	// unprimed holds feeds that failed while priming. Their items are
	// absorbed silently on the first cycle the feed succeeds.
	unprimed map[string]struct{}

	mu   sync.Mutex
	last Report
}

// New creates a Dispatcher with a 10-minute interval and a 10-second delivery timeout.
// Items present at startup are not delivered unless SetNotifyBacklog(true) is called.
func New(cache Refresher, tracker Tracker, directory SubscriberLister, sender Deliverer, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cache:           cache,
		tracker:         tracker,
		directory:       directory,
		sender:          sender,
		log:             log,
		tick:            10 * time.Minute,
		deliveryTimeout: 10 * time.Second,
		sendGap:         50 * time.Millisecond,
		notifyBacklog:   false,
	}
}

// SetTickInterval overrides the refresh interval.
func (d *Dispatcher) SetTickInterval(interval time.Duration) {
	d.tick = interval
}

// SetDeliveryTimeout bounds each individual delivery.
func (d *Dispatcher) SetDeliveryTimeout(timeout time.Duration) {
	d.deliveryTimeout = timeout
}

// SetSendInterval sets the pause between consecutive deliveries.
func (d *Dispatcher) SetSendInterval(gap time.Duration) {
	d.sendGap = gap
}

// SetNotifyBacklog controls whether items present at startup are delivered.
// When false, the first cycle of Run only primes the tracker.
func (d *Dispatcher) SetNotifyBacklog(notify bool) {
	d.notifyBacklog = notify
}

// State returns the current dispatcher state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Skipped returns how many cycles were dropped because one was already running.
func (d *Dispatcher) Skipped() int64 {
	return d.skipped.Load()
}

// LastReport returns the report of the most recently finished cycle.
func (d *Dispatcher) LastReport() Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Run starts the refresh loop, blocking until ctx is cancelled and the
// in-flight cycle has returned. Every tick starts its cycle in its own
// goroutine, so a tick that fires while a cycle is running is dropped.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	defer wg.Wait()

	first := d.RunCycle
	if !d.notifyBacklog {
		first = d.Prime
	}
	wg.Go(func() { first(ctx) })

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wg.Go(func() { d.RunCycle(ctx) })
		}
	}
}

// RunCycle performs one refresh cycle. It returns false without doing anything
// when another cycle is already in flight.
func (d *Dispatcher) RunCycle(ctx context.Context) bool {
	if !d.enter() {
		return false
	}
	defer d.leave()

	d.cycle(ctx)
	return true
}

// Prime refreshes the cache and records every current item as seen without
// delivering anything.
func (d *Dispatcher) Prime(ctx context.Context) bool {
	if !d.enter() {
		return false
	}
	defer d.leave()

	snap := d.cache.Refresh(ctx)
	if ctx.Err() != nil {
		return true
	}
	primed := d.tracker.Delta(snap)
	d.unprimed = make(map[string]struct{}, len(snap.Failed))
	for _, url := range snap.Failed {
		d.unprimed[url] = struct{}{}
	}
	d.log.Info("primed seen items", "count", len(primed), "unprimed_feeds", len(snap.Failed))
	return true
}

func (d *Dispatcher) enter() bool {
	if !d.state.CompareAndSwap(int32(Idle), int32(Refreshing)) {
		d.skipped.Add(1)
		d.log.Warn("refresh still in progress, skipping tick")
		return false
	}
	return true
}

func (d *Dispatcher) leave() {
	d.state.Store(int32(Idle))
}

func (d *Dispatcher) cycle(ctx context.Context) {
	rep := Report{Started: time.Now().UTC()}
	defer func() {
		rep.Finished = time.Now().UTC()
		d.mu.Lock()
		d.last = rep
		d.mu.Unlock()
	}()

	snap := d.cache.Refresh(ctx)
	if ctx.Err() != nil {
		return
	}

	fresh := d.absorbUnprimed(snap, d.tracker.Delta(snap))
	rep.NewItems = len(fresh)
	if len(fresh) == 0 {
		d.log.Debug("no new items", "items", len(snap.Items))
		return
	}

	subs, err := d.directory.ListSubscribers(ctx)
	if err != nil {
		d.log.Error("list subscribers", "new_items", len(fresh), "error", err)
		return
	}
	rep.Subscribers = len(subs)

	for _, item := range fresh {
		text := FormatNotification(item)
		for _, sub := range subs {
			if ctx.Err() != nil {
				d.log.Info("cycle interrupted", "delivered", rep.Delivered, "failed", rep.Failed)
				return
			}
			if err := d.deliver(ctx, sub.ChatID, text); err != nil {
				rep.Failed++
				d.log.Warn("deliver notification", "chat_id", sub.ChatID, "link", item.Link, "error", err)
				continue
			}
			rep.Delivered++
			d.pause(ctx)
		}
	}

	d.log.Info("sent notifications",
		"new_items", rep.NewItems,
		"subscribers", rep.Subscribers,
		"delivered", rep.Delivered,
		"failed", rep.Failed,
	)
}

// absorbUnprimed drops new items from feeds that were down while priming and
// now answer for the first time. Those items are already recorded as seen.
func (d *Dispatcher) absorbUnprimed(snap *model.Snapshot, fresh []model.Item) []model.Item {
	if len(d.unprimed) == 0 {
		return fresh
	}

	failed := make(map[string]struct{}, len(snap.Failed))
	for _, url := range snap.Failed {
		failed[url] = struct{}{}
	}
	recovered := make(map[string]struct{})
	for url := range d.unprimed {
		if _, ok := failed[url]; !ok {
			recovered[url] = struct{}{}
			delete(d.unprimed, url)
		}
	}
	if len(recovered) == 0 {
		return fresh
	}

	kept := lo.Filter(fresh, func(it model.Item, _ int) bool {
		_, skip := recovered[it.Source]
		return !skip
	})
	d.log.Info("primed recovered feeds", "feeds", len(recovered), "items", len(fresh)-len(kept))
	return kept
}

func (d *Dispatcher) deliver(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
	defer cancel()
	return d.sender.Deliver(ctx, chatID, text)
}

// pause rate limits deliveries; Telegram allows roughly 20 messages per second.
func (d *Dispatcher) pause(ctx context.Context) {
	if d.sendGap <= 0 {
		return
	}
	t := time.NewTimer(d.sendGap)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
