// pkg/dedup/deduplicator.go
package dedup

import (
	"container/list"
	"sync"
	"time"
)

// Config bounds the set of remembered identifiers. The zero value keeps
// every identifier for the life of the process.
type Config struct {
	MaxEntries int           // 0 = unbounded; least recently seen evicted first
	TTL        time.Duration // 0 = never expire; measured from the last sighting
}

type entry struct {
	uid  string
	seen time.Time
}

// Deduplicator suppresses repeated processing of a connection identifier.
type Deduplicator struct {
	cfg   Config
	now   func() time.Time
	mu    sync.Mutex
	order *list.List // most recently seen at front
	seen  map[string]*list.Element
}

// NewDeduplicator creates a new deduplicator
func NewDeduplicator(cfg Config) *Deduplicator {
	return &Deduplicator{
		cfg:   cfg,
		now:   time.Now,
		order: list.New(),
		seen:  make(map[string]*list.Element),
	}
}

// Admit returns true the first time uid is offered and false afterwards. An
// empty or unset ("-") uid is always admitted and never remembered.
func (d *Deduplicator) Admit(uid string) bool {
	if uid == "" || uid == "-" {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if el, ok := d.seen[uid]; ok {
		if !d.expired(el.Value.(entry), now) {
			el.Value = entry{uid: uid, seen: now}
			d.order.MoveToFront(el)
			return false
		}
		d.order.Remove(el)
		delete(d.seen, uid)
	}

	d.seen[uid] = d.order.PushFront(entry{uid: uid, seen: now})
	d.evict(now)
	return true
}

// Len returns the number of remembered identifiers.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Deduplicator) expired(e entry, now time.Time) bool {
	return d.cfg.TTL > 0 && now.Sub(e.seen) >= d.cfg.TTL
}

// evict drops the oldest entries over capacity and any expired tail.
func (d *Deduplicator) evict(now time.Time) {
	for {
		tail := d.order.Back()
		if tail == nil {
			return
		}
		e := tail.Value.(entry)
		over := d.cfg.MaxEntries > 0 && d.order.Len() > d.cfg.MaxEntries
		if !over && !d.expired(e, now) {
			return
		}
		d.order.Remove(tail)
		delete(d.seen, e.uid)
	}
}
