// Package dedup filtra i duplicati delle consegne QoS1: il broker può
// riconsegnare un messaggio già processato e non tutti i sink a valle
// sono idempotenti.
package dedup

import (
	"sync"
	"time"
)

// Deduper ricorda gli id visti di recente. Una voce scade dopo il TTL e
// la mappa non supera mai limit voci.
type Deduper struct {
	mu    sync.Mutex
	ttl   time.Duration
	limit int
	seen  map[string]time.Time // id -> scadenza
}

// New crea un Deduper; ttl e limit non positivi ricadono sui default.
func New(ttl time.Duration, limit int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if limit <= 0 {
		limit = 10000
	}
	return &Deduper{ttl: ttl, limit: limit, seen: make(map[string]time.Time, limit)}
}

// ShouldProcess dice se l'id è nuovo e in quel caso lo registra.
// Un id vuoto passa sempre.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	if len(d.seen) >= d.limit {
		d.evict(now)
	}
	d.seen[id] = now.Add(d.ttl)
	return true
}

// evict fa spazio: prima le voci scadute, poi voci vive qualsiasi finché
// la mappa non scende sotto il limite.
func (d *Deduper) evict(now time.Time) {
	for id, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, id)
		}
	}
	for id := range d.seen {
		if len(d.seen) < d.limit {
			return
		}
		delete(d.seen, id)
	}
}
