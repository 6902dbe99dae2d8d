package feed

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

type Entry struct {
	Table   string          `json:"table"`
	ID      string          `json:"id"`
	Record  json.RawMessage `json:"record"`
	TS      time.Time       `json:"ts"`
	Deleted bool            `json:"-"`
}

// Reducer keeps the latest known version of every row keyed by table and id.
// Duplicate and stale deltas are ignored and deleted rows keep a tombstone so
// an older update cannot bring them back.
type Reducer struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewReducer() *Reducer {
	return &Reducer{entries: make(map[string]Entry)}
}

// Apply folds d into the state and reports whether anything changed.
func (r *Reducer) Apply(d Delta) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := d.key()
	current, seen := r.entries[key]
	if seen && !d.TS.After(current.TS) {
		return false
	}
	if seen && current.Deleted && d.Op != OpInsert {
		return false
	}

	switch d.Op {
	case OpDelete:
		r.entries[key] = Entry{Table: d.Table, ID: d.ID, TS: d.TS, Deleted: true}
	default:
		r.entries[key] = Entry{Table: d.Table, ID: d.ID, Record: d.Record, TS: d.TS}
	}
	return true
}

// Get returns a live row.
func (r *Reducer) Get(table, id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[table+":"+id]
	if !ok || entry.Deleted {
		return Entry{}, false
	}
	return entry, true
}

// Live returns the live rows of a table, newest change first.
func (r *Reducer) Live(table string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0)
	for _, entry := range r.entries {
		if entry.Table == table && !entry.Deleted {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TS.Equal(out[j].TS) {
			return out[i].TS.After(out[j].TS)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
