/*
tracker.go - Pending-change tracking for disconnected clients

PURPOSE:
  A client that is offline (or batching) edits a local working list and
  replays the edits against the server later. Tracker records which
  entries are new, modified or marked for removal until the replay of
  each entry succeeds.

STATE:
  items:   ordered working list, what the client displays
  changes: identifier -> pending change (added | updated | deleted)

  A key holds at most one pending change, so it can never sit in two
  sets at once. An added entry has no server copy yet.

MERGE:
  Merge replaces the working list with a fresh server snapshot plus every
  entry still pending as added.

  MergeDiscardPending (default) then forgets pending updates and deletes:
  the snapshot is taken as authoritative. A refresh before commit loses
  those edits.

  MergeKeepPending keeps them: pending updates are laid over the server
  copy and pending deletes stay marked, as long as the server still has
  the entry.

SEE ALSO:
  - rental/workspace.go: Three trackers plus the replay protocol
*/
package fleet

import "sort"

// MergePolicy selects what Merge does with pending updates and deletes.
type MergePolicy int

const (
	MergeDiscardPending MergePolicy = iota
	MergeKeepPending
)

type changeState int

const (
	stateAdded changeState = iota + 1
	stateUpdated
	stateDeleted
)

type change[T any] struct {
	state changeState
	value T
	seq   uint64
}

// Tracker is not safe for concurrent use. It is owned by a single client.
type Tracker[T any] struct {
	key     func(T) string
	policy  MergePolicy
	items   []T
	changes map[string]change[T]
	seq     uint64
}

// NewTracker creates an empty tracker identifying entries by key.
func NewTracker[T any](key func(T) string) *Tracker[T] {
	return &Tracker[T]{
		key:     key,
		changes: make(map[string]change[T]),
	}
}

// SetMergePolicy changes the behavior of later Merge calls.
func (t *Tracker[T]) SetMergePolicy(p MergePolicy) { t.policy = p }

// =============================================================================
// MUTATIONS
// =============================================================================

// Add appends item to the working list and tracks it as added.
func (t *Tracker[T]) Add(item T) {
	k := t.key(item)
	if i := t.indexOf(k); i >= 0 {
		t.items[i] = item
	} else {
		t.items = append(t.items, item)
	}
	t.changes[k] = change[T]{state: stateAdded, value: item, seq: t.next()}
}

// MarkForDeletion drops a never-persisted entry outright. Any other entry
// is tracked as deleted, superseding a pending update.
func (t *Tracker[T]) MarkForDeletion(item T) {
	k := t.key(item)
	if c, ok := t.changes[k]; ok && c.state == stateAdded {
		delete(t.changes, k)
		t.removeFromList(k)
		return
	}
	if i := t.indexOf(k); i >= 0 {
		item = t.items[i]
	}
	t.changes[k] = change[T]{state: stateDeleted, value: item, seq: t.next()}
}

// Unmark cancels a pending delete.
func (t *Tracker[T]) Unmark(item T) {
	k := t.key(item)
	if c, ok := t.changes[k]; ok && c.state == stateDeleted {
		delete(t.changes, k)
	}
}

// Update replaces old with updated at the same position in the working
// list. An added entry stays added. Returns false when old is not listed.
func (t *Tracker[T]) Update(old, updated T) bool {
	oldKey, newKey := t.key(old), t.key(updated)
	i := t.indexOf(oldKey)
	if i < 0 {
		return false
	}
	t.items[i] = updated

	c, tracked := t.changes[oldKey]
	if oldKey != newKey {
		delete(t.changes, oldKey)
	}
	if tracked && c.state == stateAdded {
		t.changes[newKey] = change[T]{state: stateAdded, value: updated, seq: c.seq}
		return true
	}
	t.changes[newKey] = change[T]{state: stateUpdated, value: updated, seq: t.next()}
	return true
}

// Merge replaces the working list with snapshot plus the entries still
// pending as added. An added entry the snapshot already contains is
// considered persisted and stops being tracked.
func (t *Tracker[T]) Merge(snapshot []T) {
	t.MergeWith(snapshot, t.policy)
}

// MergeWith is Merge under an explicit policy.
func (t *Tracker[T]) MergeWith(snapshot []T, policy MergePolicy) {
	items := make([]T, len(snapshot))
	copy(items, snapshot)
	index := make(map[string]int, len(items))
	for i, item := range items {
		index[t.key(item)] = i
	}

	for _, k := range t.keysIn(stateAdded) {
		if _, onServer := index[k]; onServer {
			delete(t.changes, k)
			continue
		}
		items = append(items, t.changes[k].value)
	}

	switch policy {
	case MergeKeepPending:
		for _, k := range t.keysIn(stateUpdated) {
			i, onServer := index[k]
			if !onServer {
				delete(t.changes, k)
				continue
			}
			items[i] = t.changes[k].value
		}
		for _, k := range t.keysIn(stateDeleted) {
			if _, onServer := index[k]; !onServer {
				delete(t.changes, k)
			}
		}
	default:
		for k, c := range t.changes {
			if c.state != stateAdded {
				delete(t.changes, k)
			}
		}
	}

	t.items = items
}

// Resolve stops tracking item after its replay succeeded.
func (t *Tracker[T]) Resolve(item T) {
	delete(t.changes, t.key(item))
}

// Remove drops item from the working list and from tracking. Used once a
// replayed delete has gone through.
func (t *Tracker[T]) Remove(item T) {
	k := t.key(item)
	delete(t.changes, k)
	t.removeFromList(k)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Items returns a copy of the working list.
func (t *Tracker[T]) Items() []T {
	out := make([]T, len(t.items))
	copy(out, t.items)
	return out
}

// Added returns pending adds in the order they were made.
func (t *Tracker[T]) Added() []T { return t.valuesIn(stateAdded) }

// Updated returns pending updates in the order they were made.
func (t *Tracker[T]) Updated() []T { return t.valuesIn(stateUpdated) }

// Deleted returns pending deletes in the order they were made.
func (t *Tracker[T]) Deleted() []T { return t.valuesIn(stateDeleted) }

func (t *Tracker[T]) IsAdded(item T) bool   { return t.stateOf(item) == stateAdded }
func (t *Tracker[T]) IsUpdated(item T) bool { return t.stateOf(item) == stateUpdated }
func (t *Tracker[T]) IsDeleted(item T) bool { return t.stateOf(item) == stateDeleted }

// Pending returns the number of tracked changes.
func (t *Tracker[T]) Pending() int { return len(t.changes) }

// =============================================================================
// HELPERS
// =============================================================================

func (t *Tracker[T]) next() uint64 {
	t.seq++
	return t.seq
}

func (t *Tracker[T]) stateOf(item T) changeState {
	return t.changes[t.key(item)].state
}

func (t *Tracker[T]) indexOf(k string) int {
	for i, item := range t.items {
		if t.key(item) == k {
			return i
		}
	}
	return -1
}

func (t *Tracker[T]) removeFromList(k string) {
	if i := t.indexOf(k); i >= 0 {
		t.items = append(t.items[:i], t.items[i+1:]...)
	}
}

func (t *Tracker[T]) keysIn(state changeState) []string {
	var keys []string
	for k, c := range t.changes {
		if c.state == state {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return t.changes[keys[i]].seq < t.changes[keys[j]].seq
	})
	return keys
}

func (t *Tracker[T]) valuesIn(state changeState) []T {
	keys := t.keysIn(state)
	out := make([]T, len(keys))
	for i, k := range keys {
		out[i] = t.changes[k].value
	}
	return out
}
