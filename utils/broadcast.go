package utils

import "sync"

// Broadcast is an observer registry keyed by collection name. Mutating
// handlers publish after every successful write; watch handlers subscribe and
// re-query the full snapshot on each tick, so subscribers always see the
// latest state rather than incremental diffs.

var (
	watchers   = map[string]map[chan struct{}]struct{}{}
	watchersMu sync.Mutex
)

// SubscribeChanges registers a watcher for a collection. The returned cancel
// func must run on teardown to avoid leaked listeners.
func SubscribeChanges(collection string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	watchersMu.Lock()
	set, ok := watchers[collection]
	if !ok {
		set = map[chan struct{}]struct{}{}
		watchers[collection] = set
	}
	set[ch] = struct{}{}
	watchersMu.Unlock()

	cancel := func() {
		watchersMu.Lock()
		if set, ok := watchers[collection]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(watchers, collection)
			}
		}
		watchersMu.Unlock()
	}
	return ch, cancel
}

// PublishChange notifies all watchers of a collection. Slow subscribers that
// already have a pending tick are skipped; they will re-query the snapshot
// anyway when they drain the channel.
func PublishChange(collection string) {
	watchersMu.Lock()
	defer watchersMu.Unlock()
	for ch := range watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
