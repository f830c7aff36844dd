package service

import "sync"

// ChangeNotifier fans out inventory change notifications to subscribers.
// Publish runs subscribers synchronously relative to the persistence
// commit that triggered it: by the time a mutation returns, every current
// subscriber has observed the change. This is a push model, not polling.
type ChangeNotifier struct {
	mu     sync.RWMutex
	subs   map[int]func(uid string)
	nextID int
}

// NewChangeNotifier creates an empty notifier.
func NewChangeNotifier() *ChangeNotifier {
	return &ChangeNotifier{subs: make(map[int]func(uid string))}
}

// Subscribe registers fn to be called with the uid of every changed
// inventory. The returned func unsubscribes.
func (n *ChangeNotifier) Subscribe(fn func(uid string)) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}
}

// Publish notifies all current subscribers that uid's inventory changed.
func (n *ChangeNotifier) Publish(uid string) {
	n.mu.RLock()
	fns := make([]func(string), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(uid)
	}
}
