package store

import (
	"context"
	"strings"
	"sync"

	"eslive/internal/observability"
)

// MemoryStore is an in-process Gateway. It backs tests and serves as
// the fallback backend when Redis is unconfigured, the same way the
// rest of the application keeps running without a cache.
type MemoryStore struct {
	mu     sync.RWMutex
	root   *memNode
	subs   map[string]map[*memSubscription]struct{} // path -> live subscriptions
	logger *observability.StoreLogger
}

type memNode struct {
	children map[string]*memNode
	value    any
	leaf     bool
}

type memSubscription struct {
	store    *MemoryStore
	path     string
	onChange ChangeFunc
	once     sync.Once
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		root:   &memNode{children: make(map[string]*memNode)},
		subs:   make(map[string]map[*memSubscription]struct{}),
		logger: observability.NewStoreLogger("memory"),
	}
}

// Write overwrites the document at path with value.
func (s *MemoryStore) Write(ctx context.Context, path string, value any) error {
	if value == nil {
		// Null sentinel: a nil write is a removal.
		return s.Remove(ctx, path)
	}

	s.mu.Lock()
	s.setNode(path, value)
	s.mu.Unlock()

	s.logger.LogWrite(ctx, path, false)
	s.notify(path)
	return nil
}

// Remove deletes the document at path and all of its children.
func (s *MemoryStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	s.deleteNode(path)
	s.mu.Unlock()

	s.logger.LogWrite(ctx, path, true)
	s.notify(path)
	return nil
}

// Read returns the current value at path.
func (s *MemoryStore) Read(ctx context.Context, path string) (any, bool, error) {
	s.mu.RLock()
	value, ok := s.valueAt(path)
	s.mu.RUnlock()

	s.logger.LogRead(ctx, path, ok)
	return value, ok, nil
}

// Subscribe registers a continuous listener rooted at path. The
// callback fires synchronously once with the current value before
// Subscribe returns.
func (s *MemoryStore) Subscribe(ctx context.Context, path string, onChange ChangeFunc) (Subscription, error) {
	sub := &memSubscription{store: s, path: path, onChange: onChange}

	s.mu.Lock()
	set, ok := s.subs[path]
	if !ok {
		set = make(map[*memSubscription]struct{})
		s.subs[path] = set
	}
	set[sub] = struct{}{}
	value, _ := s.valueAt(path)
	s.mu.Unlock()

	s.logger.LogSubscribe(ctx, path, true)
	onChange(value)
	return sub, nil
}

// Unsubscribe releases the listener. Safe to call more than once.
func (sub *memSubscription) Unsubscribe() {
	sub.once.Do(func() {
		s := sub.store
		s.mu.Lock()
		if set, ok := s.subs[sub.path]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(s.subs, sub.path)
			}
		}
		s.mu.Unlock()
		s.logger.LogSubscribe(context.Background(), sub.path, false)
	})
}

// notify wakes every subscriber whose path is an ancestor or descendant
// of the changed path, delivering the latest value at the subscriber's
// own path. Intermediate states are not replayed.
func (s *MemoryStore) notify(changed string) {
	type delivery struct {
		fn    ChangeFunc
		value any
	}

	s.mu.RLock()
	var deliveries []delivery
	for path, set := range s.subs {
		if !pathsRelated(path, changed) {
			continue
		}
		value, _ := s.valueAt(path)
		for sub := range set {
			deliveries = append(deliveries, delivery{fn: sub.onChange, value: value})
		}
	}
	s.mu.RUnlock()

	for _, d := range deliveries {
		d.fn(d.value)
	}
}

func pathsRelated(a, b string) bool {
	return a == b || strings.HasPrefix(b, a+"/") || strings.HasPrefix(a, b+"/")
}

// setNode replaces the subtree at path with value. Map values become
// interior nodes so children stay individually addressable; an empty
// map stays present as an empty collection.
func (s *MemoryStore) setNode(path string, value any) {
	segments := strings.Split(path, "/")
	node := s.root
	for _, seg := range segments {
		child, ok := node.children[seg]
		if !ok {
			child = &memNode{children: make(map[string]*memNode)}
			node.children[seg] = child
		}
		node = child
	}
	fillNode(node, value)
}

func fillNode(node *memNode, value any) {
	node.children = make(map[string]*memNode)
	if m, ok := value.(map[string]any); ok {
		node.leaf = false
		node.value = nil
		for k, v := range m {
			child := &memNode{children: make(map[string]*memNode)}
			fillNode(child, v)
			node.children[k] = child
		}
		return
	}
	node.leaf = true
	node.value = value
}

func (s *MemoryStore) deleteNode(path string) {
	segments := strings.Split(path, "/")
	node := s.root
	for _, seg := range segments[:len(segments)-1] {
		child, ok := node.children[seg]
		if !ok {
			return
		}
		node = child
	}
	delete(node.children, segments[len(segments)-1])
}

func (s *MemoryStore) valueAt(path string) (any, bool) {
	segments := strings.Split(path, "/")
	node := s.root
	for _, seg := range segments {
		child, ok := node.children[seg]
		if !ok {
			return nil, false
		}
		node = child
	}
	return assembleValue(node), true
}

func assembleValue(node *memNode) any {
	if node.leaf {
		return node.value
	}
	m := make(map[string]any, len(node.children))
	for k, child := range node.children {
		m[k] = assembleValue(child)
	}
	return m
}
