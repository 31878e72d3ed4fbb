package state

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/abdul-hamid-achik/hookline/packages/core/errs"
)

// Modifier is a pure reducer from the previous snapshot to the next one.
type Modifier func(prev Snapshot) (Snapshot, error)

// ChangeFunc observes a committed state change.
type ChangeFunc func(prev, next Snapshot) error

// Store holds one extension's private state. Modifiers run one at a time,
// each against the latest committed snapshot; reads never block.
type Store struct {
	owner    string
	mu       sync.Mutex
	current  atomic.Pointer[Snapshot]
	onChange ChangeFunc
}

// NewStore seeds a store for owner from initial. onChange may be nil. The
// registry runs CheckMap on initial before calling it.
func NewStore(owner string, initial map[string]any, onChange ChangeFunc) *Store {
	s := &Store{owner: owner, onChange: onChange}
	snap := NewSnapshot(initial)
	s.current.Store(&snap)
	return s
}

// Owner returns the name of the extension owning the store.
func (s *Store) Owner() string {
	return s.owner
}

// Snapshot returns the last committed snapshot.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// SetState applies modify to the current snapshot and commits the result.
// A failing or panicking modifier, or one returning a value Check rejects,
// leaves the committed snapshot untouched.
// The change callback runs synchronously after the commit; its failure is
// reported but does not roll the commit back.
func (s *Store) SetState(modify Modifier) error {
	if modify == nil {
		return errs.InvalidModifier(s.owner)
	}

	prev, next, err := s.commit(modify)
	if err != nil {
		return errs.StateMutation(s.owner, err)
	}

	if s.onChange == nil {
		return nil
	}
	if err := s.notify(prev, next); err != nil {
		return errs.StateMutation(s.owner, err)
	}
	return nil
}

// commit runs modify under the write lock. The change callback runs outside
// it so a handler may update the store again.
func (s *Store) commit(modify Modifier) (prev, next Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev = s.Snapshot()
	next, err = s.apply(modify, prev)
	if err != nil {
		return prev, Snapshot{}, err
	}
	s.current.Store(&next)
	return prev, next, nil
}

func (s *Store) apply(modify Modifier, prev Snapshot) (next Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("modifier panicked: %v", r)
		}
	}()
	next, err = modify(prev)
	if err != nil {
		return Snapshot{}, err
	}
	if err := CheckMap(next.m); err != nil {
		return Snapshot{}, err
	}
	// Detach from anything the reducer may still hold a reference to.
	return NewSnapshot(next.m), nil
}

func (s *Store) notify(prev, next Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("state change handler panicked: %v", r)
		}
	}()
	return s.onChange(prev, next)
}

// Shared is the client-wide key/value map visible to every extension.
type Shared struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewShared creates an empty shared map.
func NewShared() *Shared {
	return &Shared{m: make(map[string]any)}
}

// Get returns the value stored under key.
func (s *Shared) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Set stores value under key. The last writer wins.
func (s *Shared) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
}

// Delete removes key.
func (s *Shared) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Clear removes every key.
func (s *Shared) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = make(map[string]any)
}

// Len returns the number of keys.
func (s *Shared) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Snapshot returns a read-only copy of the map.
func (s *Shared) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return NewSnapshot(s.m)
}
