package board

import (
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ChangeKind names the Store mutation that produced a Change.
type ChangeKind string

const (
	ChangeLoad  ChangeKind = "load"
	ChangePatch ChangeKind = "patch"
	ChangeGhost ChangeKind = "ghost"
)

// Change is published after every mutation of the Store.
type Change struct {
	Kind    ChangeKind
	ItemID  string
	Version uint64
}

// Snapshot is a read-only view of the Store. Items are sorted by ID, with the
// ghost (if any) last.
type Snapshot struct {
	Version   uint64
	Items     []Item
	Resources []Resource
}

// Ghost returns the ghost item in the snapshot, if any.
func (s Snapshot) Ghost() (Item, bool) {
	for _, it := range s.Items {
		if it.IsGhost {
			return it, true
		}
	}
	return Item{}, false
}

// Item returns the real (non-ghost) item with the given id.
func (s Snapshot) Item(id string) (Item, bool) {
	for _, it := range s.Items {
		if it.ID == id && !it.IsGhost {
			return it, true
		}
	}
	return Item{}, false
}

// Store is the single source of truth for the items and resources of the
// visible window. All mutations go through Load, PatchItem, UpsertGhost and
// ClearGhost. Changes are published in Version order.
type Store struct {
	logger *zap.SugaredLogger

	mu        sync.RWMutex
	items     map[string]Item
	resources []Resource
	ghost     *Item
	version   uint64

	// held counts in-flight writes per item; touched records the write mark
	// of the last local change of an item. Both keep Load from replacing
	// local state with directory data read before that state was saved.
	held    map[string]int
	touched map[string]uint64
	mark    uint64

	subMu sync.Mutex
	subs  []chan Change
}

// NewStore creates an empty Store.
func NewStore(logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		logger:  logger,
		items:   make(map[string]Item),
		held:    make(map[string]int),
		touched: make(map[string]uint64),
	}
}

// WriteMark returns the current write mark. A loader takes it before reading
// the directory and hands it to LoadSince.
func (s *Store) WriteMark() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mark
}

// Hold marks id as having a write in flight. Until the matching Release, loads
// keep the Store's version of the item.
func (s *Store) Hold(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held[id]++
}

// Release ends a Hold. Loads whose directory read started before the release
// still keep the Store's version of the item.
func (s *Store) Release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[id] <= 1 {
		delete(s.held, id)
	} else {
		s.held[id]--
	}
	s.touchLocked(id)
}

func (s *Store) touchLocked(id string) {
	s.mark++
	s.touched[id] = s.mark
}

// Load replaces the contents of the window. Items with a write in flight keep
// their Store version. The ghost belongs to the live drag session and is not
// touched.
func (s *Store) Load(items []Item, resources []Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(s.mark, items, resources)
}

// LoadSince is Load for directory data read after the write mark since was
// taken: items changed locally after that mark also keep their Store version.
func (s *Store) LoadSince(since uint64, items []Item, resources []Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked(since, items, resources)
}

func (s *Store) loadLocked(since uint64, items []Item, resources []Resource) {
	next := make(map[string]Item, len(items))
	kept := 0
	for _, it := range items {
		if cur, ok := s.items[it.ID]; ok && (s.held[it.ID] > 0 || s.touched[it.ID] > since) {
			next[it.ID] = cur
			kept++
			continue
		}
		it = it.clone()
		it.IsGhost = false
		next[it.ID] = it
	}

	s.items = next
	s.resources = slices.Clone(resources)
	for id, m := range s.touched {
		if m <= since {
			delete(s.touched, id)
		}
	}
	s.version++

	s.logger.Debugw("store loaded", "items", len(items), "kept", kept, "resources", len(resources), "version", s.version)
	s.publish(Change{Kind: ChangeLoad, Version: s.version})
}

// PatchItem atomically applies p to the item with the given id. The patch is
// rejected without any change when the id is unknown or the result would
// break an item invariant.
func (s *Store) PatchItem(id string, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[id]
	if !ok {
		return notFound(id)
	}

	next := cur
	if p.ResourceID != nil {
		next.ResourceID = *p.ResourceID
	}
	if p.Start != nil {
		next.Start = *p.Start
	}
	if p.End != nil {
		next.End = *p.End
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if err := checkItem(next); err != nil {
		return err
	}

	s.items[id] = next
	s.touchLocked(id)
	s.version++
	s.publish(Change{Kind: ChangePatch, ItemID: id, Version: s.version})
	return nil
}

func checkItem(it Item) error {
	if !it.Start.Before(it.End) {
		return validationf("item %q: start %s is not before end %s", it.ID, it.Start, it.End)
	}
	if it.SourceKind == SourceJob {
		if !it.Status.Valid() {
			return validationf("item %q: unknown status %q", it.ID, it.Status)
		}
		if it.Assigned() == (it.Status == StatusUnscheduled) {
			return validationf("item %q: resource %q does not agree with status %q", it.ID, it.ResourceID, it.Status)
		}
	}
	return nil
}

// UpsertGhost installs ghost as the single ghost item, replacing any previous one.
func (s *Store) UpsertGhost(ghost Item) {
	ghost = ghost.clone()
	ghost.IsGhost = true

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ghost = &ghost
	s.version++
	s.publish(Change{Kind: ChangeGhost, ItemID: ghost.ID, Version: s.version})
}

// ClearGhost removes the ghost item. It is a no-op when there is none.
func (s *Store) ClearGhost() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ghost == nil {
		return
	}
	id := s.ghost.ID
	s.ghost = nil
	s.version++
	s.publish(Change{Kind: ChangeGhost, ItemID: id, Version: s.version})
}

// Item returns a copy of the real item with the given id.
func (s *Store) Item(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return Item{}, false
	}
	return it.clone(), true
}

// Resource returns the resource with the given id.
func (s *Store) Resource(id string) (Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.resources {
		if r.ID == id {
			return r, true
		}
	}
	return Resource{}, false
}

// Snapshot returns a copy of the current contents. Callers may keep it; later
// mutations of the Store do not show through.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Item, 0, len(s.items)+1)
	for _, it := range s.items {
		items = append(items, it.clone())
	}
	slices.SortFunc(items, func(a, b Item) int { return strings.Compare(a.ID, b.ID) })
	if s.ghost != nil {
		items = append(items, s.ghost.clone())
	}
	return Snapshot{
		Version:   s.version,
		Items:     items,
		Resources: slices.Clone(s.resources),
	}
}

// Subscribe registers for change notifications. Delivery never blocks the
// writer: a subscriber that falls behind misses changes and should compare
// versions against a fresh Snapshot. The returned func unsubscribes and closes
// the channel.
func (s *Store) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 64)

	s.subMu.Lock()
	s.subs = append(s.subs, ch)
	s.subMu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub == ch {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					close(ch)
					break
				}
			}
		})
	}
	return ch, unsub
}

// publish is called with mu held so changes go out in Version order.
func (s *Store) publish(c Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
			s.logger.Warnw("store subscriber full, dropping change", "kind", c.Kind, "version", c.Version)
		}
	}
}
