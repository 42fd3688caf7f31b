// Package store holds entities, schema-typed components, schema-typed
// relations and the string table backing every string field.
//
// All tables share one RWMutex owned by the Store, so a handle obtained from
// Component or Relation may be used from any goroutine. Mutation is expected
// to happen on a single core goroutine; the lock only makes concurrent
// read-only queries safe.
package store

import (
	"sort"
	"sync"
)

// Entity is an opaque identifier. It exists while any table references it.
type Entity uint32

type Store struct {
	mu         sync.RWMutex
	next       Entity
	strings    *StringTable
	components map[string]*Component
	relations  map[string]*Relation
	compOrder  []string
	relOrder   []string
}

func New() *Store {
	return &Store{
		next:       1,
		strings:    NewStringTable(),
		components: make(map[string]*Component),
		relations:  make(map[string]*Relation),
	}
}

// NewEntity returns an id that no table has referenced yet.
func (s *Store) NewEntity() Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.next
	s.next++
	return e
}

func (s *Store) observe(e Entity) {
	if e >= s.next {
		s.next = e + 1
	}
}

func (s *Store) RegisterComponent(name string, schema Schema) (*Component, error) {
	if err := schema.validateDecl(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.components[name]; ok {
		return nil, ErrDuplicateName
	}
	c := &Component{s: s, name: name, schema: append(Schema(nil), schema...), rows: make(map[Entity]row)}
	s.components[name] = c
	s.compOrder = append(s.compOrder, name)
	return c, nil
}

func (s *Store) RegisterRelation(name string, opts RelationOptions) (*Relation, error) {
	if err := opts.Schema.validateDecl(name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.relations[name]; ok {
		return nil, ErrDuplicateName
	}
	opts.Schema = append(Schema(nil), opts.Schema...)
	r := &Relation{
		s:         s,
		name:      name,
		opts:      opts,
		byTarget:  make(map[Entity]map[Entity]row),
		bySubject: make(map[Entity]map[Entity]struct{}),
	}
	s.relations[name] = r
	s.relOrder = append(s.relOrder, name)
	return r, nil
}

func (s *Store) Component(name string) (*Component, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.components[name]
	if !ok {
		return nil, unknownComponent(name)
	}
	return c, nil
}

func (s *Store) Relation(name string) (*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.relations[name]
	if !ok {
		return nil, unknownRelation(name)
	}
	return r, nil
}

// MustComponent is for startup wiring where a missing table is a programming error.
func (s *Store) MustComponent(name string) *Component {
	c, err := s.Component(name)
	if err != nil {
		panic(err)
	}
	return c
}

func (s *Store) MustRelation(name string) *Relation {
	r, err := s.Relation(name)
	if err != nil {
		panic(err)
	}
	return r
}

func (s *Store) HasComponentNamed(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.components[name]
	return ok
}

func (s *Store) HasRelationNamed(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.relations[name]
	return ok
}

// ComponentNames lists registered components in registration order.
func (s *Store) ComponentNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.compOrder...)
}

func (s *Store) RelationNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.relOrder...)
}

func (s *Store) Exists(e Entity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.existsLocked(e)
}

func (s *Store) existsLocked(e Entity) bool {
	for _, c := range s.components {
		if _, ok := c.rows[e]; ok {
			return true
		}
	}
	for _, r := range s.relations {
		if len(r.bySubject[e]) > 0 || len(r.byTarget[e]) > 0 {
			return true
		}
	}
	return false
}

// RemoveEntity deletes e from every table and then cascades through
// relations declared with AutoRemoveSubject. It returns every removed entity
// in ascending order.
func (s *Store) RemoveEntity(e Entity) []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()

	visited := map[Entity]bool{e: true}
	queue := []Entity{e}
	var removed []Entity
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, name := range s.relOrder {
			r := s.relations[name]
			if !r.opts.AutoRemoveSubject {
				continue
			}
			for _, sub := range sortedKeys(r.byTarget[cur]) {
				if !visited[sub] {
					visited[sub] = true
					queue = append(queue, sub)
				}
			}
		}
		if s.detachLocked(cur) {
			removed = append(removed, cur)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return removed
}

func (s *Store) detachLocked(e Entity) bool {
	found := false
	for _, c := range s.components {
		if _, ok := c.rows[e]; ok {
			delete(c.rows, e)
			found = true
		}
	}
	for _, r := range s.relations {
		for t := range r.bySubject[e] {
			r.removeLocked(e, t)
			found = true
		}
		for sub := range r.byTarget[e] {
			r.removeLocked(sub, e)
			found = true
		}
	}
	return found
}

// QueryByComponents returns the entities carrying every named component.
func (s *Store) QueryByComponents(names ...string) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(names) == 0 {
		return nil, nil
	}
	tables := make([]*Component, 0, len(names))
	for _, name := range names {
		c, ok := s.components[name]
		if !ok {
			return nil, unknownComponent(name)
		}
		tables = append(tables, c)
	}
	sort.Slice(tables, func(i, j int) bool { return len(tables[i].rows) < len(tables[j].rows) })

	var out []Entity
	for e := range tables[0].rows {
		match := true
		for _, c := range tables[1:] {
			if _, ok := c.rows[e]; !ok {
				match = false
				break
			}
		}
		if match {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// QueryByRelation returns the subjects holding the relation toward target.
func (s *Store) QueryByRelation(name string, target Entity) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.relations[name]
	if !ok {
		return nil, unknownRelation(name)
	}
	return sortedKeys(r.byTarget[target]), nil
}

func sortedKeys[V any](m map[Entity]V) []Entity {
	if len(m) == 0 {
		return nil
	}
	out := make([]Entity, 0, len(m))
	for e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
