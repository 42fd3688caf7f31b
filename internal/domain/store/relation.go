package store

type RelationOptions struct {
	Schema Schema
	// Exclusive relations hold at most one target per subject.
	Exclusive bool
	// AutoRemoveSubject destroys every subject when its target is removed.
	AutoRemoveSubject bool
}

// Relation is a directed subject -> target table. Rows are addressed per
// target, mirroring a component keyed by subject for each target.
type Relation struct {
	s         *Store
	name      string
	opts      RelationOptions
	byTarget  map[Entity]map[Entity]row
	bySubject map[Entity]map[Entity]struct{}
}

func (r *Relation) Name() string             { return r.name }
func (r *Relation) Options() RelationOptions { return r.opts }
func (r *Relation) Schema() Schema           { return append(Schema(nil), r.opts.Schema...) }

// Add attaches subject to target. Re-adding an existing pair merges data.
// For exclusive relations every other target of subject is dropped first.
func (r *Relation) Add(subject, target Entity, data Value) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var prev row
	if subs, ok := r.byTarget[target]; ok {
		prev = subs[subject]
	}
	encoded, err := r.opts.Schema.encode(r.name, prev, data, r.s.strings)
	if err != nil {
		return err
	}
	if r.opts.Exclusive {
		for t := range r.bySubject[subject] {
			if t != target {
				r.removeLocked(subject, t)
			}
		}
	}
	subs, ok := r.byTarget[target]
	if !ok {
		subs = make(map[Entity]row)
		r.byTarget[target] = subs
	}
	subs[subject] = encoded
	targets, ok := r.bySubject[subject]
	if !ok {
		targets = make(map[Entity]struct{})
		r.bySubject[subject] = targets
	}
	targets[target] = struct{}{}
	r.s.observe(subject)
	r.s.observe(target)
	return nil
}

func (r *Relation) Remove(subject, target Entity) bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.removeLocked(subject, target)
}

func (r *Relation) removeLocked(subject, target Entity) bool {
	subs, ok := r.byTarget[target]
	if !ok {
		return false
	}
	if _, ok := subs[subject]; !ok {
		return false
	}
	delete(subs, subject)
	if len(subs) == 0 {
		delete(r.byTarget, target)
	}
	if targets, ok := r.bySubject[subject]; ok {
		delete(targets, target)
		if len(targets) == 0 {
			delete(r.bySubject, subject)
		}
	}
	return true
}

func (r *Relation) Has(subject, target Entity) bool {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.byTarget[target][subject]
	return ok
}

// Targets lists every target subject holds the relation toward.
func (r *Relation) Targets(subject Entity) []Entity {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return sortedKeys(r.bySubject[subject])
}

func (r *Relation) Subjects(target Entity) []Entity {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return sortedKeys(r.byTarget[target])
}

func (r *Relation) Data(subject, target Entity) (Value, bool) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	row, ok := r.byTarget[target][subject]
	if !ok {
		return nil, false
	}
	return r.opts.Schema.decode(row, r.s.strings), true
}

// For returns the per-target view of the relation.
func (r *Relation) For(target Entity) RelationView {
	return RelationView{rel: r, target: target}
}

// RelationView behaves like a component keyed by subject for one target.
type RelationView struct {
	rel    *Relation
	target Entity
}

func (v RelationView) Target() Entity { return v.target }

func (v RelationView) Has(subject Entity) bool {
	return v.rel.Has(subject, v.target)
}

func (v RelationView) Get(subject Entity) (Value, bool) {
	return v.rel.Data(subject, v.target)
}

func (v RelationView) Set(subject Entity, data Value) error {
	return v.rel.Add(subject, v.target, data)
}

func (v RelationView) Remove(subject Entity) bool {
	return v.rel.Remove(subject, v.target)
}

func (v RelationView) Subjects() []Entity {
	return v.rel.Subjects(v.target)
}
