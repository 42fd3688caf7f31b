package store

type Component struct {
	s      *Store
	name   string
	schema Schema
	rows   map[Entity]row
}

func (c *Component) Name() string   { return c.name }
func (c *Component) Schema() Schema { return append(Schema(nil), c.schema...) }
func (c *Component) IsTag() bool    { return len(c.schema) == 0 }

// Set validates partial and merges it into the entity's current value. The
// first write must supply every non-optional field.
func (c *Component) Set(e Entity, partial Value) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	r, err := c.schema.encode(c.name, c.rows[e], partial, c.s.strings)
	if err != nil {
		return err
	}
	c.rows[e] = r
	c.s.observe(e)
	return nil
}

func (c *Component) Get(e Entity) (Value, bool) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	r, ok := c.rows[e]
	if !ok {
		return nil, false
	}
	return c.schema.decode(r, c.s.strings), true
}

func (c *Component) Has(e Entity) bool {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	_, ok := c.rows[e]
	return ok
}

func (c *Component) Remove(e Entity) bool {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.rows[e]; !ok {
		return false
	}
	delete(c.rows, e)
	return true
}

func (c *Component) Entities() []Entity {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	return sortedKeys(c.rows)
}
