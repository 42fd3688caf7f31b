package store

// Dump is a decoded, read-only copy of every table. String fields are already
// resolved, so the interning table itself is not part of it.
type Dump struct {
	Components map[string]map[Entity]Value `json:"components"`
	Relations  map[string][]RelationRow    `json:"relations"`
}

type RelationRow struct {
	Subject Entity `json:"subject"`
	Target  Entity `json:"target"`
	Data    Value  `json:"data,omitempty"`
}

func (s *Store) Dump() Dump {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Dump{
		Components: make(map[string]map[Entity]Value, len(s.components)),
		Relations:  make(map[string][]RelationRow, len(s.relations)),
	}
	for _, name := range s.compOrder {
		c := s.components[name]
		rows := make(map[Entity]Value, len(c.rows))
		for e, r := range c.rows {
			rows[e] = c.schema.decode(r, s.strings)
		}
		out.Components[name] = rows
	}
	for _, name := range s.relOrder {
		r := s.relations[name]
		var rows []RelationRow
		for _, target := range sortedKeys(r.byTarget) {
			subs := r.byTarget[target]
			for _, sub := range sortedKeys(subs) {
				row := RelationRow{Subject: sub, Target: target}
				if len(r.opts.Schema) > 0 {
					row.Data = r.opts.Schema.decode(subs[sub], s.strings)
				}
				rows = append(rows, row)
			}
		}
		out.Relations[name] = rows
	}
	return out
}
