package store

// StringTable is a bidirectional string <-> handle map. Handles are dense and
// start at zero; a string is interned at most once.
type StringTable struct {
	handles map[string]uint32
	values  []string
}

func NewStringTable() *StringTable {
	return &StringTable{handles: make(map[string]uint32)}
}

func (t *StringTable) Intern(s string) uint32 {
	if h, ok := t.handles[s]; ok {
		return h
	}
	h := uint32(len(t.values))
	t.values = append(t.values, s)
	t.handles[s] = h
	return h
}

func (t *StringTable) Lookup(h uint32) (string, bool) {
	if int(h) >= len(t.values) {
		return "", false
	}
	return t.values[h], true
}

func (t *StringTable) Len() int {
	return len(t.values)
}
