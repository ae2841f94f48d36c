package object

import (
	"strconv"
	"strings"
)

// Mapping is an insertion-ordered map. Keys are usually keywords or
// strings; symbol keys are normalized to keywords so `{ a 1 }` and
// `{ :a 1 }` build the same mapping.
type Mapping struct {
	keys   []Object
	values []Object
	index  map[string]int
}

// NewMapping returns an empty mapping.
func NewMapping() *Mapping {
	return &Mapping{index: make(map[string]int)}
}

func (m *Mapping) Type() ObjectType { return MAPPING_OBJ }
func (m *Mapping) Inspect() string {
	parts := make([]string, 0, len(m.keys))
	for i, k := range m.keys {
		parts = append(parts, k.Inspect()+" "+m.values[i].Inspect())
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// NormalizeKey maps symbol keys to keywords.
func NormalizeKey(k Object) Object {
	if s, ok := k.(*Symbol); ok {
		return InternKeyword(s.Name)
	}
	return k
}

// keyHash returns the identity of a key inside the index.
func keyHash(k Object) (string, bool) {
	switch v := k.(type) {
	case *Keyword:
		return ":" + v.Name, true
	case *String:
		return "s" + v.Value, true
	case *Integer:
		return "i" + strconv.FormatInt(v.Value, 10), true
	case *Float:
		return "f" + strconv.FormatFloat(v.Value, 'g', -1, 64), true
	case *Boolean:
		return "b" + strconv.FormatBool(v.Value), true
	case *Nil:
		return "n", true
	}
	return "", false
}

// ValidKey reports whether k can be used as a mapping key.
func ValidKey(k Object) bool {
	_, ok := keyHash(NormalizeKey(k))
	return ok
}

// Set inserts or replaces the value for k. New keys go to the end;
// existing keys keep their position. Returns false for unusable keys.
func (m *Mapping) Set(k, v Object) bool {
	k = NormalizeKey(k)
	h, ok := keyHash(k)
	if !ok {
		return false
	}
	if i, exists := m.index[h]; exists {
		m.values[i] = v
		return true
	}
	m.index[h] = len(m.keys)
	m.keys = append(m.keys, k)
	m.values = append(m.values, v)
	return true
}

// Get returns the value for k.
func (m *Mapping) Get(k Object) (Object, bool) {
	h, ok := keyHash(NormalizeKey(k))
	if !ok {
		return nil, false
	}
	i, exists := m.index[h]
	if !exists {
		return nil, false
	}
	return m.values[i], true
}

// Delete removes k, preserving the order of the remaining keys.
func (m *Mapping) Delete(k Object) {
	h, ok := keyHash(NormalizeKey(k))
	if !ok {
		return
	}
	i, exists := m.index[h]
	if !exists {
		return
	}
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.values = append(m.values[:i], m.values[i+1:]...)
	delete(m.index, h)
	for j := i; j < len(m.keys); j++ {
		kh, _ := keyHash(m.keys[j])
		m.index[kh] = j
	}
}

// Len returns the number of entries.
func (m *Mapping) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []Object {
	return append([]Object(nil), m.keys...)
}

// Values returns the values in insertion order.
func (m *Mapping) Values() []Object {
	return append([]Object(nil), m.values...)
}

// Entries returns each entry as a two element list, in insertion order.
func (m *Mapping) Entries() []Object {
	out := make([]Object, len(m.keys))
	for i := range m.keys {
		out[i] = &List{Elements: []Object{m.keys[i], m.values[i]}}
	}
	return out
}

// Copy returns a shallow copy.
func (m *Mapping) Copy() *Mapping {
	c := &Mapping{
		keys:   append([]Object(nil), m.keys...),
		values: append([]Object(nil), m.values...),
		index:  make(map[string]int, len(m.index)),
	}
	for k, v := range m.index {
		c.index[k] = v
	}
	return c
}

// KeyString returns the name of a keyword or string key.
func KeyString(k Object) string {
	switch v := k.(type) {
	case *Keyword:
		return v.Name
	case *Symbol:
		return v.Name
	case *String:
		return v.Value
	}
	return Display(k)
}

func (m *Mapping) equal(o *Mapping) bool {
	if m.Len() != o.Len() {
		return false
	}
	for i, k := range m.keys {
		v, ok := o.Get(k)
		if !ok || !Equal(m.values[i], v) {
			return false
		}
	}
	return true
}
