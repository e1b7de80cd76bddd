// Package doc holds the linked-data document model shared by the access
// control and identity blinding layers. Documents are schema-less maps with
// typed accessors; every transformation copies, inputs are never mutated.
package doc

// Doc is a single linked-data node. Values are what encoding/json produces:
// strings, float64, bool, []any, and map[string]any for embedded nodes.
type Doc map[string]any

// ID returns the public "@id" of the document, or "" when absent.
func (d Doc) ID() string {
	return d.GetString("@id")
}

// Type returns the declared "@type". A list-valued type yields its first
// entry.
func (d Doc) Type() string {
	switch v := d["@type"].(type) {
	case string:
		return v
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// Key returns the internal storage key ("_id"), or "" when the document was
// not loaded from storage.
func (d Doc) Key() string {
	return d.GetString("_id")
}

// GetString returns the field as a string. A node-valued field yields its
// "@id".
func (d Doc) GetString(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case map[string]any:
		if s, ok := v["@id"].(string); ok {
			return s
		}
	case Doc:
		return v.ID()
	}
	return ""
}

// Node returns the field as an embedded document, resolving both Doc and
// raw map values.
func (d Doc) Node(key string) (Doc, bool) {
	return AsDoc(d[key])
}

// List returns the field's values as a slice. A singular value yields a
// one-element slice, a missing field yields nil.
func (d Doc) List(key string) []any {
	return Values(d[key])
}

// With returns a shallow copy of d with the given fields set.
func (d Doc) With(updates map[string]any) Doc {
	out := make(Doc, len(d)+len(updates))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

// Without returns a shallow copy of d with the given fields removed.
func (d Doc) Without(keys ...string) Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Clone returns a shallow copy of d.
func (d Doc) Clone() Doc {
	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// AsDoc converts a raw value into a Doc when it is map-shaped.
func AsDoc(v any) (Doc, bool) {
	switch m := v.(type) {
	case Doc:
		return m, true
	case map[string]any:
		return Doc(m), true
	}
	return nil, false
}

// NodeID extracts the id a value refers to: strings are returned as-is,
// map-shaped values yield their "@id".
func NodeID(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if d, ok := AsDoc(v); ok {
		return d.ID()
	}
	return ""
}

// Values normalizes a field value to a slice: nil stays nil, slices are
// returned as-is, anything else becomes a one-element slice.
func Values(v any) []any {
	switch s := v.(type) {
	case nil:
		return nil
	case []any:
		return s
	default:
		return []any{v}
	}
}

// Rewrap restores the singular-vs-list shape of orig for a transformed
// value set: a list stays a list (even when empty), a singular field
// becomes the sole element or nil.
func Rewrap(orig any, items []any) any {
	if _, wasList := orig.([]any); wasList {
		return items
	}
	switch len(items) {
	case 0:
		return nil
	default:
		return items[0]
	}
}

// WithRewrapped sets field to the rewrapped items, dropping the field
// entirely when a singular value was filtered away.
func (d Doc) WithRewrapped(field string, orig any, items []any) Doc {
	v := Rewrap(orig, items)
	if v == nil {
		return d.Without(field)
	}
	return d.With(map[string]any{field: v})
}
