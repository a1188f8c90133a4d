package extract

import (
	"encoding/json"
	"math"
	"strconv"
)

// Field binds an output field name to the path it is read from
type Field struct {
	Name string
	Path Path
}

// Spec is an ordered list of fields describing one record kind
type Spec []Field

// Names returns field names in spec order
func (s Spec) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Value is an optional field value. The zero Value is unset.
type Value struct {
	raw any
	set bool
}

// Set wraps v as a present value. A JSON null is still a present value.
func Set(v any) Value {
	return Value{raw: v, set: true}
}

// IsSet reports whether the field resolved
func (v Value) IsSet() bool {
	return v.set
}

// Raw returns the underlying value, nil when unset
func (v Value) Raw() any {
	return v.raw
}

// String returns the value as a string. Numbers are formatted; other types fail.
func (v Value) String() (string, bool) {
	if !v.set {
		return "", false
	}
	switch x := v.raw.(type) {
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	}
	return "", false
}

// Int64 returns integral numeric values and numeric strings
func (v Value) Int64() (int64, bool) {
	if !v.set {
		return 0, false
	}
	switch x := v.raw.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, true
		}
		if f, err := x.Float64(); err == nil {
			return floatInt64(f)
		}
	case float64:
		return floatInt64(x)
	case int64:
		return x, true
	case int:
		return int64(x), true
	case string:
		if n, err := strconv.ParseInt(x, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// floatInt64 converts integral floats within the int64 range
func floatInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Float64 returns numeric values
func (v Value) Float64() (float64, bool) {
	if !v.set {
		return 0, false
	}
	switch x := v.raw.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f, true
		}
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	}
	return 0, false
}

// Bool returns booleans. Numeric 0 and 1 read as false and true.
func (v Value) Bool() (bool, bool) {
	if !v.set {
		return false, false
	}
	switch x := v.raw.(type) {
	case bool:
		return x, true
	case json.Number, float64, int64, int:
		n, ok := v.Int64()
		if ok && (n == 0 || n == 1) {
			return n == 1, true
		}
	}
	return false, false
}

// Slice returns sequence values
func (v Value) Slice() ([]any, bool) {
	if !v.set {
		return nil, false
	}
	s, ok := v.raw.([]any)
	return s, ok
}

// Record is an ordered set of named values, one per spec field
type Record struct {
	names  []string
	values map[string]Value
}

// Get returns the value for name; unknown names are unset
func (r Record) Get(name string) Value {
	return r.values[name]
}

// Names returns the field names in spec order
func (r Record) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of fields
func (r Record) Len() int {
	return len(r.names)
}

// Unset returns the names of fields that did not resolve
func (r Record) Unset() []string {
	var out []string
	for _, name := range r.names {
		if !r.values[name].set {
			out = append(out, name)
		}
	}
	return out
}

// Build resolves every spec field against tree. Resolution failures never
// abort the build: the field is left unset.
func Build(spec Spec, tree any) Record {
	rec := Record{
		names:  make([]string, 0, len(spec)),
		values: make(map[string]Value, len(spec)),
	}
	for _, field := range spec {
		if _, dup := rec.values[field.Name]; !dup {
			rec.names = append(rec.names, field.Name)
		}
		v, err := Extract(tree, field.Path)
		if err != nil {
			rec.values[field.Name] = Value{}
			continue
		}
		rec.values[field.Name] = Set(v)
	}
	return rec
}

// Reader reads typed values out of a record. Fields that are unset or hold
// an unexpected type read as zero values and are reported by Unset.
type Reader struct {
	rec Record
	bad map[string]bool
}

// NewReader creates a reader over rec
func NewReader(rec Record) *Reader {
	return &Reader{rec: rec, bad: make(map[string]bool)}
}

func (r *Reader) check(name string, ok bool) {
	if !ok {
		r.bad[name] = true
	}
}

// String reads a string field
func (r *Reader) String(name string) string {
	v, ok := r.rec.Get(name).String()
	r.check(name, ok)
	return v
}

// Int64 reads an integer field
func (r *Reader) Int64(name string) int64 {
	v, ok := r.rec.Get(name).Int64()
	r.check(name, ok)
	return v
}

// Bool reads a boolean field
func (r *Reader) Bool(name string) bool {
	v, ok := r.rec.Get(name).Bool()
	r.check(name, ok)
	return v
}

// Slice reads a sequence field
func (r *Reader) Slice(name string) []any {
	v, ok := r.rec.Get(name).Slice()
	r.check(name, ok)
	return v
}

// Unset returns, in record order, the fields that could not be read
func (r *Reader) Unset() []string {
	var out []string
	for _, name := range r.rec.names {
		if r.bad[name] || !r.rec.values[name].set {
			out = append(out, name)
		}
	}
	return out
}
