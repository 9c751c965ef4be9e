package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// DefaultDiscriminator is the parameter naming the service or resource type.
const DefaultDiscriminator = "service_name"

// RedactedValue replaces sensitive parameter values in key labels.
const RedactedValue = "[REDACTED]"

// DefaultSensitiveParams lists parameters that are masked in key labels.
var DefaultSensitiveParams = []string{
	"aws_secret_access_key",
	"aws_session_token",
}

// Params is a set of named handle construction parameters.
type Params map[string]any

// Digest is the SHA-256 digest of a canonical parameter set.
type Digest [sha256.Size]byte

// String returns the hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Key is the canonical identity of a handle construction parameter set.
//
// Keys are immutable and safe to copy. Two keys built from parameter sets
// that are equal after canonicalization are Equal and share a Digest. The
// zero Key is invalid and rejected by every Cache operation.
type Key struct {
	namespace     string
	discriminator string
	digest        Digest
	label         string
}

// Digest returns the digest identifying the key.
func (k Key) Digest() Digest { return k.digest }

// Namespace returns the schema namespace the key was built under.
func (k Key) Namespace() string { return k.namespace }

// Discriminator returns the value of the discriminator parameter, e.g. "s3".
func (k Key) Discriminator() string { return k.discriminator }

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool { return k.digest == Digest{} }

// Equal reports whether k and other identify the same parameter set.
func (k Key) Equal(other Key) bool {
	return !k.IsZero() && k.digest == other.digest
}

// String returns the redacted, human-readable form of the key.
// It never contains sensitive parameter values.
func (k Key) String() string { return k.label }

// KeySchema controls how parameter sets become Keys.
type KeySchema struct {
	// Namespace separates key spaces, e.g. "client" and "resource".
	// Keys from different namespaces never compare equal.
	Namespace string

	// Discriminator is the required parameter naming the handle type.
	// Default: DefaultDiscriminator
	Discriminator string

	// Sensitive lists parameters whose values are masked in labels.
	// They still take part in equality.
	Sensitive []string

	// Defaults maps parameters to their default values. A parameter set to
	// its default canonicalizes the same as an omitted one.
	Defaults Params
}

// DefaultKeySchema returns a schema with no namespace, the default
// discriminator and the default sensitive parameters.
func DefaultKeySchema() KeySchema {
	return KeySchema{
		Discriminator: DefaultDiscriminator,
		Sensitive:     slices.Clone(DefaultSensitiveParams),
	}
}

// NewKey builds a Key with DefaultKeySchema.
func NewKey(params Params) (Key, error) {
	return DefaultKeySchema().NewKey(params)
}

// NewKey canonicalizes params and derives a Key.
//
// Nil parameters are dropped, as are parameters equal to their schema
// default. Nested maps are ordered by key; slices keep their order.
// It returns ErrInvalidKeyInput if the discriminator is missing, is not a
// non-empty string, or a value cannot be canonicalized.
func (s KeySchema) NewKey(params Params) (Key, error) {
	disc := s.Discriminator
	if disc == "" {
		disc = DefaultDiscriminator
	}

	raw, ok := params[disc]
	if !ok || isNil(raw) {
		return Key{}, s.inputError(disc, "discriminator is required")
	}
	name, ok := raw.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return Key{}, s.inputError(disc, fmt.Sprintf("discriminator must be a non-empty string, got %T", raw))
	}

	canonical := make(map[string][]byte, len(params))
	for param, value := range params {
		if isNil(value) {
			continue
		}
		encoded, err := canonicalize(value)
		if err != nil {
			return Key{}, s.inputError(param, err.Error())
		}
		if s.isDefault(param, encoded) {
			continue
		}
		canonical[param] = encoded
	}

	doc, err := canonicalDocument(s.Namespace, canonical)
	if err != nil {
		return Key{}, s.inputError("", err.Error())
	}

	return Key{
		namespace:     s.Namespace,
		discriminator: name,
		digest:        sha256.Sum256(doc),
		label:         s.label(disc, canonical),
	}, nil
}

func (s KeySchema) inputError(param, detail string) error {
	return &Error{
		Op:     "new_key",
		Cache:  s.Namespace,
		Param:  param,
		Detail: detail,
		Err:    ErrInvalidKeyInput,
	}
}

func (s KeySchema) isDefault(param string, encoded []byte) bool {
	def, ok := s.Defaults[param]
	if !ok || isNil(def) {
		return false
	}
	want, err := canonicalize(def)
	if err != nil {
		return false
	}
	return bytes.Equal(want, encoded)
}

func (s KeySchema) isSensitive(param string) bool {
	sensitive := s.Sensitive
	if sensitive == nil {
		sensitive = DefaultSensitiveParams
	}
	return slices.Contains(sensitive, param)
}

// label renders the discriminator first, then the remaining parameters in
// name order, masking sensitive values.
func (s KeySchema) label(disc string, canonical map[string][]byte) string {
	names := make([]string, 0, len(canonical))
	for name := range canonical {
		if name != disc {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	names = append([]string{disc}, names...)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		value := string(canonical[name])
		if s.isSensitive(name) {
			value = RedactedValue
		}
		parts = append(parts, name+"="+value)
	}

	prefix := s.Namespace
	if prefix == "" {
		prefix = "key"
	}
	return prefix + "(" + strings.Join(parts, ", ") + ")"
}

// canonicalDocument encodes {"namespace":ns,"params":{...}} with params in
// sorted order. The result is the input to the digest.
func canonicalDocument(namespace string, canonical map[string][]byte) ([]byte, error) {
	ns, err := json.Marshal(namespace)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(canonical))
	for name := range canonical {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteString(`{"namespace":`)
	buf.Write(ns)
	buf.WriteString(`,"params":{`)
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		nameBytes, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(nameBytes)
		buf.WriteByte(':')
		buf.Write(canonical[name])
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// maxDepth bounds nesting, which also stops pointer cycles.
const maxDepth = 64

var marshalerType = reflect.TypeFor[json.Marshaler]()

// canonicalize produces a deterministic encoding of v that keeps every
// value distinct. Plain values read as JSON; string-keyed maps are sorted
// by key at every depth. Values JSON would blur carry a tag:
//
//	[]byte          b64"<base64>"
//	other maps      map[<key kind>]{<key>:<value>,...} sorted by encoded key
//	structs         <type>{<field>:<value>,...} with unexported fields
//	json.Marshaler  <type>(<json>)
//
// Numbers compare by value, so int 3 and float64 3 are equal.
func canonicalize(v any) ([]byte, error) {
	return appendCanonical(nil, reflect.ValueOf(v), 0)
}

func appendCanonical(dst []byte, rv reflect.Value, depth int) ([]byte, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("value nests deeper than %d levels", maxDepth)
	}
	if !rv.IsValid() {
		return append(dst, "null"...), nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return append(dst, "null"...), nil
		}
		return appendCanonical(dst, rv.Elem(), depth+1)
	}

	if m, ok := marshaler(rv); ok {
		raw, err := m.MarshalJSON()
		if err != nil {
			return nil, err
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return nil, err
		}
		dst = append(dst, rv.Type().String()...)
		dst = append(dst, '(')
		dst = append(dst, compact.Bytes()...)
		return append(dst, ')'), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return strconv.AppendBool(dst, rv.Bool()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.AppendInt(dst, rv.Int(), 10), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.AppendUint(dst, rv.Uint(), 10), nil

	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("unsupported float value %v", f)
		}
		return strconv.AppendFloat(dst, f, 'g', -1, rv.Type().Bits()), nil

	case reflect.String:
		return appendString(dst, rv.String())

	case reflect.Slice:
		if rv.IsNil() {
			return append(dst, "null"...), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			dst = append(dst, "b64"...)
			return appendString(dst, base64.StdEncoding.EncodeToString(rv.Bytes()))
		}
		return appendSequence(dst, rv, depth)

	case reflect.Array:
		return appendSequence(dst, rv, depth)

	case reflect.Map:
		if rv.IsNil() {
			return append(dst, "null"...), nil
		}
		if rv.Type().Key().Kind() == reflect.String {
			return appendStringMap(dst, rv, depth)
		}
		return appendTaggedMap(dst, rv, depth)

	case reflect.Struct:
		return appendStruct(dst, rv, depth)
	}

	return nil, fmt.Errorf("unsupported value of type %s", rv.Type())
}

// marshaler returns rv's json.Marshaler, trying the pointer receiver when
// rv is addressable. Unexported fields are walked instead.
func marshaler(rv reflect.Value) (json.Marshaler, bool) {
	if !rv.CanInterface() {
		return nil, false
	}
	if rv.Type().Implements(marshalerType) {
		m, ok := rv.Interface().(json.Marshaler)
		return m, ok
	}
	if rv.CanAddr() && reflect.PointerTo(rv.Type()).Implements(marshalerType) {
		m, ok := rv.Addr().Interface().(json.Marshaler)
		return m, ok
	}
	return nil, false
}

func appendString(dst []byte, s string) ([]byte, error) {
	quoted, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return append(dst, quoted...), nil
}

func appendSequence(dst []byte, rv reflect.Value, depth int) ([]byte, error) {
	dst = append(dst, '[')
	for i := range rv.Len() {
		if i > 0 {
			dst = append(dst, ',')
		}
		var err error
		if dst, err = appendCanonical(dst, rv.Index(i), depth+1); err != nil {
			return nil, err
		}
	}
	return append(dst, ']'), nil
}

func appendStringMap(dst []byte, rv reflect.Value, depth int) ([]byte, error) {
	keys := rv.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int { return strings.Compare(a.String(), b.String()) })

	dst = append(dst, '{')
	for i, k := range keys {
		if i > 0 {
			dst = append(dst, ',')
		}
		var err error
		if dst, err = appendString(dst, k.String()); err != nil {
			return nil, err
		}
		dst = append(dst, ':')
		if dst, err = appendCanonical(dst, rv.MapIndex(k), depth+1); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

func appendTaggedMap(dst []byte, rv reflect.Value, depth int) ([]byte, error) {
	type entry struct{ key, value []byte }

	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := appendCanonical(nil, iter.Key(), depth+1)
		if err != nil {
			return nil, err
		}
		v, err := appendCanonical(nil, iter.Value(), depth+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{k, v})
	}
	slices.SortFunc(entries, func(a, b entry) int { return bytes.Compare(a.key, b.key) })
	for i := 1; i < len(entries); i++ {
		if bytes.Equal(entries[i-1].key, entries[i].key) {
			return nil, fmt.Errorf("map keys collide as %s", entries[i].key)
		}
	}

	dst = append(dst, "map["+rv.Type().Key().Kind().String()+"]{"...)
	for i, e := range entries {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, e.key...)
		dst = append(dst, ':')
		dst = append(dst, e.value...)
	}
	return append(dst, '}'), nil
}

func appendStruct(dst []byte, rv reflect.Value, depth int) ([]byte, error) {
	t := rv.Type()
	dst = append(dst, t.String()...)
	dst = append(dst, '{')
	for i := range t.NumField() {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, t.Field(i).Name...)
		dst = append(dst, ':')
		var err error
		if dst, err = appendCanonical(dst, rv.Field(i), depth+1); err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
