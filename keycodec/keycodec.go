// Package keycodec derives stable cache keys from a function's call arguments.
//
// The key is an md5 hex digest of a canonical serialization of
// (function identity, positional arguments, named arguments sorted by name,
// optionally each argument's runtime type). Two calls with equal arguments
// always produce the same digest; arguments that cannot be serialized
// deterministically are rejected before the wrapped function runs.
package keycodec

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// ErrUnhashableArgument is returned when an argument has no canonical
// serialization (functions, channels, NaN values, and the like). Callers
// must see this before the wrapped function is invoked.
var ErrUnhashableArgument = errors.New("keycodec: unhashable argument")

/*
Derive builds the cache key for one call.

The canonical form is:

	fn(arg1,arg2,...)#kw{name1=v1,name2=v2}!types[t1,t2,...]

- Positional arguments appear in call order.
- Named arguments appear sorted by name, so the caller's map iteration
  order never leaks into the key.
- The types section is present only when typed is true. Without it,
  Derive("f", []any{1}) and Derive("f", []any{1.0}) produce the SAME key,
  because integers and floats share one numeric encoding. With typed=true
  they differ.

The digest is collision-resistant for cache purposes; equal keys mean
equal calls with overwhelming probability.
*/
func Derive(fn string, args []any, kwargs map[string]any, typed bool) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(fn)
	buf.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(&buf, reflect.ValueOf(a)); err != nil {
			return "", err
		}
	}
	buf.WriteByte(')')

	if len(kwargs) > 0 {
		names := make([]string, 0, len(kwargs))
		for n := range kwargs {
			names = append(names, n)
		}
		sort.Strings(names)

		buf.WriteString("#kw{")
		for i, n := range names {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(n)
			buf.WriteByte('=')
			if err := encodeValue(&buf, reflect.ValueOf(kwargs[n])); err != nil {
				return "", err
			}
		}
		buf.WriteByte('}')

		if typed {
			buf.WriteString("!kwtypes[")
			for i, n := range names {
				if i > 0 {
					buf.WriteByte(',')
				}
				buf.WriteString(typeName(kwargs[n]))
			}
			buf.WriteByte(']')
		}
	}

	if typed {
		buf.WriteString("!types[")
		for i, a := range args {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(typeName(a))
		}
		buf.WriteByte(']')
	}

	return Digest(buf.Bytes()), nil
}

// Digest returns the md5 hex digest of b. The same digest scheme addresses
// cache entries and fingerprints namespace configurations.
func Digest(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	return t.String()
}

/*
encodeValue writes one canonical representation of v to buf.

Encoding rules:
- nil (untyped or typed) encodes as "nil".
- All integer kinds share the decimal encoding; floats use the shortest
  representation, so 1 and 1.0 collapse to "1" (typed mode separates them).
- Strings are quoted, so the string "1" never collides with the number 1.
- []byte encodes as hex.
- Slices and arrays encode element-wise in order.
- Map entries are sorted by the canonical encoding of their keys, giving
  unordered maps a canonical ordering.
- Structs encode exported fields sorted by name.
- Pointers and interfaces encode their referent.
- Functions, channels, unsafe pointers, and NaN have no canonical form
  and fail with ErrUnhashableArgument.
*/
func encodeValue(buf *bytes.Buffer, v reflect.Value) error {
	if !v.IsValid() {
		buf.WriteString("nil")
		return nil
	}

	switch v.Kind() {
	case reflect.Bool:
		buf.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		buf.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		buf.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) {
			return fmt.Errorf("%w: NaN has no canonical form", ErrUnhashableArgument)
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		if math.IsNaN(real(c)) || math.IsNaN(imag(c)) {
			return fmt.Errorf("%w: NaN has no canonical form", ErrUnhashableArgument)
		}
		buf.WriteString(strconv.FormatComplex(c, 'g', -1, 128))
	case reflect.String:
		buf.WriteString(strconv.Quote(v.String()))
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			buf.WriteString("nil")
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			buf.WriteString("0x")
			buf.WriteString(hex.EncodeToString(byteSlice(v)))
			return nil
		}
		buf.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, v.Index(i)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case reflect.Map:
		if v.IsNil() {
			buf.WriteString("nil")
			return nil
		}
		return encodeMap(buf, v)
	case reflect.Struct:
		return encodeStruct(buf, v)
	case reflect.Ptr:
		if v.IsNil() {
			buf.WriteString("nil")
			return nil
		}
		return encodeValue(buf, v.Elem())
	case reflect.Interface:
		if v.IsNil() {
			buf.WriteString("nil")
			return nil
		}
		return encodeValue(buf, v.Elem())
	default:
		// Func, Chan, UnsafePointer
		return fmt.Errorf("%w: %s", ErrUnhashableArgument, v.Type())
	}
	return nil
}

// encodeMap sorts entries by the canonical encoding of their keys so the
// map's iteration order never affects the result.
func encodeMap(buf *bytes.Buffer, v reflect.Value) error {
	type pair struct {
		encKey string
		val    reflect.Value
	}
	pairs := make([]pair, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		var kb bytes.Buffer
		if err := encodeValue(&kb, iter.Key()); err != nil {
			return err
		}
		pairs = append(pairs, pair{encKey: kb.String(), val: iter.Value()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].encKey < pairs[j].encKey })

	buf.WriteString("map{")
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(p.encKey)
		buf.WriteByte(':')
		if err := encodeValue(buf, p.val); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// encodeStruct encodes exported fields sorted by name. Unexported fields
// do not participate in the key.
func encodeStruct(buf *bytes.Buffer, v reflect.Value) error {
	t := v.Type()
	names := make([]string, 0, t.NumField())
	fields := make(map[string]reflect.Value, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		names = append(names, f.Name)
		fields[f.Name] = v.Field(i)
	}
	sort.Strings(names)

	buf.WriteByte('{')
	for i, n := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(n)
		buf.WriteByte(':')
		if err := encodeValue(buf, fields[n]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// byteSlice copies v's bytes out even when v is an unaddressable array.
func byteSlice(v reflect.Value) []byte {
	if v.Kind() == reflect.Slice {
		return v.Bytes()
	}
	b := make([]byte, v.Len())
	for i := range b {
		b[i] = byte(v.Index(i).Uint())
	}
	return b
}
