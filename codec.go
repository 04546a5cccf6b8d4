package memo

import (
	"errors"
	"fmt"
	"reflect"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrKeyNotEncodable is returned by DefaultKey for key types whose JSON form
// does not identify the key. Supply WithKeyFunc for those.
var ErrKeyNotEncodable = errors.New("memo: key type needs WithKeyFunc")

// ValueCodec defines how values are encoded for the backing store.
type ValueCodec[T any] struct {
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

// JSONCodec encodes values as JSON. It is the default codec of a Memo.
//
// JSON does not record dynamic types, so values that are or contain
// interfaces decode differently from what was computed. A Memo given a
// backing store without WithCodec refuses such value types and stays
// process-local.
func JSONCodec[T any]() ValueCodec[T] {
	return ValueCodec[T]{
		Encode: func(v T) ([]byte, error) { return jsonAPI.Marshal(v) },
		Decode: func(b []byte) (T, error) {
			var out T
			err := jsonAPI.Unmarshal(b, &out)
			return out, err
		},
	}
}

// StringCodec stores string values verbatim.
func StringCodec() ValueCodec[string] {
	return ValueCodec[string]{
		Encode: func(v string) ([]byte, error) { return []byte(v), nil },
		Decode: func(b []byte) (string, error) { return string(b), nil },
	}
}

// KeyFunc encodes a key for the backing store. Distinct keys must encode to
// distinct strings, otherwise two keys would share one stored result.
type KeyFunc[K comparable] func(K) (string, error)

// DefaultKey encodes keys for the backing store.
//
// String kinds are used as-is and other keys are JSON. When K is an
// interface the dynamic type is prepended, so "3" and 3 stay apart. Keys
// that JSON cannot tell apart are refused with ErrKeyNotEncodable: pointers
// (equal by address, encoded by pointee), nested interfaces and structs with
// unexported fields.
func DefaultKey[K comparable](key K) (string, error) {
	static := reflect.TypeFor[K]()
	if static.Kind() != reflect.Interface {
		return encodeKey(static, reflect.ValueOf(key))
	}
	dynamic := reflect.TypeOf(any(key))
	if dynamic == nil {
		return "<nil>", nil
	}
	encoded, err := encodeKey(dynamic, reflect.ValueOf(any(key)))
	if err != nil {
		return "", err
	}
	return dynamic.String() + ":" + encoded, nil
}

func encodeKey(t reflect.Type, v reflect.Value) (string, error) {
	if problem := keyTypeProblem(t); problem != "" {
		return "", fmt.Errorf("%w: %s %s", ErrKeyNotEncodable, t, problem)
	}
	if t.Kind() == reflect.String {
		return v.String(), nil
	}
	body, err := jsonAPI.Marshal(v.Interface())
	if err != nil {
		return "", fmt.Errorf("memo: encode key: %w", err)
	}
	return string(body), nil
}
