package memo

import (
	"encoding"
	"encoding/json"
	"reflect"
	"sync"
)

var (
	jsonMarshalerType   = reflect.TypeFor[json.Marshaler]()
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

	keyProblems   sync.Map // reflect.Type -> string
	valueProblems sync.Map // reflect.Type -> string
)

// keyTypeProblem reports why JSON of t may not identify a key, or "" when
// it does. Types with their own marshalers are trusted.
func keyTypeProblem(t reflect.Type) string {
	if cached, ok := keyProblems.Load(t); ok {
		return cached.(string)
	}
	problem := walkType(t, map[reflect.Type]bool{}, func(t reflect.Type) (string, bool) {
		if t.Implements(jsonMarshalerType) || t.Implements(textMarshalerType) {
			return "", true
		}
		switch t.Kind() {
		case reflect.Pointer, reflect.UnsafePointer:
			return "holds a pointer", true
		case reflect.Interface:
			return "holds an interface", true
		case reflect.Chan, reflect.Func:
			return "holds a " + t.Kind().String(), true
		}
		return "", false
	})
	keyProblems.Store(t, problem)
	return problem
}

// valueTypeProblem reports why t would not survive a JSON round trip, or ""
// when it does.
func valueTypeProblem(t reflect.Type) string {
	if cached, ok := valueProblems.Load(t); ok {
		return cached.(string)
	}
	problem := walkType(t, map[reflect.Type]bool{}, func(t reflect.Type) (string, bool) {
		if reflect.PointerTo(t).Implements(jsonUnmarshalerType) || reflect.PointerTo(t).Implements(textUnmarshalerType) {
			return "", true
		}
		switch t.Kind() {
		case reflect.Interface:
			return "holds an interface", true
		case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
			return "holds a " + t.Kind().String(), true
		}
		return "", false
	})
	valueProblems.Store(t, problem)
	return problem
}

// walkType visits t and the types it is built from. check returns a problem
// or stop=true to skip a type's children.
func walkType(t reflect.Type, seen map[reflect.Type]bool, check func(reflect.Type) (problem string, stop bool)) string {
	if seen[t] {
		return ""
	}
	seen[t] = true
	if problem, stop := check(t); problem != "" || stop {
		return problem
	}
	switch t.Kind() {
	case reflect.Pointer, reflect.Array, reflect.Slice:
		return walkType(t.Elem(), seen, check)
	case reflect.Map:
		if problem := walkType(t.Key(), seen, check); problem != "" {
			return problem
		}
		return walkType(t.Elem(), seen, check)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				return "has unexported field " + field.Name
			}
			if field.Tag.Get("json") == "-" {
				return "skips field " + field.Name
			}
			if problem := walkType(field.Type, seen, check); problem != "" {
				return problem
			}
		}
	}
	return ""
}
