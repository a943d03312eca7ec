package atom

import (
	"math"
	"reflect"
)

// defaultEqual reports whether a and b are the same value for the purpose
// of CompareAndSet. Slices, maps, funcs, chans and pointers compare by
// identity (same backing pointer, plus length and capacity for slices),
// wherever they appear inside the value. Floats and complex numbers compare
// by bit pattern, so a NaN read back from the slot matches itself. Structs,
// arrays and interfaces are walked field by field.
func defaultEqual[T any](a, b T) bool {
	left := any(a)
	right := any(b)
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	return sameValue(reflect.ValueOf(left), reflect.ValueOf(right))
}

func sameValue(left, right reflect.Value) bool {
	if left.Type() != right.Type() {
		return false
	}
	switch left.Kind() {
	case reflect.Bool:
		return left.Bool() == right.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return left.Int() == right.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return left.Uint() == right.Uint()
	case reflect.Float32, reflect.Float64:
		return math.Float64bits(left.Float()) == math.Float64bits(right.Float())
	case reflect.Complex64, reflect.Complex128:
		l, r := left.Complex(), right.Complex()
		return math.Float64bits(real(l)) == math.Float64bits(real(r)) &&
			math.Float64bits(imag(l)) == math.Float64bits(imag(r))
	case reflect.String:
		return left.String() == right.String()
	case reflect.Slice:
		return left.UnsafePointer() == right.UnsafePointer() &&
			left.Len() == right.Len() &&
			left.Cap() == right.Cap()
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return left.UnsafePointer() == right.UnsafePointer()
	case reflect.Interface:
		if left.IsNil() || right.IsNil() {
			return left.IsNil() && right.IsNil()
		}
		return sameValue(left.Elem(), right.Elem())
	case reflect.Array:
		for i := 0; i < left.Len(); i++ {
			if !sameValue(left.Index(i), right.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < left.NumField(); i++ {
			if !sameValue(left.Field(i), right.Field(i)) {
				return false
			}
		}
		return true
	}
	return false
}
