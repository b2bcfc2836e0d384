package item

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"lazyquery/internal/common"
)

var timeType = reflect.TypeOf(time.Time{})

// TypeOf is a shorthand for reflect.TypeFor used when declaring schemas.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Coerce converts v to typ. Nil values and untyped (nil typ) targets pass
// through unchanged. Numeric values convert between kinds when no precision
// is lost, which covers float64 numbers produced by encoding/json. Strings
// convert to time.Time when they hold an RFC 3339 timestamp.
func Coerce(v any, typ reflect.Type) (any, error) {
	if v == nil || typ == nil {
		return v, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type() == typ {
		return v, nil
	}
	if typ.Kind() == reflect.Interface && rv.Type().Implements(typ) {
		return v, nil
	}

	if typ == timeType {
		if s, ok := v.(string); ok {
			ts, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a timestamp", common.ErrTypeMismatch, s)
			}
			return ts, nil
		}
	}

	if isNumeric(rv.Kind()) && isNumeric(typ.Kind()) {
		if isFloat(rv.Kind()) && !isFloat(typ.Kind()) {
			f := rv.Float()
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("%w: %v is not integral", common.ErrTypeMismatch, f)
			}
		}
		if overflows(rv, typ) {
			return nil, fmt.Errorf("%w: %v overflows %s", common.ErrTypeMismatch, v, typ)
		}
		return rv.Convert(typ).Interface(), nil
	}

	if rv.Type().ConvertibleTo(typ) && rv.Kind() == typ.Kind() {
		return rv.Convert(typ).Interface(), nil
	}
	return nil, fmt.Errorf("%w: %T is not %s", common.ErrTypeMismatch, v, typ)
}

// overflows reports whether the numeric value rv falls outside the range of
// typ. Float sources are already known to be integral for integer targets.
func overflows(rv reflect.Value, typ reflect.Type) bool {
	target := reflect.New(typ).Elem()
	switch {
	case isSigned(rv.Kind()):
		n := rv.Int()
		switch {
		case isSigned(typ.Kind()):
			return target.OverflowInt(n)
		case isUnsigned(typ.Kind()):
			return n < 0 || target.OverflowUint(uint64(n))
		}
		return target.OverflowFloat(float64(n))
	case isUnsigned(rv.Kind()):
		u := rv.Uint()
		switch {
		case isSigned(typ.Kind()):
			return u > math.MaxInt64 || target.OverflowInt(int64(u))
		case isUnsigned(typ.Kind()):
			return target.OverflowUint(u)
		}
		return target.OverflowFloat(float64(u))
	}

	f := rv.Float()
	switch {
	case isSigned(typ.Kind()):
		// 2^63 is exact in float64; int64 covers [-2^63, 2^63).
		return f < math.MinInt64 || f >= -math.MinInt64 || target.OverflowInt(int64(f))
	case isUnsigned(typ.Kind()):
		return f < 0 || f >= 1<<64 || target.OverflowUint(uint64(f))
	}
	return target.OverflowFloat(f)
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
