package schema

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Readers pull one row of a source array as a canonical value. The second
// result is false for nulls and for values that cannot be coerced.
type (
	Int64Reader     func(row int) (int64, bool)
	Float64Reader   func(row int) (float64, bool)
	StringReader    func(row int) (string, bool)
	TimestampReader func(row int) (time.Time, bool)
)

type valuer[T any] interface {
	IsNull(i int) bool
	Value(i int) T
}

type stringValuer interface {
	arrow.Array
	Value(i int) string
}

func nullInt(int) (int64, bool) { return 0, false }
func nullFloat(int) (float64, bool) { return 0, false }
func nullString(int) (string, bool) { return "", false }
func nullTime(int) (time.Time, bool) { return time.Time{}, false }

func ints[T int8 | int16 | int32 | int64 | uint8 | uint16 | uint32](a valuer[T]) Int64Reader {
	return func(i int) (int64, bool) {
		if a.IsNull(i) {
			return 0, false
		}
		return int64(a.Value(i)), true
	}
}

func floats[T int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64](a valuer[T]) Float64Reader {
	return func(i int) (float64, bool) {
		if a.IsNull(i) {
			return 0, false
		}
		return float64(a.Value(i)), true
	}
}

// integral converts f when it holds a whole number within int64 range.
func integral(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// ParseInt parses an integer, accepting whole-valued decimals like "1.0".
func ParseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return integral(f)
}

// ParseFloat parses a decimal, returning false for blanks and garbage.
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Int64Of returns a reader coercing arr to int64. Floats with a fractional
// part read as null.
func Int64Of(arr arrow.Array) Int64Reader {
	switch a := arr.(type) {
	case *array.Int8:
		return ints[int8](a)
	case *array.Int16:
		return ints[int16](a)
	case *array.Int32:
		return ints[int32](a)
	case *array.Int64:
		return ints[int64](a)
	case *array.Uint8:
		return ints[uint8](a)
	case *array.Uint16:
		return ints[uint16](a)
	case *array.Uint32:
		return ints[uint32](a)
	case *array.Uint64:
		return func(i int) (int64, bool) {
			if a.IsNull(i) || a.Value(i) > math.MaxInt64 {
				return 0, false
			}
			return int64(a.Value(i)), true
		}
	case *array.Float32:
		return func(i int) (int64, bool) {
			if a.IsNull(i) {
				return 0, false
			}
			return integral(float64(a.Value(i)))
		}
	case *array.Float64:
		return func(i int) (int64, bool) {
			if a.IsNull(i) {
				return 0, false
			}
			return integral(a.Value(i))
		}
	case *array.Dictionary:
		inner := Int64Of(a.Dictionary())
		return func(i int) (int64, bool) {
			if a.IsNull(i) {
				return 0, false
			}
			return inner(a.GetValueIndex(i))
		}
	case stringValuer:
		return func(i int) (int64, bool) {
			if a.IsNull(i) {
				return 0, false
			}
			return ParseInt(a.Value(i))
		}
	default:
		return nullInt
	}
}

// Int32Of is Int64Of restricted to the int32 range.
func Int32Of(arr arrow.Array) Int64Reader {
	read := Int64Of(arr)
	return func(i int) (int64, bool) {
		v, ok := read(i)
		if !ok || v < math.MinInt32 || v > math.MaxInt32 {
			return 0, false
		}
		return v, true
	}
}

// Float64Of returns a reader coercing arr to float64.
func Float64Of(arr arrow.Array) Float64Reader {
	switch a := arr.(type) {
	case *array.Float64:
		return floats[float64](a)
	case *array.Float32:
		return floats[float32](a)
	case *array.Int8:
		return floats[int8](a)
	case *array.Int16:
		return floats[int16](a)
	case *array.Int32:
		return floats[int32](a)
	case *array.Int64:
		return floats[int64](a)
	case *array.Uint8:
		return floats[uint8](a)
	case *array.Uint16:
		return floats[uint16](a)
	case *array.Uint32:
		return floats[uint32](a)
	case *array.Uint64:
		return floats[uint64](a)
	case *array.Dictionary:
		inner := Float64Of(a.Dictionary())
		return func(i int) (float64, bool) {
			if a.IsNull(i) {
				return 0, false
			}
			return inner(a.GetValueIndex(i))
		}
	case stringValuer:
		return func(i int) (float64, bool) {
			if a.IsNull(i) {
				return 0, false
			}
			return ParseFloat(a.Value(i))
		}
	default:
		return nullFloat
	}
}

// StringOf returns a reader rendering arr as text.
func StringOf(arr arrow.Array) StringReader {
	switch a := arr.(type) {
	case stringValuer:
		return func(i int) (string, bool) {
			if a.IsNull(i) {
				return "", false
			}
			return a.Value(i), true
		}
	case *array.Dictionary:
		inner := StringOf(a.Dictionary())
		return func(i int) (string, bool) {
			if a.IsNull(i) {
				return "", false
			}
			return inner(a.GetValueIndex(i))
		}
	case *array.Null:
		return nullString
	default:
		return func(i int) (string, bool) {
			if arr.IsNull(i) {
				return "", false
			}
			return arr.ValueStr(i), true
		}
	}
}

// TimestampOf returns a reader yielding wall-clock times. Native
// timestamps keep their recorded wall clock; text goes through p.
func TimestampOf(arr arrow.Array, p *TimestampParser) TimestampReader {
	switch a := arr.(type) {
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return func(i int) (time.Time, bool) {
			if a.IsNull(i) {
				return time.Time{}, false
			}
			return a.Value(i).ToTime(unit), true
		}
	case *array.Date32:
		return func(i int) (time.Time, bool) {
			if a.IsNull(i) {
				return time.Time{}, false
			}
			return a.Value(i).ToTime(), true
		}
	case *array.Date64:
		return func(i int) (time.Time, bool) {
			if a.IsNull(i) {
				return time.Time{}, false
			}
			return a.Value(i).ToTime(), true
		}
	case *array.Dictionary:
		inner := TimestampOf(a.Dictionary(), p)
		return func(i int) (time.Time, bool) {
			if a.IsNull(i) {
				return time.Time{}, false
			}
			return inner(a.GetValueIndex(i))
		}
	case stringValuer:
		return func(i int) (time.Time, bool) {
			if a.IsNull(i) {
				return time.Time{}, false
			}
			return p.Parse(a.Value(i))
		}
	default:
		return nullTime
	}
}
