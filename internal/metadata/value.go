package metadata

import "strconv"

// ValueKind tags the dynamic type of a metadata cell.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindString
	KindFloat
	KindInt
)

// Value is a tagged metadata cell. Values stay typed through extraction and
// are coerced to text only at the normalize boundary, so a typed sink can be
// added without touching the extractor.
type Value struct {
	Kind  ValueKind
	Str   string
	Float float64
	Int   int64
}

func Null() Value { return Value{Kind: KindNull} }

func String(v string) Value { return Value{Kind: KindString, Str: v} }

func Float(v float64) Value { return Value{Kind: KindFloat, Float: v} }

func Int(v int64) Value { return Value{Kind: KindInt, Int: v} }

// Text coerces the value to its string form. Null becomes the empty string.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	default:
		return ""
	}
}
