package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueType tags the content of a Value.
type ValueType uint8

const (
	ValueNil ValueType = iota
	ValueInt
	ValueUint
	ValueString
	ValueBytes
)

func (t ValueType) String() string {
	switch t {
	case ValueInt:
		return "int"
	case ValueUint:
		return "uint"
	case ValueString:
		return "string"
	case ValueBytes:
		return "bytes"
	default:
		return "nil"
	}
}

// Value is the authored or computed content of an element.
// Values are immutable: setters replace them, never edit the byte content.
type Value struct {
	typ ValueType
	i   int64
	u   uint64
	s   string
	b   []byte
}

// Nil is the empty value.
var Nil = Value{}

// Int returns a signed integer value.
func Int(v int64) Value { return Value{typ: ValueInt, i: v} }

// Uint returns an unsigned integer value.
func Uint(v uint64) Value { return Value{typ: ValueUint, u: v} }

// String returns a string value.
func String(v string) Value { return Value{typ: ValueString, s: v} }

// Bytes returns a byte value. The slice is copied.
func Bytes(v []byte) Value {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Value{typ: ValueBytes, b: buf}
}

// ValueOf converts common Go values into a Value.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Nil, nil
	case Value:
		return x, nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return Uint(uint64(x)), nil
	case uint8:
		return Uint(uint64(x)), nil
	case uint16:
		return Uint(uint64(x)), nil
	case uint32:
		return Uint(uint64(x)), nil
	case uint64:
		return Uint(x), nil
	case string:
		return String(x), nil
	case []byte:
		return Bytes(x), nil
	default:
		return Nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// MustValue is ValueOf that panics on unsupported types. Intended for model declarations.
func MustValue(v any) Value {
	val, err := ValueOf(v)
	if err != nil {
		panic(err)
	}
	return val
}

// Type returns the tag of the value.
func (v Value) Type() ValueType { return v.typ }

// IsNil reports whether the value is empty.
func (v Value) IsNil() bool { return v.typ == ValueNil }

// AsInt64 interprets the value as a signed integer.
func (v Value) AsInt64() (int64, error) {
	switch v.typ {
	case ValueInt:
		return v.i, nil
	case ValueUint:
		if v.u > 1<<63-1 {
			return 0, fmt.Errorf("%d overflows int64", v.u)
		}
		return int64(v.u), nil
	case ValueString:
		return strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
	case ValueNil:
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot interpret %s as integer", v.typ)
	}
}

// AsUint64 interprets the value as an unsigned integer.
func (v Value) AsUint64() (uint64, error) {
	switch v.typ {
	case ValueUint:
		return v.u, nil
	case ValueInt:
		if v.i < 0 {
			return 0, fmt.Errorf("negative value %d", v.i)
		}
		return uint64(v.i), nil
	case ValueString:
		return strconv.ParseUint(strings.TrimSpace(v.s), 10, 64)
	case ValueNil:
		return 0, nil
	default:
		return 0, fmt.Errorf("cannot interpret %s as integer", v.typ)
	}
}

// AsBytes returns the byte representation of string and byte values.
func (v Value) AsBytes() []byte {
	switch v.typ {
	case ValueString:
		return []byte(v.s)
	case ValueBytes:
		out := make([]byte, len(v.b))
		copy(out, v.b)
		return out
	case ValueInt:
		return []byte(strconv.FormatInt(v.i, 10))
	case ValueUint:
		return []byte(strconv.FormatUint(v.u, 10))
	default:
		return nil
	}
}

// Equal compares type and content.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case ValueInt:
		return v.i == o.i
	case ValueUint:
		return v.u == o.u
	case ValueString:
		return v.s == o.s
	case ValueBytes:
		return bytes.Equal(v.b, o.b)
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.typ {
	case ValueInt:
		return strconv.FormatInt(v.i, 10)
	case ValueUint:
		return strconv.FormatUint(v.u, 10)
	case ValueString:
		return strconv.Quote(v.s)
	case ValueBytes:
		return fmt.Sprintf("0x%x", v.b)
	default:
		return "<nil>"
	}
}

type valueJSON struct {
	Type   string  `json:"type"`
	Int    *int64  `json:"int,omitempty"`
	Uint   *uint64 `json:"uint,omitempty"`
	String *string `json:"string,omitempty"`
	Bytes  []byte  `json:"bytes,omitempty"`
}

// MarshalJSON encodes the value with its type tag.
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{Type: v.typ.String()}
	switch v.typ {
	case ValueInt:
		out.Int = &v.i
	case ValueUint:
		out.Uint = &v.u
	case ValueString:
		out.String = &v.s
	case ValueBytes:
		out.Bytes = v.b
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a value produced by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var in valueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Type {
	case "nil":
		*v = Nil
	case "int":
		if in.Int == nil {
			return fmt.Errorf("int value without payload")
		}
		*v = Int(*in.Int)
	case "uint":
		if in.Uint == nil {
			return fmt.Errorf("uint value without payload")
		}
		*v = Uint(*in.Uint)
	case "string":
		if in.String == nil {
			*v = String("")
			return nil
		}
		*v = String(*in.String)
	case "bytes":
		*v = Bytes(in.Bytes)
	default:
		return fmt.Errorf("unknown value type %q", in.Type)
	}
	return nil
}
