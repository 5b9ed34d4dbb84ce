package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const HeaderLen = 7

var (
	ErrShortFieldHeader  = errors.New("tlv: short field header")
	ErrShortFieldValue   = errors.New("tlv: short field value")
	ErrFieldTypeMismatch = errors.New("tlv: field type mismatch")
	ErrInvalidLength     = errors.New("tlv: invalid value length")
	ErrInvalidBool       = errors.New("tlv: invalid bool value")
)

// Type IDs from tlv contract.
const (
	TypeU8     uint8 = 1
	TypeU16    uint8 = 2
	TypeU32    uint8 = 3
	TypeU64    uint8 = 4
	TypeBool   uint8 = 5
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
	// TypeObject carries the sender-side id of an exported remote object.
	TypeObject uint8 = 8
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func EncodeField(f Field) []byte {
	buf := make([]byte, HeaderLen+len(f.Value))
	binary.BigEndian.PutUint16(buf[0:2], f.ID)
	buf[2] = f.Type
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(f.Value)))
	copy(buf[7:], f.Value)
	return buf
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += HeaderLen
		if uint32(len(payload)-i) < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

func EncodeFields(fields []Field) []byte {
	out := make([]byte, 0)
	for _, f := range fields {
		out = append(out, EncodeField(f)...)
	}
	return out
}

func GetField(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func U8(id uint16, v uint8) Field {
	return Field{ID: id, Type: TypeU8, Value: []byte{v}}
}

func U16(id uint16, v uint16) Field {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return Field{ID: id, Type: TypeU16, Value: buf}
}

func U32(id uint16, v uint32) Field {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return Field{ID: id, Type: TypeU32, Value: buf}
}

func U64(id uint16, v uint64) Field {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return Field{ID: id, Type: TypeU64, Value: buf}
}

func Bool(id uint16, v bool) Field {
	b := byte(0)
	if v {
		b = 1
	}
	return Field{ID: id, Type: TypeBool, Value: []byte{b}}
}

func String(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

func Bytes(id uint16, v []byte) Field {
	buf := make([]byte, len(v))
	copy(buf, v)
	return Field{ID: id, Type: TypeBytes, Value: buf}
}

func Object(id uint16, objectID uint64) Field {
	f := U64(id, objectID)
	f.Type = TypeObject
	return f
}

// AsString returns the field value as string.
func (f Field) AsString() (string, error) {
	if f.Type != TypeString {
		return "", ErrFieldTypeMismatch
	}
	return string(f.Value), nil
}

// AsU64 returns a u64 or object field value.
func (f Field) AsU64() (uint64, error) {
	if f.Type != TypeU64 && f.Type != TypeObject {
		return 0, ErrFieldTypeMismatch
	}
	if len(f.Value) != 8 {
		return 0, ErrInvalidLength
	}
	return binary.BigEndian.Uint64(f.Value), nil
}

// Decode returns the natural Go value for f: uint8, uint16, uint32,
// uint64, bool, string or []byte. Object fields are returned as their
// uint64 id; callers that care must check f.Type first.
func (f Field) Decode() (any, error) {
	switch f.Type {
	case TypeU8:
		if len(f.Value) != 1 {
			return nil, ErrInvalidLength
		}
		return f.Value[0], nil
	case TypeU16:
		if len(f.Value) != 2 {
			return nil, ErrInvalidLength
		}
		return binary.BigEndian.Uint16(f.Value), nil
	case TypeU32:
		if len(f.Value) != 4 {
			return nil, ErrInvalidLength
		}
		return binary.BigEndian.Uint32(f.Value), nil
	case TypeU64, TypeObject:
		return f.AsU64()
	case TypeBool:
		if len(f.Value) != 1 {
			return nil, ErrInvalidLength
		}
		switch f.Value[0] {
		case 0:
			return false, nil
		case 1:
			return true, nil
		default:
			return nil, ErrInvalidBool
		}
	case TypeString:
		return string(f.Value), nil
	case TypeBytes:
		buf := make([]byte, len(f.Value))
		copy(buf, f.Value)
		return buf, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %d", ErrFieldTypeMismatch, f.Type)
	}
}

// Encode builds a field from a plain Go value. It reports false for
// values that have no TLV representation.
func Encode(id uint16, v any) (Field, bool) {
	switch x := v.(type) {
	case uint8:
		return U8(id, x), true
	case uint16:
		return U16(id, x), true
	case uint32:
		return U32(id, x), true
	case uint64:
		return U64(id, x), true
	case bool:
		return Bool(id, x), true
	case string:
		return String(id, x), true
	case []byte:
		return Bytes(id, x), true
	default:
		return Field{}, false
	}
}
