package vm

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ---------------------------------------------------------------------------
// Variable storage
// ---------------------------------------------------------------------------

// Codec converts between a Value and its fixed-size byte encoding.
type Codec struct {
	Type   DataType
	Encode func(v Value, dst []byte) error
	Decode func(src []byte) (Value, error)
}

// Storage is a growable byte array addressed by offset. Every access of
// type t at offset o touches exactly t.Size() bytes starting at o. There is
// no alignment padding.
type Storage struct {
	bytes  []byte
	codecs map[DataType]Codec
}

// NewStorage returns an empty store with the built-in int4, char and bool
// codecs registered.
func NewStorage() *Storage {
	s := &Storage{codecs: make(map[DataType]Codec)}
	s.RegisterCodec(int4Codec)
	s.RegisterCodec(charCodec)
	s.RegisterCodec(boolCodec)
	return s
}

// RegisterCodec installs or replaces the codec for c.Type.
func (s *Storage) RegisterCodec(c Codec) {
	s.codecs[c.Type] = c
}

// Allocate reserves t.Size() zeroed bytes and returns their offset.
// Offsets increase monotonically and are never reused until Reset.
func (s *Storage) Allocate(t DataType) (int, error) {
	if !t.Storable() {
		return 0, errors.Errorf("storage: cannot allocate %s", t)
	}
	if _, ok := s.codecs[t]; !ok {
		return 0, errors.Errorf("storage: no codec for %s", t)
	}
	offset := len(s.bytes)
	s.bytes = append(s.bytes, make([]byte, t.Size())...)
	return offset, nil
}

// Store encodes v as type t at offset.
func (s *Storage) Store(v Value, t DataType, offset int) error {
	codec, region, err := s.region(t, offset)
	if err != nil {
		return err
	}
	return errors.Wrapf(codec.Encode(v, region), "storage: store %s @%d", t, offset)
}

// Load decodes a value of type t from offset.
func (s *Storage) Load(t DataType, offset int) (Value, error) {
	codec, region, err := s.region(t, offset)
	if err != nil {
		return nil, err
	}
	v, err := codec.Decode(region)
	if err != nil {
		return nil, errors.Wrapf(err, "storage: load %s @%d", t, offset)
	}
	return v, nil
}

func (s *Storage) region(t DataType, offset int) (Codec, []byte, error) {
	codec, ok := s.codecs[t]
	if !ok {
		return Codec{}, nil, errors.Errorf("storage: no codec for %s", t)
	}
	size := t.Size()
	if offset < 0 || offset+size > len(s.bytes) {
		return Codec{}, nil, errors.Errorf("storage: %s @%d out of range (size %d)", t, offset, len(s.bytes))
	}
	return codec, s.bytes[offset : offset+size], nil
}

// Size returns the number of allocated bytes.
func (s *Storage) Size() int { return len(s.bytes) }

// EnsureSize grows the store with zero bytes until it holds at least n bytes.
// Used when running a program image compiled against a fresh context.
func (s *Storage) EnsureSize(n int) {
	if n > len(s.bytes) {
		s.bytes = append(s.bytes, make([]byte, n-len(s.bytes))...)
	}
}

// Bytes returns a copy of the raw store.
func (s *Storage) Bytes() []byte {
	out := make([]byte, len(s.bytes))
	copy(out, s.bytes)
	return out
}

// Reset drops every allocation.
func (s *Storage) Reset() {
	s.bytes = s.bytes[:0]
}

// ---------------------------------------------------------------------------
// Built-in codecs
// ---------------------------------------------------------------------------

var int4Codec = Codec{
	Type: TypeInt4,
	Encode: func(v Value, dst []byte) error {
		iv, ok := v.(IntValue)
		if !ok {
			return errors.Errorf("int4 codec: got %T", v)
		}
		binary.BigEndian.PutUint32(dst, uint32(iv))
		return nil
	},
	Decode: func(src []byte) (Value, error) {
		return IntValue(int32(binary.BigEndian.Uint32(src))), nil
	},
}

var charCodec = Codec{
	Type: TypeChar,
	Encode: func(v Value, dst []byte) error {
		cv, ok := v.(CharValue)
		if !ok {
			return errors.Errorf("char codec: got %T", v)
		}
		dst[0] = byte(cv)
		return nil
	},
	Decode: func(src []byte) (Value, error) {
		return CharValue(src[0]), nil
	},
}

var boolCodec = Codec{
	Type: TypeBool,
	Encode: func(v Value, dst []byte) error {
		bv, ok := v.(BoolValue)
		if !ok {
			return errors.Errorf("bool codec: got %T", v)
		}
		var n uint16
		if bv {
			n = 1
		}
		binary.BigEndian.PutUint16(dst, n)
		return nil
	},
	Decode: func(src []byte) (Value, error) {
		return BoolValue(binary.BigEndian.Uint16(src) != 0), nil
	},
}
