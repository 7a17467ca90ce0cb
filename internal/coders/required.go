package coders

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// BytesCoder encodes []byte elements. WholeStream writes the raw bytes;
// NeedsDelimiters adds a uvarint length prefix.
type BytesCoder struct{}

func (BytesCoder) URN() string { return BytesCoderURN }

func (BytesCoder) Encode(v interface{}, w io.Writer, c Context) error {
	data, ok := v.([]byte)
	if !ok {
		return fmt.Errorf("bytes coder: expected []byte, got %T", v)
	}
	if c == NeedsDelimiters {
		return writeLengthPrefixed(w, data)
	}
	_, err := w.Write(data)
	return err
}

func (BytesCoder) Decode(r io.Reader, c Context) (interface{}, error) {
	if c == NeedsDelimiters {
		return readLengthPrefixed(r)
	}
	return io.ReadAll(r)
}

// StringCoder encodes UTF-8 strings with the same framing as BytesCoder.
type StringCoder struct{}

func (StringCoder) URN() string { return StringCoderURN }

func (StringCoder) Encode(v interface{}, w io.Writer, c Context) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("string coder: expected string, got %T", v)
	}
	if c == NeedsDelimiters {
		return writeLengthPrefixed(w, []byte(s))
	}
	_, err := io.WriteString(w, s)
	return err
}

func (StringCoder) Decode(r io.Reader, c Context) (interface{}, error) {
	if c == NeedsDelimiters {
		data, err := readLengthPrefixed(r)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// VarIntCoder encodes int64 values as unsigned varints. The encoding is
// self-delimiting, so both contexts are identical. Plain ints are accepted
// and widened.
type VarIntCoder struct{}

func (VarIntCoder) URN() string { return VarIntCoderURN }

func (VarIntCoder) Encode(v interface{}, w io.Writer, c Context) error {
	var n int64
	switch t := v.(type) {
	case int64:
		n = t
	case int:
		n = int64(t)
	case int32:
		n = int64(t)
	default:
		return fmt.Errorf("varint coder: expected integer, got %T", v)
	}
	return writeUvarint(w, uint64(n))
}

func (VarIntCoder) Decode(r io.Reader, c Context) (interface{}, error) {
	u, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	return int64(u), nil
}

// BoolCoder encodes bools as a single byte, 0x00 or 0x01.
type BoolCoder struct{}

func (BoolCoder) URN() string { return BoolCoderURN }

func (BoolCoder) Encode(v interface{}, w io.Writer, c Context) error {
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("bool coder: expected bool, got %T", v)
	}
	var buf [1]byte
	if b {
		buf[0] = 1
	}
	_, err := w.Write(buf[:])
	return err
}

func (BoolCoder) Decode(r io.Reader, c Context) (interface{}, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	switch buf[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return nil, fmt.Errorf("bool coder: invalid byte 0x%02x", buf[0])
	}
}

// DoubleCoder encodes float64 values as 8 big-endian IEEE 754 bytes.
type DoubleCoder struct{}

func (DoubleCoder) URN() string { return DoubleCoderURN }

func (DoubleCoder) Encode(v interface{}, w io.Writer, c Context) error {
	f, ok := v.(float64)
	if !ok {
		return fmt.Errorf("double coder: expected float64, got %T", v)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
	_, err := w.Write(buf[:])
	return err
}

func (DoubleCoder) Decode(r io.Reader, c Context) (interface{}, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(buf[:])), nil
}

// UnitCoder encodes the empty element. It writes and reads nothing.
type UnitCoder struct{}

func (UnitCoder) URN() string { return UnitCoderURN }

func (UnitCoder) Encode(v interface{}, w io.Writer, c Context) error { return nil }

func (UnitCoder) Decode(r io.Reader, c Context) (interface{}, error) { return nil, nil }

// KVCoder encodes KV elements using component coders for key and value.
// Both components are encoded in NeedsDelimiters context so the pair is
// self-delimiting by construction.
type KVCoder struct {
	KeyCoder   Coder
	ValueCoder Coder
}

func (KVCoder) URN() string { return KVCoderURN }

func (k KVCoder) Encode(v interface{}, w io.Writer, c Context) error {
	kv, ok := v.(KV)
	if !ok {
		return fmt.Errorf("kv coder: expected KV, got %T", v)
	}
	if err := k.KeyCoder.Encode(kv.Key, w, NeedsDelimiters); err != nil {
		return fmt.Errorf("kv coder: key: %w", err)
	}
	if err := k.ValueCoder.Encode(kv.Value, w, NeedsDelimiters); err != nil {
		return fmt.Errorf("kv coder: value: %w", err)
	}
	return nil
}

func (k KVCoder) Decode(r io.Reader, c Context) (interface{}, error) {
	key, err := k.KeyCoder.Decode(r, NeedsDelimiters)
	if err != nil {
		return nil, fmt.Errorf("kv coder: key: %w", err)
	}
	value, err := k.ValueCoder.Decode(r, NeedsDelimiters)
	if err != nil {
		return nil, fmt.Errorf("kv coder: value: %w", err)
	}
	return KV{Key: key, Value: value}, nil
}

// IterableCoder encodes []interface{} slices as a uvarint element count
// followed by each element in NeedsDelimiters context.
type IterableCoder struct {
	ElemCoder Coder
}

func (IterableCoder) URN() string { return IterableCoderURN }

func (ic IterableCoder) Encode(v interface{}, w io.Writer, c Context) error {
	elems, ok := v.([]interface{})
	if !ok {
		return fmt.Errorf("iterable coder: expected []interface{}, got %T", v)
	}
	if err := writeUvarint(w, uint64(len(elems))); err != nil {
		return err
	}
	for i, e := range elems {
		if err := ic.ElemCoder.Encode(e, w, NeedsDelimiters); err != nil {
			return fmt.Errorf("iterable coder: element %d: %w", i, err)
		}
	}
	return nil
}

func (ic IterableCoder) Decode(r io.Reader, c Context) (interface{}, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	elems := make([]interface{}, 0, n)
	for i := uint64(0); i < n; i++ {
		e, err := ic.ElemCoder.Decode(r, NeedsDelimiters)
		if err != nil {
			return nil, fmt.Errorf("iterable coder: element %d: %w", i, err)
		}
		elems = append(elems, e)
	}
	return elems, nil
}

// NullableCoder encodes a possibly-nil element with a one-byte presence
// marker.
type NullableCoder struct {
	ElemCoder Coder
}

func (NullableCoder) URN() string { return NullableCoderURN }

func (nc NullableCoder) Encode(v interface{}, w io.Writer, c Context) error {
	var marker [1]byte
	if v == nil {
		_, err := w.Write(marker[:])
		return err
	}
	marker[0] = 1
	if _, err := w.Write(marker[:]); err != nil {
		return err
	}
	return nc.ElemCoder.Encode(v, w, NeedsDelimiters)
}

func (nc NullableCoder) Decode(r io.Reader, c Context) (interface{}, error) {
	var marker [1]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return nil, err
	}
	switch marker[0] {
	case 0:
		return nil, nil
	case 1:
		return nc.ElemCoder.Decode(r, NeedsDelimiters)
	default:
		return nil, fmt.Errorf("nullable coder: invalid marker 0x%02x", marker[0])
	}
}
