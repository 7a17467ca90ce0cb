package coders

import (
	"bytes"
	"reflect"
	"testing"
)

// roundTrip encodes then decodes a value in the given context.
func roundTrip(t *testing.T, c Coder, v interface{}, ctx Context) interface{} {
	t.Helper()

	var buf bytes.Buffer
	if err := c.Encode(v, &buf, ctx); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := c.Decode(&buf, ctx)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return got
}

func TestBytesCoderRoundTrip(t *testing.T) {
	c := BytesCoder{}
	data := []byte("hello joist")

	for _, ctx := range []Context{WholeStream, NeedsDelimiters} {
		got := roundTrip(t, c, data, ctx)
		if !bytes.Equal(got.([]byte), data) {
			t.Errorf("context %d: got %q, want %q", ctx, got, data)
		}
	}
}

func TestBytesCoderRejectsWrongType(t *testing.T) {
	var buf bytes.Buffer
	if err := (BytesCoder{}).Encode("not bytes", &buf, WholeStream); err == nil {
		t.Fatal("expected type error")
	}
}

func TestStringCoderRoundTrip(t *testing.T) {
	c := StringCoder{}
	for _, s := range []string{"", "ascii", "🔥 unicode — ünïcødé"} {
		for _, ctx := range []Context{WholeStream, NeedsDelimiters} {
			got := roundTrip(t, c, s, ctx)
			if got.(string) != s {
				t.Errorf("context %d: got %q, want %q", ctx, got, s)
			}
		}
	}
}

func TestVarIntCoderRoundTrip(t *testing.T) {
	c := VarIntCoder{}
	for _, n := range []int64{0, 1, 127, 128, 1 << 20, -1, -1 << 40} {
		got := roundTrip(t, c, n, WholeStream)
		if got.(int64) != n {
			t.Errorf("got %d, want %d", got, n)
		}
	}
}

func TestVarIntCoderAcceptsInt(t *testing.T) {
	got := roundTrip(t, VarIntCoder{}, 42, NeedsDelimiters)
	if got.(int64) != 42 {
		t.Errorf("got %v, want 42", got)
	}
}

func TestBoolCoderRoundTrip(t *testing.T) {
	for _, b := range []bool{true, false} {
		got := roundTrip(t, BoolCoder{}, b, WholeStream)
		if got.(bool) != b {
			t.Errorf("got %v, want %v", got, b)
		}
	}
}

func TestBoolCoderRejectsInvalidByte(t *testing.T) {
	_, err := (BoolCoder{}).Decode(bytes.NewReader([]byte{0x07}), WholeStream)
	if err == nil {
		t.Fatal("expected error for invalid bool byte")
	}
}

func TestDoubleCoderRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1.5, -3.75, 1e300} {
		got := roundTrip(t, DoubleCoder{}, f, NeedsDelimiters)
		if got.(float64) != f {
			t.Errorf("got %v, want %v", got, f)
		}
	}
}

func TestKVCoderRoundTrip(t *testing.T) {
	c := KVCoder{KeyCoder: StringCoder{}, ValueCoder: VarIntCoder{}}
	kv := KV{Key: "word", Value: int64(3)}

	got := roundTrip(t, c, kv, WholeStream)
	if !reflect.DeepEqual(got, kv) {
		t.Errorf("got %+v, want %+v", got, kv)
	}
}

func TestIterableCoderRoundTrip(t *testing.T) {
	c := IterableCoder{ElemCoder: StringCoder{}}
	elems := []interface{}{"a", "b", "c"}

	got := roundTrip(t, c, elems, WholeStream)
	if !reflect.DeepEqual(got, elems) {
		t.Errorf("got %+v, want %+v", got, elems)
	}
}

func TestNullableCoderRoundTrip(t *testing.T) {
	c := NullableCoder{ElemCoder: StringCoder{}}

	if got := roundTrip(t, c, nil, WholeStream); got != nil {
		t.Errorf("got %v, want nil", got)
	}
	if got := roundTrip(t, c, "present", WholeStream); got.(string) != "present" {
		t.Errorf("got %v, want present", got)
	}
}

func TestJSONCoderRoundTrip(t *testing.T) {
	c := JSONCoder{}
	v := map[string]interface{}{"prompt": "hi", "tokens": float64(12)}

	got := roundTrip(t, c, v, NeedsDelimiters)
	if !reflect.DeepEqual(got, v) {
		t.Errorf("got %+v, want %+v", got, v)
	}
}

func TestGzipCoderRoundTrip(t *testing.T) {
	c := GzipCoder{ElemCoder: StringCoder{}}
	big := ""
	for i := 0; i < 100; i++ {
		big += "this line repeats and should compress well. "
	}

	var buf bytes.Buffer
	if err := c.Encode(big, &buf, NeedsDelimiters); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if buf.Len() >= len(big) {
		t.Errorf("expected compression, got %d bytes for %d input", buf.Len(), len(big))
	}

	got, err := c.Decode(&buf, NeedsDelimiters)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.(string) != big {
		t.Error("decompressed element does not match original")
	}
}

// Delimited elements must be self-delimiting: encoding several into one
// stream and decoding them back must preserve boundaries.
func TestNeedsDelimitersStream(t *testing.T) {
	c := StringCoder{}
	words := []string{"the", "quick", "brown", "fox"}

	var buf bytes.Buffer
	for _, w := range words {
		if err := c.Encode(w, &buf, NeedsDelimiters); err != nil {
			t.Fatalf("encode %q failed: %v", w, err)
		}
	}

	r := NewElementReader(&buf)
	for _, want := range words {
		got, err := c.Decode(r, NeedsDelimiters)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if got.(string) != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}

func TestRegistryBuildsComposites(t *testing.T) {
	reg := NewRegistry()

	key, err := reg.Build(StringCoderURN, nil)
	if err != nil {
		t.Fatalf("failed to build key coder: %v", err)
	}
	value, err := reg.Build(VarIntCoderURN, nil)
	if err != nil {
		t.Fatalf("failed to build value coder: %v", err)
	}

	kv, err := reg.Build(KVCoderURN, []Coder{key, value})
	if err != nil {
		t.Fatalf("failed to build kv coder: %v", err)
	}

	got := roundTrip(t, kv, KV{Key: "k", Value: int64(9)}, WholeStream)
	if !reflect.DeepEqual(got, KV{Key: "k", Value: int64(9)}) {
		t.Errorf("unexpected round trip result: %+v", got)
	}
}

func TestRegistryUnknownURN(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Build("joist:coder:missing:v1", nil)
	if err == nil {
		t.Fatal("expected error for unknown urn")
	}
}

func TestRegistryComponentArity(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Build(KVCoderURN, []Coder{StringCoder{}})
	if err == nil {
		t.Fatal("expected arity error for kv coder with 1 component")
	}
	_, err = reg.Build(BytesCoderURN, []Coder{StringCoder{}})
	if err == nil {
		t.Fatal("expected arity error for leaf coder with components")
	}
}

func TestRegisterCustom(t *testing.T) {
	urn := RegisterCustom("upper-string", func(components []Coder) (Coder, error) {
		return StringCoder{}, nil
	})

	if urn != CustomCoderURNPrefix+"upper-string" {
		t.Errorf("unexpected custom urn: %s", urn)
	}

	c, err := Default().Build(urn, nil)
	if err != nil {
		t.Fatalf("failed to build custom coder: %v", err)
	}
	if got := roundTrip(t, c, "x", WholeStream); got.(string) != "x" {
		t.Errorf("custom coder round trip failed: %v", got)
	}
}
