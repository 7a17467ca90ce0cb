package coders

import "bytes"

// EncodeToBytes encodes a single value in the self-delimiting context and
// returns the bytes.
func EncodeToBytes(c Coder, v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Encode(v, &buf, NeedsDelimiters); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFromBytes decodes a single self-delimited value from data.
func DecodeFromBytes(c Coder, data []byte) (interface{}, error) {
	return c.Decode(bytes.NewReader(data), NeedsDelimiters)
}

// EncodeStream encodes a slice of elements in the self-delimiting context
// into one contiguous byte stream; DecodeStream reverses it given the
// element count implied by the data running out.
func EncodeStream(c Coder, elements []interface{}) ([]byte, error) {
	var buf bytes.Buffer
	for _, e := range elements {
		if err := c.Encode(e, &buf, NeedsDelimiters); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeStream decodes self-delimited elements until the data is
// exhausted.
func DecodeStream(c Coder, data []byte) ([]interface{}, error) {
	r := bytes.NewReader(data)
	var elements []interface{}
	for r.Len() > 0 {
		v, err := c.Decode(r, NeedsDelimiters)
		if err != nil {
			return nil, err
		}
		elements = append(elements, v)
	}
	return elements, nil
}
