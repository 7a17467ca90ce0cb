package coders

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONCoder is the general object coder: it handles any JSON-serializable
// element. It is the fallback for collections whose element type has no
// dedicated coder. Note that JSON round-trips all numbers as float64.
type JSONCoder struct{}

func (JSONCoder) URN() string { return JSONCoderURN }

func (JSONCoder) Encode(v interface{}, w io.Writer, c Context) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json coder: %w", err)
	}
	if c == NeedsDelimiters {
		return writeLengthPrefixed(w, data)
	}
	_, err = w.Write(data)
	return err
}

func (JSONCoder) Decode(r io.Reader, c Context) (interface{}, error) {
	var data []byte
	var err error
	if c == NeedsDelimiters {
		data, err = readLengthPrefixed(r)
	} else {
		data, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("json coder: %w", err)
	}
	return v, nil
}
