// Package coders implements element encoding for joist collections.
//
// A Coder is responsible for turning collection elements into bytes and
// back. Coders are identified by URN so that a serialized pipeline graph can
// name them, and a worker on the other side can reconstruct them from the
// graph alone.
//
// Every coder supports two encoding contexts. WholeStream means the coder
// owns the entire byte stream and does not need to delimit the element.
// NeedsDelimiters means the encoding must be self-delimiting (typically via
// a length prefix) so a reader can stop at the end of the current element
// and continue with the next one.
package coders

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Context is the encoding context for a collection element.
type Context int

const (
	// WholeStream encoding means the encoder does not need to worry about
	// delimiting the start and end of the current element in the stream.
	WholeStream Context = iota

	// NeedsDelimiters encoding means the element must be encoded such that
	// the decoder can stop reading at the end of the current element.
	NeedsDelimiters
)

// Coder encodes and decodes collection elements.
//
// Implementations must be safe for concurrent use; all built-in coders are
// stateless.
type Coder interface {
	// URN returns the coder's identifier, as recorded in pipeline graphs.
	URN() string

	// Encode writes one element to w in the given context.
	Encode(v interface{}, w io.Writer, c Context) error

	// Decode reads one element from r in the given context.
	Decode(r io.Reader, c Context) (interface{}, error)
}

// KV is the element type produced by KV coders and consumed by GroupByKey.
type KV struct {
	Key   interface{}
	Value interface{}
}

// byteReader adapts an io.Reader to io.ByteReader for varint decoding
// without consuming read-ahead bytes.
type byteReader struct {
	r io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var buf [1]byte
	if _, err := io.ReadFull(b.r, buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// asByteReader returns r as an io.ByteReader, wrapping if necessary.
// bufio.Reader and bytes.Reader already satisfy the interface.
func asByteReader(r io.Reader) io.ByteReader {
	if br, ok := r.(io.ByteReader); ok {
		return br
	}
	return byteReader{r: r}
}

// writeUvarint writes an unsigned varint, the framing primitive used by all
// length-prefixed encodings in this package.
func writeUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

// readUvarint reads an unsigned varint written by writeUvarint.
func readUvarint(r io.Reader) (uint64, error) {
	return binary.ReadUvarint(asByteReader(r))
}

// writeLengthPrefixed frames data with a uvarint length header.
func writeLengthPrefixed(w io.Writer, data []byte) error {
	if err := writeUvarint(w, uint64(len(data))); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

// readLengthPrefixed reads a uvarint length header and then exactly that
// many bytes.
func readLengthPrefixed(r io.Reader) ([]byte, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read %d payload bytes: %w", n, err)
	}
	return data, nil
}

// NewElementReader returns a buffered reader suitable for decoding a stream
// of NeedsDelimiters elements.
func NewElementReader(r io.Reader) *bufio.Reader {
	return bufio.NewReader(r)
}
